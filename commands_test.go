// go-ledger-icp
// Copyright (c) 2025 The go-ledger-icp Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-ledger-icp.
//
// go-ledger-icp is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-ledger-icp is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-ledger-icp; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package ledgericp

import (
	"testing"
)

func TestInstructionConstants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		constant byte
		expected byte
	}{
		{"CLA", CLA, 0x11},
		{"insGetVersion", insGetVersion, 0x00},
		{"insGetAddrSecp256k1", insGetAddrSecp256k1, 0x01},
		{"insSignSecp256k1", insSignSecp256k1, 0x02},
		{"insSignCombined", insSignCombined, 0x03},
		{"claDeviceInfo", claDeviceInfo, 0xE0},
		{"P1OnlyRetrieve", P1OnlyRetrieve, 0x00},
		{"P1ShowAddress", P1ShowAddress, 0x01},
		{"PayloadInit", byte(PayloadInit), 0x00},
		{"PayloadAdd", byte(PayloadAdd), 0x01},
		{"PayloadLast", byte(PayloadLast), 0x02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.constant != tt.expected {
				t.Errorf("%s = 0x%02X, want 0x%02X", tt.name, tt.constant, tt.expected)
			}
		})
	}
}

func TestInstructionUniqueness(t *testing.T) {
	t.Parallel()
	commands := map[string]byte{
		"insGetVersion":       insGetVersion,
		"insGetAddrSecp256k1": insGetAddrSecp256k1,
		"insSignSecp256k1":    insSignSecp256k1,
		"insSignCombined":     insSignCombined,
	}

	seen := make(map[byte]string)
	for name, value := range commands {
		if existing, exists := seen[value]; exists {
			t.Errorf("duplicate instruction value 0x%02X: %s and %s", value, name, existing)
		}
		seen[value] = name
	}
}

func TestSignMode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		want  string
		mode  SignMode
		valid bool
	}{
		{name: "default", mode: SignDefault, want: "default", valid: true},
		{name: "stake", mode: SignStakeTx, want: "stake", valid: true},
		{name: "out of range", mode: SignMode(7), want: "unknown", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.mode.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.mode.valid(); got != tt.valid {
				t.Errorf("valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}
