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

// ICP app class byte and instruction codes
const (
	// CLA is the class byte of the ICP application
	CLA byte = 0x11

	insGetVersion       byte = 0x00
	insGetAddrSecp256k1 byte = 0x01
	insSignSecp256k1    byte = 0x02
	insSignCombined     byte = 0x03
)

// Dashboard-level query answered by the app on behalf of the OS
const (
	claDeviceInfo byte = 0xE0
	insDeviceInfo byte = 0x01
)

// ChunkSize is the maximum number of payload bytes carried by a single APDU
const ChunkSize = 250

// PayloadType is the P1 value of a chunked transfer. The device keeps a
// reassembly buffer that is reset by PayloadInit and completed by PayloadLast.
type PayloadType byte

const (
	// PayloadInit starts a transfer; the chunk carries the derivation path
	PayloadInit PayloadType = 0x00
	// PayloadAdd appends to the reassembly buffer
	PayloadAdd PayloadType = 0x01
	// PayloadLast appends the final bytes and triggers processing
	PayloadLast PayloadType = 0x02
)

// P1 values for the address command
const (
	// P1OnlyRetrieve returns the address without user interaction
	P1OnlyRetrieve byte = 0x00
	// P1ShowAddress displays the address and waits for user approval
	P1ShowAddress byte = 0x01
)

// SignMode selects the transaction flavour; it travels in P2 of every chunk.
type SignMode byte

const (
	// SignDefault signs a regular transaction
	SignDefault SignMode = 0x00
	// SignStakeTx signs a neuron stake transaction
	SignStakeTx SignMode = 0x01
)

func (m SignMode) String() string {
	switch m {
	case SignDefault:
		return "default"
	case SignStakeTx:
		return "stake"
	default:
		return "unknown"
	}
}

// valid reports whether the firmware accepts m as P2
func (m SignMode) valid() bool {
	return m == SignDefault || m == SignStakeTx
}

// Response field lengths
const (
	PublicKeyLen   = 65
	AddressLen     = 32
	PrincipalLen   = 29
	PreHashLen     = 43
	SignatureRSLen = 64
	RequestHashLen = 32
)
