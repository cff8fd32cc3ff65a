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

import "fmt"

const (
	// apduHeaderLen is CLA, INS, P1, P2 and the one-byte Lc
	apduHeaderLen = 5
	// maxAPDUData is the largest body a one-byte Lc can announce
	maxAPDUData = 0xFF
)

// EncodeAPDU serializes a command as [CLA, INS, P1, P2, Lc, data...].
// Lc is always present, even for an empty body.
func EncodeAPDU(cla, ins, p1, p2 byte, data []byte) ([]byte, error) {
	if len(data) > maxAPDUData {
		return nil, fmt.Errorf("%w: APDU body is %d bytes, limit is %d", ErrDataTooLarge, len(data), maxAPDUData)
	}
	buf := make([]byte, apduHeaderLen+len(data))
	buf[0] = cla
	buf[1] = ins
	buf[2] = p1
	buf[3] = p2
	buf[4] = byte(len(data))
	copy(buf[apduHeaderLen:], data)
	return buf, nil
}

// APDU is a decoded command buffer
type APDU struct {
	Data []byte
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
}

// DecodeAPDU parses a buffer produced by EncodeAPDU.
func DecodeAPDU(buf []byte) (*APDU, error) {
	if len(buf) < apduHeaderLen {
		return nil, fmt.Errorf("%w: APDU is %d bytes, header needs %d", ErrInvalidResponse, len(buf), apduHeaderLen)
	}
	lc := int(buf[4])
	if len(buf) != apduHeaderLen+lc {
		return nil, fmt.Errorf("%w: Lc announces %d bytes, got %d", ErrInvalidResponse, lc, len(buf)-apduHeaderLen)
	}
	return &APDU{
		CLA:  buf[0],
		INS:  buf[1],
		P1:   buf[2],
		P2:   buf[3],
		Data: append([]byte(nil), buf[apduHeaderLen:]...),
	}, nil
}
