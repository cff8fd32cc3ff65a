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

package testing

import (
	"bytes"
	"encoding/binary"

	ledgericp "github.com/icpkit/go-ledger-icp"
)

// StatusWord returns the two status bytes for code
func StatusWord(code ledgericp.StatusCode) []byte {
	return []byte{byte(code >> 8), byte(code)}
}

// withStatus appends the status word for code to body
func withStatus(body []byte, code ledgericp.StatusCode) []byte {
	out := make([]byte, 0, len(body)+2)
	out = append(out, body...)
	return append(out, StatusWord(code)...)
}

// BuildVersionResponse builds a successful version answer
func BuildVersionResponse(testMode bool, major, minor, patch byte, locked bool, targetID uint32) []byte {
	body := []byte{boolByte(testMode), major, minor, patch, boolByte(locked), 0, 0, 0, 0}
	binary.BigEndian.PutUint32(body[5:], targetID)
	return withStatus(body, ledgericp.NoErrors)
}

// BuildAddressResponse builds a successful address answer
func BuildAddressResponse(publicKey, principal, address []byte, text string) []byte {
	var b bytes.Buffer
	b.Write(publicKey)
	b.Write(principal)
	b.Write(address)
	b.WriteString(text)
	return withStatus(b.Bytes(), ledgericp.NoErrors)
}

// BuildSignatureResponse builds a successful signing answer
func BuildSignatureResponse(preHash, rs, der []byte) []byte {
	var b bytes.Buffer
	b.Write(preHash)
	b.Write(rs)
	b.Write(der)
	return withStatus(b.Bytes(), ledgericp.NoErrors)
}

// BuildCombinedResponse builds a successful combined signing answer
func BuildCombinedResponse(requestHash, requestRS, statusHash, statusRS []byte) []byte {
	var b bytes.Buffer
	b.Write(requestHash)
	b.Write(requestRS)
	b.Write(statusHash)
	b.Write(statusRS)
	return withStatus(b.Bytes(), ledgericp.NoErrors)
}

// BuildDeviceInfoResponse builds a successful device info answer
func BuildDeviceInfoResponse(targetID uint32, seVersion string, flags []byte, mcuVersion string) []byte {
	body := binary.BigEndian.AppendUint32(nil, targetID)
	body = append(body, byte(len(seVersion)))
	body = append(body, seVersion...)
	body = append(body, byte(len(flags)))
	body = append(body, flags...)
	body = append(body, byte(len(mcuVersion)))
	body = append(body, mcuVersion...)
	return withStatus(body, ledgericp.NoErrors)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
