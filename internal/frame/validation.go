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

package frame

import (
	"encoding/binary"
	"fmt"

	ledgericp "github.com/icpkit/go-ledger-icp"
)

// ValidateHIDHeader checks channel, tag and sequence index of one HID packet.
// A packet on the wrong channel or with the wrong tag is a corrupted frame; a
// packet carrying an unexpected index is reported as ErrSequenceInvalid.
func ValidateHIDHeader(packet []byte, channel, seq uint16, operation, port string) error {
	if len(packet) < hidHeaderLen {
		return corrupted(operation, port, "packet is %d bytes, header needs %d", len(packet), hidHeaderLen)
	}

	if got := binary.BigEndian.Uint16(packet[0:2]); got != channel {
		return corrupted(operation, port, "channel 0x%04X, expected 0x%04X", got, channel)
	}
	if packet[2] != HIDTagAPDU {
		return corrupted(operation, port, "tag 0x%02X, expected 0x%02X", packet[2], HIDTagAPDU)
	}

	if got := binary.BigEndian.Uint16(packet[3:5]); got != seq {
		return &ledgericp.TransportError{
			Op:        operation,
			Port:      port,
			Err:       fmt.Errorf("%w: index %d, expected %d", ledgericp.ErrSequenceInvalid, got, seq),
			Type:      ledgericp.ErrorTypeTransient,
			Retryable: true,
		}
	}

	return nil
}

// ValidateResponseLength checks an announced response length against the
// bytes the caller is willing to buffer.
func ValidateResponseLength(length, maxLen int, operation, port string) error {
	if maxLen <= 0 || maxLen > MaxResponseLength {
		maxLen = MaxResponseLength
	}
	if length < 0 || length > maxLen {
		return corrupted(operation, port, "announced length %d exceeds %d", length, maxLen)
	}
	return nil
}

func corrupted(operation, port, format string, args ...any) *ledgericp.TransportError {
	return ledgericp.NewFrameCorruptedError(operation, port, fmt.Errorf(format, args...))
}
