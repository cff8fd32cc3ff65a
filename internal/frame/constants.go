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

// HID report layout
const (
	HIDChannel    = 0x0101 // Channel id echoed by the device
	HIDTagAPDU    = 0x05   // Tag for APDU transport packets
	HIDPacketSize = 64     // Report size on the interrupt endpoints

	hidHeaderLen = 5 // channel(2) + tag(1) + sequence(2)
	hidLengthLen = 2 // APDU length, first packet only
)

// Stream layout shared by the emulator socket and serial bridges
const (
	StreamLengthLen = 4 // Big-endian length prefix
	StatusWordLen   = 2 // Trailing SW1 SW2 on responses

	// MaxResponseLength bounds the announced response length
	MaxResponseLength = 0xFFFF
)
