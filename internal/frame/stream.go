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
	"io"

	ledgericp "github.com/icpkit/go-ledger-icp"
)

// EncodeStreamCommand prefixes an APDU with its 4-byte big-endian length
func EncodeStreamCommand(apdu []byte) []byte {
	buf := make([]byte, StreamLengthLen+len(apdu))
	binary.BigEndian.PutUint32(buf, uint32(len(apdu)))
	copy(buf[StreamLengthLen:], apdu)
	return buf
}

// WriteStreamCommand writes one length-prefixed APDU
func WriteStreamCommand(w io.Writer, apdu []byte) error {
	buf := EncodeStreamCommand(apdu)
	n, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("write stream command: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("write stream command: %w", io.ErrShortWrite)
	}
	return nil
}

// ReadStreamResponse reads one response: a 4-byte big-endian data length, the
// data, then the 2-byte status word. The returned slice is data followed by
// the status word. maxLen bounds the announced data length.
func ReadStreamResponse(r io.Reader, maxLen int, port string) ([]byte, error) {
	var header [StreamLengthLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read stream header: %w", err)
	}

	announced := binary.BigEndian.Uint32(header[:])
	if announced > MaxResponseLength {
		return nil, corrupted("ReadStream", port, "announced length %d exceeds %d", announced, MaxResponseLength)
	}
	length := int(announced)
	if err := ValidateResponseLength(length, maxLen, "ReadStream", port); err != nil {
		return nil, err
	}

	resp := make([]byte, length+StatusWordLen)
	if _, err := io.ReadFull(r, resp); err != nil {
		return nil, fmt.Errorf("read stream body: %w", err)
	}
	return resp, nil
}

// EncodeStreamResponse is the device side of ReadStreamResponse. resp holds
// the data followed by the status word.
func EncodeStreamResponse(resp []byte) ([]byte, error) {
	if len(resp) < StatusWordLen {
		return nil, fmt.Errorf("%w: response of %d bytes has no status word",
			ledgericp.ErrInvalidResponse, len(resp))
	}
	buf := make([]byte, StreamLengthLen+len(resp))
	binary.BigEndian.PutUint32(buf, uint32(len(resp)-StatusWordLen))
	copy(buf[StreamLengthLen:], resp)
	return buf, nil
}
