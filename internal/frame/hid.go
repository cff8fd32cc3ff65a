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
	"sync"

	ledgericp "github.com/icpkit/go-ledger-icp"
)

// WrapHID splits an APDU into fixed-size HID packets. Every packet starts with
// the channel, the APDU tag and a big-endian sequence index; the first one also
// carries the APDU length. The last packet is zero padded.
func WrapHID(channel uint16, apdu []byte, packetSize int) ([][]byte, error) {
	if packetSize <= hidHeaderLen+hidLengthLen {
		return nil, fmt.Errorf("%w: packet size %d is too small", ledgericp.ErrInvalidParameter, packetSize)
	}
	if len(apdu) > MaxResponseLength {
		return nil, fmt.Errorf("%w: APDU of %d bytes", ledgericp.ErrDataTooLarge, len(apdu))
	}

	data := make([]byte, hidLengthLen+len(apdu))
	binary.BigEndian.PutUint16(data, uint16(len(apdu)))
	copy(data[hidLengthLen:], apdu)

	blockSize := packetSize - hidHeaderLen
	count := (len(data) + blockSize - 1) / blockSize
	packets := make([][]byte, count)
	for i := range packets {
		packet := make([]byte, packetSize)
		binary.BigEndian.PutUint16(packet[0:2], channel)
		packet[2] = HIDTagAPDU
		binary.BigEndian.PutUint16(packet[3:5], uint16(i))

		start := i * blockSize
		end := min(start+blockSize, len(data))
		copy(packet[hidHeaderLen:], data[start:end])
		packets[i] = packet
	}
	return packets, nil
}

// HIDReassembler rebuilds one response from the packets the device sends back.
// Feed packets in arrival order until it reports completion.
type HIDReassembler struct {
	port     string
	data     []byte
	expected int
	channel  uint16
	seq      uint16
	done     bool
}

// NewHIDReassembler creates a reassembler for responses on channel
func NewHIDReassembler(channel uint16, port string) *HIDReassembler {
	return &HIDReassembler{channel: channel, port: port}
}

// Feed consumes one packet. It returns true once the announced length has
// been received.
func (r *HIDReassembler) Feed(packet []byte) (bool, error) {
	if r.done {
		return true, nil
	}

	if err := ValidateHIDHeader(packet, r.channel, r.seq, "ReadHID", r.port); err != nil {
		return false, err
	}

	body := packet[hidHeaderLen:]
	if r.seq == 0 {
		if len(body) < hidLengthLen {
			return false, corrupted("ReadHID", r.port, "first packet has no length field")
		}
		r.expected = int(binary.BigEndian.Uint16(body))
		r.data = make([]byte, 0, r.expected)
		body = body[hidLengthLen:]
	}
	r.seq++

	need := r.expected - len(r.data)
	r.data = append(r.data, body[:min(need, len(body))]...)
	r.done = len(r.data) == r.expected
	return r.done, nil
}

// Response returns the reassembled bytes, or nil while incomplete
func (r *HIDReassembler) Response() []byte {
	if !r.done {
		return nil
	}
	return r.data
}

// Reset prepares the reassembler for the next response
func (r *HIDReassembler) Reset() {
	r.data = nil
	r.expected = 0
	r.seq = 0
	r.done = false
}

var packetPool = sync.Pool{
	New: func() any {
		buf := make([]byte, HIDPacketSize)
		return &buf
	},
}

// GetPacket returns a report-sized read buffer from the pool
func GetPacket() []byte {
	bufPtr, ok := packetPool.Get().(*[]byte)
	if !ok {
		return make([]byte, HIDPacketSize)
	}
	return (*bufPtr)[:HIDPacketSize]
}

// PutPacket returns a buffer obtained from GetPacket. The buffer is cleared.
func PutPacket(buf []byte) {
	if cap(buf) != HIDPacketSize {
		return
	}
	buf = buf[:HIDPacketSize]
	clear(buf)
	packetPool.Put(&buf)
}
