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

// ChunkTag marks the position of a command within a logical request
type ChunkTag int

const (
	// ChunkSingle is a request that fits in one command
	ChunkSingle ChunkTag = iota
	// ChunkInit opens a chunked transfer
	ChunkInit
	// ChunkAdd continues a chunked transfer
	ChunkAdd
	// ChunkLast completes a chunked transfer; only its response is the result
	ChunkLast
)

func (t ChunkTag) String() string {
	switch t {
	case ChunkSingle:
		return "single"
	case ChunkInit:
		return "init"
	case ChunkAdd:
		return "add"
	case ChunkLast:
		return "last"
	default:
		return fmt.Sprintf("ChunkTag(%d)", int(t))
	}
}

// FramedCommand is one physical command of a logical request
type FramedCommand struct {
	Data []byte
	Tag  ChunkTag
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
}

// Bytes returns the command in wire format
func (c FramedCommand) Bytes() ([]byte, error) {
	return EncodeAPDU(c.CLA, c.INS, c.P1, c.P2, c.Data)
}

// String is used by trace and debug output
func (c FramedCommand) String() string {
	return fmt.Sprintf("%s CLA=%02X INS=%02X P1=%02X P2=%02X Lc=%d",
		c.Tag, c.CLA, c.INS, c.P1, c.P2, len(c.Data))
}

// Frame builds the command sequence for a payload using ChunkSize.
func Frame(cla, ins, p1, p2 byte, payload []byte) []FramedCommand {
	return frameWithSize(cla, ins, p1, p2, payload, ChunkSize)
}

// frameWithSize splits payload into commands of at most size bytes. A payload
// that fits produces one ChunkSingle command carrying the caller's P1. Larger
// payloads produce Init (caller's P1), zero or more Add and one Last; the
// continuation chunks carry PayloadAdd/PayloadLast in P1.
func frameWithSize(cla, ins, p1, p2 byte, payload []byte, size int) []FramedCommand {
	if len(payload) <= size {
		return []FramedCommand{{
			Tag:  ChunkSingle,
			CLA:  cla,
			INS:  ins,
			P1:   p1,
			P2:   p2,
			Data: payload,
		}}
	}

	chunks := SplitPayload(payload, size)
	cmds := make([]FramedCommand, len(chunks))
	for i, chunk := range chunks {
		cmds[i] = FramedCommand{CLA: cla, INS: ins, P2: p2, Data: chunk}
		switch i {
		case 0:
			cmds[i].Tag = ChunkInit
			cmds[i].P1 = p1
		case len(chunks) - 1:
			cmds[i].Tag = ChunkLast
			cmds[i].P1 = byte(PayloadLast)
		default:
			cmds[i].Tag = ChunkAdd
			cmds[i].P1 = byte(PayloadAdd)
		}
	}
	return cmds
}

// FrameChunks tags an already split chunk list for a chunked transfer where
// P1 carries the payload type of every chunk. The first chunk is PayloadInit.
// At least two chunks are required: the device only answers with a result
// after PayloadLast.
func FrameChunks(cla, ins, p2 byte, chunks [][]byte) ([]FramedCommand, error) {
	if len(chunks) < 2 {
		return nil, fmt.Errorf("%w: chunked transfer needs at least 2 chunks, got %d",
			ErrInvalidParameter, len(chunks))
	}

	cmds := make([]FramedCommand, len(chunks))
	for i, chunk := range chunks {
		cmd := FramedCommand{CLA: cla, INS: ins, P2: p2, Data: chunk}
		switch i {
		case 0:
			cmd.Tag, cmd.P1 = ChunkInit, byte(PayloadInit)
		case len(chunks) - 1:
			cmd.Tag, cmd.P1 = ChunkLast, byte(PayloadLast)
		default:
			cmd.Tag, cmd.P1 = ChunkAdd, byte(PayloadAdd)
		}
		cmds[i] = cmd
	}
	return cmds, nil
}

// SplitPayload cuts payload into consecutive slices of at most size bytes.
// The slices alias payload. An empty payload yields no chunks.
func SplitPayload(payload []byte, size int) [][]byte {
	if size <= 0 {
		size = ChunkSize
	}
	chunks := make([][]byte, 0, (len(payload)+size-1)/size)
	for start := 0; start < len(payload); start += size {
		end := min(start+size, len(payload))
		chunks = append(chunks, payload[start:end])
	}
	return chunks
}

// signChunks lays out a signing request: the serialized path alone in the
// first chunk, then the message split by size.
func signChunks(path EncodedPath, message []byte, size int) [][]byte {
	chunks := make([][]byte, 0, 1+(len(message)+size-1)/size)
	chunks = append(chunks, path.Bytes())
	return append(chunks, SplitPayload(message, size)...)
}
