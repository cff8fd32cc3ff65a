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
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	// pathLevels is the number of derivation levels after the "m" root
	pathLevels = 5
	// EncodedPathLen is the size of a serialized derivation path
	EncodedPathLen = 4 * pathLevels

	hardenedOffset uint32 = 0x80000000
	hardenedMarker        = "'"
)

// DefaultPath is the first address of the first ICP account
const DefaultPath = "m/44'/223'/0'/0/0"

// EncodedPath is a derivation path in the wire layout expected by the app:
// five little-endian uint32 levels with bit 31 set on hardened levels.
type EncodedPath [EncodedPathLen]byte

// PathError describes why a derivation path was rejected.
type PathError struct {
	Path    string
	Segment string
	Reason  string
}

func (e *PathError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("invalid derivation path %q: segment %q %s", e.Path, e.Segment, e.Reason)
	}
	return fmt.Sprintf("invalid derivation path %q: %s", e.Path, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedPath
func (*PathError) Unwrap() error {
	return ErrMalformedPath
}

// SerializePath converts a path such as "m/44'/223'/0'/0/3" into its
// 20-byte wire form. It never talks to the device.
func SerializePath(path string) (EncodedPath, error) {
	var out EncodedPath

	if !strings.HasPrefix(path, "m") {
		return out, &PathError{Path: path, Reason: `should start with "m" (e.g "m/44'/223'/0'/0/3")`}
	}

	segments := strings.Split(path, "/")
	if len(segments) != pathLevels+1 {
		return out, &PathError{
			Path:   path,
			Reason: fmt.Sprintf("expected %d segments, got %d", pathLevels+1, len(segments)),
		}
	}
	if segments[0] != "m" {
		return out, &PathError{Path: path, Segment: segments[0], Reason: `is not the "m" root`}
	}

	for i, segment := range segments[1:] {
		value, err := parseLevel(path, segment)
		if err != nil {
			return EncodedPath{}, err
		}
		binary.LittleEndian.PutUint32(out[4*i:], value)
	}

	return out, nil
}

// parseLevel parses one level including its optional hardening marker
func parseLevel(path, segment string) (uint32, error) {
	child, hardened := strings.CutSuffix(segment, hardenedMarker)

	// ParseUint accepts a leading "+", the device path grammar does not
	if child == "" || child[0] == '+' {
		return 0, &PathError{Path: path, Segment: segment, Reason: "is not a number"}
	}

	n, err := strconv.ParseUint(child, 10, 64)
	if err != nil {
		return 0, &PathError{Path: path, Segment: segment, Reason: "is not a number"}
	}
	if n >= uint64(hardenedOffset) {
		return 0, &PathError{Path: path, Segment: segment, Reason: "is bigger or equal to 0x80000000"}
	}

	value := uint32(n)
	if hardened {
		value += hardenedOffset
	}
	return value, nil
}

// MustSerializePath is like SerializePath but panics on error.
// Intended for constant paths known at compile time.
func MustSerializePath(path string) EncodedPath {
	p, err := SerializePath(path)
	if err != nil {
		panic(err)
	}
	return p
}

// DecodePath reads a serialized path back. b must hold exactly EncodedPathLen bytes.
func DecodePath(b []byte) (EncodedPath, error) {
	var out EncodedPath
	if len(b) != EncodedPathLen {
		return out, fmt.Errorf("%w: serialized path must be %d bytes, got %d",
			ErrMalformedPath, EncodedPathLen, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// Level returns the raw value of level i (0-based), hardening bit included
func (p EncodedPath) Level(i int) uint32 {
	return binary.LittleEndian.Uint32(p[4*i:])
}

// Levels returns the five raw level values
func (p EncodedPath) Levels() [pathLevels]uint32 {
	var levels [pathLevels]uint32
	for i := range levels {
		levels[i] = p.Level(i)
	}
	return levels
}

// Hardened reports whether level i carries the hardening bit
func (p EncodedPath) Hardened(i int) bool {
	return p.Level(i)&hardenedOffset != 0
}

// Index returns level i without the hardening bit
func (p EncodedPath) Index(i int) uint32 {
	return p.Level(i) &^ hardenedOffset
}

// String renders the path in its "m/..." notation
func (p EncodedPath) String() string {
	var sb strings.Builder
	_, _ = sb.WriteString("m")
	for i := range pathLevels {
		_, _ = sb.WriteString("/")
		_, _ = sb.WriteString(strconv.FormatUint(uint64(p.Index(i)), 10))
		if p.Hardened(i) {
			_, _ = sb.WriteString(hardenedMarker)
		}
	}
	return sb.String()
}

// Bytes returns a copy of the serialized path
func (p EncodedPath) Bytes() []byte {
	return append([]byte(nil), p[:]...)
}

// AccountPath builds the standard ICP path for an account and address index.
func AccountPath(account, index uint32) string {
	return fmt.Sprintf("m/44'/223'/%d'/0/%d", account, index)
}
