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
	"io"
	"math/rand/v2"
	"time"
)

// JitterConfig configures the behavior of JitteryConnection.
type JitterConfig struct {
	MaxLatency        time.Duration
	FragmentMinBytes  int
	StallAfterBytes   int
	StallDuration     time.Duration
	Seed              uint64
	FragmentReads     bool
	USBBoundaryStress bool
}

// DefaultJitterConfig fragments reads down to single bytes with up to 5ms latency
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatency:       5 * time.Millisecond,
		FragmentReads:    true,
		FragmentMinBytes: 1,
	}
}

// JitteryConnection wraps an io.ReadWriter to behave like a USB-serial
// bridge: reads arrive late and in arbitrary fragments. Backend reads are
// buffered so fragmentation never drops bytes. Writes pass through.
type JitteryConnection struct {
	backend   io.ReadWriter
	rng       *rand.Rand
	pending   []byte
	config    JitterConfig
	delivered int
	stalled   bool
}

// NewJitteryConnection wraps backend. A zero Seed picks a random one.
func NewJitteryConnection(backend io.ReadWriter, config JitterConfig) *JitteryConnection {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // Test code, not crypto
	}
	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}

	return &JitteryConnection{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // Test code, not crypto
	}
}

// Write passes writes through to the backend
func (j *JitteryConnection) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // Pass-through wrapper
}

// Read returns a fragment of the buffered backend data after a random delay
func (j *JitteryConnection) Read(buf []byte) (int, error) {
	if j.config.MaxLatency > 0 {
		time.Sleep(time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)))
	}

	if len(j.pending) == 0 {
		chunk := make([]byte, 1024)
		n, err := j.backend.Read(chunk)
		if err != nil || n == 0 {
			return 0, err //nolint:wrapcheck // Pass-through wrapper
		}
		j.pending = chunk[:n]
	}

	n := min(len(j.pending), len(buf))

	if limit := j.config.StallAfterBytes; limit > 0 && !j.stalled {
		if j.delivered >= limit {
			j.stalled = true
			time.Sleep(j.config.StallDuration)
		} else {
			n = min(n, limit-j.delivered)
		}
	}

	if j.config.USBBoundaryStress {
		n = min(n, frameBoundary-j.delivered%frameBoundary)
	}

	if j.config.FragmentReads && n > j.config.FragmentMinBytes {
		n = j.config.FragmentMinBytes + j.rng.IntN(n-j.config.FragmentMinBytes+1)
	}

	copy(buf, j.pending[:n])
	j.pending = j.pending[n:]
	j.delivered += n
	return n, nil
}

// frameBoundary is the USB full-speed report size
const frameBoundary = 64

// ResetStallState re-arms the stall
func (j *JitteryConnection) ResetStallState() {
	j.delivered = 0
	j.stalled = false
}

// ClearBuffer drops buffered backend data
func (j *JitteryConnection) ClearBuffer() {
	j.pending = nil
}

// JitteryPort puts a JitteryConnection in front of a StreamWire while keeping
// the wire's port controls, so it can back the UART transport.
type JitteryPort struct {
	*StreamWire
	conn *JitteryConnection
}

// NewJitteryPort wraps wire with jitter simulation
func NewJitteryPort(wire *StreamWire, config JitterConfig) *JitteryPort {
	return &JitteryPort{StreamWire: wire, conn: NewJitteryConnection(wire, config)}
}

// Read reads through the jitter simulation
func (p *JitteryPort) Read(buf []byte) (int, error) {
	return p.conn.Read(buf)
}

// Write passes through to the wire
func (p *JitteryPort) Write(data []byte) (int, error) {
	return p.conn.Write(data)
}

// ResetInputBuffer drops buffered and pending response bytes
func (p *JitteryPort) ResetInputBuffer() error {
	p.conn.ClearBuffer()
	return p.StreamWire.ResetInputBuffer()
}
