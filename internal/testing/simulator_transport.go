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
	"context"
	"time"

	ledgericp "github.com/icpkit/go-ledger-icp"
	"github.com/icpkit/go-ledger-icp/internal/syncutil"
)

// SimulatorTransport implements ledgericp.Transport directly on top of a
// VirtualDevice, skipping any wire framing. Every command is logged for
// test verification.
type SimulatorTransport struct {
	dev        *VirtualDevice
	commandLog []CommandLogEntry
	mu         syncutil.Mutex
	closed     bool
}

// CommandLogEntry records a command sent to the transport
type CommandLogEntry struct {
	Timestamp time.Time
	Data      []byte
	CLA       byte
	INS       byte
	P1        byte
	P2        byte
}

// NewSimulatorTransport creates a new transport backed by dev
func NewSimulatorTransport(dev *VirtualDevice) *SimulatorTransport {
	return &SimulatorTransport{dev: dev}
}

// Send encodes the APDU and hands it to the simulated device
func (t *SimulatorTransport) Send(ctx context.Context, cla, ins, p1, p2 byte, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ledgericp.NewTransportClosedError("Send", "simulator")
	}

	apdu, err := ledgericp.EncodeAPDU(cla, ins, p1, p2, data)
	if err != nil {
		return nil, err
	}

	t.commandLog = append(t.commandLog, CommandLogEntry{
		CLA:       cla,
		INS:       ins,
		P1:        p1,
		P2:        p2,
		Data:      append([]byte(nil), data...),
		Timestamp: time.Now(),
	})

	return t.dev.HandleAPDU(apdu), nil
}

// Close closes the transport
func (t *SimulatorTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Type returns the transport type
func (*SimulatorTransport) Type() ledgericp.TransportType {
	return ledgericp.TransportMock
}

// Device returns the simulated device for test setup
func (t *SimulatorTransport) Device() *VirtualDevice {
	return t.dev
}

// CommandLog returns a copy of the logged commands
func (t *SimulatorTransport) CommandLog() []CommandLogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]CommandLogEntry(nil), t.commandLog...)
}

// ClearCommandLog clears the command log
func (t *SimulatorTransport) ClearCommandLog() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commandLog = nil
}

// HasCommand checks if a specific instruction was sent
func (t *SimulatorTransport) HasCommand(ins byte) bool {
	return t.CommandCount(ins) > 0
}

// CommandCount returns how many times an instruction was sent
func (t *SimulatorTransport) CommandCount(ins byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, entry := range t.commandLog {
		if entry.INS == ins {
			count++
		}
	}
	return count
}
