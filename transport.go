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
	"context"
	"errors"
	"sync"
	"time"
)

// Transport is the byte pipe to the device. Implementations exchange exactly
// one command per Send and return the raw response, status word included.
// Send must not be called concurrently; Device serializes its calls.
type Transport interface {
	// Send transmits one APDU and waits for its response
	Send(ctx context.Context, cla, ins, p1, p2 byte, data []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportHID represents USB HID transport.
	TransportHID TransportType = "hid"
	// TransportTCP represents the emulator APDU socket.
	TransportTCP TransportType = "tcp"
	// TransportUART represents a serial bridge.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockCall records one Send on a MockTransport
type MockCall struct {
	Data []byte
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
}

// MockTransport provides a mock implementation of Transport for testing.
// Responses are queued per instruction; when a queue is empty the default
// response for that instruction is returned, or a bare success status word.
type MockTransport struct {
	queued    map[byte][][]byte
	defaults  map[byte][]byte
	errorMap  map[byte]error
	calls     []MockCall
	delay     time.Duration
	inFlight  int
	maxFlight int
	mu        sync.Mutex
	closed    bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		queued:   make(map[byte][][]byte),
		defaults: make(map[byte][]byte),
		errorMap: make(map[byte]error),
	}
}

// Send implements Transport
func (m *MockTransport) Send(ctx context.Context, cla, ins, p1, p2 byte, data []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrTransportClosed
	}
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	m.calls = append(m.calls, MockCall{
		CLA: cla, INS: ins, P1: p1, P2: p2,
		Data: append([]byte(nil), data...),
	})
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, exists := m.errorMap[ins]; exists {
		return nil, err
	}
	if q := m.queued[ins]; len(q) > 0 {
		m.queued[ins] = q[1:]
		return q[0], nil
	}
	if resp, exists := m.defaults[ins]; exists {
		return resp, nil
	}
	return []byte{0x90, 0x00}, nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// SetResponse configures the response returned for an instruction whenever
// no queued response is pending
func (m *MockTransport) SetResponse(ins byte, response []byte) {
	m.mu.Lock()
	m.defaults[ins] = response
	m.mu.Unlock()
}

// QueueResponse appends a one-shot response for an instruction
func (m *MockTransport) QueueResponse(ins byte, response []byte) {
	m.mu.Lock()
	m.queued[ins] = append(m.queued[ins], response)
	m.mu.Unlock()
}

// SetError configures an error to be returned for an instruction
func (m *MockTransport) SetError(ins byte, err error) {
	m.mu.Lock()
	m.errorMap[ins] = err
	m.mu.Unlock()
}

// ClearError removes error injection for an instruction
func (m *MockTransport) ClearError(ins byte) {
	m.mu.Lock()
	delete(m.errorMap, ins)
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate device response time
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// Calls returns a copy of every Send recorded so far
func (m *MockTransport) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// MaxInFlight returns the highest number of concurrent Send calls observed
func (m *MockTransport) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxFlight
}

// Reset clears recorded calls, queues and injected errors
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.queued = make(map[byte][][]byte)
	m.defaults = make(map[byte][]byte)
	m.errorMap = make(map[byte]error)
	m.calls = nil
	m.maxFlight = 0
	m.mu.Unlock()
}

var _ Transport = (*MockTransport)(nil)

// errNilTransport is returned by New when no transport is supplied
var errNilTransport = errors.New("transport is nil")
