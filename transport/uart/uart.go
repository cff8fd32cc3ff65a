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

// Package uart exchanges APDUs with a serial bridge using length-prefixed
// stream framing.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	ledgericp "github.com/icpkit/go-ledger-icp"
	"github.com/icpkit/go-ledger-icp/internal/frame"
	"go.bug.st/serial"
)

// DefaultBaudRate is used when New is given a zero baud rate
const DefaultBaudRate = 115200

// Port is the subset of serial.Port the transport uses
type Port interface {
	io.ReadWriteCloser
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Transport implements ledgericp.Transport for a serial bridge.
type Transport struct {
	port     Port
	portName string
	mu       sync.Mutex
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// readTimeout is the per-read poll interval; Windows drivers need longer
func readTimeout() time.Duration {
	if isWindows() {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens portName at baud, 8N1.
func New(portName string, baud int) (*Transport, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	return NewWithPort(port, portName), nil
}

// NewWithPort wraps an already opened port
func NewWithPort(port Port, portName string) *Transport {
	return &Transport{port: port, portName: portName}
}

// Send writes one length-prefixed APDU and polls for the response until it
// arrives or ctx ends.
func (t *Transport) Send(ctx context.Context, cla, ins, p1, p2 byte, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, ledgericp.NewTransportClosedError("Send", t.portName)
	}

	apdu, err := ledgericp.EncodeAPDU(cla, ins, p1, p2, data)
	if err != nil {
		return nil, err
	}

	// stale bytes from an aborted exchange would desynchronize the stream
	if err := t.port.ResetInputBuffer(); err != nil {
		ledgericp.Debugf("UART %s: reset input buffer: %v", t.portName, err)
	}

	if err := frame.WriteStreamCommand(t.port, apdu); err != nil {
		return nil, ledgericp.NewTransportWriteError("Send", t.portName, err)
	}
	if err := t.drainWithRetry("command"); err != nil {
		return nil, ledgericp.NewTransportWriteError("Send", t.portName, err)
	}

	resp, err := frame.ReadStreamResponse(&pollReader{ctx: ctx, port: t.port}, 0, t.portName)
	if err != nil {
		return nil, t.readError(ctx, err)
	}
	return resp, nil
}

func (t *Transport) readError(ctx context.Context, err error) error {
	var te *ledgericp.TransportError
	switch {
	case errors.As(err, &te):
		return te
	case errors.Is(err, context.DeadlineExceeded):
		return ledgericp.NewTimeoutError("Send", t.portName)
	case errors.Is(err, context.Canceled):
		return ctx.Err()
	default:
		return ledgericp.NewTransportReadError("Send", t.portName, err)
	}
}

// pollReader turns read timeouts into polls of ctx
type pollReader struct {
	ctx  context.Context
	port Port
}

func (r *pollReader) Read(p []byte) (int, error) {
	for {
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
		n, err := r.port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := t.port.Drain()
		if err == nil {
			return nil
		}

		if isInterruptedSystemCall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt)) // 2ms, 4ms
			continue
		}

		return fmt.Errorf("UART %s drain failed: %w", operation, err)
	}

	return fmt.Errorf("UART %s drain failed after %d retries", operation, maxRetries)
}

// Close closes the transport connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() ledgericp.TransportType {
	return ledgericp.TransportUART
}
