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

// Package tcp connects to the APDU port of a device emulator such as Speculos.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	ledgericp "github.com/icpkit/go-ledger-icp"
	"github.com/icpkit/go-ledger-icp/internal/frame"
	"github.com/icpkit/go-ledger-icp/internal/syncutil"
)

const (
	// DefaultAddress is the emulator's default APDU port
	DefaultAddress = "127.0.0.1:9999"

	dialTimeout = 5 * time.Second
)

// Transport implements ledgericp.Transport over a TCP stream.
type Transport struct {
	conn net.Conn
	addr string
	mu   syncutil.Mutex
}

// New dials the emulator at addr, or DefaultAddress when addr is empty
func New(addr string) (*Transport, error) {
	if addr == "" {
		addr = DefaultAddress
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewWithConn(conn, addr), nil
}

// NewWithConn wraps an established connection
func NewWithConn(conn net.Conn, addr string) *Transport {
	return &Transport{conn: conn, addr: addr}
}

// Send writes one length-prefixed APDU and reads the response. The context
// deadline becomes the connection deadline; cancellation unblocks I/O.
//
// A failure after the command is written leaves the stream out of step with
// the device, since a late response would be read as the answer to the next
// command. The connection is closed in that case and later calls fail with
// ErrTransportClosed.
func (t *Transport) Send(ctx context.Context, cla, ins, p1, p2 byte, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, ledgericp.NewTransportClosedError("Send", t.addr)
	}

	apdu, err := ledgericp.EncodeAPDU(cla, ins, p1, p2, data)
	if err != nil {
		return nil, err
	}

	conn := t.conn
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, ledgericp.NewTransportError("Send", t.addr, err, ledgericp.ErrorTypePermanent)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := frame.WriteStreamCommand(conn, apdu); err != nil {
		t.drop()
		return nil, t.ioError(ctx, err, ledgericp.NewTransportWriteError)
	}

	resp, err := frame.ReadStreamResponse(conn, 0, t.addr)
	if err != nil {
		t.drop()
		return nil, t.ioError(ctx, err, ledgericp.NewTransportReadError)
	}
	return resp, nil
}

// drop closes a connection whose framing can no longer be trusted. Callers
// hold t.mu.
func (t *Transport) drop() {
	ledgericp.Debugf("TCP %s: exchange interrupted, closing connection", t.addr)
	_ = t.conn.Close()
	t.conn = nil
}

func (t *Transport) ioError(
	ctx context.Context, err error, wrap func(op, port string, cause error) *ledgericp.TransportError,
) error {
	var te *ledgericp.TransportError
	if errors.As(err, &te) {
		return te
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ctx.Err()
		}
		return ledgericp.NewTimeoutError("Send", t.addr)
	}
	if errors.Is(err, net.ErrClosed) {
		return ledgericp.NewTransportError("Send", t.addr, err, ledgericp.ErrorTypePermanent)
	}
	return wrap("Send", t.addr, err)
}

// Close closes the connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return fmt.Errorf("TCP close failed: %w", err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() ledgericp.TransportType {
	return ledgericp.TransportTCP
}
