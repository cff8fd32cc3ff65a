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

package hid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ledgericp "github.com/icpkit/go-ledger-icp"
	"github.com/icpkit/go-ledger-icp/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice answers complete APDUs with handler, packetized like a Ledger
type fakeDevice struct {
	handler  func(apdu []byte) []byte
	incoming *frame.HIDReassembler
	out      chan []byte
	closeCh  chan struct{}
	writeErr error
	written  [][]byte
	mu       sync.Mutex
	closed   bool
}

func newFakeDevice(handler func([]byte) []byte) *fakeDevice {
	return &fakeDevice{
		handler:  handler,
		incoming: frame.NewHIDReassembler(frame.HIDChannel, "fake"),
		out:      make(chan []byte, 64),
		closeCh:  make(chan struct{}),
	}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.written = append(d.written, append([]byte(nil), p...))

	done, err := d.incoming.Feed(p)
	if err != nil {
		return 0, err
	}
	if !done {
		return len(p), nil
	}

	apdu := d.incoming.Response()
	d.incoming.Reset()
	if resp := d.handler(apdu); resp != nil {
		packets, err := frame.WrapHID(frame.HIDChannel, resp, frame.HIDPacketSize)
		if err != nil {
			return 0, err
		}
		for _, packet := range packets {
			d.out <- packet
		}
	}
	return len(p), nil
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	select {
	case packet := <-d.out:
		return copy(p, packet), nil
	case <-d.closeCh:
		return 0, errors.New("device closed")
	}
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.closeCh)
	}
	return nil
}

func echoVersion([]byte) []byte {
	return []byte{0, 1, 2, 3, 0, 0x90, 0x00}
}

func TestTransport_SendRoundTrip(t *testing.T) {
	t.Parallel()

	var got []byte
	dev := newFakeDevice(func(apdu []byte) []byte {
		got = append([]byte(nil), apdu...)
		return echoVersion(apdu)
	})
	tr := NewWithDevice(dev, "fake0")

	resp, err := tr.Send(context.Background(), 0x11, 0x00, 0x00, 0x00, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 0, 0x90, 0x00}, resp)
	assert.Equal(t, []byte{0x11, 0x00, 0x00, 0x00, 0x00}, got)
	assert.Equal(t, ledgericp.TransportHID, tr.Type())
	assert.Equal(t, "fake0", tr.Path())
}

func TestTransport_LargeCommandAndResponse(t *testing.T) {
	t.Parallel()

	big := make([]byte, 300)
	for i := range big {
		big[i] = byte(i)
	}
	big[298], big[299] = 0x90, 0x00

	var got []byte
	dev := newFakeDevice(func(apdu []byte) []byte {
		got = append([]byte(nil), apdu...)
		return big
	})
	tr := NewWithDevice(dev, "fake0")

	payload := make([]byte, 250)
	resp, err := tr.Send(context.Background(), 0x11, 0x02, 0x01, 0x00, payload)
	require.NoError(t, err)
	assert.Equal(t, big, resp)
	assert.Len(t, got, 255)
	// 257 bytes of length+APDU over 59-byte blocks
	assert.Len(t, dev.written, 5)
}

func TestTransport_WriteError(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice(echoVersion)
	dev.writeErr = errors.New("pipe error")
	tr := NewWithDevice(dev, "fake0")

	_, err := tr.Send(context.Background(), 0x11, 0x00, 0, 0, nil)
	require.ErrorIs(t, err, ledgericp.ErrTransportWrite)
	assert.True(t, ledgericp.IsRetryable(err))
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func TestTransport_ContextTimeoutReleasesHandleAfterRead(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice(func([]byte) []byte { return nil })
	tr := NewWithDevice(dev, "fake0")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := tr.Send(ctx, 0x11, 0x00, 0, 0, nil)
	require.ErrorIs(t, err, ledgericp.ErrTransportTimeout)

	_, err = tr.Send(context.Background(), 0x11, 0x00, 0, 0, nil)
	require.ErrorIs(t, err, ledgericp.ErrTransportClosed)
	require.NoError(t, tr.Close())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, dev.isClosed(), "handle closed under a pending read")

	packets, err := frame.WrapHID(frame.HIDChannel, echoVersion(nil), frame.HIDPacketSize)
	require.NoError(t, err)
	dev.out <- packets[0]

	assert.Eventually(t, dev.isClosed, time.Second, 5*time.Millisecond)
}

func TestTransport_CancelledContext(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice(echoVersion)
	tr := NewWithDevice(dev, "fake0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Send(ctx, 0x11, 0x00, 0, 0, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dev.written)
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice(echoVersion)
	tr := NewWithDevice(dev, "fake0")

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err := tr.Send(context.Background(), 0x11, 0x00, 0, 0, nil)
	require.ErrorIs(t, err, ledgericp.ErrTransportClosed)
	assert.True(t, ledgericp.IsFatal(err))
}

func TestTransport_DataTooLarge(t *testing.T) {
	t.Parallel()

	tr := NewWithDevice(newFakeDevice(echoVersion), "fake0")
	_, err := tr.Send(context.Background(), 0x11, 0x02, 0, 0, make([]byte, 256))
	require.ErrorIs(t, err, ledgericp.ErrDataTooLarge)
}
