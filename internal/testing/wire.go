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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/icpkit/go-ledger-icp/internal/frame"
)

// ErrWireClosed is returned by wire reads and writes after Close
var ErrWireClosed = errors.New("simulated wire closed")

// HIDWire exposes a VirtualDevice as a USB HID handle. Writes take 64-byte
// reports; once a whole APDU has arrived the response reports become
// readable. Read blocks like a real HID read.
type HIDWire struct {
	dev      *VirtualDevice
	incoming *frame.HIDReassembler
	reports  chan []byte
	done     chan struct{}
	mu       sync.Mutex
	mute     bool
	closed   bool
}

// NewHIDWire creates a HID wire in front of dev
func NewHIDWire(dev *VirtualDevice) *HIDWire {
	return &HIDWire{
		dev:      dev,
		incoming: frame.NewHIDReassembler(frame.HIDChannel, "sim"),
		reports:  make(chan []byte, 256),
		done:     make(chan struct{}),
	}
}

// SetMute makes the wire swallow responses, like a device waiting on the user
func (w *HIDWire) SetMute(mute bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mute = mute
}

// Write accepts one host report
func (w *HIDWire) Write(report []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrWireClosed
	}

	complete, err := w.incoming.Feed(report)
	if err != nil {
		w.incoming.Reset()
		return 0, err
	}
	if !complete {
		return len(report), nil
	}

	apdu := w.incoming.Response()
	w.incoming.Reset()
	resp := w.dev.HandleAPDU(apdu)
	if w.mute {
		return len(report), nil
	}

	packets, err := frame.WrapHID(frame.HIDChannel, resp, frame.HIDPacketSize)
	if err != nil {
		return 0, err
	}
	for _, p := range packets {
		w.reports <- p
	}
	return len(report), nil
}

// Read returns the next device report, blocking until one is available
func (w *HIDWire) Read(buf []byte) (int, error) {
	select {
	case p := <-w.reports:
		return copy(buf, p), nil
	case <-w.done:
		return 0, ErrWireClosed
	}
}

// Close unblocks pending reads
func (w *HIDWire) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
	return nil
}

// StreamWire exposes a VirtualDevice through the length-prefixed stream
// framing of emulator sockets and serial bridges. It satisfies the port
// interface of the UART transport: reads with nothing pending return 0, nil
// after a short poll interval, as a serial port with a read timeout does.
type StreamWire struct {
	dev         *VirtualDevice
	in          bytes.Buffer
	out         bytes.Buffer
	readTimeout time.Duration
	mu          sync.Mutex
	closed      bool
}

// NewStreamWire creates a stream wire in front of dev
func NewStreamWire(dev *VirtualDevice) *StreamWire {
	return &StreamWire{dev: dev, readTimeout: time.Millisecond}
}

// Write accepts host bytes; every complete command is answered immediately
func (w *StreamWire) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrWireClosed
	}
	w.in.Write(data)

	for w.in.Len() >= frame.StreamLengthLen {
		n := int(binary.BigEndian.Uint32(w.in.Bytes()))
		if w.in.Len() < frame.StreamLengthLen+n {
			break
		}
		w.in.Next(frame.StreamLengthLen)
		apdu := append([]byte(nil), w.in.Next(n)...)

		wire, err := frame.EncodeStreamResponse(w.dev.HandleAPDU(apdu))
		if err != nil {
			return 0, err
		}
		w.out.Write(wire)
	}
	return len(data), nil
}

// Read returns pending response bytes
func (w *StreamWire) Read(buf []byte) (int, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, ErrWireClosed
	}
	if w.out.Len() == 0 {
		timeout := w.readTimeout
		w.mu.Unlock()
		time.Sleep(timeout)
		return 0, nil
	}
	defer w.mu.Unlock()
	return w.out.Read(buf)
}

// Drain is a no-op; writes are processed synchronously
func (*StreamWire) Drain() error {
	return nil
}

// ResetInputBuffer discards unread response bytes
func (w *StreamWire) ResetInputBuffer() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.out.Reset()
	return nil
}

// SetReadTimeout sets the idle poll interval of Read
func (w *StreamWire) SetReadTimeout(t time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.readTimeout = t
	return nil
}

// Close closes the wire
func (w *StreamWire) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// ServeStream answers length-prefixed commands read from rw until it fails.
// A clean EOF between commands returns nil.
func ServeStream(rw io.ReadWriter, dev *VirtualDevice) error {
	var header [frame.StreamLengthLen]byte
	for {
		if _, err := io.ReadFull(rw, header[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		apdu := make([]byte, binary.BigEndian.Uint32(header[:]))
		if _, err := io.ReadFull(rw, apdu); err != nil {
			return err
		}

		wire, err := frame.EncodeStreamResponse(dev.HandleAPDU(apdu))
		if err != nil {
			return err
		}
		if _, err := rw.Write(wire); err != nil {
			return err
		}
	}
}
