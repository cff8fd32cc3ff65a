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

// Package hid talks to a Ledger signer over USB HID.
package hid

import (
	"context"
	"errors"
	"fmt"
	"io"

	ledgericp "github.com/icpkit/go-ledger-icp"
	"github.com/icpkit/go-ledger-icp/internal/frame"
	"github.com/icpkit/go-ledger-icp/internal/syncutil"
	"github.com/karalabe/usb"
)

const (
	// LedgerVendorID is the USB vendor id of Ledger devices
	LedgerVendorID = 0x2c97

	// appUsagePage marks the HID interface the device apps listen on
	appUsagePage = 0xffa0
)

// Device is the subset of a USB HID handle the transport needs
type Device interface {
	io.ReadWriteCloser
}

// Transport implements ledgericp.Transport over USB HID.
type Transport struct {
	dev     Device
	path    string
	mu      syncutil.Mutex
	channel uint16
	closed  bool
}

// New opens the Ledger at the given HID path, or the first one found when
// path is empty.
func New(path string) (*Transport, error) {
	if !usb.Supported() {
		return nil, fmt.Errorf("%w: USB HID is not supported on this platform", ledgericp.ErrDeviceNotFound)
	}

	infos, err := usb.EnumerateHid(LedgerVendorID, 0)
	if err != nil {
		return nil, fmt.Errorf("enumerate HID devices: %w", err)
	}

	for _, info := range infos {
		if path != "" && info.Path != path {
			continue
		}
		if path == "" && !isAppInterface(info) {
			continue
		}

		dev, err := info.Open()
		if err != nil {
			return nil, fmt.Errorf("open HID device %s: %w", info.Path, err)
		}
		return NewWithDevice(dev, info.Path), nil
	}

	if path != "" {
		return nil, fmt.Errorf("%w: no Ledger at %s", ledgericp.ErrDeviceNotFound, path)
	}
	return nil, fmt.Errorf("%w: no Ledger connected", ledgericp.ErrDeviceNotFound)
}

// NewWithDevice wraps an already opened HID handle
func NewWithDevice(dev Device, path string) *Transport {
	return &Transport{
		dev:     dev,
		path:    path,
		channel: frame.HIDChannel,
	}
}

func isAppInterface(info usb.DeviceInfo) bool {
	return info.UsagePage == appUsagePage || info.Interface == 0
}

type result struct {
	err  error
	resp []byte
}

// Send transmits one APDU and waits for the response. HID reads cannot be
// interrupted, so when ctx ends first the transport is marked closed and the
// handle is released once the pending read returns. Closing a hidapi handle
// under a blocked read is not safe. A device that never answers keeps its
// handle until it is unplugged or the process exits.
func (t *Transport) Send(ctx context.Context, cla, ins, p1, p2 byte, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ledgericp.NewTransportClosedError("Send", t.path)
	}

	apdu, err := ledgericp.EncodeAPDU(cla, ins, p1, p2, data)
	if err != nil {
		return nil, err
	}

	done := make(chan result, 1)
	go func() {
		resp, err := t.exchange(apdu)
		done <- result{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		ledgericp.Debugf("HID %s: %v while waiting for response, abandoning handle", t.path, ctx.Err())
		t.closed = true
		dev := t.dev
		go func() {
			<-done
			_ = dev.Close()
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ledgericp.NewTimeoutError("Send", t.path)
		}
		return nil, ctx.Err()
	}
}

func (t *Transport) exchange(apdu []byte) ([]byte, error) {
	packets, err := frame.WrapHID(t.channel, apdu, frame.HIDPacketSize)
	if err != nil {
		return nil, err
	}

	for _, packet := range packets {
		n, err := t.dev.Write(packet)
		if err != nil {
			return nil, ledgericp.NewTransportWriteError("Send", t.path, err)
		}
		if n != len(packet) {
			return nil, ledgericp.NewTransportWriteError("Send", t.path, io.ErrShortWrite)
		}
	}

	buf := frame.GetPacket()
	defer frame.PutPacket(buf)

	r := frame.NewHIDReassembler(t.channel, t.path)
	for {
		n, err := t.dev.Read(buf)
		if err != nil {
			return nil, ledgericp.NewTransportReadError("Send", t.path, err)
		}
		if n == 0 {
			continue
		}

		complete, err := r.Feed(buf[:n])
		if err != nil {
			return nil, err
		}
		if complete {
			return r.Response(), nil
		}
	}
}

// Close closes the HID handle
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.dev.Close(); err != nil {
		return fmt.Errorf("HID close failed: %w", err)
	}
	return nil
}

// Path returns the HID path of the open device
func (t *Transport) Path() string {
	return t.path
}

// Type returns the transport type
func (*Transport) Type() ledgericp.TransportType {
	return ledgericp.TransportHID
}
