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
	"fmt"
	"time"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Timeout bounds each non-interactive operation. Operations that wait for
	// user approval on the device are never bounded by it. Zero disables it.
	Timeout time.Duration
	// ChunkSize is the payload capacity of a single command
	ChunkSize int
	// TraceSize is the number of APDUs kept for TraceableError
	TraceSize int
	// CLA is the class byte of the application
	CLA byte
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		CLA:       CLA,
		ChunkSize: ChunkSize,
		Timeout:   5 * time.Second,
		TraceSize: 16,
	}
}

// Option configures a Device
type Option func(*Device) error

// WithTimeout sets the timeout of non-interactive operations
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout < 0 {
			return fmt.Errorf("%w: negative timeout %s", ErrInvalidParameter, timeout)
		}
		d.config.Timeout = timeout
		return nil
	}
}

// WithChunkSize overrides the per-command payload capacity
func WithChunkSize(size int) Option {
	return func(d *Device) error {
		if size < 1 || size > maxAPDUData {
			return fmt.Errorf("%w: chunk size must be between 1 and %d, got %d",
				ErrInvalidParameter, maxAPDUData, size)
		}
		d.config.ChunkSize = size
		return nil
	}
}

// WithTraceSize sets how many APDUs are attached to transport errors
func WithTraceSize(entries int) Option {
	return func(d *Device) error {
		if entries < 1 {
			return fmt.Errorf("%w: trace size must be positive, got %d", ErrInvalidParameter, entries)
		}
		d.config.TraceSize = entries
		return nil
	}
}

// WithCLA overrides the application class byte
func WithCLA(cla byte) Option {
	return func(d *Device) error {
		d.config.CLA = cla
		return nil
	}
}
