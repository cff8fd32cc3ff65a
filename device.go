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
	"encoding/binary"
	"fmt"

	"github.com/icpkit/go-ledger-icp/internal/syncutil"
)

// Device talks to the ICP app over a Transport.
//
// Thread Safety: Device is safe for concurrent use. Each operation holds the
// device lock from its first command to its last, so the commands of a
// chunked transfer are never interleaved with another operation's. Use one
// Device per physical connection.
type Device struct {
	transport Transport
	config    *DeviceConfig
	mu        syncutil.Mutex
}

// New creates a new device client with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, errNilTransport
	}
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Config returns a copy of the device configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Close closes the underlying transport
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// GetVersion returns the version of the ICP app. A non-success status word
// is returned as an *ErrorRecord.
func (d *Device) GetVersion(ctx context.Context) (*VersionInfo, error) {
	ctx, cancel := d.boundedContext(ctx)
	defer cancel()

	cmds := Frame(d.config.CLA, insGetVersion, 0, 0, nil)
	raw, err := d.run(ctx, "GetVersion", cmds)
	if err != nil {
		return nil, err
	}

	if rec := checkStatus(raw); rec != nil {
		return nil, rec
	}
	info, err := DecodeVersion(raw)
	if err != nil {
		return nil, Normalize(err)
	}
	return info, nil
}

// GetAddress returns the public key, principal and account address for path.
// With showOnDevice the device displays the address and the call blocks
// until the user approves or rejects it; the configured timeout does not apply.
func (d *Device) GetAddress(ctx context.Context, path string, showOnDevice bool) (*AddressInfo, error) {
	encoded, err := SerializePath(path)
	if err != nil {
		return nil, err
	}

	p1 := P1OnlyRetrieve
	if showOnDevice {
		p1 = P1ShowAddress
	} else {
		var cancel context.CancelFunc
		ctx, cancel = d.boundedContext(ctx)
		defer cancel()
	}

	// The path always fits one command; P1 carries the show flag.
	cmds := Frame(d.config.CLA, insGetAddrSecp256k1, p1, 0, encoded.Bytes())
	raw, err := d.run(ctx, "GetAddress", cmds)
	if err != nil {
		return nil, err
	}

	if rec := checkStatus(raw); rec != nil {
		return nil, rec
	}
	info, err := DecodeAddress(raw)
	if err != nil {
		return nil, Normalize(err)
	}
	return info, nil
}

// Sign asks the device to sign message with the key at path. The path travels
// alone in the INIT chunk and the message follows in ADD/LAST chunks. The
// call blocks until the user approves or rejects the transaction.
func (d *Device) Sign(ctx context.Context, path string, message []byte, mode SignMode) (*SignatureInfo, error) {
	cmds, err := d.signCommands(insSignSecp256k1, path, message, mode)
	if err != nil {
		return nil, err
	}

	raw, err := d.run(ctx, "Sign", cmds)
	if err != nil {
		return nil, err
	}

	if rec := checkStatus(raw); rec != nil {
		return nil, rec
	}
	info, err := DecodeSignature(raw)
	if err != nil {
		return nil, Normalize(err)
	}
	return info, nil
}

// SignCombined signs an update call together with the read_state request
// used to poll its result, with a single user approval.
func (d *Device) SignCombined(
	ctx context.Context, path string, callRequest, statusReadRequest []byte, mode SignMode,
) (*CombinedSignatureInfo, error) {
	if len(callRequest) == 0 || len(statusReadRequest) == 0 {
		return nil, fmt.Errorf("%w: both requests are required", ErrInvalidParameter)
	}

	message := make([]byte, 8, 8+len(statusReadRequest)+len(callRequest))
	binary.LittleEndian.PutUint64(message, uint64(len(statusReadRequest)))
	message = append(message, statusReadRequest...)
	message = append(message, callRequest...)

	cmds, err := d.signCommands(insSignCombined, path, message, mode)
	if err != nil {
		return nil, err
	}

	raw, err := d.run(ctx, "SignCombined", cmds)
	if err != nil {
		return nil, err
	}

	if rec := checkStatus(raw); rec != nil {
		return nil, rec
	}
	info, err := DecodeCombinedSignature(raw)
	if err != nil {
		return nil, Normalize(err)
	}
	return info, nil
}

// GetDeviceInfo returns firmware details of the device hosting the app
func (d *Device) GetDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	ctx, cancel := d.boundedContext(ctx)
	defer cancel()

	cmds := Frame(claDeviceInfo, insDeviceInfo, 0, 0, nil)
	raw, err := d.run(ctx, "GetDeviceInfo", cmds)
	if err != nil {
		return nil, err
	}

	if rec := checkStatus(raw); rec != nil {
		return nil, rec
	}
	info, err := DecodeDeviceInfo(raw)
	if err != nil {
		return nil, Normalize(err)
	}
	return info, nil
}

// signCommands validates a signing request and lays out its chunks
func (d *Device) signCommands(ins byte, path string, message []byte, mode SignMode) ([]FramedCommand, error) {
	encoded, err := SerializePath(path)
	if err != nil {
		return nil, err
	}
	if len(message) == 0 {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidParameter)
	}
	if !mode.valid() {
		return nil, fmt.Errorf("%w: sign mode 0x%02X", ErrInvalidParameter, byte(mode))
	}

	return FrameChunks(d.config.CLA, ins, byte(mode), signChunks(encoded, message, d.config.ChunkSize))
}

// boundedContext applies the configured timeout to non-interactive operations
func (d *Device) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.config.Timeout)
}

// checkStatus returns the record for a non-success status word, or nil
func checkStatus(raw []byte) *ErrorRecord {
	_, code, err := SplitStatus(raw)
	if err != nil {
		return Normalize(err)
	}
	if !code.IsSuccess() {
		return newStatusRecord(code)
	}
	return nil
}
