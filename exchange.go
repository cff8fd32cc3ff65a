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
)

// run sends cmds in order while holding the device lock and returns the
// response to the final command. Intermediate chunks must be acknowledged
// with the success status word; any other status ends the sequence.
//
// The context is only consulted before the first command. Once a chunked
// transfer has started it runs to completion or to the first failure; after a
// failure the device reassembly buffer is left as is until the next INIT.
func (d *Device) run(ctx context.Context, op string, cmds []FramedCommand) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, Normalize(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	trace := NewTraceBuffer(string(d.transport.Type()), d.config.TraceSize)

	var resp []byte
	for i, cmd := range cmds {
		wire, err := cmd.Bytes()
		if err != nil {
			return nil, Normalize(err)
		}
		trace.RecordTX(wire, cmd.Tag.String())
		Debugf("%s: TX %d/%d %s", op, i+1, len(cmds), cmd)

		resp, err = d.transport.Send(ctx, cmd.CLA, cmd.INS, cmd.P1, cmd.P2, cmd.Data)
		if err != nil {
			if i > 0 {
				Debugf("%s: aborted after %d/%d chunks, device reassembly state is indeterminate",
					op, i, len(cmds))
			}
			Debugf("%s: send failed, attaching %d trace entries: %v", op, trace.Len(), err)
			return nil, Normalize(trace.WrapError(wrapTransportError(op, err)))
		}
		trace.RecordRX(resp, "")
		Debugf("%s: RX %d bytes", op, len(resp))

		if i == len(cmds)-1 {
			break
		}
		if rec := checkStatus(resp); rec != nil {
			Debugf("%s: chunk %d/%d rejected: %s", op, i+1, len(cmds), rec.ErrorMessage)
			return nil, rec
		}
	}

	return resp, nil
}

// wrapTransportError gives a raw transport failure the TransportError shape
func wrapTransportError(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return NewTransportError(op, "", err, errorTypeOf(err))
}

// errorTypeOf classifies a transport failure for TransportError
func errorTypeOf(err error) ErrorType {
	var timeout interface{ Timeout() bool }
	switch {
	case IsFatal(err):
		return ErrorTypePermanent
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case errors.As(err, &timeout) && timeout.Timeout():
		return ErrorTypeTimeout
	default:
		return ErrorTypeTransient
	}
}
