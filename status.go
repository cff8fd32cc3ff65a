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
	"errors"
	"fmt"
	"reflect"
)

// StatusCode is the 16-bit status word returned by the device, extended with
// the U2F transport codes reported by the host HID stack.
type StatusCode uint16

// Known status codes
const (
	U2FUnknown                  StatusCode = 1
	U2FBadRequest               StatusCode = 2
	U2FConfigurationUnsupported StatusCode = 3
	U2FDeviceIneligible         StatusCode = 4
	U2FTimeout                  StatusCode = 5
	Timeout                     StatusCode = 14
	NoErrors                    StatusCode = 0x9000
	DeviceIsBusy                StatusCode = 0x9001
	ErrorDerivingKeys           StatusCode = 0x6802
	ExecutionError              StatusCode = 0x6400
	WrongLength                 StatusCode = 0x6700
	EmptyBuffer                 StatusCode = 0x6982
	OutputBufferTooSmall        StatusCode = 0x6983
	DataIsInvalid               StatusCode = 0x6984
	ConditionsNotSatisfied      StatusCode = 0x6985
	TransactionRejected         StatusCode = 0x6986
	BadKeyHandle                StatusCode = 0x6A80
	InvalidP1P2                 StatusCode = 0x6B00
	InstructionNotSupported     StatusCode = 0x6D00
	AppDoesNotSeemToBeOpen      StatusCode = 0x6E00
	UnknownError                StatusCode = 0x6F00
	SignVerifyError             StatusCode = 0x6F01

	// NonProtocolError marks failures that did not originate from a device status word
	NonProtocolError StatusCode = 0xFFFF
)

// Describe returns the human-readable message for a status code. Unknown codes
// yield a message that embeds the numeric value.
func Describe(code StatusCode) string {
	switch code {
	case U2FUnknown:
		return "U2F: Unknown"
	case U2FBadRequest:
		return "U2F: Bad request"
	case U2FConfigurationUnsupported:
		return "U2F: Configuration unsupported"
	case U2FDeviceIneligible:
		return "U2F: Device Ineligible"
	case U2FTimeout:
		return "U2F: Timeout"
	case Timeout:
		return "Timeout"
	case NoErrors:
		return "No errors"
	case DeviceIsBusy:
		return "Device is busy"
	case ErrorDerivingKeys:
		return "Error deriving keys"
	case ExecutionError:
		return "Execution Error"
	case WrongLength:
		return "Wrong Length"
	case EmptyBuffer:
		return "Empty Buffer"
	case OutputBufferTooSmall:
		return "Output buffer too small"
	case DataIsInvalid:
		return "Data is invalid"
	case ConditionsNotSatisfied:
		return "Conditions not satisfied"
	case TransactionRejected:
		return "Transaction rejected"
	case BadKeyHandle:
		return "Bad key handle"
	case InvalidP1P2:
		return "Invalid P1/P2"
	case InstructionNotSupported:
		return "Instruction not supported"
	case AppDoesNotSeemToBeOpen:
		return "App does not seem to be open"
	case UnknownError:
		return "Unknown error"
	case SignVerifyError:
		return "Sign/verify error"
	default:
		return fmt.Sprintf("Unknown Status Code: %d", uint16(code))
	}
}

// String implements fmt.Stringer
func (c StatusCode) String() string {
	return Describe(c)
}

// IsSuccess reports whether the code is the success status word
func (c StatusCode) IsSuccess() bool {
	return c == NoErrors
}

// StatusCoder is implemented by values that carry a raw device status code.
type StatusCoder interface {
	StatusCode() StatusCode
}

// ErrorRecord is the uniform error shape returned by every device operation,
// whether the failure came from the device, the transport or elsewhere.
type ErrorRecord struct {
	cause        error
	ErrorMessage string     `json:"errorMessage"`
	ReturnCode   StatusCode `json:"returnCode"`
}

func (e *ErrorRecord) Error() string {
	if e.ReturnCode == NonProtocolError {
		if e.ErrorMessage == "" {
			return "non-protocol error"
		}
		return e.ErrorMessage
	}
	return fmt.Sprintf("device error 0x%04X: %s", uint16(e.ReturnCode), e.ErrorMessage)
}

// Unwrap returns the error the record was normalized from, if any
func (e *ErrorRecord) Unwrap() error {
	return e.cause
}

// IsDeviceStatus reports whether the record carries a status word from the device
func (e *ErrorRecord) IsDeviceStatus() bool {
	return e.ReturnCode != NonProtocolError
}

// newStatusRecord builds the record for a status word returned by the device
func newStatusRecord(code StatusCode) *ErrorRecord {
	return &ErrorRecord{ReturnCode: code, ErrorMessage: Describe(code)}
}

// Normalize converts any failure value into an ErrorRecord. It never panics.
//
// Values carrying a status code (a StatusCoder anywhere in an error chain, or a
// map with a numeric "statusCode" key) are described from the code. Values
// already shaped as a record pass through unchanged. Everything else is
// stringified under NonProtocolError; nil yields an empty message.
func Normalize(v any) *ErrorRecord {
	if isNil(v) {
		return &ErrorRecord{ReturnCode: NonProtocolError}
	}

	switch val := v.(type) {
	case *ErrorRecord:
		return val
	case ErrorRecord:
		return &val
	case StatusCoder:
		rec := newStatusRecord(val.StatusCode())
		if err, ok := v.(error); ok {
			rec.cause = err
		}
		return rec
	case map[string]any:
		if rec, ok := normalizeMap(val); ok {
			return rec
		}
	case error:
		var sc StatusCoder
		if errors.As(val, &sc) {
			rec := newStatusRecord(sc.StatusCode())
			rec.cause = val
			return rec
		}
		var rec *ErrorRecord
		if errors.As(val, &rec) {
			return rec
		}
		return &ErrorRecord{ReturnCode: NonProtocolError, ErrorMessage: fmt.Sprint(val), cause: val}
	case string:
		return &ErrorRecord{ReturnCode: NonProtocolError, ErrorMessage: val}
	}

	return &ErrorRecord{ReturnCode: NonProtocolError, ErrorMessage: fmt.Sprint(v)}
}

// normalizeMap handles loosely typed records, e.g. decoded JSON
func normalizeMap(m map[string]any) (*ErrorRecord, bool) {
	if raw, ok := m["statusCode"]; ok {
		if code, ok := toStatusCode(raw); ok {
			return newStatusRecord(code), true
		}
	}

	rawCode, hasCode := m["returnCode"]
	rawMsg, hasMsg := m["errorMessage"]
	if !hasCode || !hasMsg {
		return nil, false
	}
	code, ok := toStatusCode(rawCode)
	if !ok {
		return nil, false
	}
	msg, ok := rawMsg.(string)
	if !ok {
		msg = fmt.Sprint(rawMsg)
	}
	return &ErrorRecord{ReturnCode: code, ErrorMessage: msg}, true
}

// toStatusCode accepts the numeric kinds produced by literals and decoders
func toStatusCode(v any) (StatusCode, bool) {
	switch n := v.(type) {
	case StatusCode:
		return n, true
	case int:
		return StatusCode(n), n >= 0 && n <= 0xFFFF
	case int64:
		return StatusCode(n), n >= 0 && n <= 0xFFFF
	case int32:
		return StatusCode(n), n >= 0 && n <= 0xFFFF
	case uint:
		return StatusCode(n), n <= 0xFFFF
	case uint16:
		return StatusCode(n), true
	case uint32:
		return StatusCode(n), n <= 0xFFFF
	case uint64:
		return StatusCode(n), n <= 0xFFFF
	case float64:
		return StatusCode(n), n >= 0 && n <= 0xFFFF && n == float64(uint16(n))
	default:
		return 0, false
	}
}

// isNil reports untyped nil and nil pointers, maps, slices, funcs and channels
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
