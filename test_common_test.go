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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// createMockDeviceWithTransport creates a device with a mock transport for testing.
func createMockDeviceWithTransport(t *testing.T, opts ...Option) (*Device, *MockTransport) {
	t.Helper()
	mockTransport := NewMockTransport()
	device, err := New(mockTransport, opts...)
	require.NoError(t, err)
	return device, mockTransport
}

// withStatus appends a big-endian status word to body
func withStatus(body []byte, code StatusCode) []byte {
	out := append([]byte(nil), body...)
	return append(out, byte(code>>8), byte(code))
}

// addressBody builds a well-formed address response body
func addressBody(principalText string) []byte {
	var b bytes.Buffer
	b.Write(bytes.Repeat([]byte{0x04}, PublicKeyLen))
	b.Write(bytes.Repeat([]byte{0xAA}, PrincipalLen))
	b.Write(bytes.Repeat([]byte{0xBB}, AddressLen))
	b.WriteString(principalText)
	return b.Bytes()
}

// signatureBody builds a well-formed signature response body
func signatureBody() []byte {
	var b bytes.Buffer
	b.Write(bytes.Repeat([]byte{0x11}, PreHashLen))
	b.Write(bytes.Repeat([]byte{0x22}, SignatureRSLen))
	b.Write([]byte{0x30, 0x44, 0x02, 0x20})
	return b.Bytes()
}
