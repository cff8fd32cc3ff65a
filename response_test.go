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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want *VersionInfo
		name string
		raw  []byte
	}{
		{
			name: "with target id",
			raw:  []byte{0, 1, 2, 3, 0, 0, 0, 0, 1, 0x90, 0x00},
			want: &VersionInfo{
				ReturnCode: NoErrors, ErrorMessage: "No errors",
				Major: 1, Minor: 2, Patch: 3, TargetID: "1",
			},
		},
		{
			name: "test mode locked nano x",
			raw:  []byte{1, 2, 0, 7, 1, 0x33, 0x00, 0x00, 0x04, 0x90, 0x00},
			want: &VersionInfo{
				ReturnCode: NoErrors, ErrorMessage: "No errors",
				TestMode: true, Major: 2, Patch: 7, DeviceLocked: true, TargetID: "33000004",
			},
		},
		{
			name: "no target id",
			raw:  []byte{0, 0, 9, 1, 0, 0x90, 0x00},
			want: &VersionInfo{
				ReturnCode: NoErrors, ErrorMessage: "No errors",
				Minor: 9, Patch: 1, TargetID: "0",
			},
		},
		{
			name: "lock flag other than one",
			raw:  []byte{0, 0, 0, 0, 2, 0x90, 0x00},
			want: &VersionInfo{ReturnCode: NoErrors, ErrorMessage: "No errors", TargetID: "0"},
		},
		{
			name: "status is reported not raised",
			raw:  []byte{0, 1, 0, 0, 0, 0x69, 0x85},
			want: &VersionInfo{
				ReturnCode: ConditionsNotSatisfied, ErrorMessage: "Conditions not satisfied",
				Major: 1, TargetID: "0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeVersion(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeVersion_TooShort(t *testing.T) {
	t.Parallel()

	for _, raw := range [][]byte{nil, {0x90}, {0x90, 0x00}, {0, 1, 2, 0x90, 0x00}} {
		_, err := DecodeVersion(raw)
		require.ErrorIs(t, err, ErrInvalidResponse, "raw %X", raw)
	}
}

func TestVersionInfo_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.2.3", (&VersionInfo{Major: 1, Minor: 2, Patch: 3}).String())
	assert.Equal(t, "0.0.1 (test mode)", (&VersionInfo{Patch: 1, TestMode: true}).String())
}

func TestSplitStatus(t *testing.T) {
	t.Parallel()

	data, code, err := SplitStatus([]byte{0xAB, 0xCD, 0x6A, 0x80})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xCD}, data)
	assert.Equal(t, BadKeyHandle, code)

	data, code, err = SplitStatus([]byte{0x90, 0x00})
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Equal(t, NoErrors, code)

	_, _, err = SplitStatus([]byte{0x90})
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestDecodeAddress(t *testing.T) {
	t.Parallel()

	raw := withStatus(addressBody("5upkeqizhbcjqb6lpcwdmmvhsohxsbolbmawfuh5z7ptgijyh7gsvbaae"), NoErrors)
	info, err := DecodeAddress(raw)
	require.NoError(t, err)
	assert.Len(t, info.PublicKey, PublicKeyLen)
	assert.Len(t, info.Principal, PrincipalLen)
	assert.Len(t, info.Address, AddressLen)
	assert.Equal(t, "5upke-qizhb-cjqb6-lpcwd-mmvhs-ohxsb-olbma-wfuh5-z7ptg-ijyh7-gsvba-ae", info.PrincipalText)
	assert.Equal(t, NoErrors, info.ReturnCode)

	// returned slices do not alias the response buffer
	raw[0] = 0xFF
	assert.Equal(t, byte(0x04), info.PublicKey[0])

	_, err = DecodeAddress(withStatus(make([]byte, 10), NoErrors))
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestFormatPrincipalText(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":            "",
		"abc":         "abc",
		"abcde":       "abcde",
		"abcdef":      "abcde-f",
		"abcde-fghij": "abcde-fghij",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatPrincipalText(in), "input %q", in)
	}
}

func TestDecodeSignature(t *testing.T) {
	t.Parallel()

	info, err := DecodeSignature(withStatus(signatureBody(), NoErrors))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x11}, PreHashLen), info.PreSignHash)
	assert.Equal(t, bytes.Repeat([]byte{0x22}, SignatureRSLen), info.SignatureRS)
	assert.Equal(t, []byte{0x30, 0x44, 0x02, 0x20}, info.SignatureDER)

	_, err = DecodeSignature(withStatus(make([]byte, PreHashLen), NoErrors))
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestDecodeCombinedSignature_TooShort(t *testing.T) {
	t.Parallel()

	_, err := DecodeCombinedSignature(withStatus(make([]byte, 100), NoErrors))
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestDecodeDeviceInfo_Truncated(t *testing.T) {
	t.Parallel()

	tests := [][]byte{
		{0x33, 0x00},
		{0x33, 0x00, 0x00, 0x04},
		{0x33, 0x00, 0x00, 0x04, 5, '2', '.'},
		{0x33, 0x00, 0x00, 0x04, 1, '2', 1, 0},
	}
	for _, body := range tests {
		_, err := DecodeDeviceInfo(withStatus(body, NoErrors))
		require.ErrorIs(t, err, ErrInvalidResponse, "body %X", body)
	}
}
