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
	"testing"

	ledgericp "github.com/icpkit/go-ledger-icp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apdu(t *testing.T, cla, ins, p1, p2 byte, data []byte) []byte {
	t.Helper()
	raw, err := ledgericp.EncodeAPDU(cla, ins, p1, p2, data)
	require.NoError(t, err)
	return raw
}

func statusOf(resp []byte) ledgericp.StatusCode {
	return ledgericp.StatusCode(binary.BigEndian.Uint16(resp[len(resp)-2:]))
}

func defaultPath() []byte {
	return ledgericp.MustSerializePath(ledgericp.DefaultPath).Bytes()
}

func TestVirtualDevice_Version(t *testing.T) {
	t.Parallel()

	dev := NewVirtualDevice()
	dev.SetVersion(3, 0, 1, true)
	dev.SetTargetID(0x33000004)

	resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetVersion, 0, 0, nil))
	info, err := ledgericp.DecodeVersion(resp)
	require.NoError(t, err)
	assert.Equal(t, ledgericp.NoErrors, info.ReturnCode)
	assert.Equal(t, "3.0.1 (test mode)", info.String())
	assert.Equal(t, "33000004", info.TargetID)
	assert.False(t, info.DeviceLocked)
}

func TestVirtualDevice_Locked(t *testing.T) {
	t.Parallel()

	dev := NewVirtualDevice()
	dev.SetLocked(true)

	info, err := ledgericp.DecodeVersion(dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetVersion, 0, 0, nil)))
	require.NoError(t, err)
	assert.True(t, info.DeviceLocked)

	resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetAddress, 0, 0, defaultPath()))
	assert.Equal(t, StatusLocked, statusOf(resp))
}

func TestVirtualDevice_Address(t *testing.T) {
	t.Parallel()

	dev := NewVirtualDevice()
	resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetAddress, 0, 0, defaultPath()))

	info, err := ledgericp.DecodeAddress(resp)
	require.NoError(t, err)
	assert.Equal(t, ledgericp.NoErrors, info.ReturnCode)
	assert.Equal(t, byte(0x04), info.PublicKey[0])
	assert.Equal(t, byte(0x02), info.Principal[ledgericp.PrincipalLen-1])
	assert.Len(t, info.Address, ledgericp.AddressLen)
	// 4-byte checksum + 29-byte principal in base32 is 53 characters
	assert.Len(t, info.PrincipalText, 53+10)
	assert.Equal(t, 0, dev.State().Confirmed)

	// same path, same address
	again, err := ledgericp.DecodeAddress(dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetAddress, 0, 0, defaultPath())))
	require.NoError(t, err)
	assert.Equal(t, info.Principal, again.Principal)

	other := ledgericp.MustSerializePath(ledgericp.AccountPath(1, 0)).Bytes()
	third, err := ledgericp.DecodeAddress(dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetAddress, 0, 0, other)))
	require.NoError(t, err)
	assert.NotEqual(t, info.Principal, third.Principal)
}

func TestVirtualDevice_AddressShow(t *testing.T) {
	t.Parallel()

	dev := NewVirtualDevice()
	resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetAddress, p1ShowAddress, 0, defaultPath()))
	assert.Equal(t, ledgericp.NoErrors, statusOf(resp))
	assert.Equal(t, 1, dev.State().Confirmed)

	dev.SetUserRejects(true)
	resp = dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetAddress, p1ShowAddress, 0, defaultPath()))
	assert.Equal(t, ledgericp.TransactionRejected, statusOf(resp))
}

func TestVirtualDevice_AddressRejectsBadInput(t *testing.T) {
	t.Parallel()

	dev := NewVirtualDevice()
	foreign := ledgericp.MustSerializePath("m/44'/60'/0'/0/0").Bytes()

	tests := []struct {
		name string
		raw  []byte
		want ledgericp.StatusCode
	}{
		{name: "bad p1", raw: apdu(t, ledgericp.CLA, insGetAddress, 2, 0, defaultPath()), want: ledgericp.InvalidP1P2},
		{name: "short path", raw: apdu(t, ledgericp.CLA, insGetAddress, 0, 0, []byte{1, 2}), want: ledgericp.DataIsInvalid},
		{name: "foreign coin", raw: apdu(t, ledgericp.CLA, insGetAddress, 0, 0, foreign), want: ledgericp.DataIsInvalid},
		{name: "wrong cla", raw: apdu(t, 0x55, insGetAddress, 0, 0, defaultPath()), want: ledgericp.AppDoesNotSeemToBeOpen},
		{name: "unknown ins", raw: apdu(t, ledgericp.CLA, 0x7F, 0, 0, nil), want: ledgericp.InstructionNotSupported},
		{name: "truncated apdu", raw: []byte{0x11, 0x00}, want: ledgericp.WrongLength},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(dev.HandleAPDU(tt.raw)), tt.name)
	}
}

func TestVirtualDevice_ChunkedSign(t *testing.T) {
	t.Parallel()

	dev := NewVirtualDevice()
	message := bytes.Repeat([]byte{0x5A}, 400)

	assert.Equal(t, ledgericp.NoErrors, statusOf(dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 0, 1, defaultPath()))))
	assert.True(t, dev.State().Receiving)
	assert.Equal(t, ledgericp.NoErrors, statusOf(dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 1, 1, message[:250]))))
	assert.Equal(t, 250, dev.State().BufferLen)

	resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 2, 1, message[250:]))
	sig, err := ledgericp.DecodeSignature(resp)
	require.NoError(t, err)
	assert.Equal(t, ledgericp.NoErrors, sig.ReturnCode)
	assert.Equal(t, RequestPreHash(message), sig.PreSignHash)
	assert.Equal(t, byte(0x30), sig.SignatureDER[0])

	state := dev.State()
	assert.False(t, state.Receiving)
	assert.Equal(t, 1, state.Signatures)
	assert.Equal(t, byte(1), state.LastSignMode)
}

func TestVirtualDevice_ChunkStateMachine(t *testing.T) {
	t.Parallel()

	t.Run("add without init", func(t *testing.T) {
		t.Parallel()
		dev := NewVirtualDevice()
		resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 1, 0, []byte{1}))
		assert.Equal(t, ledgericp.DataIsInvalid, statusOf(resp))
	})

	t.Run("init resets buffer", func(t *testing.T) {
		t.Parallel()
		dev := NewVirtualDevice()
		dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 0, 0, defaultPath()))
		dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 1, 0, []byte{1, 2, 3}))
		dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 0, 0, defaultPath()))
		assert.Equal(t, 0, dev.State().BufferLen)

		resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 2, 0, []byte{9}))
		sig, err := ledgericp.DecodeSignature(resp)
		require.NoError(t, err)
		assert.Equal(t, RequestPreHash([]byte{9}), sig.PreSignHash)
	})

	t.Run("instruction switch mid transfer", func(t *testing.T) {
		t.Parallel()
		dev := NewVirtualDevice()
		dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 0, 0, defaultPath()))
		resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insSignCombined, 2, 0, []byte{1}))
		assert.Equal(t, ledgericp.DataIsInvalid, statusOf(resp))
	})

	t.Run("overflow", func(t *testing.T) {
		t.Parallel()
		dev := NewVirtualDevice()
		dev.SetMaxBuffer(100)
		dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 0, 0, defaultPath()))
		resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 1, 0, make([]byte, 101)))
		assert.Equal(t, ledgericp.OutputBufferTooSmall, statusOf(resp))
		assert.False(t, dev.State().Receiving)
	})

	t.Run("bad p1 and p2", func(t *testing.T) {
		t.Parallel()
		dev := NewVirtualDevice()
		assert.Equal(t, ledgericp.InvalidP1P2, statusOf(dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 3, 0, nil))))
		assert.Equal(t, ledgericp.InvalidP1P2, statusOf(dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 0, 2, defaultPath()))))
	})

	t.Run("user rejects", func(t *testing.T) {
		t.Parallel()
		dev := NewVirtualDevice()
		dev.SetUserRejects(true)
		dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 0, 0, defaultPath()))
		resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insSign, 2, 0, []byte{1}))
		assert.Equal(t, ledgericp.TransactionRejected, statusOf(resp))
		assert.Equal(t, 0, dev.State().Signatures)
	})
}

func TestVirtualDevice_SignCombined(t *testing.T) {
	t.Parallel()

	dev := NewVirtualDevice()
	statusRead := []byte("read_state")
	call := []byte("call_request")
	msg := binary.LittleEndian.AppendUint64(nil, uint64(len(statusRead)))
	msg = append(msg, statusRead...)
	msg = append(msg, call...)

	dev.HandleAPDU(apdu(t, ledgericp.CLA, insSignCombined, 0, 0, defaultPath()))
	resp := dev.HandleAPDU(apdu(t, ledgericp.CLA, insSignCombined, 2, 0, msg))

	info, err := ledgericp.DecodeCombinedSignature(resp)
	require.NoError(t, err)
	assert.Equal(t, ledgericp.NoErrors, info.ReturnCode)
	assert.NotEqual(t, info.RequestHash, info.StatusReadHash)
	assert.NotEqual(t, info.RequestSignatureRS, info.StatusReadSignatureRS)

	// length prefix overruns the message
	bad := binary.LittleEndian.AppendUint64(nil, 100)
	dev.HandleAPDU(apdu(t, ledgericp.CLA, insSignCombined, 0, 0, defaultPath()))
	resp = dev.HandleAPDU(apdu(t, ledgericp.CLA, insSignCombined, 2, 0, append(bad, 1, 2)))
	assert.Equal(t, ledgericp.DataIsInvalid, statusOf(resp))
}

func TestVirtualDevice_DeviceInfo(t *testing.T) {
	t.Parallel()

	dev := NewVirtualDevice()
	info, err := ledgericp.DecodeDeviceInfo(dev.HandleAPDU(apdu(t, claDeviceInfo, insDeviceInfo, 0, 0, nil)))
	require.NoError(t, err)
	assert.Equal(t, "33100004", info.TargetID)
	assert.Equal(t, "1.1.1", info.SEVersion)
	assert.Equal(t, "5.24", info.MCUVersion)
	assert.Equal(t, "00000000", info.Flag)
}

func TestVirtualDevice_InjectStatus(t *testing.T) {
	t.Parallel()

	dev := NewVirtualDevice()
	dev.InjectStatus(ledgericp.DeviceIsBusy)

	assert.Equal(t, ledgericp.DeviceIsBusy, statusOf(dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetVersion, 0, 0, nil))))
	assert.Equal(t, ledgericp.NoErrors, statusOf(dev.HandleAPDU(apdu(t, ledgericp.CLA, insGetVersion, 0, 0, nil))))
	assert.Equal(t, 2, dev.State().APDUs)
}

func TestEncodeDER(t *testing.T) {
	t.Parallel()

	rs := make([]byte, 64)
	rs[0] = 0x80 // high bit forces a leading zero
	rs[63] = 0x01
	der := EncodeDER(rs)

	assert.Equal(t, byte(0x30), der[0])
	assert.Equal(t, []byte{0x02, 0x21, 0x00, 0x80}, der[2:6])
	assert.Equal(t, []byte{0x02, 0x01, 0x01}, der[len(der)-3:])
}

func TestPrincipalText_AnonymousPrincipal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2vxsxfae", PrincipalText([]byte{0x04}))
}
