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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ledgericp "github.com/icpkit/go-ledger-icp"
	testutil "github.com/icpkit/go-ledger-icp/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulatorFactory(dev *testutil.VirtualDevice, seen *config) transportFactory {
	return func(cfg config) (ledgericp.Transport, error) {
		if seen != nil {
			*seen = cfg
		}
		return testutil.NewSimulatorTransport(dev), nil
	}
}

func runCLI(t *testing.T, factory transportFactory, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut, factory)
	return code, out.String(), errOut.String()
}

func TestRun_Version(t *testing.T) {
	t.Parallel()

	dev := testutil.NewVirtualDevice()
	dev.SetVersion(2, 4, 9, false)

	code, stdout, _ := runCLI(t, simulatorFactory(dev, nil), "version")
	require.Equal(t, 0, code)

	var info ledgericp.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, ledgericp.NoErrors, info.ReturnCode)
	assert.Equal(t, uint8(2), info.Major)
	assert.Equal(t, uint8(4), info.Minor)
	assert.Equal(t, uint8(9), info.Patch)
}

func TestRun_Address(t *testing.T) {
	t.Parallel()

	dev := testutil.NewVirtualDevice()
	code, stdout, _ := runCLI(t, simulatorFactory(dev, nil), "address", "--show", "--path", "m/44'/223'/0'/0/3")
	require.Equal(t, 0, code)

	var info ledgericp.AddressInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))

	pk := testutil.DerivePublicKey(ledgericp.MustSerializePath("m/44'/223'/0'/0/3"))
	assert.Equal(t, pk, info.PublicKey)
	want := ledgericp.FormatPrincipalText(testutil.PrincipalText(testutil.SelfAuthenticatingPrincipal(pk)))
	assert.Equal(t, want, info.PrincipalText)
	assert.Equal(t, 1, dev.State().Confirmed)
}

func TestRun_Sign(t *testing.T) {
	t.Parallel()

	dev := testutil.NewVirtualDevice()
	message := strings.Repeat("ab", 400)

	code, stdout, _ := runCLI(t, simulatorFactory(dev, nil), "sign", "--message", message, "--stake")
	require.Equal(t, 0, code)

	var sig ledgericp.SignatureInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &sig))
	assert.Len(t, sig.SignatureRS, 64)
	assert.Len(t, sig.PreSignHash, 43)
	assert.Equal(t, byte(ledgericp.SignStakeTx), dev.State().LastSignMode)
}

func TestRun_SignCombined(t *testing.T) {
	t.Parallel()

	dev := testutil.NewVirtualDevice()
	code, stdout, _ := runCLI(t, simulatorFactory(dev, nil),
		"sign-combined", "--call", "0xd9d9f7a1", "--status-read", "d9d9f7a2")
	require.Equal(t, 0, code)

	var sig ledgericp.CombinedSignatureInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &sig))
	assert.Len(t, sig.RequestHash, 32)
	assert.Len(t, sig.StatusReadHash, 32)
}

func TestRun_DeviceErrorPrintsRecord(t *testing.T) {
	t.Parallel()

	dev := testutil.NewVirtualDevice()
	dev.SetUserRejects(true)

	code, stdout, _ := runCLI(t, simulatorFactory(dev, nil), "sign", "--message", "0102")
	require.Equal(t, 1, code)

	var rec ledgericp.ErrorRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
	assert.Equal(t, ledgericp.TransactionRejected, rec.ReturnCode)
	assert.Equal(t, "Transaction rejected", rec.ErrorMessage)
}

func TestRun_TransportFailurePrintsRecord(t *testing.T) {
	t.Parallel()

	factory := func(config) (ledgericp.Transport, error) {
		return nil, ledgericp.ErrDeviceNotFound
	}
	code, stdout, _ := runCLI(t, factory, "version")
	require.Equal(t, 1, code)

	var rec ledgericp.ErrorRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
	assert.Equal(t, ledgericp.NonProtocolError, rec.ReturnCode)
	assert.NotEmpty(t, rec.ErrorMessage)
}

func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"erase"}},
		{name: "sign without message", args: []string{"sign"}},
		{name: "bad hex", args: []string{"sign", "--message", "zz"}},
		{name: "combined without status read", args: []string{"sign-combined", "--call", "01"}},
		{name: "unknown transport", args: []string{"--transport", "spi", "version"}},
		{name: "uart without port", args: []string{"--transport", "uart", "version"}},
		{name: "stray argument", args: []string{"version", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			called := false
			factory := func(config) (ledgericp.Transport, error) {
				called = true
				return nil, errors.New("unexpected")
			}
			code, stdout, stderr := runCLI(t, factory, tt.args...)
			assert.Equal(t, 2, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, "Error:")
			assert.False(t, called)
		})
	}
}

func TestRun_TCPDefaultsAddress(t *testing.T) {
	t.Parallel()

	var seen config
	code, _, _ := runCLI(t, simulatorFactory(testutil.NewVirtualDevice(), &seen), "--transport", "tcp", "version")
	require.Equal(t, 0, code)
	assert.Equal(t, "127.0.0.1:9999", seen.device)
}

func TestRun_ConfigFileAndFlagOverride(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "icpledger.toml")
	contents := `transport = "uart"
device = "/dev/ttyACM0"
baud = 921600
timeout = "2s"
path = "m/44'/223'/1'/0/0"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	var seen config
	code, _, _ := runCLI(t, simulatorFactory(testutil.NewVirtualDevice(), &seen),
		"--config", path, "--device", "/dev/ttyUSB1", "version")
	require.Equal(t, 0, code)

	assert.Equal(t, "uart", seen.transport)
	assert.Equal(t, "/dev/ttyUSB1", seen.device)
	assert.Equal(t, 921600, seen.baud)
	assert.Equal(t, 2*time.Second, seen.timeout)
	assert.Equal(t, "m/44'/223'/1'/0/0", seen.path)
}

func TestLoadFileConfig_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "missing file", path: filepath.Join(dir, "absent.toml"), want: "load config"},
		{name: "unknown key", path: write("unknown.toml", "colour = \"red\"\n"), want: "unknown key"},
		{name: "bad timeout", path: write("timeout.toml", "timeout = \"soon\"\n"), want: "parse timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			err := loadFileConfig(tt.path, &cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
