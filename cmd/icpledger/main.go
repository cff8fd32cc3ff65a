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

// Command icpledger talks to the ICP app on a Ledger signer.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ledgericp "github.com/icpkit/go-ledger-icp"
	"github.com/icpkit/go-ledger-icp/transport/hid"
	"github.com/icpkit/go-ledger-icp/transport/tcp"
	"github.com/icpkit/go-ledger-icp/transport/uart"
)

const usage = `usage: icpledger [flags] <command> [command flags]

commands:
  version                              app version
  info                                 device firmware details
  address [--show] [--path p]          public key, principal and account
  sign --message hex [--path p] [--stake]
  sign-combined --call hex --status-read hex [--path p] [--stake]
`

type transportFactory func(cfg config) (ledgericp.Transport, error)

// newTransport opens the transport named in cfg
func newTransport(cfg config) (ledgericp.Transport, error) {
	switch cfg.transport {
	case "hid":
		transport, err := hid.New(cfg.device)
		if err != nil {
			return nil, fmt.Errorf("failed to create HID transport: %w", err)
		}
		return transport, nil
	case "tcp":
		transport, err := tcp.New(cfg.device)
		if err != nil {
			return nil, fmt.Errorf("failed to create TCP transport: %w", err)
		}
		return transport, nil
	case "uart":
		transport, err := uart.New(cfg.device, cfg.baud)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return transport, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.transport)
	}
}

// parseGlobal reads the config file and global flags; flags set on the
// command line win over file values.
func parseGlobal(args []string, stderr io.Writer) (config, []string, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("icpledger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }

	configPath := fs.String("config", "", "TOML config file")
	transport := fs.String("transport", cfg.transport, "Transport: hid, tcp or uart")
	device := fs.String("device", "", "HID path, emulator address or serial port")
	baud := fs.Int("baud", 0, "Serial baud rate")
	timeout := fs.Duration("timeout", cfg.timeout, "Timeout for non-interactive commands")
	chunkSize := fs.Int("chunk-size", cfg.chunkSize, "Payload bytes per APDU")
	sessionLog := fs.String("session-log", "", "Directory for a session debug log")
	debug := fs.Bool("debug", false, "Enable debug output")

	if err := fs.Parse(args); err != nil {
		return cfg, nil, err
	}

	if *configPath != "" {
		if err := loadFileConfig(*configPath, &cfg); err != nil {
			return cfg, nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "transport":
			cfg.transport = strings.ToLower(*transport)
		case "device":
			cfg.device = *device
		case "baud":
			cfg.baud = *baud
		case "timeout":
			cfg.timeout = *timeout
		case "chunk-size":
			cfg.chunkSize = *chunkSize
		case "session-log":
			cfg.sessionLogDir = *sessionLog
		case "debug":
			cfg.debug = *debug
		}
	})

	if cfg.transport == "tcp" && cfg.device == "" {
		cfg.device = tcp.DefaultAddress
	}
	if err := cfg.validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, fs.Args(), nil
}

type command struct {
	message    []byte
	call       []byte
	statusRead []byte
	name       string
	path       string
	show       bool
	stake      bool
}

func parseCommand(args []string, cfg config, stderr io.Writer) (*command, error) {
	if len(args) == 0 {
		return nil, errors.New("missing command")
	}

	cmd := &command{name: args[0], path: cfg.path}
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var messageHex, callHex, statusHex string
	switch cmd.name {
	case "version", "info":
	case "address":
		fs.StringVar(&cmd.path, "path", cfg.path, "Derivation path")
		fs.BoolVar(&cmd.show, "show", false, "Display the address on the device for confirmation")
	case "sign":
		fs.StringVar(&cmd.path, "path", cfg.path, "Derivation path")
		fs.StringVar(&messageHex, "message", "", "Hex-encoded transaction blob")
		fs.BoolVar(&cmd.stake, "stake", false, "Sign as a neuron stake transaction")
	case "sign-combined":
		fs.StringVar(&cmd.path, "path", cfg.path, "Derivation path")
		fs.StringVar(&callHex, "call", "", "Hex-encoded update call request")
		fs.StringVar(&statusHex, "status-read", "", "Hex-encoded read_state request")
		fs.BoolVar(&cmd.stake, "stake", false, "Sign as a neuron stake transaction")
	default:
		return nil, fmt.Errorf("unknown command %q", cmd.name)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	var err error
	if cmd.message, err = decodeHexFlag("message", messageHex, cmd.name == "sign"); err != nil {
		return nil, err
	}
	if cmd.call, err = decodeHexFlag("call", callHex, cmd.name == "sign-combined"); err != nil {
		return nil, err
	}
	if cmd.statusRead, err = decodeHexFlag("status-read", statusHex, cmd.name == "sign-combined"); err != nil {
		return nil, err
	}
	return cmd, nil
}

func decodeHexFlag(name, value string, required bool) ([]byte, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if value == "" {
		if required {
			return nil, fmt.Errorf("--%s is required", name)
		}
		return nil, nil
	}
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return b, nil
}

func (c *command) signMode() ledgericp.SignMode {
	if c.stake {
		return ledgericp.SignStakeTx
	}
	return ledgericp.SignDefault
}

func (c *command) execute(ctx context.Context, device *ledgericp.Device) (any, error) {
	switch c.name {
	case "version":
		return device.GetVersion(ctx)
	case "info":
		return device.GetDeviceInfo(ctx)
	case "address":
		return device.GetAddress(ctx, c.path, c.show)
	case "sign":
		return device.Sign(ctx, c.path, c.message, c.signMode())
	case "sign-combined":
		return device.SignCombined(ctx, c.path, c.call, c.statusRead, c.signMode())
	default:
		return nil, fmt.Errorf("unknown command %q", c.name)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// run executes one invocation and returns the process exit code. Device
// failures are printed as the normalized error record on stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, factory transportFactory) int {
	cfg, rest, err := parseGlobal(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cmd, err := parseCommand(rest, cfg, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n%s", err, usage)
		return 2
	}

	if cfg.debug {
		ledgericp.SetDebugEnabled(true)
	}
	if cfg.sessionLogDir != "" {
		logPath, logErr := ledgericp.InitSessionLog(cfg.sessionLogDir)
		if logErr != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: session log disabled: %v\n", logErr)
		} else {
			ledgericp.Debugf("session log: %s", logPath)
			defer func() { _ = ledgericp.CloseSessionLog() }()
		}
	}

	transport, err := factory(cfg)
	if err != nil {
		_ = writeJSON(stdout, ledgericp.Normalize(err))
		return 1
	}

	device, err := ledgericp.New(transport, cfg.deviceOptions()...)
	if err != nil {
		_ = transport.Close()
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() {
		if closeErr := device.Close(); closeErr != nil {
			ledgericp.Debugf("close: %v", closeErr)
		}
	}()

	result, err := cmd.execute(ctx, device)
	if err != nil {
		if trace := ledgericp.GetTrace(err); trace != nil {
			ledgericp.Debugln(trace.FormatTrace())
		}
		_ = writeJSON(stdout, ledgericp.Normalize(err))
		return 1
	}

	if err := writeJSON(stdout, result); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr, newTransport)
}
