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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	ledgericp "github.com/icpkit/go-ledger-icp"
	"github.com/icpkit/go-ledger-icp/transport/tcp"
)

type config struct {
	transport     string
	device        string
	path          string
	sessionLogDir string
	timeout       time.Duration
	baud          int
	chunkSize     int
	debug         bool
}

func defaultConfig() config {
	return config{
		transport: "hid",
		path:      ledgericp.DefaultPath,
		timeout:   ledgericp.DefaultDeviceConfig().Timeout,
		chunkSize: ledgericp.ChunkSize,
	}
}

type fileConfig struct {
	Transport     string `toml:"transport"`
	Device        string `toml:"device"`
	Path          string `toml:"path"`
	Timeout       string `toml:"timeout"`
	SessionLogDir string `toml:"session_log_dir"`
	Baud          int    `toml:"baud"`
	ChunkSize     int    `toml:"chunk_size"`
	Debug         bool   `toml:"debug"`
}

// loadFileConfig overlays the keys present in the TOML file onto cfg
func loadFileConfig(path string, cfg *config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("transport") {
		cfg.transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("device") {
		cfg.device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("path") {
		cfg.path = strings.TrimSpace(raw.Path)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		cfg.timeout = d
	}
	if meta.IsDefined("session_log_dir") {
		cfg.sessionLogDir = strings.TrimSpace(raw.SessionLogDir)
	}
	if meta.IsDefined("baud") {
		cfg.baud = raw.Baud
	}
	if meta.IsDefined("chunk_size") {
		cfg.chunkSize = raw.ChunkSize
	}
	if meta.IsDefined("debug") {
		cfg.debug = raw.Debug
	}
	return nil
}

func (c config) validate() error {
	switch c.transport {
	case "hid":
	case "tcp":
		if c.device == "" {
			return fmt.Errorf("tcp transport needs an address (default %s)", tcp.DefaultAddress)
		}
	case "uart":
		if c.device == "" {
			return errors.New("uart transport needs a serial port")
		}
	default:
		return fmt.Errorf("unsupported transport type: %s", c.transport)
	}
	return nil
}

func (c config) deviceOptions() []ledgericp.Option {
	return []ledgericp.Option{
		ledgericp.WithTimeout(c.timeout),
		ledgericp.WithChunkSize(c.chunkSize),
	}
}
