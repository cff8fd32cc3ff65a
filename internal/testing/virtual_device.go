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
	"crypto/sha256"
	"encoding/binary"

	ledgericp "github.com/icpkit/go-ledger-icp"
	"github.com/icpkit/go-ledger-icp/internal/syncutil"
)

// Instruction codes mirrored from the ledgericp package
const (
	insGetVersion    = 0x00
	insGetAddress    = 0x01
	insSign          = 0x02
	insSignCombined  = 0x03
	claDeviceInfo    = 0xE0
	insDeviceInfo    = 0x01
	p1ShowAddress    = 0x01
	maxSignP2        = 0x01
	purposeHardened  = 0x8000002C
	coinTypeHardened = 0x800000DF
)

// StatusLocked is what the OS answers app commands with while the PIN screen is up
const StatusLocked ledgericp.StatusCode = 0x5515

// DefaultMaxBuffer is the reassembly buffer size of the simulated app
const DefaultMaxBuffer = 8192

// DeviceState is a snapshot of the simulator counters
type DeviceState struct {
	APDUs        int
	Signatures   int
	Confirmed    int
	BufferLen    int
	Receiving    bool
	LastSignMode byte
}

// VirtualDevice simulates the ICP app at the APDU level: version and device
// info queries, address derivation, and the INIT/ADD/LAST chunk state machine
// behind signing. Keys, hashes and signatures are deterministic stand-ins.
type VirtualDevice struct {
	injected   []ledgericp.StatusCode
	buffer     []byte
	seVersion  string
	mcuVersion string
	flags      []byte
	state      DeviceState
	maxBuffer  int
	mu         syncutil.Mutex
	targetID   uint32
	path       ledgericp.EncodedPath
	version    [3]byte
	ins        byte
	testMode   bool
	locked     bool
	rejecting  bool
}

// NewVirtualDevice creates an unlocked Nano S Plus running app version 2.4.9
func NewVirtualDevice() *VirtualDevice {
	return &VirtualDevice{
		version:    [3]byte{2, 4, 9},
		targetID:   0x33100004,
		seVersion:  "1.1.1",
		mcuVersion: "5.24",
		flags:      []byte{0x00, 0x00, 0x00, 0x00},
		maxBuffer:  DefaultMaxBuffer,
	}
}

// SetVersion sets the reported app version and test-mode flag
func (v *VirtualDevice) SetVersion(major, minor, patch byte, testMode bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version = [3]byte{major, minor, patch}
	v.testMode = testMode
}

// SetTargetID sets the reported hardware target
func (v *VirtualDevice) SetTargetID(id uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.targetID = id
}

// SetLocked locks or unlocks the device. Locked devices still report their
// version but refuse every other app command with StatusLocked.
func (v *VirtualDevice) SetLocked(locked bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.locked = locked
}

// SetUserRejects makes the simulated user reject every confirmation prompt
func (v *VirtualDevice) SetUserRejects(reject bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejecting = reject
}

// SetMaxBuffer sets the reassembly buffer size
func (v *VirtualDevice) SetMaxBuffer(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.maxBuffer = n
}

// InjectStatus makes the next APDU fail with code, before any processing
func (v *VirtualDevice) InjectStatus(code ledgericp.StatusCode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injected = append(v.injected, code)
}

// State returns a snapshot of the simulator counters
func (v *VirtualDevice) State() DeviceState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.BufferLen = len(v.buffer)
	return s
}

// HandleAPDU processes one command APDU and returns the response, status
// word included.
func (v *VirtualDevice) HandleAPDU(raw []byte) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.APDUs++

	cmd, err := ledgericp.DecodeAPDU(raw)
	if err != nil {
		return StatusWord(ledgericp.WrongLength)
	}

	if len(v.injected) > 0 {
		code := v.injected[0]
		v.injected = v.injected[1:]
		return StatusWord(code)
	}

	if cmd.CLA == claDeviceInfo && cmd.INS == insDeviceInfo {
		return BuildDeviceInfoResponse(v.targetID, v.seVersion, v.flags, v.mcuVersion)
	}
	if cmd.CLA != ledgericp.CLA {
		return StatusWord(ledgericp.AppDoesNotSeemToBeOpen)
	}
	if v.locked && cmd.INS != insGetVersion {
		return StatusWord(StatusLocked)
	}

	switch cmd.INS {
	case insGetVersion:
		return BuildVersionResponse(v.testMode, v.version[0], v.version[1], v.version[2], v.locked, v.targetID)
	case insGetAddress:
		return v.handleGetAddress(cmd)
	case insSign, insSignCombined:
		return v.handleChunk(cmd)
	default:
		return StatusWord(ledgericp.InstructionNotSupported)
	}
}

func (v *VirtualDevice) handleGetAddress(cmd *ledgericp.APDU) []byte {
	if cmd.P1 > p1ShowAddress {
		return StatusWord(ledgericp.InvalidP1P2)
	}

	path, ok := parseAppPath(cmd.Data)
	if !ok {
		return StatusWord(ledgericp.DataIsInvalid)
	}

	if cmd.P1 == p1ShowAddress {
		if v.rejecting {
			return StatusWord(ledgericp.TransactionRejected)
		}
		v.state.Confirmed++
	}

	pk := DerivePublicKey(path)
	principal := SelfAuthenticatingPrincipal(pk)
	return BuildAddressResponse(pk, principal, AccountIdentifier(principal), PrincipalText(principal))
}

func (v *VirtualDevice) handleChunk(cmd *ledgericp.APDU) []byte {
	if cmd.P2 > maxSignP2 {
		return StatusWord(ledgericp.InvalidP1P2)
	}

	switch ledgericp.PayloadType(cmd.P1) {
	case ledgericp.PayloadInit:
		v.resetTransfer()
		path, ok := parseAppPath(cmd.Data)
		if !ok {
			return StatusWord(ledgericp.DataIsInvalid)
		}
		v.path = path
		v.ins = cmd.INS
		v.state.Receiving = true
		return StatusWord(ledgericp.NoErrors)

	case ledgericp.PayloadAdd, ledgericp.PayloadLast:
		if !v.state.Receiving || cmd.INS != v.ins {
			v.resetTransfer()
			return StatusWord(ledgericp.DataIsInvalid)
		}
		if len(v.buffer)+len(cmd.Data) > v.maxBuffer {
			v.resetTransfer()
			return StatusWord(ledgericp.OutputBufferTooSmall)
		}
		v.buffer = append(v.buffer, cmd.Data...)
		if ledgericp.PayloadType(cmd.P1) == ledgericp.PayloadAdd {
			return StatusWord(ledgericp.NoErrors)
		}

		message := v.buffer
		v.state.Receiving = false
		v.buffer = nil
		return v.sign(cmd.INS, cmd.P2, message)

	default:
		return StatusWord(ledgericp.InvalidP1P2)
	}
}

func (v *VirtualDevice) sign(ins, mode byte, message []byte) []byte {
	if len(message) == 0 {
		return StatusWord(ledgericp.DataIsInvalid)
	}
	if v.rejecting {
		return StatusWord(ledgericp.TransactionRejected)
	}

	var resp []byte
	if ins == insSignCombined {
		statusRead, call, ok := splitCombined(message)
		if !ok {
			return StatusWord(ledgericp.DataIsInvalid)
		}
		requestHash := sha256.Sum256(call)
		statusHash := sha256.Sum256(statusRead)
		resp = BuildCombinedResponse(
			requestHash[:], signRS(v.path, RequestPreHash(call)),
			statusHash[:], signRS(v.path, RequestPreHash(statusRead)),
		)
	} else {
		preHash := RequestPreHash(message)
		rs := signRS(v.path, preHash)
		resp = BuildSignatureResponse(preHash, rs, EncodeDER(rs))
	}

	v.state.Signatures++
	v.state.LastSignMode = mode
	return resp
}

func (v *VirtualDevice) resetTransfer() {
	v.buffer = nil
	v.state.Receiving = false
}

// splitCombined reads the u64 little-endian length prefixed status read
// request followed by the call request.
func splitCombined(message []byte) (statusRead, call []byte, ok bool) {
	if len(message) < 8 {
		return nil, nil, false
	}
	n := binary.LittleEndian.Uint64(message)
	rest := message[8:]
	if n > uint64(len(rest)) {
		return nil, nil, false
	}
	return rest[:n], rest[n:], len(rest[n:]) > 0
}

// parseAppPath accepts only paths under m/44'/223'
func parseAppPath(data []byte) (ledgericp.EncodedPath, bool) {
	path, err := ledgericp.DecodePath(data)
	if err != nil {
		return path, false
	}
	return path, path.Level(0) == purposeHardened && path.Level(1) == coinTypeHardened
}
