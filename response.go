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
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	statusWordLen = 2
	// minVersionLen covers test mode, major, minor, patch, lock flag and status
	minVersionLen = 5 + statusWordLen
	// targetIDVersionLen is the shortest version response carrying a target id
	targetIDVersionLen = 9

	principalGroupLen = 5
)

// VersionInfo describes the running ICP app
type VersionInfo struct {
	ErrorMessage string     `json:"errorMessage"`
	TargetID     string     `json:"targetId"`
	ReturnCode   StatusCode `json:"returnCode"`
	TestMode     bool       `json:"testMode"`
	Major        uint8      `json:"major"`
	Minor        uint8      `json:"minor"`
	Patch        uint8      `json:"patch"`
	DeviceLocked bool       `json:"deviceLocked"`
}

// String returns the semantic version of the app
func (v *VersionInfo) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.TestMode {
		s += " (test mode)"
	}
	return s
}

// AddressInfo is the answer to an address request
type AddressInfo struct {
	ErrorMessage  string     `json:"errorMessage"`
	PrincipalText string     `json:"principalText"`
	PublicKey     []byte     `json:"publicKey"`
	Principal     []byte     `json:"principal"`
	Address       []byte     `json:"address"`
	ReturnCode    StatusCode `json:"returnCode"`
}

// SignatureInfo is the answer to a signing request
type SignatureInfo struct {
	ErrorMessage string     `json:"errorMessage"`
	PreSignHash  []byte     `json:"preSignHash"`
	SignatureRS  []byte     `json:"signatureRS"`
	SignatureDER []byte     `json:"signatureDER"`
	ReturnCode   StatusCode `json:"returnCode"`
}

// CombinedSignatureInfo carries the signatures of an update call and of the
// read_state request that polls its status.
type CombinedSignatureInfo struct {
	ErrorMessage          string     `json:"errorMessage"`
	RequestHash           []byte     `json:"requestHash"`
	RequestSignatureRS    []byte     `json:"requestSignatureRS"`
	StatusReadHash        []byte     `json:"statusReadHash"`
	StatusReadSignatureRS []byte     `json:"statusReadSignatureRS"`
	ReturnCode            StatusCode `json:"returnCode"`
}

// DeviceInfo describes the device firmware as reported through the app
type DeviceInfo struct {
	ErrorMessage string     `json:"errorMessage"`
	TargetID     string     `json:"targetId"`
	SEVersion    string     `json:"seVersion"`
	Flag         string     `json:"flag"`
	MCUVersion   string     `json:"mcuVersion"`
	ReturnCode   StatusCode `json:"returnCode"`
}

// SplitStatus separates the response body from its trailing big-endian status word.
func SplitStatus(raw []byte) ([]byte, StatusCode, error) {
	if len(raw) < statusWordLen {
		return nil, 0, fmt.Errorf("%w: %d bytes, need at least %d for the status word",
			ErrInvalidResponse, len(raw), statusWordLen)
	}
	n := len(raw) - statusWordLen
	return raw[:n], StatusCode(binary.BigEndian.Uint16(raw[n:])), nil
}

// DecodeVersion parses a version response. The status word is reported in the
// result and is not treated as an error here.
func DecodeVersion(raw []byte) (*VersionInfo, error) {
	_, code, err := SplitStatus(raw)
	if err != nil {
		return nil, err
	}
	if len(raw) < minVersionLen {
		return nil, fmt.Errorf("%w: version response is %d bytes, need at least %d",
			ErrInvalidResponse, len(raw), minVersionLen)
	}

	targetID := "0"
	if len(raw) >= targetIDVersionLen {
		targetID = strconv.FormatUint(uint64(binary.BigEndian.Uint32(raw[5:9])), 16)
	}

	return &VersionInfo{
		ReturnCode:   code,
		ErrorMessage: Describe(code),
		TestMode:     raw[0] != 0,
		Major:        raw[1],
		Minor:        raw[2],
		Patch:        raw[3],
		DeviceLocked: raw[4] == 1,
		TargetID:     targetID,
	}, nil
}

// DecodeAddress parses an address response:
// public key (65) | principal (29) | account address (32) | principal text.
func DecodeAddress(raw []byte) (*AddressInfo, error) {
	data, code, err := SplitStatus(raw)
	if err != nil {
		return nil, err
	}
	const fixed = PublicKeyLen + PrincipalLen + AddressLen
	if len(data) < fixed {
		return nil, fmt.Errorf("%w: address response body is %d bytes, need at least %d",
			ErrInvalidResponse, len(data), fixed)
	}

	return &AddressInfo{
		ReturnCode:    code,
		ErrorMessage:  Describe(code),
		PublicKey:     clone(data[:PublicKeyLen]),
		Principal:     clone(data[PublicKeyLen : PublicKeyLen+PrincipalLen]),
		Address:       clone(data[PublicKeyLen+PrincipalLen : fixed]),
		PrincipalText: FormatPrincipalText(string(data[fixed:])),
	}, nil
}

// FormatPrincipalText inserts the textual principal separators ("-" every five
// characters) into the undelimited text sent by the device.
func FormatPrincipalText(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	if len(s) <= principalGroupLen {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i += principalGroupLen {
		if i > 0 {
			_ = sb.WriteByte('-')
		}
		_, _ = sb.WriteString(s[i:min(i+principalGroupLen, len(s))])
	}
	return sb.String()
}

// DecodeSignature parses a signing response:
// pre-sign hash (43) | signature R||S (64) | DER signature.
func DecodeSignature(raw []byte) (*SignatureInfo, error) {
	data, code, err := SplitStatus(raw)
	if err != nil {
		return nil, err
	}
	const fixed = PreHashLen + SignatureRSLen
	if len(data) < fixed {
		return nil, fmt.Errorf("%w: signature response body is %d bytes, need at least %d",
			ErrInvalidResponse, len(data), fixed)
	}

	return &SignatureInfo{
		ReturnCode:   code,
		ErrorMessage: Describe(code),
		PreSignHash:  clone(data[:PreHashLen]),
		SignatureRS:  clone(data[PreHashLen:fixed]),
		SignatureDER: clone(data[fixed:]),
	}, nil
}

// DecodeCombinedSignature parses a combined signing response:
// request hash (32) | request R||S (64) | status read hash (32) | status read R||S (64).
func DecodeCombinedSignature(raw []byte) (*CombinedSignatureInfo, error) {
	data, code, err := SplitStatus(raw)
	if err != nil {
		return nil, err
	}
	const want = 2 * (RequestHashLen + SignatureRSLen)
	if len(data) < want {
		return nil, fmt.Errorf("%w: combined signature body is %d bytes, need %d",
			ErrInvalidResponse, len(data), want)
	}

	off := 0
	next := func(n int) []byte {
		b := clone(data[off : off+n])
		off += n
		return b
	}
	return &CombinedSignatureInfo{
		ReturnCode:            code,
		ErrorMessage:          Describe(code),
		RequestHash:           next(RequestHashLen),
		RequestSignatureRS:    next(SignatureRSLen),
		StatusReadHash:        next(RequestHashLen),
		StatusReadSignatureRS: next(SignatureRSLen),
	}, nil
}

// DecodeDeviceInfo parses the device info response:
// target id (4) | [len] SE version | [len] flags | [len] MCU version.
func DecodeDeviceInfo(raw []byte) (*DeviceInfo, error) {
	data, code, err := SplitStatus(raw)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: device info body is %d bytes, need at least 4",
			ErrInvalidResponse, len(data))
	}

	r := lvReader{buf: data, off: 4}
	seVersion, err := r.next("SE version")
	if err != nil {
		return nil, err
	}
	flag, err := r.next("flags")
	if err != nil {
		return nil, err
	}
	mcuVersion, err := r.next("MCU version")
	if err != nil {
		return nil, err
	}

	return &DeviceInfo{
		ReturnCode:   code,
		ErrorMessage: Describe(code),
		TargetID:     fmt.Sprintf("%x", data[:4]),
		SEVersion:    string(seVersion),
		Flag:         fmt.Sprintf("%x", flag),
		MCUVersion:   strings.TrimRight(string(mcuVersion), "\x00"),
	}, nil
}

// lvReader walks single-byte length prefixed fields
type lvReader struct {
	buf []byte
	off int
}

func (r *lvReader) next(field string) ([]byte, error) {
	if r.off >= len(r.buf) {
		return nil, fmt.Errorf("%w: missing %s length", ErrInvalidResponse, field)
	}
	n := int(r.buf[r.off])
	r.off++
	if r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d left",
			ErrInvalidResponse, field, n, len(r.buf)-r.off)
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

func clone(b []byte) []byte {
	return append([]byte{}, b...)
}
