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
	"encoding/asn1"
	"encoding/base32"
	"encoding/binary"
	"hash/crc32"
	"math/big"
	"strings"

	ledgericp "github.com/icpkit/go-ledger-icp"
)

// secp256k1 SubjectPublicKeyInfo prefix for an uncompressed point
var spkiPrefix = []byte{
	0x30, 0x56, 0x30, 0x10, 0x06, 0x07, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x02, 0x01,
	0x06, 0x05, 0x2b, 0x81, 0x04, 0x00, 0x0a, 0x03, 0x42, 0x00,
}

const (
	selfAuthenticatingTag = 0x02
	accountDomain         = "\x0Aaccount-id"
	requestDomain         = "\x0Aic-request"
)

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// DerivePublicKey returns a deterministic uncompressed point for path. The
// bytes only look like a key; nothing verifies them.
func DerivePublicKey(path ledgericp.EncodedPath) []byte {
	x := sha256.Sum256(append([]byte("x"), path[:]...))
	y := sha256.Sum256(append([]byte("y"), path[:]...))
	pk := make([]byte, 0, ledgericp.PublicKeyLen)
	pk = append(pk, 0x04)
	pk = append(pk, x[:]...)
	return append(pk, y[:]...)
}

// SelfAuthenticatingPrincipal derives the principal of an uncompressed key
func SelfAuthenticatingPrincipal(publicKey []byte) []byte {
	der := append(append([]byte(nil), spkiPrefix...), publicKey...)
	sum := sha256.Sum224(der)
	return append(sum[:], selfAuthenticatingTag)
}

// AccountIdentifier derives the default-subaccount ledger account of principal
func AccountIdentifier(principal []byte) []byte {
	h := sha256.New224()
	_, _ = h.Write([]byte(accountDomain))
	_, _ = h.Write(principal)
	_, _ = h.Write(make([]byte, 32))
	sum := h.Sum(nil)

	out := binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(sum))
	return append(out, sum...)
}

// PrincipalText renders principal in its textual form, without dashes
func PrincipalText(principal []byte) string {
	buf := binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(principal))
	buf = append(buf, principal...)
	return strings.ToLower(principalEncoding.EncodeToString(buf))
}

// RequestPreHash is the domain-separated digest the app signs for message
func RequestPreHash(message []byte) []byte {
	sum := sha256.Sum256(message)
	return append([]byte(requestDomain), sum[:]...)
}

// signRS derives a deterministic 64-byte r||s pair for digest under path
func signRS(path ledgericp.EncodedPath, digest []byte) []byte {
	r := sha256.Sum256(append(path.Bytes(), digest...))
	s := sha256.Sum256(append(append([]byte(nil), digest...), path[:]...))
	return append(r[:], s[:]...)
}

// EncodeDER encodes a 64-byte r||s pair as an ASN.1 DER sequence
func EncodeDER(rs []byte) []byte {
	der, err := asn1.Marshal(struct{ R, S *big.Int }{
		R: new(big.Int).SetBytes(rs[:32]),
		S: new(big.Int).SetBytes(rs[32:64]),
	})
	if err != nil {
		panic(err)
	}
	return der
}
