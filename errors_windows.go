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

//go:build windows

package ledgericp

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// deviceGoneErrnos are returned by HID and COM handles once the device has
// been unplugged.
var deviceGoneErrnos = []syscall.Errno{
	windows.ERROR_ACCESS_DENIED,
	windows.ERROR_GEN_FAILURE,
	windows.ERROR_DEVICE_NOT_CONNECTED,
	windows.ERROR_OPERATION_ABORTED,
}
