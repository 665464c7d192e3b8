// Copyright 2026 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build unix

package vfs

import (
	"errors"

	"golang.org/x/sys/unix"
)

var kindErrno = map[Kind]unix.Errno{
	NotFound:          unix.ENOENT,
	AlreadyExists:     unix.EEXIST,
	NotADirectory:     unix.ENOTDIR,
	IsADirectory:      unix.EISDIR,
	DirectoryNotEmpty: unix.ENOTEMPTY,
	CrossDevice:       unix.EXDEV,
	Loop:              unix.ELOOP,
	PermissionDenied:  unix.EACCES,
	Busy:              unix.EBUSY,
	InvalidPath:       unix.EINVAL,
	Internal:          unix.EIO,
}

// Errno returns the errno a syscall layer reports for this kind.
func (k Kind) Errno() unix.Errno {
	if e, ok := kindErrno[k]; ok {
		return e
	}
	return unix.EIO
}

// FromErrno maps a raw errno to a kind.
func FromErrno(errno unix.Errno) Kind {
	switch errno {
	case unix.ENOENT:
		return NotFound
	case unix.EEXIST:
		return AlreadyExists
	case unix.ENOTDIR:
		return NotADirectory
	case unix.EISDIR:
		return IsADirectory
	case unix.ENOTEMPTY:
		return DirectoryNotEmpty
	case unix.EXDEV:
		return CrossDevice
	case unix.ELOOP:
		return Loop
	case unix.EACCES, unix.EPERM, unix.EROFS:
		return PermissionDenied
	case unix.EBUSY:
		return Busy
	case unix.EINVAL, unix.ENAMETOOLONG:
		return InvalidPath
	default:
		return Internal
	}
}

func kindOfErrno(err error) (Kind, bool) {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return FromErrno(errno), true
	}
	return 0, false
}
