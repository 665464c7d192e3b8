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
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPathErrorIsKind(t *testing.T) {
	err := Wrap(NotFound, "lookup", "/a/b", "c")
	require.ErrorIs(t, err, NotFound)
	require.NotErrorIs(t, err, AlreadyExists)
	require.Equal(t, "lookup /a/b: c: no such file or directory", err.Error())

	// wrapping twice keeps the innermost kind
	outer := fmt.Errorf("creating file: %w", Wrap(err, "create", "/a/b/c", ""))
	require.ErrorIs(t, outer, NotFound)
	require.Equal(t, NotFound, KindOf(outer))
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, "lookup", "/", ""))
}

func TestKindOf(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want Kind
	}{
		{"kind", Busy, Busy},
		{"path error", Errorf(Loop, "lookup", "/l"), Loop},
		{"errno", unix.ENOTEMPTY, DirectoryNotEmpty},
		{"os path error", &os.PathError{Op: "rmdir", Path: "/x", Err: unix.EXDEV}, CrossDevice},
		{"fs sentinel", fs.ErrNotExist, NotFound},
		{"eperm", unix.EPERM, PermissionDenied},
		{"unknown", errors.New("boom"), Internal},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrnoRoundTrip(t *testing.T) {
	for k := range kindText {
		if k == Internal {
			continue
		}
		require.Equal(t, k, FromErrno(k.Errno()), "kind %v", k)
	}
	require.Equal(t, unix.EIO, Internal.Errno())
}
