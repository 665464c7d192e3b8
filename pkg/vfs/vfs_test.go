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

package vfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeTypeString(t *testing.T) {
	for _, typ := range []NodeType{TypeFile, TypeDir, TypeSymlink} {
		got, err := ParseNodeType(typ.String())
		require.NoError(t, err)
		require.Equal(t, typ, got)
	}
	_, err := ParseNodeType("fifo")
	require.Error(t, err)
}

func TestAttrFileMode(t *testing.T) {
	a := Attr{Type: TypeDir, Mode: 0o1755}
	require.Equal(t, fs.ModeDir|fs.ModeSticky|0o755, a.FileMode())
	require.True(t, a.IsDir())
	require.True(t, a.OwnerExecutable())
	require.True(t, a.OwnerWritable())

	a = Attr{Type: TypeSymlink, Mode: 0o444}
	require.Equal(t, fs.ModeSymlink|0o444, a.FileMode())
	require.False(t, a.OwnerExecutable())
	require.False(t, a.OwnerWritable())
}
