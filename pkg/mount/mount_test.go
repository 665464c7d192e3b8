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

package mount

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/fstree/pkg/vfs"
	"chainguard.dev/fstree/pkg/vfs/memfs"
)

func mkdir(t *testing.T, parent vfs.Node, name string) vfs.Node {
	t.Helper()
	n, err := parent.Create(name, vfs.TypeDir, 0, 0, 0o755)
	require.NoError(t, err)
	return n
}

func TestMount(t *testing.T) {
	ctx := context.Background()
	main := memfs.New()
	mnt := mkdir(t, main.Root(), "mnt")
	_, err := main.Root().Create("file", vfs.TypeFile, 0, 0, 0o644)
	require.NoError(t, err)
	_, err = main.Root().Symlink("link", "mnt", 0, 0, 0o777)
	require.NoError(t, err)

	rd, err := NewRootDirectory(main.Root())
	require.NoError(t, err)

	other := memfs.New()
	inner := mkdir(t, other.Root(), "inner")
	require.NoError(t, rd.Mount(ctx, "/mnt", other.Root()))

	t.Run("cross", func(t *testing.T) {
		got, err := rd.Cross(mnt)
		require.NoError(t, err)
		require.True(t, vfs.SameNode(other.Root(), got))

		got, err = rd.Cross(inner)
		require.NoError(t, err)
		require.True(t, vfs.SameNode(inner, got))
	})

	t.Run("up", func(t *testing.T) {
		got, err := rd.Up(other.Root())
		require.NoError(t, err)
		require.True(t, vfs.SameNode(main.Root(), got))

		got, err = rd.Up(inner)
		require.NoError(t, err)
		require.True(t, vfs.SameNode(other.Root(), got))

		got, err = rd.Up(main.Root())
		require.NoError(t, err)
		require.True(t, vfs.SameNode(main.Root(), got))
	})

	t.Run("contains", func(t *testing.T) {
		require.True(t, rd.Contains("/"))
		require.True(t, rd.Contains("/mnt"))
		require.True(t, rd.Contains("/mnt/"))
		require.False(t, rd.Contains("/mnt/inner"))
		require.True(t, rd.IsMountpoint(other.Root()))
		require.False(t, rd.IsMountpoint(inner))
	})

	t.Run("stacked", func(t *testing.T) {
		third := memfs.New()
		require.NoError(t, rd.Mount(ctx, "/mnt/inner", third.Root()))
		got, err := rd.Cross(inner)
		require.NoError(t, err)
		require.True(t, vfs.SameNode(third.Root(), got))

		up, err := rd.Up(third.Root())
		require.NoError(t, err)
		require.True(t, vfs.SameNode(other.Root(), up))

		var paths []string
		for _, m := range rd.Mounts() {
			paths = append(paths, m.Path)
		}
		if diff := cmp.Diff([]string{"/", "/mnt", "/mnt/inner"}, paths); diff != "" {
			t.Errorf("Mounts() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("errors", func(t *testing.T) {
		for _, tc := range []struct {
			path string
			want vfs.Kind
		}{
			{"/", vfs.InvalidPath},
			{"mnt", vfs.InvalidPath},
			{"/mnt/../mnt", vfs.InvalidPath},
			{"/missing", vfs.NotFound},
			{"/file", vfs.NotADirectory},
			{"/link", vfs.InvalidPath},
			{"/mnt", vfs.Busy},
		} {
			err := rd.Mount(ctx, tc.path, memfs.New().Root())
			require.ErrorIs(t, err, tc.want, "mount %s", tc.path)
		}
		// the same tree cannot appear twice
		mkdir(t, main.Root(), "again")
		require.ErrorIs(t, rd.Mount(ctx, "/again", other.Root()), vfs.Busy)
		require.ErrorIs(t, rd.Mount(ctx, "/again", main.Root()), vfs.Busy)
	})
}

func TestNewRootDirectory(t *testing.T) {
	f, err := memfs.New().Root().Create("f", vfs.TypeFile, 0, 0, 0o644)
	require.NoError(t, err)
	_, err = NewRootDirectory(f)
	require.ErrorIs(t, err, vfs.NotADirectory)
	_, err = NewRootDirectory(nil)
	require.ErrorIs(t, err, vfs.Internal)
}

func TestUnderlying(t *testing.T) {
	main := memfs.New()
	rd, err := NewRootDirectory(main.Root())
	require.NoError(t, err)
	require.Same(t, main.Root(), Underlying(rd))
	require.Same(t, main.Root(), Underlying(main.Root()))

	// parents are reported as the namespace root
	d := mkdir(t, main.Root(), "d")
	up, err := rd.Up(d)
	require.NoError(t, err)
	require.Same(t, rd, up)
}

func TestHasMountBelow(t *testing.T) {
	ctx := context.Background()
	main := memfs.New()
	a := mkdir(t, main.Root(), "a")
	b := mkdir(t, a, "b")
	mkdir(t, b, "mnt")
	c := mkdir(t, main.Root(), "c")
	file, err := main.Root().Create("file", vfs.TypeFile, 0, 0, 0o644)
	require.NoError(t, err)

	rd, err := NewRootDirectory(main.Root())
	require.NoError(t, err)
	require.False(t, rd.HasMountBelow(a))

	other := memfs.New()
	deep := mkdir(t, other.Root(), "deep")
	require.NoError(t, rd.Mount(ctx, "/a/b/mnt", other.Root()))
	require.NoError(t, rd.Mount(ctx, "/a/b/mnt/deep", memfs.New().Root()))

	for _, tc := range []struct {
		name string
		n    vfs.Node
		want bool
	}{
		{"root", rd, true},
		{"ancestor", a, true},
		{"parent", b, true},
		{"mounted root holding a mount", other.Root(), true},
		{"sibling", c, false},
		{"file", file, false},
		{"mount point itself", deep, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, rd.HasMountBelow(tc.n))
		})
	}
}
