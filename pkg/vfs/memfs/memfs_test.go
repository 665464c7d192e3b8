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

package memfs

import (
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/fstree/pkg/vfs"
)

func TestCreate(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		var (
			m    = New()
			root = m.Root()
		)
		n, err := root.Create("a", vfs.TypeFile, 10, 20, 0o644)
		require.NoError(t, err)
		attr, err := n.Attr()
		require.NoError(t, err)
		require.Equal(t, vfs.TypeFile, attr.Type)
		require.Equal(t, uint32(10), attr.UID)
		require.Equal(t, uint32(20), attr.GID)
		require.Equal(t, uint32(0o644), attr.Mode)
		require.Equal(t, m.Dev(), attr.Dev)
		require.Equal(t, uint32(1), attr.Nlink)
	})
	t.Run("already exists", func(t *testing.T) {
		var (
			m    = New()
			root = m.Root()
		)
		_, err := root.Create("a", vfs.TypeDir, 0, 0, 0o755)
		require.NoError(t, err)
		_, err = root.Create("a", vfs.TypeFile, 0, 0, 0o644)
		require.ErrorIs(t, err, vfs.AlreadyExists)
	})
	t.Run("parent file", func(t *testing.T) {
		var (
			m    = New()
			root = m.Root()
		)
		f, err := root.Create("a", vfs.TypeFile, 0, 0, 0o644)
		require.NoError(t, err)
		_, err = f.Create("b", vfs.TypeFile, 0, 0, 0o644)
		require.ErrorIs(t, err, vfs.NotADirectory)
	})
	t.Run("bad names", func(t *testing.T) {
		root := New().Root()
		for _, name := range []string{"", ".", "..", "a/b", "a\x00"} {
			_, err := root.Create(name, vfs.TypeFile, 0, 0, 0o644)
			require.ErrorIs(t, err, vfs.InvalidPath, "name %q", name)
		}
	})
	t.Run("symlink type refused", func(t *testing.T) {
		_, err := New().Root().Create("l", vfs.TypeSymlink, 0, 0, 0o777)
		require.ErrorIs(t, err, vfs.InvalidPath)
	})
	t.Run("dir is empty", func(t *testing.T) {
		d, err := New().Root().Create("d", vfs.TypeDir, 0, 0, 0o755)
		require.NoError(t, err)
		empty, err := vfs.IsEmptyDir(d)
		require.NoError(t, err)
		require.True(t, empty)
		require.Same(t, d.Parent(), d.Parent().Parent())
	})
}

func TestRootIsOwnParent(t *testing.T) {
	m := New(WithRootAttr(1, 2, 0o700))
	require.Same(t, m.Root(), m.Root().Parent())
	attr, err := m.Root().Attr()
	require.NoError(t, err)
	require.Equal(t, uint32(0o700), attr.Mode)
	require.Equal(t, uint32(1), attr.UID)
}

func TestDistinctDevices(t *testing.T) {
	require.NotEqual(t, New().Dev(), New().Dev())
}

func TestSymlink(t *testing.T) {
	root := New().Root()
	l, err := root.Symlink("l", "../does/not/exist", 0, 0, 0o777)
	require.NoError(t, err)
	require.Equal(t, vfs.TypeSymlink, l.Type())
	target, err := l.Readlink()
	require.NoError(t, err)
	require.Equal(t, "../does/not/exist", target)

	_, err = root.Readlink()
	require.ErrorIs(t, err, vfs.InvalidPath)
}

func TestUnlink(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		require.ErrorIs(t, New().Root().Unlink("nope"), vfs.NotFound)
	})
	t.Run("non-empty dir", func(t *testing.T) {
		root := New().Root()
		d, err := root.Create("d", vfs.TypeDir, 0, 0, 0o755)
		require.NoError(t, err)
		_, err = d.Create("f", vfs.TypeFile, 0, 0, 0o644)
		require.NoError(t, err)
		require.ErrorIs(t, root.Unlink("d"), vfs.DirectoryNotEmpty)
		require.NoError(t, d.Unlink("f"))
		require.NoError(t, root.Unlink("d"))
		_, err = root.Lookup("d")
		require.ErrorIs(t, err, vfs.NotFound)
		// a removed directory cannot gain entries
		_, err = d.Create("g", vfs.TypeFile, 0, 0, 0o644)
		require.ErrorIs(t, err, vfs.NotFound)
	})
}

func TestLink(t *testing.T) {
	var (
		m    = New()
		root = m.Root()
	)
	f, err := root.Create("f", vfs.TypeFile, 0, 0, 0o644)
	require.NoError(t, err)
	require.NoError(t, root.Link("g", f))

	g, err := root.Lookup("g")
	require.NoError(t, err)
	require.True(t, vfs.SameNode(f, g))
	attr, err := g.Attr()
	require.NoError(t, err)
	require.Equal(t, uint32(2), attr.Nlink)

	require.ErrorIs(t, root.Link("g", f), vfs.AlreadyExists)

	d, err := root.Create("d", vfs.TypeDir, 0, 0, 0o755)
	require.NoError(t, err)
	require.ErrorIs(t, root.Link("d2", d), vfs.PermissionDenied)

	other := New().Root()
	require.ErrorIs(t, other.Link("f", f), vfs.CrossDevice)

	require.NoError(t, root.Unlink("f"))
	attr, err = g.Attr()
	require.NoError(t, err)
	require.Equal(t, uint32(1), attr.Nlink)
}

func TestRename(t *testing.T) {
	setup := func(t *testing.T) *Node {
		root := New().Root()
		a, err := root.Create("a", vfs.TypeDir, 0, 0, 0o755)
		require.NoError(t, err)
		_, err = a.Create("x", vfs.TypeFile, 0, 0, 0o644)
		require.NoError(t, err)
		_, err = a.Create("y", vfs.TypeFile, 0, 0, 0o644)
		require.NoError(t, err)
		_, err = a.Create("sub", vfs.TypeDir, 0, 0, 0o755)
		require.NoError(t, err)
		_, err = root.Create("empty", vfs.TypeDir, 0, 0, 0o755)
		require.NoError(t, err)
		return root
	}
	lookup := func(t *testing.T, n vfs.Node, names ...string) vfs.Node {
		for _, name := range names {
			var err error
			n, err = n.Lookup(name)
			require.NoError(t, err)
		}
		return n
	}

	t.Run("replace file", func(t *testing.T) {
		root := setup(t)
		a := lookup(t, root, "a")
		x := lookup(t, a, "x")
		require.NoError(t, a.Rename("x", a, "y"))
		_, err := a.Lookup("x")
		require.ErrorIs(t, err, vfs.NotFound)
		require.True(t, vfs.SameNode(x, lookup(t, a, "y")))
	})
	t.Run("move dir updates parent", func(t *testing.T) {
		root := setup(t)
		a := lookup(t, root, "a")
		sub := lookup(t, a, "sub")
		require.NoError(t, a.Rename("sub", root, "moved"))
		require.Same(t, root, sub.Parent())
		rootAttr, err := root.Attr()
		require.NoError(t, err)
		require.Equal(t, uint32(5), rootAttr.Nlink) // ., .., a, empty, moved
	})
	t.Run("dir over empty dir", func(t *testing.T) {
		root := setup(t)
		require.NoError(t, lookup(t, root, "a").Rename("sub", root, "empty"))
	})
	t.Run("dir over non-empty dir", func(t *testing.T) {
		root := setup(t)
		require.ErrorIs(t, root.Rename("empty", root, "a"), vfs.DirectoryNotEmpty)
	})
	t.Run("file over dir", func(t *testing.T) {
		root := setup(t)
		a := lookup(t, root, "a")
		require.ErrorIs(t, a.Rename("x", a, "sub"), vfs.IsADirectory)
	})
	t.Run("dir over file", func(t *testing.T) {
		root := setup(t)
		a := lookup(t, root, "a")
		require.ErrorIs(t, a.Rename("sub", a, "x"), vfs.NotADirectory)
	})
	t.Run("into itself", func(t *testing.T) {
		root := setup(t)
		a := lookup(t, root, "a")
		require.ErrorIs(t, root.Rename("a", lookup(t, a, "sub"), "a"), vfs.InvalidPath)
	})
	t.Run("same entry", func(t *testing.T) {
		root := setup(t)
		a := lookup(t, root, "a")
		require.NoError(t, a.Link("x2", lookup(t, a, "x")))
		require.NoError(t, a.Rename("x", a, "x2"))
		lookup(t, a, "x")
	})
	t.Run("cross device", func(t *testing.T) {
		root := setup(t)
		require.ErrorIs(t, root.Rename("a", New().Root(), "a"), vfs.CrossDevice)
	})
}

func TestReadDirSorted(t *testing.T) {
	root := New().Root()
	for _, name := range []string{"c", "a", "b"} {
		_, err := root.Create(name, vfs.TypeFile, 0, 0, 0o644)
		require.NoError(t, err)
	}
	_, err := root.Symlink("d", "a", 0, 0, 0o777)
	require.NoError(t, err)

	got, err := root.ReadDir()
	require.NoError(t, err)
	want := []vfs.DirEntry{
		{Name: "a", Type: vfs.TypeFile},
		{Name: "b", Type: vfs.TypeFile},
		{Name: "c", Type: vfs.TypeFile},
		{Name: "d", Type: vfs.TypeSymlink},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadDir() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadWrite(t *testing.T) {
	var (
		then = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		m    = New(WithClock(func() time.Time { return then }))
	)
	n, err := m.Root().Create("f", vfs.TypeFile, 0, 0, 0o644)
	require.NoError(t, err)
	f := n.(*Node)

	_, err = f.WriteAt([]byte("hello world"), 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("there"), 6)
	require.NoError(t, err)

	b, err := io.ReadAll(io.NewSectionReader(f, 0, 1<<20))
	require.NoError(t, err)
	require.Equal(t, "hello there", string(b))

	require.NoError(t, f.Truncate(5))
	attr, err := f.Attr()
	require.NoError(t, err)
	require.Equal(t, int64(5), attr.Size)
	require.Equal(t, then, attr.ModTime)

	_, err = m.Root().ReadAt(make([]byte, 1), 0)
	require.ErrorIs(t, err, vfs.IsADirectory)

	for name, err := range map[string]error{
		"read":     func() error { _, err := f.ReadAt(make([]byte, 1), -1); return err }(),
		"write":    func() error { _, err := f.WriteAt([]byte("x"), -1); return err }(),
		"truncate": f.Truncate(-1),
	} {
		require.ErrorIs(t, err, vfs.InvalidPath, "negative %s", name)
	}
}
