//go:build linux

package hostfs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/fstree/pkg/vfs"
)

func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := New(dir)
	require.NoError(t, err)
	return f, dir
}

func TestNewRequiresDirectory(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	_, err := New(p)
	require.ErrorIs(t, err, vfs.NotADirectory)
	_, err = New(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, vfs.NotFound)
}

func TestCreateAndLookup(t *testing.T) {
	f, dir := newTestFS(t)
	root := f.Root()
	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())

	d, err := root.Create("d", vfs.TypeDir, uid, gid, 0o750)
	require.NoError(t, err)
	fi, err := os.Stat(filepath.Join(dir, "d"))
	require.NoError(t, err)
	require.True(t, fi.IsDir())
	require.Equal(t, os.FileMode(0o750), fi.Mode().Perm())

	n, err := d.Create("f", vfs.TypeFile, uid, gid, 0o640)
	require.NoError(t, err)
	attr, err := n.Attr()
	require.NoError(t, err)
	require.Equal(t, vfs.TypeFile, attr.Type)
	require.Equal(t, uint32(0o640), attr.Mode)
	require.Equal(t, f.Dev(), attr.Dev)

	_, err = d.Create("f", vfs.TypeFile, uid, gid, 0o640)
	require.ErrorIs(t, err, vfs.AlreadyExists)

	got, err := root.Lookup("d")
	require.NoError(t, err)
	require.True(t, vfs.SameNode(d, got))
	require.True(t, vfs.SameNode(root, got.Parent()))

	_, err = root.Lookup("nope")
	require.ErrorIs(t, err, vfs.NotFound)
	_, err = n.Lookup("x")
	require.ErrorIs(t, err, vfs.NotADirectory)
}

func TestSymlinkAndReadDir(t *testing.T) {
	f, _ := newTestFS(t)
	root := f.Root()
	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())

	_, err := root.Create("b", vfs.TypeFile, uid, gid, 0o644)
	require.NoError(t, err)
	_, err = root.Create("a", vfs.TypeDir, uid, gid, 0o755)
	require.NoError(t, err)
	l, err := root.Symlink("c", "a/../b", uid, gid, 0o777)
	require.NoError(t, err)
	target, err := l.Readlink()
	require.NoError(t, err)
	require.Equal(t, "a/../b", target)

	de, err := root.ReadDir()
	require.NoError(t, err)
	want := []vfs.DirEntry{
		{Name: "a", Type: vfs.TypeDir},
		{Name: "b", Type: vfs.TypeFile},
		{Name: "c", Type: vfs.TypeSymlink},
	}
	if diff := cmp.Diff(want, de); diff != "" {
		t.Errorf("ReadDir() mismatch (-want +got):\n%s", diff)
	}
}

func TestUnlinkLinkRename(t *testing.T) {
	f, dir := newTestFS(t)
	root := f.Root()
	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())

	d, err := root.Create("d", vfs.TypeDir, uid, gid, 0o755)
	require.NoError(t, err)
	x, err := d.Create("x", vfs.TypeFile, uid, gid, 0o644)
	require.NoError(t, err)

	require.ErrorIs(t, root.Unlink("d"), vfs.DirectoryNotEmpty)

	require.NoError(t, root.Link("x2", x))
	x2, err := root.Lookup("x2")
	require.NoError(t, err)
	require.True(t, vfs.SameNode(x, x2))
	require.ErrorIs(t, root.Link("d2", d), vfs.PermissionDenied)

	require.NoError(t, d.Rename("x", root, "x2"))
	_, err = os.Lstat(filepath.Join(dir, "d", "x"))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, root.Unlink("d"))
	require.NoError(t, root.Unlink("x2"))
	de, err := root.ReadDir()
	require.NoError(t, err)
	require.Empty(t, de)

	other, _ := newTestFS(t)
	require.ErrorIs(t, root.Rename("x2", other.Root(), "x2"), vfs.CrossDevice)
}

func TestReadWrite(t *testing.T) {
	f, dir := newTestFS(t)
	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())
	n, err := f.Root().Create("f", vfs.TypeFile, uid, gid, 0o644)
	require.NoError(t, err)
	file := n.(vfs.File)

	_, err = file.WriteAt([]byte("hello world"), 0)
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "f"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(b))

	require.NoError(t, file.Truncate(5))
	buf := make([]byte, 16)
	c, err := file.ReadAt(buf, 0)
	require.Equal(t, 5, c)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "hello", string(buf[:c]))

	_, err = f.Root().ReadAt(buf, 0)
	require.ErrorIs(t, err, vfs.IsADirectory)
}
