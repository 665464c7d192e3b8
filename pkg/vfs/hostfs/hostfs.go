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

//go:build linux

// Package hostfs exposes a directory of the host as a backing tree.
//
// Node values are materialised per lookup and are only names: identity
// comes from the host's device and inode numbers. Atomicity of rename and
// link is whatever the host kernel provides.
package hostfs

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"chainguard.dev/fstree/pkg/vfs"
)

// FS is a host directory.
type FS struct {
	base string
	dev  uint64
	root *Node
}

// New opens dir as a backing tree. dir must be an existing directory.
func New(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	var st unix.Stat_t
	if err := unix.Stat(abs, &st); err != nil {
		return nil, wrapErrno(err, "open", abs, "")
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return nil, vfs.Errorf(vfs.NotADirectory, "open", abs)
	}
	f := &FS{base: abs, dev: uint64(st.Dev)}
	f.root = &Node{fs: f, typ: vfs.TypeDir}
	f.root.parent = f.root
	return f, nil
}

// Root returns the node for the directory the FS was opened on.
func (f *FS) Root() *Node { return f.root }

// Dev returns the host device the base directory lives on.
func (f *FS) Dev() uint64 { return f.dev }

// Path returns the host directory backing the tree.
func (f *FS) Path() string { return f.base }

// Node is a name inside an FS.
type Node struct {
	fs     *FS
	rel    string // slash separated, relative to fs.base; "" is the root
	typ    vfs.NodeType
	parent *Node
}

var (
	_ vfs.Node = (*Node)(nil)
	_ vfs.File = (*Node)(nil)
)

func (n *Node) hostPath() string {
	if n.rel == "" {
		return n.fs.base
	}
	return filepath.Join(n.fs.base, filepath.FromSlash(n.rel))
}

func (n *Node) childPath(name string) string {
	return filepath.Join(n.hostPath(), name)
}

func (n *Node) child(name string, typ vfs.NodeType) *Node {
	rel := name
	if n.rel != "" {
		rel = n.rel + "/" + name
	}
	return &Node{fs: n.fs, rel: rel, typ: typ, parent: n}
}

func wrapErrno(err error, op, path, name string) error {
	return &vfs.PathError{Op: op, Path: path, Name: name, Kind: vfs.KindOf(err), Err: err}
}

func typeOf(mode uint32) vfs.NodeType {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return vfs.TypeDir
	case unix.S_IFLNK:
		return vfs.TypeSymlink
	default:
		// devices, fifos and sockets carry no directory semantics
		return vfs.TypeFile
	}
}

func (n *Node) Type() vfs.NodeType { return n.typ }

func (n *Node) Attr() (vfs.Attr, error) {
	var st unix.Stat_t
	if err := unix.Lstat(n.hostPath(), &st); err != nil {
		return vfs.Attr{}, wrapErrno(err, "stat", n.hostPath(), "")
	}
	sec, nsec := st.Mtim.Unix()
	return vfs.Attr{
		Type:    typeOf(uint32(st.Mode)),
		Mode:    uint32(st.Mode) & vfs.ModeAllBits,
		UID:     st.Uid,
		GID:     st.Gid,
		Size:    st.Size,
		Nlink:   uint32(st.Nlink),
		Dev:     uint64(st.Dev),
		Ino:     uint64(st.Ino),
		ModTime: time.Unix(sec, nsec),
	}, nil
}

func (n *Node) dirOp(op, name string) error {
	if n.typ != vfs.TypeDir {
		return &vfs.PathError{Op: op, Path: n.hostPath(), Name: name, Kind: vfs.NotADirectory}
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return &vfs.PathError{Op: op, Path: n.hostPath(), Name: name, Kind: vfs.InvalidPath}
	}
	return nil
}

func (n *Node) Lookup(name string) (vfs.Node, error) {
	if err := n.dirOp("lookup", name); err != nil {
		return nil, err
	}
	var st unix.Stat_t
	if err := unix.Lstat(n.childPath(name), &st); err != nil {
		return nil, wrapErrno(err, "lookup", n.hostPath(), name)
	}
	return n.child(name, typeOf(uint32(st.Mode))), nil
}

// setOwnerMode applies the requested ownership and exact permission bits;
// the host umask has already been applied by the kernel at creation.
func setOwnerMode(p string, typ vfs.NodeType, uid, gid, mode uint32) error {
	var st unix.Stat_t
	if err := unix.Lstat(p, &st); err != nil {
		return err
	}
	if st.Uid != uid || st.Gid != gid {
		if err := unix.Lchown(p, int(uid), int(gid)); err != nil {
			return err
		}
	}
	if typ != vfs.TypeSymlink && uint32(st.Mode)&vfs.ModeAllBits != mode&vfs.ModeAllBits {
		return unix.Chmod(p, mode&vfs.ModeAllBits)
	}
	return nil
}

func (n *Node) Create(name string, typ vfs.NodeType, uid, gid, mode uint32) (vfs.Node, error) {
	if err := n.dirOp("create", name); err != nil {
		return nil, err
	}
	p := n.childPath(name)
	switch typ {
	case vfs.TypeFile:
		fd, err := unix.Open(p, unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY|unix.O_CLOEXEC, mode&vfs.ModePerm)
		if err != nil {
			return nil, wrapErrno(err, "create", n.hostPath(), name)
		}
		if err := unix.Close(fd); err != nil {
			return nil, wrapErrno(err, "create", n.hostPath(), name)
		}
	case vfs.TypeDir:
		if err := unix.Mkdir(p, mode&vfs.ModePerm); err != nil {
			return nil, wrapErrno(err, "create", n.hostPath(), name)
		}
	default:
		return nil, &vfs.PathError{Op: "create", Path: n.hostPath(), Name: name, Kind: vfs.InvalidPath}
	}
	if err := setOwnerMode(p, typ, uid, gid, mode); err != nil {
		// do not leave an entry behind that the caller was told failed
		if typ == vfs.TypeDir {
			_ = unix.Rmdir(p)
		} else {
			_ = unix.Unlink(p)
		}
		return nil, wrapErrno(err, "create", n.hostPath(), name)
	}
	return n.child(name, typ), nil
}

func (n *Node) Symlink(name, target string, uid, gid, mode uint32) (vfs.Node, error) {
	if err := n.dirOp("symlink", name); err != nil {
		return nil, err
	}
	p := n.childPath(name)
	if err := unix.Symlink(target, p); err != nil {
		return nil, wrapErrno(err, "symlink", n.hostPath(), name)
	}
	if err := setOwnerMode(p, vfs.TypeSymlink, uid, gid, mode); err != nil {
		_ = unix.Unlink(p)
		return nil, wrapErrno(err, "symlink", n.hostPath(), name)
	}
	return n.child(name, vfs.TypeSymlink), nil
}

func (n *Node) Unlink(name string) error {
	if err := n.dirOp("unlink", name); err != nil {
		return err
	}
	p := n.childPath(name)
	var st unix.Stat_t
	if err := unix.Lstat(p, &st); err != nil {
		return wrapErrno(err, "unlink", n.hostPath(), name)
	}
	var err error
	if typeOf(uint32(st.Mode)) == vfs.TypeDir {
		err = unix.Rmdir(p)
		if errors.Is(err, unix.EEXIST) {
			// some systems report a non-empty directory as EEXIST
			err = unix.ENOTEMPTY
		}
	} else {
		err = unix.Unlink(p)
	}
	if err != nil {
		return wrapErrno(err, "unlink", n.hostPath(), name)
	}
	return nil
}

func (n *Node) Link(name string, target vfs.Node) error {
	t, ok := target.(*Node)
	if !ok || t.fs != n.fs {
		return &vfs.PathError{Op: "link", Path: n.hostPath(), Name: name, Kind: vfs.CrossDevice}
	}
	if t.typ == vfs.TypeDir {
		return &vfs.PathError{Op: "link", Path: n.hostPath(), Name: name, Kind: vfs.PermissionDenied}
	}
	if err := n.dirOp("link", name); err != nil {
		return err
	}
	if err := unix.Link(t.hostPath(), n.childPath(name)); err != nil {
		return wrapErrno(err, "link", n.hostPath(), name)
	}
	return nil
}

func (n *Node) Rename(oldName string, newParent vfs.Node, newName string) error {
	np, ok := newParent.(*Node)
	if !ok || np.fs != n.fs {
		return &vfs.PathError{Op: "rename", Path: n.hostPath(), Name: oldName, Kind: vfs.CrossDevice}
	}
	if err := n.dirOp("rename", oldName); err != nil {
		return err
	}
	if err := np.dirOp("rename", newName); err != nil {
		return err
	}
	if err := unix.Rename(n.childPath(oldName), np.childPath(newName)); err != nil {
		if errors.Is(err, unix.EEXIST) {
			err = unix.ENOTEMPTY
		}
		return wrapErrno(err, "rename", n.hostPath(), oldName)
	}
	return nil
}

func (n *Node) Readlink() (string, error) {
	if n.typ != vfs.TypeSymlink {
		return "", &vfs.PathError{Op: "readlink", Path: n.hostPath(), Kind: vfs.InvalidPath}
	}
	buf := make([]byte, 256)
	for {
		c, err := unix.Readlink(n.hostPath(), buf)
		if err != nil {
			return "", wrapErrno(err, "readlink", n.hostPath(), "")
		}
		if c < len(buf) {
			return string(buf[:c]), nil
		}
		buf = make([]byte, 2*len(buf))
	}
}

func (n *Node) ReadDir() ([]vfs.DirEntry, error) {
	if n.typ != vfs.TypeDir {
		return nil, &vfs.PathError{Op: "readdir", Path: n.hostPath(), Kind: vfs.NotADirectory}
	}
	fd, err := unix.Open(n.hostPath(), unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, wrapErrno(err, "readdir", n.hostPath(), "")
	}
	defer unix.Close(fd)

	var names []string
	buf := make([]byte, 8192)
	for {
		c, err := unix.ReadDirent(fd, buf)
		if err != nil {
			return nil, wrapErrno(err, "readdir", n.hostPath(), "")
		}
		if c == 0 {
			break
		}
		_, _, names = unix.ParseDirent(buf[:c], -1, names)
	}

	de := make([]vfs.DirEntry, 0, len(names))
	for _, name := range names {
		var st unix.Stat_t
		if err := unix.Lstat(n.childPath(name), &st); err != nil {
			if errors.Is(err, unix.ENOENT) {
				continue // removed since the listing was read
			}
			return nil, wrapErrno(err, "readdir", n.hostPath(), name)
		}
		de = append(de, vfs.DirEntry{Name: name, Type: typeOf(uint32(st.Mode))})
	}
	sort.Slice(de, func(i, j int) bool {
		return de[i].Name < de[j].Name
	})
	return de, nil
}

func (n *Node) Parent() vfs.Node { return n.parent }

func (n *Node) open(op string, flags int) (int, error) {
	if n.typ == vfs.TypeDir {
		return -1, &vfs.PathError{Op: op, Path: n.hostPath(), Kind: vfs.IsADirectory}
	}
	fd, err := unix.Open(n.hostPath(), flags|unix.O_CLOEXEC|unix.O_NOFOLLOW, 0)
	if err != nil {
		return -1, wrapErrno(err, op, n.hostPath(), "")
	}
	return fd, nil
}

func (n *Node) ReadAt(p []byte, off int64) (int, error) {
	fd, err := n.open("read", unix.O_RDONLY)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)
	c, err := unix.Pread(fd, p, off)
	if err != nil {
		return 0, wrapErrno(err, "read", n.hostPath(), "")
	}
	if c < len(p) {
		return c, io.EOF
	}
	return c, nil
}

func (n *Node) WriteAt(p []byte, off int64) (int, error) {
	fd, err := n.open("write", unix.O_WRONLY)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)
	c, err := unix.Pwrite(fd, p, off)
	if err != nil {
		return c, wrapErrno(err, "write", n.hostPath(), "")
	}
	return c, nil
}

func (n *Node) Truncate(size int64) error {
	if n.typ == vfs.TypeDir {
		return &vfs.PathError{Op: "truncate", Path: n.hostPath(), Kind: vfs.IsADirectory}
	}
	if err := unix.Truncate(n.hostPath(), size); err != nil {
		return wrapErrno(err, "truncate", n.hostPath(), "")
	}
	return nil
}

func (n *Node) String() string {
	return fmt.Sprintf("hostfs:%s", n.hostPath())
}
