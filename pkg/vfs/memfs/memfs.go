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

// Package memfs is an in-memory backing tree, roughly what tmpfs is to a
// kernel.
package memfs

import (
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"chainguard.dev/fstree/pkg/vfs"
)

// Memory filesystems get anonymous device numbers (major 0), starting well
// above the small minors the host kernel hands out for its own tmpfs
// mounts.
const anonMinorBase = 0x80000

var nextMinor atomic.Uint32

// FS is one in-memory tree. All structural state is guarded by a single
// lock so that rename and link are atomic across directories.
type FS struct {
	mu   sync.RWMutex
	dev  uint64
	ino  atomic.Uint64
	root *Node
	now  func() time.Time
}

type Option func(*FS)

// WithClock overrides the time source used for modification times.
func WithClock(now func() time.Time) Option {
	return func(f *FS) { f.now = now }
}

// WithRootAttr sets the ownership and permission bits of the root
// directory. The default is root-owned 0755.
func WithRootAttr(uid, gid, mode uint32) Option {
	return func(f *FS) {
		f.root.uid, f.root.gid, f.root.mode = uid, gid, mode&vfs.ModeAllBits
	}
}

func New(opts ...Option) *FS {
	f := &FS{
		dev: unix.Mkdev(0, anonMinorBase+nextMinor.Add(1)),
		now: time.Now,
	}
	f.root = f.newNode(vfs.TypeDir, 0, 0, 0o755)
	f.root.parent = f.root
	f.root.nlink = 2
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Root returns the root directory of the tree.
func (f *FS) Root() *Node { return f.root }

// Dev returns the device number identifying this tree.
func (f *FS) Dev() uint64 { return f.dev }

func (f *FS) newNode(typ vfs.NodeType, uid, gid, mode uint32) *Node {
	n := &Node{
		fs:      f,
		ino:     f.ino.Add(1),
		typ:     typ,
		mode:    mode & vfs.ModeAllBits,
		uid:     uid,
		gid:     gid,
		nlink:   1,
		modTime: f.now(),
	}
	if typ == vfs.TypeDir {
		n.children = map[string]*Node{}
		n.nlink = 2
	}
	return n
}

// Node is an entry of an FS.
type Node struct {
	fs  *FS
	ino uint64
	typ vfs.NodeType

	// guarded by fs.mu
	mode     uint32
	uid, gid uint32
	nlink    uint32
	modTime  time.Time
	parent   *Node
	children map[string]*Node
	target   string
	data     []byte
}

var (
	_ vfs.Node = (*Node)(nil)
	_ vfs.File = (*Node)(nil)
)

func (n *Node) Type() vfs.NodeType { return n.typ }

func (n *Node) Attr() (vfs.Attr, error) {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	a := vfs.Attr{
		Type:    n.typ,
		Mode:    n.mode,
		UID:     n.uid,
		GID:     n.gid,
		Nlink:   n.nlink,
		Dev:     n.fs.dev,
		Ino:     n.ino,
		ModTime: n.modTime,
	}
	switch n.typ {
	case vfs.TypeFile:
		a.Size = int64(len(n.data))
	case vfs.TypeSymlink:
		a.Size = int64(len(n.target))
	case vfs.TypeDir:
		a.Size = int64(len(n.children))
	}
	return a, nil
}

func checkName(op, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return &vfs.PathError{Op: op, Name: name, Kind: vfs.InvalidPath}
	}
	return nil
}

// dirOp validates a directory operation on n. Callers hold fs.mu.
func (n *Node) dirOp(op, name string) error {
	if n.typ != vfs.TypeDir {
		return &vfs.PathError{Op: op, Name: name, Kind: vfs.NotADirectory}
	}
	if n.nlink == 0 {
		// removed while still referenced, e.g. as somebody's cwd
		return &vfs.PathError{Op: op, Name: name, Kind: vfs.NotFound}
	}
	return checkName(op, name)
}

func (n *Node) Lookup(name string) (vfs.Node, error) {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	if err := n.dirOp("lookup", name); err != nil {
		return nil, err
	}
	child, ok := n.children[name]
	if !ok {
		return nil, &vfs.PathError{Op: "lookup", Name: name, Kind: vfs.NotFound}
	}
	return child, nil
}

func (n *Node) Create(name string, typ vfs.NodeType, uid, gid, mode uint32) (vfs.Node, error) {
	if typ != vfs.TypeFile && typ != vfs.TypeDir {
		return nil, &vfs.PathError{Op: "create", Name: name, Kind: vfs.InvalidPath}
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	child, err := n.addLocked("create", name, typ, uid, gid, mode)
	if err != nil {
		return nil, err
	}
	return child, nil
}

func (n *Node) Symlink(name, target string, uid, gid, mode uint32) (vfs.Node, error) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	child, err := n.addLocked("symlink", name, vfs.TypeSymlink, uid, gid, mode)
	if err != nil {
		return nil, err
	}
	child.target = target
	return child, nil
}

func (n *Node) addLocked(op, name string, typ vfs.NodeType, uid, gid, mode uint32) (*Node, error) {
	if err := n.dirOp(op, name); err != nil {
		return nil, err
	}
	if _, ok := n.children[name]; ok {
		return nil, &vfs.PathError{Op: op, Name: name, Kind: vfs.AlreadyExists}
	}
	child := n.fs.newNode(typ, uid, gid, mode)
	child.parent = n
	n.children[name] = child
	if typ == vfs.TypeDir {
		n.nlink++
	}
	n.modTime = child.modTime
	return child, nil
}

func (n *Node) Unlink(name string) error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.dirOp("unlink", name); err != nil {
		return err
	}
	child, ok := n.children[name]
	if !ok {
		return &vfs.PathError{Op: "unlink", Name: name, Kind: vfs.NotFound}
	}
	if child.typ == vfs.TypeDir && len(child.children) != 0 {
		return &vfs.PathError{Op: "unlink", Name: name, Kind: vfs.DirectoryNotEmpty}
	}
	n.removeChildLocked(name, child)
	return nil
}

func (n *Node) removeChildLocked(name string, child *Node) {
	delete(n.children, name)
	if child.typ == vfs.TypeDir {
		child.nlink = 0
		n.nlink--
	} else if child.nlink > 0 {
		child.nlink--
	}
	n.modTime = n.fs.now()
}

func (n *Node) Link(name string, target vfs.Node) error {
	t, ok := target.(*Node)
	if !ok || t.fs != n.fs {
		return &vfs.PathError{Op: "link", Name: name, Kind: vfs.CrossDevice}
	}
	if t.typ == vfs.TypeDir {
		return &vfs.PathError{Op: "link", Name: name, Kind: vfs.PermissionDenied}
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.dirOp("link", name); err != nil {
		return err
	}
	if _, ok := n.children[name]; ok {
		return &vfs.PathError{Op: "link", Name: name, Kind: vfs.AlreadyExists}
	}
	if t.nlink == 0 {
		return &vfs.PathError{Op: "link", Name: name, Kind: vfs.NotFound}
	}
	n.children[name] = t
	t.nlink++
	n.modTime = n.fs.now()
	return nil
}

func (n *Node) Rename(oldName string, newParent vfs.Node, newName string) error {
	np, ok := newParent.(*Node)
	if !ok || np.fs != n.fs {
		return &vfs.PathError{Op: "rename", Name: oldName, Kind: vfs.CrossDevice}
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.dirOp("rename", oldName); err != nil {
		return err
	}
	if err := np.dirOp("rename", newName); err != nil {
		return err
	}
	src, ok := n.children[oldName]
	if !ok {
		return &vfs.PathError{Op: "rename", Name: oldName, Kind: vfs.NotFound}
	}
	if src.typ == vfs.TypeDir {
		for d := np; ; d = d.parent {
			if d == src {
				return &vfs.PathError{Op: "rename", Name: newName, Kind: vfs.InvalidPath}
			}
			if d == d.parent {
				break
			}
		}
	}
	if dst, ok := np.children[newName]; ok {
		if dst == src {
			return nil
		}
		switch {
		case src.typ == vfs.TypeDir && dst.typ != vfs.TypeDir:
			return &vfs.PathError{Op: "rename", Name: newName, Kind: vfs.NotADirectory}
		case src.typ != vfs.TypeDir && dst.typ == vfs.TypeDir:
			return &vfs.PathError{Op: "rename", Name: newName, Kind: vfs.IsADirectory}
		case dst.typ == vfs.TypeDir && len(dst.children) != 0:
			return &vfs.PathError{Op: "rename", Name: newName, Kind: vfs.DirectoryNotEmpty}
		}
		np.removeChildLocked(newName, dst)
	}
	delete(n.children, oldName)
	np.children[newName] = src
	if src.typ == vfs.TypeDir && n != np {
		n.nlink--
		np.nlink++
	}
	if src.typ == vfs.TypeDir || src.parent == n {
		src.parent = np
	}
	n.modTime = n.fs.now()
	np.modTime = n.modTime
	return nil
}

func (n *Node) Readlink() (string, error) {
	if n.typ != vfs.TypeSymlink {
		return "", &vfs.PathError{Op: "readlink", Kind: vfs.InvalidPath}
	}
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.target, nil
}

func (n *Node) ReadDir() ([]vfs.DirEntry, error) {
	if n.typ != vfs.TypeDir {
		return nil, &vfs.PathError{Op: "readdir", Kind: vfs.NotADirectory}
	}
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	de := make([]vfs.DirEntry, 0, len(n.children))
	for name, child := range n.children {
		de = append(de, vfs.DirEntry{Name: name, Type: child.typ})
	}
	// consistent order, like os.ReadDir
	sort.Slice(de, func(i, j int) bool {
		return de[i].Name < de[j].Name
	})
	return de, nil
}

func (n *Node) Parent() vfs.Node {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.parent
}

func (n *Node) fileOp(op string) error {
	switch n.typ {
	case vfs.TypeFile:
		return nil
	case vfs.TypeDir:
		return &vfs.PathError{Op: op, Kind: vfs.IsADirectory}
	default:
		return &vfs.PathError{Op: op, Kind: vfs.InvalidPath}
	}
}

// ReadAt implements io.ReaderAt for regular files.
func (n *Node) ReadAt(p []byte, off int64) (int, error) {
	if err := n.fileOp("read"); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, &vfs.PathError{Op: "read", Kind: vfs.InvalidPath}
	}
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	if off >= int64(len(n.data)) {
		return 0, io.EOF
	}
	c := copy(p, n.data[off:])
	if c < len(p) {
		return c, io.EOF
	}
	return c, nil
}

// WriteAt implements io.WriterAt for regular files, growing the file as
// needed.
func (n *Node) WriteAt(p []byte, off int64) (int, error) {
	if err := n.fileOp("write"); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, &vfs.PathError{Op: "write", Kind: vfs.InvalidPath}
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if end := off + int64(len(p)); end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[off:], p)
	n.modTime = n.fs.now()
	return len(p), nil
}

// Truncate changes the size of a regular file.
func (n *Node) Truncate(size int64) error {
	if err := n.fileOp("truncate"); err != nil {
		return err
	}
	if size < 0 {
		return &vfs.PathError{Op: "truncate", Kind: vfs.InvalidPath}
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if size <= int64(len(n.data)) {
		n.data = n.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, n.data)
		n.data = grown
	}
	n.modTime = n.fs.now()
	return nil
}

// Chmod replaces the permission bits.
func (n *Node) Chmod(mode uint32) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	n.mode = mode & vfs.ModeAllBits
}
