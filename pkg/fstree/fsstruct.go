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

package fstree

import (
	"context"
	"path"
	"slices"
	"sync"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel/attribute"

	"chainguard.dev/fstree/pkg/mount"
	"chainguard.dev/fstree/pkg/vfs"
)

// DefaultUmask is the file-creation mask of a new FsStruct.
const DefaultUmask = 0o022

// FsStruct is a process's filesystem context.
//
// Methods taking a dir argument resolve relative paths from dir, or from
// the current directory when dir is nil. Absolute paths always start at
// the root.
type FsStruct struct {
	mu sync.Mutex

	root    *mount.RootDirectory
	cwd     vfs.Node
	cwdPath string
	umask   uint32
	users   int
	inExec  bool

	// source is the context CopyFrom took a reference on.
	source *FsStruct
}

// New returns an uninitialised context with one user.
func New() *FsStruct {
	return &FsStruct{
		cwdPath: "/",
		umask:   DefaultUmask,
		users:   1,
	}
}

// Init sets the root, and the current directory to it. A context can only
// be initialised once; later calls return ErrInitialized.
func (fs *FsStruct) Init(root *mount.RootDirectory) error {
	if root == nil {
		return &vfs.PathError{Op: "init", Kind: vfs.Internal, Err: ErrNotInitialized}
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.root != nil {
		return ErrInitialized
	}
	fs.root = root
	fs.cwd = root
	fs.cwdPath = "/"
	return nil
}

func (fs *FsStruct) readyLocked(op string) error {
	if fs.root == nil || fs.cwd == nil {
		return &vfs.PathError{Op: op, Kind: vfs.Internal, Err: ErrNotInitialized}
	}
	return nil
}

func (fs *FsStruct) startLocked(dir vfs.Node) (vfs.Node, string) {
	if dir == nil {
		return fs.cwd, fs.cwdPath
	}
	return dir, "."
}

func (fs *FsStruct) resolver() *resolver {
	return &resolver{root: fs.root}
}

// SetUmask replaces the file-creation mask and returns the previous one.
// Only permission bits are kept.
func (fs *FsStruct) SetUmask(mode uint32) uint32 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	old := fs.umask
	fs.umask = mode & vfs.ModePerm
	return old
}

func (fs *FsStruct) Umask() uint32 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.umask
}

// Share registers another user of the context, for processes cloned with
// a shared filesystem view, and returns it.
func (fs *FsStruct) Share() *FsStruct {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.users++
	return fs
}

// Release drops a user and returns how many remain. The last release
// drops the context's references to the namespace.
func (fs *FsStruct) Release() int {
	fs.mu.Lock()
	if fs.users == 0 {
		fs.mu.Unlock()
		return 0
	}
	fs.users--
	users := fs.users
	var source *FsStruct
	if users == 0 {
		fs.root, fs.cwd, fs.cwdPath = nil, nil, "/"
		source, fs.source = fs.source, nil
	}
	fs.mu.Unlock()

	if source != nil {
		source.Release()
	}
	return users
}

// Users returns the number of users sharing the context.
func (fs *FsStruct) Users() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.users
}

// CopyFrom makes fs see what other sees: same root, current directory and
// mask. fs holds a user reference on other until fs itself is released.
// Later changes to either context are not seen by the other.
func (fs *FsStruct) CopyFrom(other *FsStruct) {
	if other == nil || other == fs {
		return
	}
	other.mu.Lock()
	other.users++
	root, cwd, cwdPath, umask := other.root, other.cwd, other.cwdPath, other.umask
	other.mu.Unlock()

	fs.mu.Lock()
	fs.root, fs.cwd, fs.cwdPath, fs.umask = root, cwd, cwdPath, umask
	old := fs.source
	fs.source = other
	fs.mu.Unlock()

	if old != nil {
		old.Release()
	}
}

// Clone returns an independent context that starts out as a copy of fs.
func (fs *FsStruct) Clone() *FsStruct {
	c := New()
	c.CopyFrom(fs)
	return c
}

// SetInExec marks the context as being replaced by an exec. The flag is
// advisory; no operation consults it.
func (fs *FsStruct) SetInExec(v bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.inExec = v
}

func (fs *FsStruct) InExec() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inExec
}

// RootDir returns the root, or nil before Init.
func (fs *FsStruct) RootDir() *mount.RootDirectory {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.root
}

// CurrentDir returns the canonical absolute path of the current directory.
func (fs *FsStruct) CurrentDir() (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.readyLocked("getcwd"); err != nil {
		return "", err
	}
	return fs.cwdPath, nil
}

// AbsolutePath canonicalizes p lexically, relative to the current
// directory. The filesystem is not consulted and symlinks are not
// followed.
func (fs *FsStruct) AbsolutePath(p string) (string, error) {
	if err := checkPath("abspath", p); err != nil {
		return "", err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.absolutePathLocked(p), nil
}

func (fs *FsStruct) absolutePathLocked(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(fs.cwdPath, p)
}

// SetCurrentDir changes the current directory to p, which must be a
// directory with its owner-execute bit set.
func (fs *FsStruct) SetCurrentDir(ctx context.Context, p string) (err error) {
	ctx, span := startSpan(ctx, "fstree.SetCurrentDir", attribute.String("path", p))
	defer func() { endSpan(span, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.readyLocked("chdir"); err != nil {
		return err
	}
	if p == "" {
		return &vfs.PathError{Op: "chdir", Kind: vfs.NotFound}
	}
	if err := checkPath("chdir", p); err != nil {
		return err
	}

	abs := fs.absolutePathLocked(p)
	if abs == "/" {
		fs.cwd, fs.cwdPath = fs.root, "/"
		return nil
	}
	n, err := fs.resolver().walk(fs.root, "/", abs, 0)
	if err != nil {
		return err
	}
	attr, err := n.Attr()
	if err != nil {
		return vfs.Wrap(err, "chdir", abs, "")
	}
	if !attr.IsDir() {
		return vfs.Errorf(vfs.NotADirectory, "chdir", abs)
	}
	if !attr.OwnerExecutable() {
		return vfs.Errorf(vfs.PermissionDenied, "chdir", abs)
	}
	fs.cwd, fs.cwdPath = n, abs
	clog.FromContext(ctx).Debugf("chdir %s", abs)
	return nil
}

// Lookup resolves p to a node.
func (fs *FsStruct) Lookup(ctx context.Context, dir vfs.Node, p string, flags LookupFlags) (vfs.Node, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.readyLocked("lookup"); err != nil {
		return nil, err
	}
	start, base := fs.startLocked(dir)
	n, err := fs.resolver().walk(start, base, p, flags)
	if err != nil {
		clog.FromContext(ctx).Debugf("lookup %q: %v", p, err)
		return nil, err
	}
	return n, nil
}

type target struct {
	parent   vfs.Node
	dir      string
	name     string
	trailing bool
}

func (t target) String() string { return path.Join(t.dir, t.name) }

// parentLocked resolves the directory that will hold the last component
// of p.
func (fs *FsStruct) parentLocked(op string, dir vfs.Node, p string) (target, error) {
	if err := fs.readyLocked(op); err != nil {
		return target{}, err
	}
	if p == "" {
		return target{}, &vfs.PathError{Op: op, Kind: vfs.NotFound}
	}
	start, base := fs.startLocked(dir)
	parent, pdir, name, trailing, err := fs.resolver().walkParent(start, base, p)
	if err != nil {
		return target{}, err
	}
	return target{parent: parent, dir: pdir, name: name, trailing: trailing}, nil
}

// newEntryLocked is parentLocked for operations adding a name, which must
// not exist yet.
func (fs *FsStruct) newEntryLocked(op string, dir vfs.Node, p string) (target, error) {
	t, err := fs.parentLocked(op, dir, p)
	if err != nil {
		return target{}, err
	}
	switch t.name {
	case "", ".", "..":
		return target{}, vfs.Errorf(vfs.AlreadyExists, op, p)
	}
	if _, err := t.parent.Lookup(t.name); err == nil {
		return target{}, &vfs.PathError{Op: op, Path: t.dir, Name: t.name, Kind: vfs.AlreadyExists}
	} else if vfs.KindOf(err) != vfs.NotFound {
		return target{}, vfs.Wrap(err, op, t.dir, t.name)
	}
	return t, nil
}

// CreateFile creates a regular file or a directory at p with the mode
// bits not in the umask.
func (fs *FsStruct) CreateFile(ctx context.Context, dir vfs.Node, p string, typ vfs.NodeType, uid, gid, mode uint32) (n vfs.Node, err error) {
	ctx, span := startSpan(ctx, "fstree.CreateFile", attribute.String("path", p), attribute.String("type", typ.String()))
	defer func() { endSpan(span, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.createLocked(ctx, dir, p, typ, uid, gid, mode)
}

// CreateDir creates an empty directory at p. Intermediate directories
// must exist.
func (fs *FsStruct) CreateDir(ctx context.Context, dir vfs.Node, p string, uid, gid, mode uint32) (n vfs.Node, err error) {
	ctx, span := startSpan(ctx, "fstree.CreateDir", attribute.String("path", p))
	defer func() { endSpan(span, err) }()

	if p == "" {
		return nil, vfs.Errorf(vfs.InvalidPath, "mkdir", p)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.createLocked(ctx, dir, p, vfs.TypeDir, uid, gid, mode)
}

func (fs *FsStruct) createLocked(ctx context.Context, dir vfs.Node, p string, typ vfs.NodeType, uid, gid, mode uint32) (vfs.Node, error) {
	op := "create"
	switch typ {
	case vfs.TypeFile:
	case vfs.TypeDir:
		op = "mkdir"
	default:
		return nil, vfs.Errorf(vfs.InvalidPath, op, p)
	}
	t, err := fs.newEntryLocked(op, dir, p)
	if err != nil {
		return nil, err
	}
	if t.trailing && typ != vfs.TypeDir {
		return nil, vfs.Errorf(vfs.NotADirectory, op, p)
	}
	mode = mode & vfs.ModeAllBits &^ fs.umask
	n, err := t.parent.Create(t.name, typ, uid, gid, mode)
	if err != nil {
		return nil, vfs.Wrap(err, op, t.dir, t.name)
	}
	clog.FromContext(ctx).Debugf("created %s %s mode %04o", typ, t, mode)
	return n, nil
}

// CreateLink adds p as another name for node.
func (fs *FsStruct) CreateLink(ctx context.Context, dir vfs.Node, p string, node vfs.Node) (err error) {
	ctx, span := startSpan(ctx, "fstree.CreateLink", attribute.String("path", p))
	defer func() { endSpan(span, err) }()

	if node == nil {
		return vfs.Errorf(vfs.InvalidPath, "link", p)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t, err := fs.newEntryLocked("link", dir, p)
	if err != nil {
		return err
	}
	if t.trailing {
		return vfs.Errorf(vfs.NotADirectory, "link", p)
	}
	if node.Type() == vfs.TypeDir {
		return &vfs.PathError{Op: "link", Path: t.dir, Name: t.name, Kind: vfs.PermissionDenied}
	}
	if err := t.parent.Link(t.name, mount.Underlying(node)); err != nil {
		return vfs.Wrap(err, "link", t.dir, t.name)
	}
	clog.FromContext(ctx).Debugf("linked %s", t)
	return nil
}

// CreateSymlink creates a symlink at p whose content is linkTarget,
// verbatim.
func (fs *FsStruct) CreateSymlink(ctx context.Context, dir vfs.Node, p, linkTarget string, uid, gid, mode uint32) (n vfs.Node, err error) {
	ctx, span := startSpan(ctx, "fstree.CreateSymlink", attribute.String("path", p), attribute.String("target", linkTarget))
	defer func() { endSpan(span, err) }()

	if linkTarget == "" {
		return nil, vfs.Errorf(vfs.NotFound, "symlink", p)
	}
	if err := checkPath("symlink", linkTarget); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t, err := fs.newEntryLocked("symlink", dir, p)
	if err != nil {
		return nil, err
	}
	if t.trailing {
		return nil, vfs.Errorf(vfs.NotADirectory, "symlink", p)
	}
	n, err = t.parent.Symlink(t.name, linkTarget, uid, gid, mode&vfs.ModeAllBits&^fs.umask)
	if err != nil {
		return nil, vfs.Wrap(err, "symlink", t.dir, t.name)
	}
	clog.FromContext(ctx).Debugf("symlinked %s -> %s", t, linkTarget)
	return n, nil
}

// RemoveFile removes the non-directory at p. A final symlink is removed
// itself, not its target.
func (fs *FsStruct) RemoveFile(ctx context.Context, dir vfs.Node, p string) (err error) {
	ctx, span := startSpan(ctx, "fstree.RemoveFile", attribute.String("path", p))
	defer func() { endSpan(span, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	t, err := fs.parentLocked("unlink", dir, p)
	if err != nil {
		return err
	}
	switch t.name {
	case "", ".", "..":
		return vfs.Errorf(vfs.IsADirectory, "unlink", p)
	}
	n, err := t.parent.Lookup(t.name)
	if err != nil {
		return vfs.Wrap(err, "unlink", t.dir, t.name)
	}
	if n.Type() == vfs.TypeDir {
		return &vfs.PathError{Op: "unlink", Path: t.dir, Name: t.name, Kind: vfs.IsADirectory}
	}
	if t.trailing {
		return &vfs.PathError{Op: "unlink", Path: t.dir, Name: t.name, Kind: vfs.NotADirectory}
	}
	if err := t.parent.Unlink(t.name); err != nil {
		return vfs.Wrap(err, "unlink", t.dir, t.name)
	}
	if n.Type() == vfs.TypeSymlink {
		// The current directory may have been reached through the link.
		fs.fixCwdLocked(ctx)
	}
	clog.FromContext(ctx).Debugf("removed %s", t)
	return nil
}

// RemoveDir removes the empty directory at p. The root, mount points and
// the current directory cannot be removed. The directory must have its
// owner-write bit set.
func (fs *FsStruct) RemoveDir(ctx context.Context, dir vfs.Node, p string) (err error) {
	ctx, span := startSpan(ctx, "fstree.RemoveDir", attribute.String("path", p))
	defer func() { endSpan(span, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	t, err := fs.parentLocked("rmdir", dir, p)
	if err != nil {
		return err
	}
	switch t.name {
	case "":
		return vfs.Errorf(vfs.Busy, "rmdir", p)
	case ".", "..":
		return vfs.Errorf(vfs.InvalidPath, "rmdir", p)
	}
	n, err := t.parent.Lookup(t.name)
	if err != nil {
		return vfs.Wrap(err, "rmdir", t.dir, t.name)
	}
	if n.Type() != vfs.TypeDir {
		return &vfs.PathError{Op: "rmdir", Path: t.dir, Name: t.name, Kind: vfs.NotADirectory}
	}
	if err := fs.checkNotPinnedLocked("rmdir", t, n); err != nil {
		return err
	}
	attr, err := n.Attr()
	if err != nil {
		return vfs.Wrap(err, "rmdir", t.dir, t.name)
	}
	if !attr.OwnerWritable() {
		return &vfs.PathError{Op: "rmdir", Path: t.dir, Name: t.name, Kind: vfs.PermissionDenied}
	}
	empty, err := vfs.IsEmptyDir(n)
	if err != nil {
		return vfs.Wrap(err, "rmdir", t.dir, t.name)
	}
	if !empty {
		return &vfs.PathError{Op: "rmdir", Path: t.dir, Name: t.name, Kind: vfs.DirectoryNotEmpty}
	}
	if err := t.parent.Unlink(t.name); err != nil {
		return vfs.Wrap(err, "rmdir", t.dir, t.name)
	}
	clog.FromContext(ctx).Debugf("removed directory %s", t)
	return nil
}

// checkNotPinnedLocked refuses to let go of the directory entry n when it
// is a mount point or the current directory.
func (fs *FsStruct) checkNotPinnedLocked(op string, t target, n vfs.Node) error {
	if n.Type() != vfs.TypeDir {
		return nil
	}
	crossed, err := fs.root.Cross(n)
	if err != nil {
		return vfs.Wrap(err, op, t.dir, t.name)
	}
	if !vfs.SameNode(crossed, n) || vfs.SameNode(n, fs.cwd) {
		return &vfs.PathError{Op: op, Path: t.dir, Name: t.name, Kind: vfs.Busy}
	}
	return nil
}

// Rename moves oldPath to newPath, replacing a compatible destination: a
// non-directory over a non-directory, or a directory over an empty
// directory. Both paths are relative to the current directory.
func (fs *FsStruct) Rename(ctx context.Context, oldPath, newPath string) (err error) {
	ctx, span := startSpan(ctx, "fstree.Rename", attribute.String("old", oldPath), attribute.String("new", newPath))
	defer func() { endSpan(span, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	from, err := fs.parentLocked("rename", nil, oldPath)
	if err != nil {
		return err
	}
	to, err := fs.parentLocked("rename", nil, newPath)
	if err != nil {
		return err
	}
	for _, t := range []target{from, to} {
		switch t.name {
		case "", ".", "..":
			return &vfs.PathError{Op: "rename", Path: t.String(), Kind: vfs.Busy}
		}
	}

	src, err := from.parent.Lookup(from.name)
	if err != nil {
		return vfs.Wrap(err, "rename", from.dir, from.name)
	}
	if (from.trailing || to.trailing) && src.Type() != vfs.TypeDir {
		return &vfs.PathError{Op: "rename", Path: from.dir, Name: from.name, Kind: vfs.NotADirectory}
	}
	if src.Type() == vfs.TypeDir {
		crossed, err := fs.root.Cross(src)
		if err != nil {
			return vfs.Wrap(err, "rename", from.dir, from.name)
		}
		if !vfs.SameNode(crossed, src) {
			return &vfs.PathError{Op: "rename", Path: from.dir, Name: from.name, Kind: vfs.Busy}
		}
	}

	fromKey, err := vfs.KeyOf(from.parent)
	if err != nil {
		return vfs.Wrap(err, "rename", from.dir, "")
	}
	toKey, err := vfs.KeyOf(to.parent)
	if err != nil {
		return vfs.Wrap(err, "rename", to.dir, "")
	}
	if fromKey.Dev != toKey.Dev {
		return &vfs.PathError{Op: "rename", Path: from.String(), Name: to.String(), Kind: vfs.CrossDevice}
	}

	dst, err := to.parent.Lookup(to.name)
	switch {
	case err == nil:
		if vfs.SameNode(src, dst) {
			return nil
		}
		if err := fs.checkReplaceLocked(src, dst, to); err != nil {
			return err
		}
	case vfs.KindOf(err) != vfs.NotFound:
		return vfs.Wrap(err, "rename", to.dir, to.name)
	}

	var (
		cwdMoved  bool
		cwdSuffix []string
		toDir     string
	)
	if src.Type() == vfs.TypeDir {
		if err := checkNotBelow(src, to.parent, to); err != nil {
			return err
		}
		if err := fs.checkNoMountBelowLocked(src, from); err != nil {
			return err
		}
		if cwdSuffix, cwdMoved = fs.cwdBelowLocked(src); cwdMoved {
			if toDir, err = fs.pathOfLocked(to.parent); err != nil {
				return vfs.Wrap(err, "rename", to.dir, "")
			}
		}
	}

	if err := from.parent.Rename(from.name, mount.Underlying(to.parent), to.name); err != nil {
		return vfs.Wrap(err, "rename", from.dir, from.name)
	}
	if cwdMoved {
		fs.moveCwdLocked(ctx, path.Join(append([]string{toDir, to.name}, cwdSuffix...)...))
	} else {
		fs.fixCwdLocked(ctx)
	}
	clog.FromContext(ctx).Debugf("renamed %s to %s", from, to)
	return nil
}

func (fs *FsStruct) checkReplaceLocked(src, dst vfs.Node, to target) error {
	if err := fs.checkNotPinnedLocked("rename", to, dst); err != nil {
		return err
	}
	srcDir, dstDir := src.Type() == vfs.TypeDir, dst.Type() == vfs.TypeDir
	if srcDir != dstDir {
		return &vfs.PathError{Op: "rename", Path: to.dir, Name: to.name, Kind: vfs.AlreadyExists}
	}
	if dstDir {
		empty, err := vfs.IsEmptyDir(dst)
		if err != nil {
			return vfs.Wrap(err, "rename", to.dir, to.name)
		}
		if !empty {
			return &vfs.PathError{Op: "rename", Path: to.dir, Name: to.name, Kind: vfs.DirectoryNotEmpty}
		}
	}
	return nil
}

// checkNotBelow refuses to move the directory src into itself or one of
// its descendants.
func checkNotBelow(src, dir vfs.Node, to target) error {
	for cur := dir; ; {
		if vfs.SameNode(cur, src) {
			return &vfs.PathError{Op: "rename", Path: to.dir, Name: to.name, Kind: vfs.InvalidPath}
		}
		parent := cur.Parent()
		if parent == nil || vfs.SameNode(parent, cur) {
			return nil
		}
		cur = parent
	}
}

// cwdBelowLocked reports whether the current directory is dir or lies
// beneath it, and returns the names leading from dir down to it.
func (fs *FsStruct) cwdBelowLocked(dir vfs.Node) ([]string, bool) {
	var names []string
	for cur := fs.cwd; ; {
		if vfs.SameNode(cur, dir) {
			slices.Reverse(names)
			return names, true
		}
		if vfs.SameNode(cur, fs.root) {
			return nil, false
		}
		parent, err := fs.root.Up(cur)
		if err != nil || vfs.SameNode(parent, cur) {
			return nil, false
		}
		name, err := fs.nameInLocked(parent, cur)
		if err != nil {
			return nil, false
		}
		names = append(names, name)
		cur = parent
	}
}

// moveCwdLocked points the current directory at its new canonical path p
// after the directory it was in, or one of its ancestors, was moved.
// Backing trees that name nodes by path need the fresh node.
func (fs *FsStruct) moveCwdLocked(ctx context.Context, p string) {
	n, err := fs.resolver().walk(fs.root, "/", p, Directory)
	if err != nil {
		clog.FromContext(ctx).Warnf("current directory %s moved to %s but cannot be resolved: %v", fs.cwdPath, p, err)
		fs.fixCwdLocked(ctx)
		return
	}
	clog.FromContext(ctx).Debugf("current directory moved from %s to %s", fs.cwdPath, p)
	fs.cwd, fs.cwdPath = n, p
}

// checkNoMountBelowLocked refuses to move a directory that holds a mount
// point, whose recorded path would go stale.
func (fs *FsStruct) checkNoMountBelowLocked(src vfs.Node, from target) error {
	if fs.root.HasMountBelow(src) {
		return &vfs.PathError{Op: "rename", Path: from.dir, Name: from.name, Kind: vfs.Busy}
	}
	return nil
}

// fixCwdLocked rewrites the current directory's path after a change to
// the namespace made the old one stale.
func (fs *FsStruct) fixCwdLocked(ctx context.Context) {
	if n, err := fs.resolver().walk(fs.root, "/", fs.cwdPath, 0); err == nil && vfs.SameNode(n, fs.cwd) {
		return
	}
	p, err := fs.pathOfLocked(fs.cwd)
	if err != nil {
		clog.FromContext(ctx).Warnf("current directory %s is no longer reachable: %v", fs.cwdPath, err)
		return
	}
	clog.FromContext(ctx).Debugf("current directory moved from %s to %s", fs.cwdPath, p)
	fs.cwdPath = p
}

// pathOfLocked returns the canonical path of the directory n by walking
// up to the root.
func (fs *FsStruct) pathOfLocked(n vfs.Node) (string, error) {
	var names []string
	for cur := n; !vfs.SameNode(cur, fs.root); {
		parent, err := fs.root.Up(cur)
		if err != nil {
			return "", err
		}
		if vfs.SameNode(parent, cur) {
			return "", &vfs.PathError{Op: "getcwd", Kind: vfs.NotFound}
		}
		name, err := fs.nameInLocked(parent, cur)
		if err != nil {
			return "", err
		}
		names = append(names, name)
		cur = parent
	}
	slices.Reverse(names)
	return path.Join(append([]string{"/"}, names...)...), nil
}

// nameInLocked finds the name of the directory child in parent, looking
// through mounts.
func (fs *FsStruct) nameInLocked(parent, child vfs.Node) (string, error) {
	want, err := vfs.KeyOf(child)
	if err != nil {
		return "", err
	}
	entries, err := parent.ReadDir()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Type != vfs.TypeDir {
			continue
		}
		n, err := parent.Lookup(e.Name)
		if err != nil {
			continue
		}
		if n, err = fs.root.Cross(n); err != nil {
			continue
		}
		if k, err := vfs.KeyOf(n); err == nil && k == want {
			return e.Name, nil
		}
	}
	return "", &vfs.PathError{Op: "getcwd", Kind: vfs.NotFound}
}
