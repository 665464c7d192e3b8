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

// Package mount joins backing trees into one namespace.
//
// A RootDirectory is the main tree's root plus a table of directories that
// other trees are mounted over. Path resolution consults the table with
// Cross when it steps into a directory and with Up when it steps out of a
// tree's root.
package mount

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/fstree/pkg/vfs"
)

type mountEntry struct {
	path       string
	mountpoint vfs.Node
	root       vfs.Node
}

// MountInfo describes one entry of the mount table.
type MountInfo struct {
	Path string
	Dev  uint64
	Root vfs.Node
}

// RootDirectory is the root of the namespace. It is itself the main
// tree's root node.
type RootDirectory struct {
	vfs.Node

	mu      sync.RWMutex
	mounts  []*mountEntry
	covered map[vfs.Key]*mountEntry // by mountpoint
	roots   map[vfs.Key]*mountEntry // by mounted root
}

// NewRootDirectory returns a namespace with main at "/". main must be a
// directory.
func NewRootDirectory(main vfs.Node) (*RootDirectory, error) {
	if main == nil {
		return nil, vfs.Errorf(vfs.Internal, "mount", "/")
	}
	if main.Type() != vfs.TypeDir {
		return nil, vfs.Errorf(vfs.NotADirectory, "mount", "/")
	}
	return &RootDirectory{
		Node:    main,
		covered: map[vfs.Key]*mountEntry{},
		roots:   map[vfs.Key]*mountEntry{},
	}, nil
}

// Mount places the tree rooted at fs over the directory at p. p must be a
// canonical absolute path other than "/" naming an existing directory;
// symlinks on the way are not followed.
func (r *RootDirectory) Mount(ctx context.Context, p string, fs vfs.Node) error {
	log := clog.FromContext(ctx)

	if p == "/" || !path.IsAbs(p) || path.Clean(p) != p {
		return vfs.Errorf(vfs.InvalidPath, "mount", p)
	}
	if fs == nil || fs.Type() != vfs.TypeDir {
		return vfs.Errorf(vfs.NotADirectory, "mount", p)
	}
	rootKey, err := vfs.KeyOf(fs)
	if err != nil {
		return vfs.Wrap(err, "mount", p, "")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roots[rootKey]; ok {
		return vfs.Errorf(vfs.Busy, "mount", p)
	}
	for _, e := range r.mounts {
		if e.path == p {
			return vfs.Errorf(vfs.Busy, "mount", p)
		}
	}
	mp, err := r.walkLocked(p)
	if err != nil {
		return err
	}
	mpKey, err := vfs.KeyOf(mp)
	if err != nil {
		return vfs.Wrap(err, "mount", p, "")
	}
	if _, ok := r.covered[mpKey]; ok {
		return vfs.Errorf(vfs.Busy, "mount", p)
	}
	mainKey, err := vfs.KeyOf(r.Node)
	if err != nil {
		return vfs.Wrap(err, "mount", p, "")
	}
	if rootKey == mainKey {
		return vfs.Errorf(vfs.Busy, "mount", p)
	}

	e := &mountEntry{path: p, mountpoint: mp, root: fs}
	r.mounts = append(r.mounts, e)
	r.covered[mpKey] = e
	r.roots[rootKey] = e
	log.Debugf("mounted %s (dev %d)", p, rootKey.Dev)
	return nil
}

// walkLocked finds the directory at an absolute canonical path, crossing
// existing mounts.
func (r *RootDirectory) walkLocked(p string) (vfs.Node, error) {
	var (
		cur  = r.Node
		seen = "/"
	)
	for _, name := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		next, err := cur.Lookup(name)
		if err != nil {
			return nil, vfs.Wrap(err, "mount", seen, name)
		}
		switch next.Type() {
		case vfs.TypeSymlink:
			return nil, &vfs.PathError{Op: "mount", Path: seen, Name: name, Kind: vfs.InvalidPath}
		case vfs.TypeFile:
			return nil, &vfs.PathError{Op: "mount", Path: seen, Name: name, Kind: vfs.NotADirectory}
		}
		if next, err = r.crossLocked(next); err != nil {
			return nil, err
		}
		cur = next
		seen = path.Join(seen, name)
	}
	return cur, nil
}

// Contains reports whether p is a mount point. "/" always is.
func (r *RootDirectory) Contains(p string) bool {
	p = path.Clean(p)
	if p == "/" {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.mounts {
		if e.path == p {
			return true
		}
	}
	return false
}

// IsMountpoint reports whether n is the root of the namespace or of a
// mounted tree.
func (r *RootDirectory) IsMountpoint(n vfs.Node) bool {
	k, err := vfs.KeyOf(n)
	if err != nil {
		return false
	}
	if main, err := vfs.KeyOf(r.Node); err == nil && main == k {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roots[k]
	return ok
}

// Cross returns the root of the tree mounted over n, or n itself.
func (r *RootDirectory) Cross(n vfs.Node) (vfs.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.crossLocked(n)
}

func (r *RootDirectory) crossLocked(n vfs.Node) (vfs.Node, error) {
	if n.Type() != vfs.TypeDir || len(r.covered) == 0 {
		return n, nil
	}
	// Mounts stack when a tree is mounted over a directory of another
	// mounted tree's root.
	for range len(r.mounts) + 1 {
		k, err := vfs.KeyOf(n)
		if err != nil {
			return nil, err
		}
		e, ok := r.covered[k]
		if !ok {
			return n, nil
		}
		n = e.root
	}
	return nil, &vfs.PathError{Op: "cross", Kind: vfs.Internal, Err: errors.New("cycle in mount table")}
}

// Up returns the parent of n in the namespace. The namespace root is its
// own parent and the root of a mounted tree leads to the directory above
// its mount point.
func (r *RootDirectory) Up(n vfs.Node) (vfs.Node, error) {
	main, err := vfs.KeyOf(r.Node)
	if err != nil {
		return nil, err
	}
	k, err := vfs.KeyOf(n)
	if err != nil {
		return nil, err
	}
	if k == main {
		return r, nil
	}

	r.mu.RLock()
	parent := n.Parent()
	if e, ok := r.roots[k]; ok {
		parent = e.mountpoint.Parent()
	}
	parent, err = r.crossLocked(parent)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if pk, err := vfs.KeyOf(parent); err == nil && pk == main {
		return r, nil
	}
	return parent, nil
}

// HasMountBelow reports whether a mount point lies strictly beneath the
// directory n.
func (r *RootDirectory) HasMountBelow(n vfs.Node) bool {
	if n.Type() != vfs.TypeDir {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.mounts {
		for cur := e.mountpoint; ; {
			parent := cur.Parent()
			if k, err := vfs.KeyOf(cur); err == nil {
				if re, ok := r.roots[k]; ok {
					parent = re.mountpoint.Parent()
				}
			}
			parent, err := r.crossLocked(parent)
			if err != nil || vfs.SameNode(parent, cur) {
				break
			}
			if vfs.SameNode(parent, n) {
				return true
			}
			cur = parent
		}
	}
	return false
}

// Mounts returns the mount table sorted by path, "/" first.
func (r *RootDirectory) Mounts() []MountInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]MountInfo, 0, len(r.mounts)+1)
	out = append(out, MountInfo{Path: "/", Dev: devOf(r.Node), Root: r.Node})
	for _, e := range r.mounts {
		out = append(out, MountInfo{Path: e.path, Dev: devOf(e.root), Root: e.root})
	}
	sort.SliceStable(out[1:], func(i, j int) bool {
		return out[i+1].Path < out[j+1].Path
	})
	return out
}

// Underlying returns the backing tree's own node for n, unwrapping a
// RootDirectory. Nodes passed as arguments to another node's methods must
// be unwrapped.
func Underlying(n vfs.Node) vfs.Node {
	if r, ok := n.(*RootDirectory); ok {
		return r.Node
	}
	return n
}

func devOf(n vfs.Node) uint64 {
	k, err := vfs.KeyOf(n)
	if err != nil {
		return 0
	}
	return k.Dev
}

func (r *RootDirectory) String() string {
	return fmt.Sprintf("rootdir(%d mounts)", len(r.Mounts()))
}
