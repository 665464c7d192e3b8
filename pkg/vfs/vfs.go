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

// Package vfs defines the node abstraction that path resolution is built
// on. A Node is one entry of some backing tree (memory, host directory,
// ...); the set of node types is closed.
package vfs

import (
	"fmt"
	"io/fs"
	"time"
)

// NodeType is the kind of a filesystem entry.
type NodeType uint8

const (
	TypeFile NodeType = iota + 1
	TypeDir
	TypeSymlink
)

func (t NodeType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	case TypeSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("NodeType(%d)", uint8(t))
	}
}

// ParseNodeType is the inverse of NodeType.String.
func ParseNodeType(s string) (NodeType, error) {
	switch s {
	case "file":
		return TypeFile, nil
	case "dir", "directory":
		return TypeDir, nil
	case "symlink", "link":
		return TypeSymlink, nil
	default:
		return 0, fmt.Errorf("unknown node type %q", s)
	}
}

// Permission bits that may be stored on a node.
const (
	ModePerm    uint32 = 0o777
	ModeSetuid  uint32 = 0o4000
	ModeSetgid  uint32 = 0o2000
	ModeSticky  uint32 = 0o1000
	ModeAllBits        = ModePerm | ModeSetuid | ModeSetgid | ModeSticky
)

// Attr is the metadata of a node.
type Attr struct {
	Type    NodeType
	Mode    uint32 // permission bits only, see ModeAllBits
	UID     uint32
	GID     uint32
	Size    int64
	Nlink   uint32
	Dev     uint64 // identifies the backing tree
	Ino     uint64
	ModTime time.Time
}

func (a Attr) IsDir() bool { return a.Type == TypeDir }

// Key returns the identity of the node the attributes were taken from.
func (a Attr) Key() Key { return Key{Dev: a.Dev, Ino: a.Ino} }

// FileMode renders the attributes as an io/fs mode, type bits included.
func (a Attr) FileMode() fs.FileMode {
	mode := fs.FileMode(a.Mode & ModePerm)
	if a.Mode&ModeSetuid != 0 {
		mode |= fs.ModeSetuid
	}
	if a.Mode&ModeSetgid != 0 {
		mode |= fs.ModeSetgid
	}
	if a.Mode&ModeSticky != 0 {
		mode |= fs.ModeSticky
	}
	switch a.Type {
	case TypeDir:
		mode |= fs.ModeDir
	case TypeSymlink:
		mode |= fs.ModeSymlink
	}
	return mode
}

// OwnerExecutable reports whether the owner may search (directories) or
// execute (files) the node.
func (a Attr) OwnerExecutable() bool { return a.Mode&0o100 != 0 }

// OwnerWritable reports whether the owner may modify the node.
func (a Attr) OwnerWritable() bool { return a.Mode&0o200 != 0 }

// Key identifies a node independently of the Go value representing it.
// Backends may hand out a fresh value for every lookup, so pointer
// comparison is never used to decide whether two nodes are the same.
type Key struct {
	Dev uint64
	Ino uint64
}

func (k Key) String() string { return fmt.Sprintf("%d:%d", k.Dev, k.Ino) }

// DirEntry is one name in a directory listing.
type DirEntry struct {
	Name string
	Type NodeType
}

// Node is the capability set every backing tree provides.
//
// Directory operations (Lookup, Create, Symlink, Unlink, Link, Rename,
// ReadDir) fail with NotADirectory when the receiver is not a directory.
// Names passed to them are single path components; "." and ".." are not
// interpreted by nodes.
type Node interface {
	Type() NodeType
	Attr() (Attr, error)

	// Lookup returns the child called name without following symlinks.
	Lookup(name string) (Node, error)
	// Create adds a regular file or an empty directory.
	Create(name string, typ NodeType, uid, gid, mode uint32) (Node, error)
	// Symlink adds a symlink whose content is target, verbatim.
	Symlink(name, target string, uid, gid, mode uint32) (Node, error)
	// Unlink removes the name. Non-empty directories are refused.
	Unlink(name string) error
	// Link registers an existing node under name. Directories cannot be
	// linked.
	Link(name string, target Node) error
	// Rename moves oldName to newName in newParent, atomically replacing
	// an existing destination.
	Rename(oldName string, newParent Node, newName string) error

	Readlink() (string, error)
	ReadDir() ([]DirEntry, error)

	// Parent returns the directory containing this node. The root of a
	// backing tree is its own parent.
	Parent() Node
}

// File is implemented by regular-file nodes whose backing tree stores
// content.
type File interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
}

// KeyOf returns the identity of n.
func KeyOf(n Node) (Key, error) {
	attr, err := n.Attr()
	if err != nil {
		return Key{}, err
	}
	return attr.Key(), nil
}

// SameNode reports whether a and b denote the same entry. Errors reading
// attributes count as "not the same".
func SameNode(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ka, err := KeyOf(a)
	if err != nil {
		return false
	}
	kb, err := KeyOf(b)
	if err != nil {
		return false
	}
	return ka == kb
}

// IsEmptyDir reports whether n is a directory without entries.
func IsEmptyDir(n Node) (bool, error) {
	if n.Type() != TypeDir {
		return false, NotADirectory
	}
	entries, err := n.ReadDir()
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
