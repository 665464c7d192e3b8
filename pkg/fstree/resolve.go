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
	"path"
	"strings"

	"chainguard.dev/fstree/pkg/mount"
	"chainguard.dev/fstree/pkg/vfs"
)

// LookupFlags modify how the final component of a path is resolved.
type LookupFlags uint8

const (
	// NoFollow returns a final symlink instead of its target.
	NoFollow LookupFlags = 1 << iota
	// Directory requires the result to be a directory.
	Directory
)

// maxLinks bounds the symlinks followed during one resolution.
const maxLinks = 40

// resolver walks paths against a namespace. A resolver is used for a
// single operation; links counts the symlinks it has followed.
type resolver struct {
	root  *mount.RootDirectory
	links int
}

func checkPath(op, p string) error {
	if strings.IndexByte(p, 0) >= 0 {
		return &vfs.PathError{Op: op, Path: strings.ReplaceAll(p, "\x00", `\0`), Kind: vfs.InvalidPath}
	}
	return nil
}

// walk resolves p starting at start, whose path is base. base only
// serves error messages.
func (r *resolver) walk(start vfs.Node, base, p string, flags LookupFlags) (vfs.Node, error) {
	if err := checkPath("lookup", p); err != nil {
		return nil, err
	}
	cur, dir := start, base
	if path.IsAbs(p) {
		cur, dir = r.root, "/"
	}
	if strings.HasSuffix(p, "/") {
		flags = (flags | Directory) &^ NoFollow
	}

	names := components(p)
	for i, name := range names {
		if cur.Type() != vfs.TypeDir {
			return nil, &vfs.PathError{Op: "lookup", Path: dir, Kind: vfs.NotADirectory}
		}
		last := i == len(names)-1

		switch name {
		case ".":
		case "..":
			up, err := r.root.Up(cur)
			if err != nil {
				return nil, vfs.Wrap(err, "lookup", dir, name)
			}
			cur = up
		default:
			next, err := cur.Lookup(name)
			if err != nil {
				return nil, vfs.Wrap(err, "lookup", dir, name)
			}
			if next.Type() == vfs.TypeSymlink && (!last || flags&NoFollow == 0) {
				var sub LookupFlags
				if last {
					sub = flags &^ NoFollow
				}
				if next, err = r.follow(cur, dir, name, next, sub); err != nil {
					return nil, err
				}
			} else if next, err = r.root.Cross(next); err != nil {
				return nil, vfs.Wrap(err, "lookup", dir, name)
			}
			cur = next
		}
		dir = path.Join(dir, name)
	}

	if flags&Directory != 0 && cur.Type() != vfs.TypeDir {
		return nil, &vfs.PathError{Op: "lookup", Path: dir, Kind: vfs.NotADirectory}
	}
	return cur, nil
}

// follow resolves the symlink link, found as name in parent.
func (r *resolver) follow(parent vfs.Node, dir, name string, link vfs.Node, flags LookupFlags) (vfs.Node, error) {
	r.links++
	if r.links > maxLinks {
		return nil, &vfs.PathError{Op: "lookup", Path: dir, Name: name, Kind: vfs.Loop}
	}
	target, err := link.Readlink()
	if err != nil {
		return nil, vfs.Wrap(err, "readlink", dir, name)
	}
	if target == "" {
		return nil, &vfs.PathError{Op: "lookup", Path: dir, Name: name, Kind: vfs.NotFound}
	}
	return r.walk(parent, dir, target, flags)
}

// walkParent resolves everything but the last component of p. The last
// component is returned as name; it is empty when p names the root.
// trailing reports whether p ends in "/".
func (r *resolver) walkParent(start vfs.Node, base, p string) (parent vfs.Node, dir, name string, trailing bool, err error) {
	if err := checkPath("lookup", p); err != nil {
		return nil, "", "", false, err
	}
	trimmed := strings.TrimRight(p, "/")
	trailing = trimmed != p
	if trimmed == "" {
		if path.IsAbs(p) {
			return r.root, "/", "", trailing, nil
		}
		return nil, "", "", false, &vfs.PathError{Op: "lookup", Path: base, Kind: vfs.NotFound}
	}

	i := strings.LastIndexByte(trimmed, '/')
	prefix, name := trimmed[:i+1], trimmed[i+1:]
	switch {
	case prefix == "":
		parent, dir = start, base
	case path.IsAbs(prefix):
		dir = path.Clean(prefix)
	default:
		dir = path.Join(base, prefix)
	}
	if parent == nil {
		if parent, err = r.walk(start, base, prefix, Directory); err != nil {
			return nil, "", "", false, err
		}
	}
	if parent.Type() != vfs.TypeDir {
		return nil, "", "", false, &vfs.PathError{Op: "lookup", Path: dir, Kind: vfs.NotADirectory}
	}
	return parent, dir, name, trailing, nil
}

// components splits p on "/", dropping empty components.
func components(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}
