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
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/klauspost/pgzip"

	"chainguard.dev/fstree/pkg/vfs"
)

var gzipMagic = []byte{0x1f, 0x8b}

// UnpackFile populates the tree from a tar archive on the host, see Unpack.
func (f *FS) UnpackFile(ctx context.Context, archive string) error {
	file, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := f.Unpack(ctx, file); err != nil {
		return fmt.Errorf("unpacking %s: %w", archive, err)
	}
	return nil
}

// Unpack populates the tree from a tar stream, optionally gzip compressed.
// Directories named by entries but missing from the archive are created
// root-owned with mode 0755. Hard links must refer to entries earlier in
// the archive. Entry types other than directories, regular files,
// symlinks and hard links are skipped.
func (f *FS) Unpack(ctx context.Context, r io.Reader) error {
	log := clog.FromContext(ctx)

	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		gz, err := pgzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	} else {
		r = br
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}
		name := cleanEntryName(hdr.Name)
		if name == "" {
			continue
		}
		dir, base := path.Split(name)
		parent, err := f.mkdirAll(strings.TrimSuffix(dir, "/"))
		if err != nil {
			return fmt.Errorf("%s: %w", hdr.Name, err)
		}
		uid, gid, mode := uint32(hdr.Uid), uint32(hdr.Gid), uint32(hdr.Mode)&vfs.ModeAllBits

		switch hdr.Typeflag {
		case tar.TypeDir:
			existing, err := parent.Lookup(base)
			switch {
			case err == nil && existing.Type() == vfs.TypeDir:
				d := existing.(*Node)
				f.mu.Lock()
				d.uid, d.gid, d.mode = uid, gid, mode
				f.mu.Unlock()
			case err == nil:
				return fmt.Errorf("%s: %w", hdr.Name, vfs.AlreadyExists)
			default:
				if _, err := parent.Create(base, vfs.TypeDir, uid, gid, mode); err != nil {
					return fmt.Errorf("%s: %w", hdr.Name, err)
				}
			}
		case tar.TypeReg:
			n, err := parent.Create(base, vfs.TypeFile, uid, gid, mode)
			if err != nil {
				return fmt.Errorf("%s: %w", hdr.Name, err)
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				return fmt.Errorf("reading %s: %w", hdr.Name, err)
			}
			file := n.(*Node)
			f.mu.Lock()
			file.data = data
			f.mu.Unlock()
		case tar.TypeSymlink:
			if _, err := parent.Symlink(base, hdr.Linkname, uid, gid, mode); err != nil {
				return fmt.Errorf("%s: %w", hdr.Name, err)
			}
		case tar.TypeLink:
			target, err := f.walk(cleanEntryName(hdr.Linkname))
			if err != nil {
				return fmt.Errorf("%s: link target %s: %w", hdr.Name, hdr.Linkname, err)
			}
			if err := parent.Link(base, target); err != nil {
				return fmt.Errorf("%s: %w", hdr.Name, err)
			}
		default:
			log.Debugf("skipping %s: unsupported tar entry type %q", hdr.Name, hdr.Typeflag)
		}
	}
}

func cleanEntryName(name string) string {
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}

// walk finds the entry at a slash separated path relative to the root,
// without following symlinks.
func (f *FS) walk(name string) (*Node, error) {
	cur := f.root
	if name == "" {
		return cur, nil
	}
	for _, part := range strings.Split(name, "/") {
		child, err := cur.Lookup(part)
		if err != nil {
			return nil, err
		}
		cur = child.(*Node)
	}
	return cur, nil
}

func (f *FS) mkdirAll(dir string) (*Node, error) {
	cur := f.root
	if dir == "" {
		return cur, nil
	}
	for _, part := range strings.Split(dir, "/") {
		child, err := cur.Lookup(part)
		if vfs.KindOf(err) == vfs.NotFound {
			child, err = cur.Create(part, vfs.TypeDir, 0, 0, 0o755)
		}
		if err != nil {
			return nil, err
		}
		if child.Type() != vfs.TypeDir {
			return nil, &vfs.PathError{Op: "unpack", Path: dir, Name: part, Kind: vfs.NotADirectory}
		}
		cur = child.(*Node)
	}
	return cur, nil
}
