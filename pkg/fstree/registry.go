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
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel/attribute"

	"chainguard.dev/fstree/pkg/config"
	"chainguard.dev/fstree/pkg/mount"
	"chainguard.dev/fstree/pkg/vfs"
)

var (
	ErrInitialized    = errors.New("fstree: already initialized")
	ErrNotInitialized = errors.New("fstree: not initialized")
)

// BootInfo is what the subsystem is initialised from.
type BootInfo struct {
	// Config describes the namespace. A nil Config means config.Default().
	Config *config.BootConfig
}

// Registry holds the initial context that every other context is shared
// or cloned from.
type Registry struct {
	mu sync.Mutex
	fs *FsStruct
}

// Init builds the namespace described by boot and the initial context
// over it. It may be called once.
func (r *Registry) Init(ctx context.Context, cpuID int, boot BootInfo) (err error) {
	ctx, span := startSpan(ctx, "fstree.Init", attribute.Int("cpu", cpuID))
	defer func() { endSpan(span, err) }()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fs != nil {
		return ErrInitialized
	}

	log := clog.FromContext(ctx).With("cpu", cpuID)
	ctx = clog.WithLogger(ctx, log)
	log.Infof("initializing fstree on cpu %d", cpuID)

	bc := boot.Config
	if bc == nil {
		bc = config.Default()
	}
	if err := bc.Validate(); err != nil {
		return fmt.Errorf("validating boot configuration: %w", err)
	}

	fs, err := build(ctx, bc)
	if err != nil {
		return err
	}
	r.fs = fs
	return nil
}

// FS returns the initial context.
func (r *Registry) FS() (*FsStruct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fs == nil {
		return nil, ErrNotInitialized
	}
	return r.fs, nil
}

func build(ctx context.Context, bc *config.BootConfig) (*FsStruct, error) {
	log := clog.FromContext(ctx)

	rootMount, ok := bc.RootMount()
	if !ok {
		return nil, errors.New("no mount configured at /")
	}
	mainFS, err := rootMount.NewFilesystem(ctx)
	if err != nil {
		return nil, err
	}
	rd, err := mount.NewRootDirectory(mainFS)
	if err != nil {
		return nil, err
	}
	fs := New()
	if err := fs.Init(rd); err != nil {
		return nil, err
	}

	// Explicit modes are honoured while the namespace is populated.
	fs.SetUmask(0)

	// Parents before children.
	mounts := withoutPath(bc.Mounts, "/")
	sort.SliceStable(mounts, func(i, j int) bool {
		return strings.Count(mounts[i].Path, "/") < strings.Count(mounts[j].Path, "/")
	})
	for _, m := range mounts {
		if err := mkdirAll(ctx, fs, m.Path); err != nil {
			return nil, fmt.Errorf("mount %s: %w", m.Path, err)
		}
		n, err := m.NewFilesystem(ctx)
		if err != nil {
			return nil, err
		}
		if err := rd.Mount(ctx, m.Path, n); err != nil {
			return nil, err
		}
	}

	for _, e := range bc.Entries {
		if err := applyEntry(ctx, fs, e); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Path, err)
		}
	}

	fs.SetUmask(bc.UmaskValue())
	log.Infof("fstree ready: %d mounts, %d entries, umask %04o", len(rd.Mounts()), len(bc.Entries), fs.Umask())
	return fs, nil
}

func withoutPath(mounts []config.MountConfig, p string) []config.MountConfig {
	out := make([]config.MountConfig, 0, len(mounts))
	for _, m := range mounts {
		if m.Path != p {
			out = append(out, m)
		}
	}
	return out
}

// mkdirAll creates the missing directories of the absolute path p.
func mkdirAll(ctx context.Context, fs *FsStruct, p string) error {
	cur := "/"
	for _, name := range components(p) {
		cur = path.Join(cur, name)
		n, err := fs.Lookup(ctx, nil, cur, 0)
		switch {
		case err == nil:
			if n.Type() != vfs.TypeDir {
				return vfs.Errorf(vfs.NotADirectory, "mkdir", cur)
			}
		case vfs.KindOf(err) == vfs.NotFound:
			if _, err := fs.CreateDir(ctx, nil, cur, 0, 0, 0o755); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

func applyEntry(ctx context.Context, fs *FsStruct, e config.EntryConfig) error {
	mode := e.ModeValue()
	switch e.NodeType() {
	case vfs.TypeDir:
		_, err := fs.CreateDir(ctx, nil, e.Path, e.UID, e.GID, mode)
		return err
	case vfs.TypeSymlink:
		_, err := fs.CreateSymlink(ctx, nil, e.Path, e.Target, e.UID, e.GID, mode)
		return err
	case vfs.TypeFile:
		n, err := fs.CreateFile(ctx, nil, e.Path, vfs.TypeFile, e.UID, e.GID, mode)
		if err != nil {
			return err
		}
		if e.Content == "" {
			return nil
		}
		f, ok := n.(vfs.File)
		if !ok {
			return fmt.Errorf("%s does not store file content", e.Path)
		}
		_, err = f.WriteAt([]byte(e.Content), 0)
		return err
	default:
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
}

var global Registry

// Init initialises the process-wide registry, see Registry.Init.
func Init(ctx context.Context, cpuID int, boot BootInfo) error {
	return global.Init(ctx, cpuID, boot)
}

// InitFS returns the process-wide initial context.
func InitFS() (*FsStruct, error) {
	return global.FS()
}
