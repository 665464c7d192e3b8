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

package config

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/fstree/pkg/vfs"
	"chainguard.dev/fstree/pkg/vfs/memfs"
)

// NewFilesystem builds the backing tree for m and returns its root.
func (m MountConfig) NewFilesystem(ctx context.Context) (vfs.Node, error) {
	log := clog.FromContext(ctx)

	switch m.Type {
	case TypeMemFS:
		f := memfs.New()
		if m.Source != "" {
			log.Infof("seeding %s from %s", m.Path, m.Source)
			if err := f.UnpackFile(ctx, m.Source); err != nil {
				return nil, fmt.Errorf("mount %s: %w", m.Path, err)
			}
		}
		return f.Root(), nil
	case TypeHostFS:
		log.Infof("mounting host directory %s at %s", m.Source, m.Path)
		n, err := newHostFS(m.Source)
		if err != nil {
			return nil, fmt.Errorf("mount %s: %w", m.Path, err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("mount %s: unknown type %q", m.Path, m.Type)
	}
}
