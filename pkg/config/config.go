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

// Package config loads boot configurations.
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"chainguard.dev/fstree/pkg/vfs"
)

const DefaultUmask = 0o022

// Default returns the configuration used when none is given: an empty
// memfs at "/".
func Default() *BootConfig {
	return &BootConfig{
		Mounts: []MountConfig{{Path: "/", Type: TypeMemFS}},
	}
}

// Load reads a configuration from a file.
func Load(configPath string) (*BootConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read boot configuration file: %w", err)
	}
	bc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	// Relative sources are relative to the configuration file.
	dir := filepath.Dir(configPath)
	for i, m := range bc.Mounts {
		if m.Source != "" && !filepath.IsAbs(m.Source) {
			bc.Mounts[i].Source = filepath.Join(dir, m.Source)
		}
	}
	return bc, nil
}

// Parse decodes a configuration and validates it.
func Parse(data []byte) (*BootConfig, error) {
	bc := &BootConfig{}
	if err := yaml.Unmarshal(data, bc); err != nil {
		return nil, fmt.Errorf("failed to parse boot configuration: %w", err)
	}
	if err := bc.Validate(); err != nil {
		return nil, err
	}
	return bc, nil
}

// ParseMode parses an octal permission string. Only permission, setuid,
// setgid and sticky bits are accepted.
func ParseMode(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: must be octal", s)
	}
	if uint32(v)&^vfs.ModeAllBits != 0 {
		return 0, fmt.Errorf("invalid mode %q: out of range", s)
	}
	return uint32(v), nil
}

func canonical(p string) bool {
	return path.IsAbs(p) && path.Clean(p) == p
}

// Do preflight checks and fill in defaults.
func (bc *BootConfig) Validate() error {
	if bc.Umask == "" {
		bc.Umask = fmt.Sprintf("%04o", DefaultUmask)
	}
	umask, err := ParseMode(bc.Umask)
	if err != nil {
		return fmt.Errorf("umask: %w", err)
	}
	if umask&^vfs.ModePerm != 0 {
		return fmt.Errorf("umask %q: only permission bits may be masked", bc.Umask)
	}

	seen := map[string]bool{}
	for i := range bc.Mounts {
		m := &bc.Mounts[i]
		if !canonical(m.Path) {
			return fmt.Errorf("mount %d: path %q is not a canonical absolute path", i, m.Path)
		}
		if seen[m.Path] {
			return fmt.Errorf("mount %s: duplicate mount point", m.Path)
		}
		seen[m.Path] = true

		switch m.Type {
		case TypeMemFS:
		case TypeHostFS:
			if m.Source == "" {
				return fmt.Errorf("mount %s: hostfs requires a source directory", m.Path)
			}
		case "":
			return fmt.Errorf("mount %s: type is required", m.Path)
		default:
			return fmt.Errorf("mount %s: unknown type %q", m.Path, m.Type)
		}
	}
	if !seen["/"] {
		return fmt.Errorf("no mount configured at /")
	}

	for i := range bc.Entries {
		e := &bc.Entries[i]
		if !canonical(e.Path) || e.Path == "/" {
			return fmt.Errorf("entry %d: path %q is not a canonical absolute path", i, e.Path)
		}
		typ, err := vfs.ParseNodeType(e.Type)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Path, err)
		}
		if e.Mode == "" {
			e.Mode = fmt.Sprintf("%04o", defaultMode(typ))
		}
		if _, err := ParseMode(e.Mode); err != nil {
			return fmt.Errorf("entry %s: %w", e.Path, err)
		}
		switch {
		case typ == vfs.TypeSymlink && e.Target == "":
			return fmt.Errorf("entry %s: symlink has no target", e.Path)
		case typ != vfs.TypeSymlink && e.Target != "":
			return fmt.Errorf("entry %s: target is only valid for symlinks", e.Path)
		case typ != vfs.TypeFile && e.Content != "":
			return fmt.Errorf("entry %s: content is only valid for files", e.Path)
		}
	}

	return nil
}

func defaultMode(typ vfs.NodeType) uint32 {
	switch typ {
	case vfs.TypeDir:
		return 0o755
	case vfs.TypeSymlink:
		return 0o777
	default:
		return 0o644
	}
}

// UmaskValue returns the parsed file-creation mask.
func (bc *BootConfig) UmaskValue() uint32 {
	if bc.Umask == "" {
		return DefaultUmask
	}
	v, err := ParseMode(bc.Umask)
	if err != nil {
		return DefaultUmask
	}
	return v & vfs.ModePerm
}

// RootMount returns the mount at "/".
func (bc *BootConfig) RootMount() (MountConfig, bool) {
	for _, m := range bc.Mounts {
		if m.Path == "/" {
			return m, true
		}
	}
	return MountConfig{}, false
}

// NodeType returns the parsed entry type.
func (e EntryConfig) NodeType() vfs.NodeType {
	typ, _ := vfs.ParseNodeType(e.Type)
	return typ
}

// ModeValue returns the parsed permission bits, or the type's default.
func (e EntryConfig) ModeValue() uint32 {
	if e.Mode == "" {
		return defaultMode(e.NodeType())
	}
	v, err := ParseMode(e.Mode)
	if err != nil {
		return defaultMode(e.NodeType())
	}
	return v
}
