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

// BootConfig describes the namespace an FsStruct starts with.
type BootConfig struct {
	// Optional: The file-creation mask, as an octal string. Defaults to 0022.
	Umask string `json:"umask,omitempty" yaml:"umask,omitempty"`
	// Required: The mount table. Exactly one mount must be at "/".
	Mounts []MountConfig `json:"mounts" yaml:"mounts"`
	// Optional: Entries created, in order, once everything is mounted.
	Entries []EntryConfig `json:"entries,omitempty" yaml:"entries,omitempty"`
}

// Mount types.
const (
	TypeMemFS  = "memfs"
	TypeHostFS = "hostfs"
)

type MountConfig struct {
	// Required: The canonical absolute path to mount at.
	Path string `json:"path" yaml:"path"`
	// Required: The backing tree, memfs or hostfs.
	Type string `json:"type" yaml:"type"`
	// Optional for memfs: a tar archive, optionally gzip compressed, to
	// seed the tree from. Required for hostfs: the host directory.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

type EntryConfig struct {
	// Required: The absolute path of the entry.
	Path string `json:"path" yaml:"path"`
	// Required: file, dir or symlink.
	Type string `json:"type" yaml:"type"`
	// Optional: Permission bits as an octal string. Defaults to 0644 for
	// files, 0755 for directories and 0777 for symlinks.
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
	// Optional: The owning user.
	UID uint32 `json:"uid,omitempty" yaml:"uid,omitempty"`
	// Optional: The owning group.
	GID uint32 `json:"gid,omitempty" yaml:"gid,omitempty"`
	// Optional: The content of a file.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	// Required for symlinks: The link target, stored verbatim.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}
