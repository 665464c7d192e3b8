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

// Package fstree maintains per-process filesystem contexts.
//
// An FsStruct holds a process's view of the namespace: its root, its
// current directory (both as a node and as a canonical path), and its
// file-creation mask. Every path-taking operation resolves its argument
// against that view and then acts on the backing tree through the
// vfs.Node interface.
//
// Path resolution follows the usual rules:
//
//   - "/" starts at the root, anything else at the supplied directory or
//     the current directory;
//   - empty components are ignored, "." stays put and ".." goes to the
//     parent, never above the root;
//   - symlinks are followed in the middle of a path and, unless NoFollow
//     is passed, at its end; a trailing "/" requires a directory;
//   - at most 40 symlinks are followed per resolution.
//
// All operations on an FsStruct are serialized by its mutex, which is held
// for the whole call.
package fstree
