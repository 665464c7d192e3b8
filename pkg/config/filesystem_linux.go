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
	"chainguard.dev/fstree/pkg/vfs"
	"chainguard.dev/fstree/pkg/vfs/hostfs"
)

func newHostFS(dir string) (vfs.Node, error) {
	f, err := hostfs.New(dir)
	if err != nil {
		return nil, err
	}
	return f.Root(), nil
}
