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

package cli_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chainguard.dev/fstree/internal/cli"
	"chainguard.dev/fstree/pkg/fstree"
	"chainguard.dev/fstree/pkg/vfs"
)

func TestResolveCmd(t *testing.T) {
	ctx := context.Background()
	fs := bootFS(t)
	require.NoError(t, fs.SetCurrentDir(ctx, "/etc"))

	var buf bytes.Buffer
	require.NoError(t, cli.ResolveCmd(ctx, &buf, fs, []string{"motd", "issue", "/data/log", "../etc/"}, 0))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	for i, want := range []string{"motd ", "issue ", "/data/log ", "../etc/ "} {
		require.True(t, strings.HasPrefix(lines[i], want), lines[i])
	}
	require.Contains(t, lines[0], "file")
	require.Contains(t, lines[1], "file")
	require.Contains(t, lines[2], "dir")
	require.Contains(t, lines[2], "0750")

	buf.Reset()
	require.NoError(t, cli.ResolveCmd(ctx, &buf, fs, []string{"issue"}, fstree.NoFollow))
	require.Contains(t, buf.String(), "symlink")
}

func TestResolveCmdErrors(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	err := cli.ResolveCmd(ctx, &buf, bootFS(t), []string{"/etc/motd", "/nope", "/etc/motd/x"}, 0)
	require.ErrorContains(t, err, "2 of 3 paths failed")
	require.ErrorIs(t, err, vfs.NotFound)
	require.ErrorIs(t, err, vfs.NotADirectory)
	require.Equal(t, 2, strings.Count(buf.String(), "error"), buf.String())
}
