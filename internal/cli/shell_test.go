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
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chainguard.dev/fstree/internal/cli"
	"chainguard.dev/fstree/pkg/config"
	"chainguard.dev/fstree/pkg/fstree"
	"chainguard.dev/fstree/pkg/vfs"
)

func bootFS(t *testing.T) *fstree.FsStruct {
	t.Helper()
	bc, err := config.Load(filepath.Join("testdata", "boot.yaml"))
	require.NoError(t, err)
	var r fstree.Registry
	require.NoError(t, r.Init(context.Background(), 0, fstree.BootInfo{Config: bc}))
	fs, err := r.FS()
	require.NoError(t, err)
	return fs
}

func TestShellExec(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	sh := cli.NewShell(bootFS(t), &buf)

	run := func(line string) string {
		t.Helper()
		buf.Reset()
		require.NoError(t, sh.Exec(ctx, line), line)
		return buf.String()
	}

	run("mkdir -p /work/a/b")
	run("mkdir -p /work/a/b")
	run("cd /work/a")
	require.Equal(t, "/work/a\n", run("pwd"))

	run("write note hello world")
	require.Equal(t, "hello world\n", run("cat note"))
	run("write note bye")
	require.Equal(t, "bye\n", run("cat note"))

	run("ln -s note link")
	require.Equal(t, "note\n", run("readlink link"))
	require.Equal(t, "bye\n", run("cat link"))
	require.Contains(t, run("ls -l"), "-rw-r--r--")

	run("mv note renamed")
	require.ErrorIs(t, sh.Exec(ctx, "cat link"), vfs.NotFound)
	run("rm link")
	run("rmdir b")
	require.Equal(t, "renamed\n", run("ls"))

	require.Equal(t, "0022\n", run("umask"))
	run("umask 077")
	run("touch private")
	require.Contains(t, run("stat private"), "Mode: 0600")

	run("cd ..")
	require.Equal(t, "/work\n", run("pwd"))
	require.Equal(t, "/work/a/renamed\n", run("realpath a/../a/renamed"))
	run("cd")
	require.Equal(t, "/\n", run("pwd"))

	require.Equal(t, "welcome\n", run("cat '/etc/issue'"))
	require.Contains(t, run("mounts"), "/data")
	require.Contains(t, run("help"), "rmdir DIR...")
	require.Empty(t, run("# a comment"))
	require.Empty(t, run(""))
}

func TestShellErrors(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	sh := cli.NewShell(bootFS(t), &buf)

	for _, tc := range []struct {
		line string
		kind error
	}{
		{"rmdir /data", vfs.Busy},
		{"rmdir /etc", vfs.DirectoryNotEmpty},
		{"mkdir /etc", vfs.AlreadyExists},
		{"cd /etc/motd", vfs.NotADirectory},
		{"rm /nope", vfs.NotFound},
		{"mv /etc/motd /data/motd", vfs.CrossDevice},
		{"cat /etc", vfs.IsADirectory},
	} {
		t.Run(tc.line, func(t *testing.T) {
			require.ErrorIs(t, sh.Exec(ctx, tc.line), tc.kind)
		})
	}

	require.ErrorContains(t, sh.Exec(ctx, "frobnicate"), "unknown command")
	require.ErrorContains(t, sh.Exec(ctx, "mv a"), "usage")
	require.ErrorContains(t, sh.Exec(ctx, "echo 'unterminated"), "parsing")
	require.ErrorIs(t, sh.Exec(ctx, "exit"), cli.ErrExit)
}

func TestShellRun(t *testing.T) {
	var buf bytes.Buffer
	sh := cli.NewShell(bootFS(t), &buf)

	in := strings.NewReader("pwd\nbogus\ncd /nope\nexit\npwd\n")
	require.NoError(t, sh.Run(context.Background(), in, false))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "/\n"), out)
	require.Equal(t, 2, strings.Count(out, "error: "), out)
	require.Equal(t, 1, strings.Count(out, "/\n"), out)
}

func TestShellPrompt(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	sh := cli.NewShell(bootFS(t), &buf)
	require.NoError(t, sh.Run(ctx, strings.NewReader("cd /etc\n"), true))
	require.Equal(t, "fstree:/$ fstree:/etc$ \n", buf.String())

	buf.Reset()
	sh = cli.NewShell(fstree.New(), &buf)
	require.NoError(t, sh.Run(ctx, strings.NewReader("pwd\n"), true))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "fstree:?$ error: "), out)
}
