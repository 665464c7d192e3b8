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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"chainguard.dev/fstree/internal/cli"
	"chainguard.dev/fstree/pkg/config"
)

func TestShowConfig(t *testing.T) {
	p := filepath.Join("testdata", "boot.yaml")
	var buf bytes.Buffer
	require.NoError(t, cli.ShowConfigCmd(&buf, p))

	want, err := config.Load(p)
	require.NoError(t, err)
	got, err := config.Parse(buf.Bytes())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ShowConfigCmd() mismatch (-want +got):\n%s", diff)
	}
	require.Contains(t, buf.String(), "0644")
}

func TestShowConfigMissing(t *testing.T) {
	err := cli.ShowConfigCmd(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
