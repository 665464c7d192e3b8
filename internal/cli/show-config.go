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

package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chainguard.dev/fstree/pkg/config"
)

func showConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show-config",
		Short: "Show the configuration derived from loading a YAML file",
		Long: `Show the configuration derived from loading a YAML file.

Defaults are filled in and relative sources are made relative to the
configuration file. The derived configuration is rendered in YAML.
`,
		Example: `  fstree show-config <boot.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ShowConfigCmd(os.Stdout, args[0])
		},
	}
	return cmd
}

func ShowConfigCmd(w io.Writer, configPath string) error {
	bc, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(bc); err != nil {
		return fmt.Errorf("failed to encode YAML document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode YAML document: %w", err)
	}

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write YAML document: %w", err)
	}
	return nil
}
