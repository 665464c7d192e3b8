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
	"context"

	"github.com/spf13/cobra"

	"chainguard.dev/fstree/pkg/config"
	"chainguard.dev/fstree/pkg/fstree"
)

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", "", "boot configuration file (default is an empty memfs root)")
}

// boot initialises the process-wide registry from configPath and returns
// the initial context.
func boot(ctx context.Context, cpu int, configPath string) (*fstree.FsStruct, error) {
	bc := config.Default()
	if configPath != "" {
		var err error
		if bc, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if err := fstree.Init(ctx, cpu, fstree.BootInfo{Config: bc}); err != nil {
		return nil, err
	}
	return fstree.InitFS()
}
