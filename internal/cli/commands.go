// Copyright 2022, 2026 Chainguard, Inc.
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
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/clog/slag"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"

	"chainguard.dev/fstree/pkg/log"
)

type globalOptions struct {
	quiet     bool
	verbose   int
	logPolicy []string
	cpu       int
}

func New() *cobra.Command {
	opts := &globalOptions{}
	level := slag.Level(slog.LevelInfo)

	cmd := &cobra.Command{
		Use:               "fstree",
		Short:             "Explore per-process filesystem contexts",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.quiet {
				level = slag.Level(slog.LevelError)
			} else if opts.verbose > 0 {
				level = slag.Level(slog.LevelDebug)
			}

			var h slog.Handler
			if len(opts.logPolicy) > 0 {
				var err error
				if h, err = log.Handler(opts.logPolicy, slog.Level(level)); err != nil {
					return err
				}
			} else {
				h = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
					ReportTimestamp: true,
					Level:           charmlog.Level(level),
				})
			}
			slog.SetDefault(slog.New(h))
			cmd.SetContext(clog.WithLogger(cmd.Context(), clog.New(h)))
			return nil
		},
	}

	cmd.AddCommand(shellCmd(opts))
	cmd.AddCommand(resolveCmd(opts))
	cmd.AddCommand(showConfig())
	cmd.AddCommand(dotcmd(opts))
	cmd.AddCommand(version.Version())

	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "only log errors")
	cmd.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "log debug output")
	cmd.PersistentFlags().StringSliceVar(&opts.logPolicy, "log-policy", []string{}, "log targets to write to instead of the terminal (builtin:stderr, builtin:stdout, builtin:discard or a file path)")
	cmd.PersistentFlags().Var(&level, "log-level", "log level (e.g. debug, info, warn, error)")
	cmd.PersistentFlags().IntVar(&opts.cpu, "cpu", 0, "cpu the subsystem is initialised on")
	return cmd
}
