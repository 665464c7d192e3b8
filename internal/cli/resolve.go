// Copyright 2023, 2026 Chainguard, Inc.
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
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/fstree/pkg/fstree"
	"chainguard.dev/fstree/pkg/vfs"
)

func resolveCmd(opts *globalOptions) *cobra.Command {
	var configPath string
	var cwd string
	var noFollow bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve paths against a booted namespace",
		Long: `Resolve paths against a booted namespace.

Every path is resolved concurrently against the same context and printed
with the type, device and inode of the node it leads to.
`,
		Example: `  fstree resolve -c boot.yaml /etc/motd ../bin/sh`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := boot(cmd.Context(), opts.cpu, configPath)
			if err != nil {
				return err
			}
			if cwd != "" {
				if err := fs.SetCurrentDir(cmd.Context(), cwd); err != nil {
					return err
				}
			}
			var flags fstree.LookupFlags
			if noFollow {
				flags |= fstree.NoFollow
			}
			return ResolveCmd(cmd.Context(), os.Stdout, fs, args, flags)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&cwd, "dir", "C", "", "directory to resolve relative paths from")
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "do not follow a final symlink")

	return cmd
}

type resolution struct {
	path string
	attr vfs.Attr
	err  error
}

// ResolveCmd resolves paths concurrently and writes one line per path, in
// argument order.
func ResolveCmd(ctx context.Context, w io.Writer, fs *fstree.FsStruct, paths []string, flags fstree.LookupFlags) error {
	log := clog.FromContext(ctx)

	results := make([]resolution, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			results[i].path = p
			n, err := fs.Lookup(ctx, nil, p, flags)
			if err == nil {
				results[i].attr, err = n.Attr()
			}
			results[i].err = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	var errs []error
	for _, r := range results {
		if r.err != nil {
			log.Debugf("resolving %s: %v", r.path, r.err)
			fmt.Fprintf(tw, "%s\terror\t%v\n", r.path, r.err)
			errs = append(errs, r.err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%04o\n", r.path, r.attr.Type, r.attr.Key(), r.attr.Mode)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d paths failed to resolve: %w", len(errs), len(paths), errors.Join(errs...))
	}
	return nil
}
