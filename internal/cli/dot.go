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
	"fmt"
	"io"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"github.com/tmc/dot"

	"chainguard.dev/fstree/pkg/fstree"
	"chainguard.dev/fstree/pkg/vfs"
)

func dotcmd(opts *globalOptions) *cobra.Command {
	var configPath string
	var depth int

	cmd := &cobra.Command{
		Use:   "dot [PATH]",
		Short: "Output a digraph of the booted namespace",
		Long: `Output a digraph of the booted namespace.

Directories, files and symlinks are nodes; every name is an edge from its
directory. Mount points are crossed and hard links share a node.

# Render an svg of boot.yaml
fstree dot -c boot.yaml | dot -Tsvg > tree.svg
`,
		Example: `  fstree dot -c <boot.yaml> /etc`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := boot(cmd.Context(), opts.cpu, configPath)
			if err != nil {
				return err
			}
			start := "/"
			if len(args) == 1 {
				start = args[0]
			}
			return DotCmd(cmd.Context(), os.Stdout, fs, start, depth)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum depth to descend to (0 means no limit)")

	return cmd
}

func nodeID(k vfs.Key) string {
	return fmt.Sprintf("d%di%d", k.Dev, k.Ino)
}

// DotCmd renders the tree below start as a graphviz digraph.
func DotCmd(ctx context.Context, w io.Writer, fs *fstree.FsStruct, start string, depth int) error {
	log := clog.FromContext(ctx)

	top, err := fs.Lookup(ctx, nil, start, 0)
	if err != nil {
		return err
	}
	abs, err := fs.AbsolutePath(start)
	if err != nil {
		return err
	}
	rd := fs.RootDir()

	out := dot.NewGraph("fstree")
	if err := out.Set("rankdir", "LR"); err != nil {
		return err
	}
	out.SetType(dot.DIGRAPH)

	seen := map[vfs.Key]*dot.Node{}
	newNode := func(n vfs.Node, label string) (*dot.Node, bool, error) {
		attr, err := n.Attr()
		if err != nil {
			return nil, false, err
		}
		if d, ok := seen[attr.Key()]; ok {
			return d, false, nil
		}
		d := dot.NewNode(nodeID(attr.Key()))
		shape := "note"
		switch attr.Type {
		case vfs.TypeDir:
			shape = "folder"
			if rd.IsMountpoint(n) {
				label = fmt.Sprintf("%s (dev %d)", label, attr.Dev)
			}
		case vfs.TypeSymlink:
			shape = "cds"
			if target, err := n.Readlink(); err == nil {
				label = fmt.Sprintf("%s -> %s", label, target)
			}
		}
		for k, v := range map[string]string{"label": label, "shape": shape} {
			if err := d.Set(k, v); err != nil {
				return nil, false, err
			}
		}
		out.AddNode(d)
		seen[attr.Key()] = d
		return d, true, nil
	}

	var walk func(n vfs.Node, parent *dot.Node, level int) error
	walk = func(n vfs.Node, parent *dot.Node, level int) error {
		if depth > 0 && level >= depth {
			return nil
		}
		entries, err := n.ReadDir()
		if err != nil {
			return err
		}
		for _, e := range entries {
			child, err := n.Lookup(e.Name)
			if err != nil {
				log.Warnf("skipping %s: %v", e.Name, err)
				continue
			}
			if child, err = rd.Cross(child); err != nil {
				return err
			}
			d, isNew, err := newNode(child, e.Name)
			if err != nil {
				return err
			}
			out.AddEdge(dot.NewEdge(parent, d))
			if isNew && child.Type() == vfs.TypeDir {
				if err := walk(child, d, level+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	d, _, err := newNode(top, abs)
	if err != nil {
		return err
	}
	if top.Type() == vfs.TypeDir {
		if err := walk(top, d, 0); err != nil {
			return fmt.Errorf("walking %s: %w", abs, err)
		}
	}

	log.Debugf("rendered %d nodes", len(seen))
	_, err = io.WriteString(w, out.String())
	return err
}
