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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/chainguard-dev/clog"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"chainguard.dev/fstree/pkg/config"
	"chainguard.dev/fstree/pkg/fstree"
	"chainguard.dev/fstree/pkg/vfs"
)

func shellCmd(opts *globalOptions) *cobra.Command {
	var configPath string
	var uid, gid uint32

	cmd := &cobra.Command{
		Use:   "shell [COMMAND...]",
		Short: "Run commands against a booted namespace",
		Long: `Run commands against a booted namespace.

Each argument is run as one shell line. Without arguments, lines are read
from standard input until EOF or "exit". Type "help" for the command list.
`,
		Example: `  fstree shell -c boot.yaml 'mkdir /work' 'cd /work' 'touch a' 'ls -l'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := boot(cmd.Context(), opts.cpu, configPath)
			if err != nil {
				return err
			}
			sh := NewShell(fs, os.Stdout)
			sh.UID, sh.GID = uid, gid
			if len(args) > 0 {
				for _, line := range args {
					if err := sh.Exec(cmd.Context(), line); err != nil {
						if errors.Is(err, ErrExit) {
							return nil
						}
						return err
					}
				}
				return nil
			}
			return sh.Run(cmd.Context(), os.Stdin, term.IsTerminal(int(os.Stdin.Fd())))
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().Uint32Var(&uid, "uid", 0, "owner of created entries")
	cmd.Flags().Uint32Var(&gid, "gid", 0, "group of created entries")

	return cmd
}

// ErrExit is returned by Shell.Exec for the exit command.
var ErrExit = errors.New("exit")

// Shell executes command lines against a context.
type Shell struct {
	UID, GID uint32

	fs  *fstree.FsStruct
	out io.Writer
}

func NewShell(fs *fstree.FsStruct, out io.Writer) *Shell {
	return &Shell{fs: fs, out: out}
}

type shellCommand struct {
	usage string
	run   func(s *Shell, ctx context.Context, args []string) error
}

var shellCommands map[string]shellCommand

func init() {
	shellCommands = map[string]shellCommand{
		"help":     {"help", (*Shell).help},
		"pwd":      {"pwd", (*Shell).pwd},
		"cd":       {"cd [DIR]", (*Shell).cd},
		"ls":       {"ls [-l] [PATH...]", (*Shell).ls},
		"stat":     {"stat PATH...", (*Shell).stat},
		"mkdir":    {"mkdir [-p] [-m MODE] DIR...", (*Shell).mkdir},
		"touch":    {"touch FILE...", (*Shell).touch},
		"write":    {"write FILE TEXT...", (*Shell).write},
		"cat":      {"cat FILE...", (*Shell).cat},
		"ln":       {"ln [-s] TARGET LINK", (*Shell).ln},
		"rm":       {"rm FILE...", (*Shell).rm},
		"rmdir":    {"rmdir DIR...", (*Shell).rmdir},
		"mv":       {"mv OLD NEW", (*Shell).mv},
		"readlink": {"readlink LINK", (*Shell).readlink},
		"realpath": {"realpath PATH...", (*Shell).realpath},
		"umask":    {"umask [MODE]", (*Shell).umask},
		"mounts":   {"mounts", (*Shell).mounts},
		"exit":     {"exit", func(*Shell, context.Context, []string) error { return ErrExit }},
	}
}

// Run reads lines from in until EOF or exit. Errors are printed and do not
// stop the loop. A prompt is shown when interactive is set.
func (s *Shell) Run(ctx context.Context, in io.Reader, interactive bool) error {
	log := clog.FromContext(ctx)
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprintf(s.out, "fstree:%s$ ", s.prompt(ctx))
		}
		if !scanner.Scan() {
			if interactive {
				fmt.Fprintln(s.out)
			}
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.Exec(ctx, scanner.Text())
		switch {
		case errors.Is(err, ErrExit):
			return nil
		case err != nil:
			log.Debugf("command failed: %v", err)
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

// prompt returns the current directory, or "?" when it is unknown.
func (s *Shell) prompt(ctx context.Context) string {
	cwd, err := s.fs.CurrentDir()
	if err != nil {
		clog.FromContext(ctx).Warnf("no current directory: %v", err)
		return "?"
	}
	return cwd
}

// Exec runs one command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parsing %q: %w", line, err)
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "#") {
		return nil
	}
	c, ok := shellCommands[args[0]]
	if !ok {
		return fmt.Errorf("%s: unknown command, try help", args[0])
	}
	return c.run(s, ctx, args[1:])
}

func (s *Shell) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(s.out)
	return fs
}

func needArgs(name string, args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", shellCommands[name].usage)
	}
	return nil
}

func (s *Shell) help(ctx context.Context, args []string) error {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.out, "  %s\n", shellCommands[name].usage)
	}
	return nil
}

func (s *Shell) pwd(ctx context.Context, args []string) error {
	cwd, err := s.fs.CurrentDir()
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, cwd)
	return nil
}

func (s *Shell) cd(ctx context.Context, args []string) error {
	dir := "/"
	if len(args) > 0 {
		dir = args[0]
	}
	return s.fs.SetCurrentDir(ctx, dir)
}

func typeChar(t vfs.NodeType) byte {
	switch t {
	case vfs.TypeDir:
		return 'd'
	case vfs.TypeSymlink:
		return 'l'
	default:
		return '-'
	}
}

func (s *Shell) ls(ctx context.Context, args []string) error {
	fl := s.flags("ls")
	long := fl.BoolP("long", "l", false, "long listing")
	if err := fl.Parse(args); err != nil {
		return err
	}
	paths := fl.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 1, ' ', 0)
	defer tw.Flush()
	for _, p := range paths {
		n, err := s.fs.Lookup(ctx, nil, p, 0)
		if err != nil {
			return err
		}
		if len(paths) > 1 {
			fmt.Fprintf(tw, "%s:\n", p)
		}
		if n.Type() != vfs.TypeDir {
			s.lsEntry(tw, n, p, *long)
			continue
		}
		entries, err := n.ReadDir()
		if err != nil {
			return err
		}
		for _, e := range entries {
			child, err := n.Lookup(e.Name)
			if err != nil {
				return err
			}
			if child, err = s.fs.RootDir().Cross(child); err != nil {
				return err
			}
			s.lsEntry(tw, child, e.Name, *long)
		}
	}
	return nil
}

func (s *Shell) lsEntry(w io.Writer, n vfs.Node, name string, long bool) {
	if !long {
		fmt.Fprintln(w, name)
		return
	}
	attr, err := n.Attr()
	if err != nil {
		fmt.Fprintf(w, "?\t%s\t(%v)\n", name, err)
		return
	}
	if attr.Type == vfs.TypeSymlink {
		if target, err := n.Readlink(); err == nil {
			name = name + " -> " + target
		}
	}
	fmt.Fprintf(w, "%c%s\t%d\t%d\t%d\t%d\t%s\n", typeChar(attr.Type), attr.FileMode().Perm().String()[1:], attr.Nlink, attr.UID, attr.GID, attr.Size, name)
}

func (s *Shell) stat(ctx context.Context, args []string) error {
	if err := needArgs("stat", args, 1); err != nil {
		return err
	}
	for _, p := range args {
		n, err := s.fs.Lookup(ctx, nil, p, fstree.NoFollow)
		if err != nil {
			return err
		}
		attr, err := n.Attr()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "  File: %s\n  Type: %s\n  Mode: %04o\n   Uid: %d\n   Gid: %d\n  Size: %d\n Links: %d\nDevice: %d\n Inode: %d\nModify: %s\n",
			p, attr.Type, attr.Mode, attr.UID, attr.GID, attr.Size, attr.Nlink, attr.Dev, attr.Ino, attr.ModTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (s *Shell) mkdir(ctx context.Context, args []string) error {
	fl := s.flags("mkdir")
	parents := fl.BoolP("parents", "p", false, "create missing parents")
	modeStr := fl.StringP("mode", "m", "0777", "permission bits, before the umask")
	if err := fl.Parse(args); err != nil {
		return err
	}
	if err := needArgs("mkdir", fl.Args(), 1); err != nil {
		return err
	}
	mode, err := config.ParseMode(*modeStr)
	if err != nil {
		return err
	}

	for _, p := range fl.Args() {
		if !*parents {
			if _, err := s.fs.CreateDir(ctx, nil, p, s.UID, s.GID, mode); err != nil {
				return err
			}
			continue
		}
		abs, err := s.fs.AbsolutePath(p)
		if err != nil {
			return err
		}
		cur := ""
		for _, name := range strings.Split(strings.TrimPrefix(abs, "/"), "/") {
			cur += "/" + name
			_, err := s.fs.CreateDir(ctx, nil, cur, s.UID, s.GID, mode)
			if err == nil {
				continue
			}
			if !errors.Is(err, vfs.AlreadyExists) {
				return err
			}
			if _, err := s.fs.Lookup(ctx, nil, cur, fstree.Directory); err != nil {
				return err
			}
		}
	}
	return nil
}

// createOrOpen returns the file at p, creating it when missing.
func (s *Shell) createOrOpen(ctx context.Context, p string) (vfs.Node, error) {
	n, err := s.fs.CreateFile(ctx, nil, p, vfs.TypeFile, s.UID, s.GID, 0o666)
	if errors.Is(err, vfs.AlreadyExists) {
		return s.fs.Lookup(ctx, nil, p, 0)
	}
	return n, err
}

func (s *Shell) touch(ctx context.Context, args []string) error {
	if err := needArgs("touch", args, 1); err != nil {
		return err
	}
	for _, p := range args {
		if _, err := s.createOrOpen(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func asFile(p string, n vfs.Node) (vfs.File, error) {
	if n.Type() == vfs.TypeDir {
		return nil, vfs.Errorf(vfs.IsADirectory, "open", p)
	}
	f, ok := n.(vfs.File)
	if !ok {
		return nil, fmt.Errorf("%s: file content is not available", p)
	}
	return f, nil
}

func (s *Shell) write(ctx context.Context, args []string) error {
	if err := needArgs("write", args, 1); err != nil {
		return err
	}
	n, err := s.createOrOpen(ctx, args[0])
	if err != nil {
		return err
	}
	f, err := asFile(args[0], n)
	if err != nil {
		return err
	}
	data := []byte(strings.Join(args[1:], " ") + "\n")
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err = f.WriteAt(data, 0)
	return err
}

func (s *Shell) cat(ctx context.Context, args []string) error {
	if err := needArgs("cat", args, 1); err != nil {
		return err
	}
	for _, p := range args {
		n, err := s.fs.Lookup(ctx, nil, p, 0)
		if err != nil {
			return err
		}
		f, err := asFile(p, n)
		if err != nil {
			return err
		}
		attr, err := n.Attr()
		if err != nil {
			return err
		}
		if _, err := io.Copy(s.out, io.NewSectionReader(f, 0, attr.Size)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Shell) ln(ctx context.Context, args []string) error {
	fl := s.flags("ln")
	symbolic := fl.BoolP("symbolic", "s", false, "make a symlink")
	if err := fl.Parse(args); err != nil {
		return err
	}
	if len(fl.Args()) != 2 {
		return fmt.Errorf("usage: %s", shellCommands["ln"].usage)
	}
	target, link := fl.Arg(0), fl.Arg(1)
	if *symbolic {
		_, err := s.fs.CreateSymlink(ctx, nil, link, target, s.UID, s.GID, 0o777)
		return err
	}
	n, err := s.fs.Lookup(ctx, nil, target, fstree.NoFollow)
	if err != nil {
		return err
	}
	return s.fs.CreateLink(ctx, nil, link, n)
}

func (s *Shell) rm(ctx context.Context, args []string) error {
	if err := needArgs("rm", args, 1); err != nil {
		return err
	}
	for _, p := range args {
		if err := s.fs.RemoveFile(ctx, nil, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Shell) rmdir(ctx context.Context, args []string) error {
	if err := needArgs("rmdir", args, 1); err != nil {
		return err
	}
	for _, p := range args {
		if err := s.fs.RemoveDir(ctx, nil, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Shell) mv(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", shellCommands["mv"].usage)
	}
	return s.fs.Rename(ctx, args[0], args[1])
}

func (s *Shell) readlink(ctx context.Context, args []string) error {
	if err := needArgs("readlink", args, 1); err != nil {
		return err
	}
	n, err := s.fs.Lookup(ctx, nil, args[0], fstree.NoFollow)
	if err != nil {
		return err
	}
	target, err := n.Readlink()
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, target)
	return nil
}

func (s *Shell) realpath(ctx context.Context, args []string) error {
	if err := needArgs("realpath", args, 1); err != nil {
		return err
	}
	for _, p := range args {
		abs, err := s.fs.AbsolutePath(p)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, abs)
	}
	return nil
}

func (s *Shell) umask(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "%04o\n", s.fs.Umask())
		return nil
	}
	mode, err := config.ParseMode(args[0])
	if err != nil {
		return err
	}
	if mode&^vfs.ModePerm != 0 {
		return fmt.Errorf("umask %s: only permission bits may be masked", args[0])
	}
	s.fs.SetUmask(mode)
	return nil
}

func (s *Shell) mounts(ctx context.Context, args []string) error {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, m := range s.fs.RootDir().Mounts() {
		fmt.Fprintf(tw, "%s\tdev %d\n", m.Path, m.Dev)
	}
	return tw.Flush()
}
