// Copyright 2023, 2026 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log renders slog records for terminals and log files.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/term"
)

// openTarget returns the writer for one log policy target.
func openTarget(target string) (io.Writer, error) {
	if name, ok := strings.CutPrefix(target, "builtin:"); ok {
		switch name {
		case "stderr":
			return os.Stderr, nil
		case "stdout":
			return os.Stdout, nil
		case "discard":
			return io.Discard, nil
		}
		return nil, fmt.Errorf("unknown builtin log target %q", target)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(target, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
}

// writer fans out to every target of a log policy.
func writer(targets []string) (io.Writer, error) {
	writers := make([]io.Writer, 0, len(targets))
	for _, target := range targets {
		w, err := openTarget(target)
		if err != nil {
			return nil, fmt.Errorf("log target %s: %w", target, err)
		}
		writers = append(writers, w)
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

const (
	reset   = 0
	yellow  = 33
	magenta = 35
	gray    = 37
)

func isTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case *os.File:
		return term.IsTerminal(int(v.Fd()))
	default:
		return false
	}
}

func color(w io.Writer, color int) string {
	if !isTerminal(w) {
		return ""
	}

	return fmt.Sprintf("\x1b[%dm", color)
}

func levelToColor(r slog.Record) int {
	switch r.Level {
	case slog.LevelError:
		return magenta
	case slog.LevelWarn:
		return yellow
	default:
		return gray
	}
}

func levelEmoji(r slog.Record) string {
	switch r.Level {
	case slog.LevelError:
		return "❌ "
	case slog.LevelWarn:
		return "⚠️ "
	case slog.LevelInfo:
		return "ℹ️ "
	default:
		return "❕"
	}
}

// Handler returns a slog.Handler writing to the targets of logPolicy. A
// target is a file path or one of builtin:stderr, builtin:stdout and
// builtin:discard.
func Handler(logPolicy []string, level slog.Level) (slog.Handler, error) {
	if len(logPolicy) == 0 {
		logPolicy = []string{"builtin:stderr"}
	}
	out, err := writer(logPolicy)
	if err != nil {
		return nil, err
	}
	return &handler{out: out, level: level, mu: &sync.Mutex{}}, nil
}

type handler struct {
	level slog.Level
	out   io.Writer
	attrs []slog.Attr

	mu *sync.Mutex
}

func (h *handler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{
		attrs: append(slices.Clip(h.attrs), attrs...),
		out:   h.out,
		level: h.level,
		mu:    h.mu,
	}
}

// prefixKey is the attribute rendered in front of each message.
const prefixKey = "cpu"

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.Enabled(ctx, r.Level) {
		return nil
	}

	var prefix string
	for _, a := range h.attrs {
		if a.Key == prefixKey {
			prefix = a.Value.String()
			break
		}
	}
	if prefix == "" {
		r.Attrs(func(s slog.Attr) bool {
			if s.Key == prefixKey {
				prefix = s.Value.String()
				return false
			}
			return true
		})
	}
	if prefix != "" {
		prefix = prefixKey + " " + prefix
	}
	c := color(h.out, levelToColor(r))
	_, err := fmt.Fprintf(h.out, "%s %s%-10s|%s %s%s%s\n", levelEmoji(r), c, prefix, color(h.out, reset), c, r.Message, color(h.out, reset))
	return err
}

// This handler doesn't support groups.
func (h *handler) WithGroup(string) slog.Handler { return h }
