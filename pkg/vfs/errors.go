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

package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Kind categorizes a filesystem error. Kinds are errors themselves and are
// the sentinels to match with errors.Is:
//
//	if errors.Is(err, vfs.NotFound) { ... }
type Kind uint8

const (
	NotFound Kind = iota + 1
	AlreadyExists
	NotADirectory
	IsADirectory
	DirectoryNotEmpty
	CrossDevice
	Loop // too many levels of symbolic links
	PermissionDenied
	Busy
	InvalidPath
	Internal // broken invariant or use before initialisation
)

var kindText = map[Kind]string{
	NotFound:          "no such file or directory",
	AlreadyExists:     "file exists",
	NotADirectory:     "not a directory",
	IsADirectory:      "is a directory",
	DirectoryNotEmpty: "directory not empty",
	CrossDevice:       "cross-device link",
	Loop:              "too many levels of symbolic links",
	PermissionDenied:  "permission denied",
	Busy:              "resource busy",
	InvalidPath:       "invalid path",
	Internal:          "internal error",
}

func (k Kind) Error() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return fmt.Sprintf("vfs error kind %d", uint8(k))
}

// PathError records the operation and location of a failure. Path is the
// directory being searched (or the path operated on) and Name, when set,
// is the component that failed inside it.
type PathError struct {
	Op   string
	Path string
	Name string
	Kind Kind
	Err  error
}

func (e *PathError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteByte(' ')
		b.WriteString(e.Path)
	}
	if e.Name != "" {
		b.WriteString(": ")
		b.WriteString(e.Name)
	}
	b.WriteString(": ")
	if e.Err != nil && !errors.Is(e.Err, e.Kind) {
		fmt.Fprintf(&b, "%s (%v)", e.Kind, e.Err)
	} else {
		b.WriteString(e.Kind.Error())
	}
	return b.String()
}

func (e *PathError) Unwrap() error { return e.Err }

// Is matches the error's kind.
func (e *PathError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Errorf builds a PathError of the given kind.
func Errorf(kind Kind, op, path string) *PathError {
	return &PathError{Op: op, Path: path, Kind: kind}
}

// Wrap adds op/path/name context to err while keeping its kind. A nil err
// stays nil.
func Wrap(err error, op, path, name string) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Name: name, Kind: KindOf(err), Err: err}
}

// KindOf recovers the kind of err. Errors that carry no recognisable kind
// are reported as Internal.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	if k, ok := kindOfErrno(err); ok {
		return k
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrExist):
		return AlreadyExists
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	case errors.Is(err, fs.ErrInvalid):
		return InvalidPath
	}
	return Internal
}
