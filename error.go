// Copyright 2020-2025 Buf Technologies, Inc.
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

package sarus

import (
	"errors"
	"fmt"

	"buf.build/go/sarus/internal/parser"
	"buf.build/go/sarus/internal/sema"
)

// ErrorKind classifies a compile error.
type ErrorKind int

const (
	ErrParse ErrorKind = iota
	ErrResolution
	ErrType
	ErrLayout
	ErrLinkage
	ErrCodegen
)

var errKinds = [...]error{
	ErrParse:      errors.New("parse error"),
	ErrResolution: errors.New("resolution error"),
	ErrType:       errors.New("type error"),
	ErrLayout:     errors.New("layout error"),
	ErrLinkage:    errors.New("linkage error"),
	ErrCodegen:    errors.New("codegen error"),
}

// Error is a compile error. Compilation is all or nothing: any Error
// aborts the whole module.
type Error struct {
	Kind ErrorKind
	File string // Source file, when known.
	Line int    // 1-based line, when known.
	Msg  string
}

// Error implements [error].
func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("sarus: %s: %s:%d: %s", errKinds[e.Kind], e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("sarus: %s: %s", errKinds[e.Kind], e.Msg)
}

// Unwrap implements error unwrapping viz [errors.Unwrap]: every Error of
// a kind unwraps to that kind's sentinel, so callers can test with
// [errors.Is].
func (e *Error) Unwrap() error {
	return errKinds[e.Kind]
}

// wrap converts pipeline-internal errors into *Error.
func wrap(err error, files []string) error {
	if err == nil {
		return nil
	}
	var pe *parser.Error
	if errors.As(err, &pe) {
		return &Error{Kind: ErrParse, File: pe.Path, Line: pe.Line, Msg: pe.Msg}
	}
	var se *sema.Error
	if errors.As(err, &se) {
		out := &Error{Msg: se.Msg, Line: int(se.Pos.Line)}
		switch se.Kind {
		case sema.ErrResolution:
			out.Kind = ErrResolution
		case sema.ErrLayout:
			out.Kind = ErrLayout
		default:
			out.Kind = ErrType
		}
		if int(se.Pos.File) < len(files) {
			out.File = files[se.Pos.File]
		}
		return out
	}
	return err
}
