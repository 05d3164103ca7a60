// Copyright (c) 2026 John Earle
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

// Package logging builds the process logger. Production emits one JSON
// object per line with timestamp, level and message keys; development emits
// human-readable text. DEBUG records are only written when enabled.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configures New.
type Options struct {
	Format Format
	Debug  bool
	Writer io.Writer
}

// Attribute keys shared by every component.
const (
	KeyRequestID = "requestId"
	KeyContext   = "context"
	KeyError     = "error"
)

// FormatForEnvironment maps an APP_ENV style value to a format.
func FormatForEnvironment(env string) Format {
	switch strings.ToLower(env) {
	case "development", "dev", "local":
		return FormatText
	default:
		return FormatJSON
	}
}

// New creates a logger. It does not touch slog's default logger; main
// decides whether to install it.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	if opts.Format == FormatText {
		return slog.New(NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	}

	return slog.New(NewContextHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameKeys,
	})))
}

// renameKeys maps slog's built-in keys onto the log sink's field names.
func renameKeys(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// Component returns a child logger tagged with the component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With(KeyContext, name)
}
