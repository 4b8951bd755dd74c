// Copyright 2025 Magnus Pierre
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

package log

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

const (
	// DefaultScopeName is the scope used by the package level functions.
	DefaultScopeName = "default"
	// OverrideScopeName applies a level to every scope.
	OverrideScopeName = "all"

	defaultOutputLevel = InfoLevel
	defaultOutputPath  = "stderr"
)

// Level is an enumeration of all supported log levels.
type Level int

const (
	// NoneLevel disables logging
	NoneLevel Level = iota
	// ErrorLevel enables error level logging
	ErrorLevel
	// WarnLevel enables warn level logging
	WarnLevel
	// InfoLevel enables info level logging
	InfoLevel
	// DebugLevel enables debug level logging
	DebugLevel
)

var levelToString = map[Level]string{
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warn",
	ErrorLevel: "error",
	NoneLevel:  "none",
}

var stringToLevel = map[string]Level{
	"debug": DebugLevel,
	"info":  InfoLevel,
	"warn":  WarnLevel,
	"error": ErrorLevel,
	"none":  NoneLevel,
}

// String returns the lower case name of the level.
func (l Level) String() string {
	if s, ok := levelToString[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	l, ok := stringToLevel[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return NoneLevel, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// Options defines the set of options supported by the logging package.
type Options struct {
	// OutputPaths is a list of file system paths to write the log data to.
	// The special values stdout and stderr can be used to output to the
	// standard I/O streams. This defaults to stderr so that stdio transports
	// keep stdout for protocol traffic.
	OutputPaths []string

	// JSONEncoding controls whether the log is formatted as JSON.
	JSONEncoding bool

	// OutputLevels is a comma separated list of <scope>:<level> pairs. A
	// bare level applies to the default scope.
	OutputLevels string
}

// DefaultOptions returns a new set of options, initialized to the defaults.
func DefaultOptions() *Options {
	return &Options{
		OutputPaths:  []string{defaultOutputPath},
		OutputLevels: DefaultScopeName + ":" + defaultOutputLevel.String(),
	}
}

// AttachCobraFlags attaches the logging flags to the given Cobra command.
func (o *Options) AttachCobraFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringArrayVar(&o.OutputPaths, "log_target", o.OutputPaths,
		"The set of paths where to output the log. This can be any path as well as the special values stdout and stderr")
	flags.BoolVar(&o.JSONEncoding, "log_as_json", o.JSONEncoding,
		"Whether to format output as JSON or in plain console-friendly format")

	keys := []string{}
	for _, s := range Scopes() {
		keys = append(keys, s.Name())
	}
	keys = append(keys, OverrideScopeName)
	sort.Strings(keys)
	flags.StringVar(&o.OutputLevels, "log_output_level", o.OutputLevels,
		fmt.Sprintf("Comma-separated minimum per-scope logging level of messages to output, in the form of "+
			"<scope>:<level>,<scope>:<level>,... where scope can be one of [%s] and level can be one of "+
			"[debug, info, warn, error, none]", strings.Join(keys, ", ")))
}

// convertScopedLevel splits "scope:level"; a bare level targets the default scope.
func convertScopedLevel(sl string) (string, Level, error) {
	var s, l string
	pos := strings.Index(sl, ":")
	if pos < 0 {
		s, l = DefaultScopeName, sl
	} else {
		s, l = sl[:pos], sl[pos+1:]
	}
	level, err := ParseLevel(l)
	if err != nil {
		return "", NoneLevel, fmt.Errorf("invalid output level format %q: %w", sl, err)
	}
	return s, level, nil
}
