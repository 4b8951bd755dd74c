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

// Package log provides scoped logging on top of zap.
//
// Every package registers its own scope with RegisterScope and logs through
// it. Output levels are set per scope, either programmatically or through the
// --log_output_level flag attached by Options.AttachCobraFlags:
//
//	var scope = log.RegisterScope("communicator", "data communicator reconciliation")
//
//	scope.Debugf("pushing %d rows", n)
package log

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultEncoderConfig = zapcore.EncoderConfig{
	TimeKey:        "time",
	LevelKey:       "level",
	NameKey:        "scope",
	CallerKey:      "caller",
	MessageKey:     "msg",
	StacktraceKey:  "stack",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.LowercaseLevelEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
}

var current atomic.Pointer[zap.Logger]

func init() {
	// usable before Configure is called
	_ = Configure(DefaultOptions())
}

func logger() *zap.Logger {
	return current.Load()
}

// Configure initializes the logging subsystem. It is typically called once at
// process startup.
func Configure(options *Options) error {
	sink, _, err := zap.Open(options.OutputPaths...)
	if err != nil {
		return err
	}
	return configure(options, sink)
}

func configure(options *Options, sink zapcore.WriteSyncer) error {
	if err := updateScopes(options); err != nil {
		return err
	}

	var enc zapcore.Encoder
	if options.JSONEncoding {
		enc = zapcore.NewJSONEncoder(defaultEncoderConfig)
	} else {
		enc = zapcore.NewConsoleEncoder(defaultEncoderConfig)
	}
	// levels are enforced by the scopes
	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(zapcore.DebugLevel))
	l := zap.New(core, zap.ErrorOutput(sink))
	current.Store(l)
	_ = zap.ReplaceGlobals(l)
	return nil
}

func updateScopes(options *Options) error {
	all := Scopes()
	for _, sl := range strings.Split(options.OutputLevels, ",") {
		if strings.TrimSpace(sl) == "" {
			continue
		}
		name, level, err := convertScopedLevel(sl)
		if err != nil {
			return err
		}
		if name == OverrideScopeName {
			for _, s := range all {
				s.SetOutputLevel(level)
			}
			continue
		}
		if s := FindScope(name); s != nil {
			s.SetOutputLevel(level)
		}
	}
	return nil
}

// Sync flushes any buffered log entries.
func Sync() error {
	return logger().Sync()
}
