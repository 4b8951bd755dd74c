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
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Scope is a named logger with its own output level.
type Scope struct {
	name        string
	description string
	outputLevel atomic.Int32
}

var (
	scopes    = make(map[string]*Scope)
	lock      sync.RWMutex
	defaultLg = RegisterScope(DefaultScopeName, "Unscoped logging messages.")
)

// RegisterScope registers a new logging scope. Registering the same name
// twice returns the existing scope.
//
// Scope names must not contain ':' or ','.
func RegisterScope(name, description string) *Scope {
	lock.Lock()
	defer lock.Unlock()

	if s, ok := scopes[name]; ok {
		return s
	}
	s := &Scope{name: name, description: description}
	s.SetOutputLevel(defaultOutputLevel)
	scopes[name] = s
	return s
}

// FindScope returns a previously registered scope, or nil.
func FindScope(name string) *Scope {
	lock.RLock()
	defer lock.RUnlock()
	return scopes[name]
}

// Scopes returns all registered scopes ordered by name.
func Scopes() []*Scope {
	lock.RLock()
	defer lock.RUnlock()
	out := make([]*Scope, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Name returns the scope name.
func (s *Scope) Name() string { return s.name }

// Description returns the scope description.
func (s *Scope) Description() string { return s.description }

// SetOutputLevel adjusts the minimum level of emitted messages.
func (s *Scope) SetOutputLevel(l Level) { s.outputLevel.Store(int32(l)) }

// GetOutputLevel returns the minimum level of emitted messages.
func (s *Scope) GetOutputLevel() Level { return Level(s.outputLevel.Load()) }

// DebugEnabled reports whether debug messages are emitted.
func (s *Scope) DebugEnabled() bool { return s.GetOutputLevel() >= DebugLevel }

// InfoEnabled reports whether info messages are emitted.
func (s *Scope) InfoEnabled() bool { return s.GetOutputLevel() >= InfoLevel }

// WarnEnabled reports whether warning messages are emitted.
func (s *Scope) WarnEnabled() bool { return s.GetOutputLevel() >= WarnLevel }

// ErrorEnabled reports whether error messages are emitted.
func (s *Scope) ErrorEnabled() bool { return s.GetOutputLevel() >= ErrorLevel }

// Debug outputs a message with structured fields at debug level.
func (s *Scope) Debug(msg string, fields ...zap.Field) {
	if s.DebugEnabled() {
		s.emit(zapcore.DebugLevel, msg, fields)
	}
}

// Debugf uses fmt.Sprintf to construct and log a message at debug level.
func (s *Scope) Debugf(format string, args ...any) {
	if s.DebugEnabled() {
		s.emit(zapcore.DebugLevel, fmt.Sprintf(format, args...), nil)
	}
}

// Info outputs a message with structured fields at info level.
func (s *Scope) Info(msg string, fields ...zap.Field) {
	if s.InfoEnabled() {
		s.emit(zapcore.InfoLevel, msg, fields)
	}
}

// Infof uses fmt.Sprintf to construct and log a message at info level.
func (s *Scope) Infof(format string, args ...any) {
	if s.InfoEnabled() {
		s.emit(zapcore.InfoLevel, fmt.Sprintf(format, args...), nil)
	}
}

// Warn outputs a message with structured fields at warn level.
func (s *Scope) Warn(msg string, fields ...zap.Field) {
	if s.WarnEnabled() {
		s.emit(zapcore.WarnLevel, msg, fields)
	}
}

// Warnf uses fmt.Sprintf to construct and log a message at warn level.
func (s *Scope) Warnf(format string, args ...any) {
	if s.WarnEnabled() {
		s.emit(zapcore.WarnLevel, fmt.Sprintf(format, args...), nil)
	}
}

// Error outputs a message with structured fields at error level.
func (s *Scope) Error(msg string, fields ...zap.Field) {
	if s.ErrorEnabled() {
		s.emit(zapcore.ErrorLevel, msg, fields)
	}
}

// Errorf uses fmt.Sprintf to construct and log a message at error level.
func (s *Scope) Errorf(format string, args ...any) {
	if s.ErrorEnabled() {
		s.emit(zapcore.ErrorLevel, fmt.Sprintf(format, args...), nil)
	}
}

func (s *Scope) emit(level zapcore.Level, msg string, fields []zap.Field) {
	logger().Named(s.name).Check(level, msg).Write(fields...)
}

// Infof logs to the default scope.
func Infof(format string, args ...any) { defaultLg.Infof(format, args...) }

// Warnf logs to the default scope.
func Warnf(format string, args ...any) { defaultLg.Warnf(format, args...) }

// Errorf logs to the default scope.
func Errorf(format string, args ...any) { defaultLg.Errorf(format, args...) }
