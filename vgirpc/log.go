// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import "log/slog"

// LogLevel is a wire log severity. Worker log records travel to the client
// in response metadata tagged with one of these.
type LogLevel string

const (
	LogException LogLevel = "EXCEPTION"
	LogError     LogLevel = "ERROR"
	LogWarn      LogLevel = "WARN"
	LogInfo      LogLevel = "INFO"
	LogDebug     LogLevel = "DEBUG"
	LogTrace     LogLevel = "TRACE"
)

// levelOrder ranks levels from most to least severe.
var levelOrder = map[LogLevel]int{
	LogException: 0,
	LogError:     1,
	LogWarn:      2,
	LogInfo:      3,
	LogDebug:     4,
	LogTrace:     5,
}

// logLevelPriority returns the rank of level; unknown levels sort last.
func logLevelPriority(level LogLevel) int {
	if p, ok := levelOrder[level]; ok {
		return p
	}
	return len(levelOrder)
}

// SlogLevel maps a wire level onto log/slog. TRACE folds into DEBUG.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogException, LogError:
		return slog.LevelError
	case LogWarn:
		return slog.LevelWarn
	case LogInfo:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// LevelFromSlog picks the wire level a client requests for a slog level.
func LevelFromSlog(l slog.Level) LogLevel {
	switch {
	case l >= slog.LevelError:
		return LogError
	case l >= slog.LevelWarn:
		return LogWarn
	case l >= slog.LevelInfo:
		return LogInfo
	}
	return LogDebug
}

// KV is a key-value pair for structured log extras.
type KV struct {
	Key   string
	Value string
}

// LogMessage represents a client-directed log message.
type LogMessage struct {
	Level   LogLevel
	Message string
	Extras  map[string]string
}

// attrs converts Extras to slog attributes in a stable order.
func (m LogMessage) attrs() []any {
	if len(m.Extras) == 0 {
		return nil
	}
	out := make([]any, 0, 2*len(m.Extras))
	for _, k := range sortedKeys(m.Extras) {
		out = append(out, k, m.Extras[k])
	}
	return out
}
