/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package flowlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DEBUG, "DEBUG"}, {INFO, "INFO"}, {WARN, "WARN"}, {ERROR, "ERROR"}, {OFF, "OFF"}, {Level(999), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		loggerLevel  Level
		messageLevel Level
		shouldLog    bool
	}{
		{DEBUG, DEBUG, true}, {DEBUG, ERROR, true},
		{INFO, DEBUG, false}, {INFO, INFO, true},
		{WARN, INFO, false}, {WARN, WARN, true},
		{ERROR, WARN, false}, {ERROR, ERROR, true},
		{OFF, ERROR, false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		l := New(tt.loggerLevel, &buf)
		switch tt.messageLevel {
		case DEBUG:
			l.Debug("msg")
		case INFO:
			l.Info("msg")
		case WARN:
			l.Warn("msg")
		case ERROR:
			l.Error("msg")
		}
		if (len(buf.String()) > 0) != tt.shouldLog {
			t.Errorf("logger level %s, message level %s: expected shouldLog=%v",
				tt.loggerLevel, tt.messageLevel, tt.shouldLog)
		}
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(DEBUG, &buf)
	l.SetLevel(ERROR)

	l.Debug("debug message")
	l.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("expected no output below ERROR, got: %s", buf.String())
	}

	l.Error("error message")
	if !strings.Contains(buf.String(), "[ERROR] error message") {
		t.Errorf("expected error message in output, got: %s", buf.String())
	}
}

func TestLogger_ParameterFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := New(DEBUG, &buf)
	l.Info("message with %s and %d", "text", 42)
	if !strings.Contains(buf.String(), "message with text and 42") {
		t.Errorf("expected formatted message, got: %s", buf.String())
	}
}

func TestDiscard_NeverWrites(t *testing.T) {
	l := NewDiscard()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	l.SetLevel(DEBUG)
}

func TestGlobalLogger(t *testing.T) {
	original := GetDefault()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(New(DEBUG, &buf))

	Debug("global debug")
	Info("global info")
	Warn("global warn")
	Error("global error")

	out := buf.String()
	for _, msg := range []string{"global debug", "global info", "global warn", "global error"} {
		if !strings.Contains(out, msg) {
			t.Errorf("expected %q in output, got: %s", msg, out)
		}
	}
}
