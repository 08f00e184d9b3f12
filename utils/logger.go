/*
 * Copyright 2025 tomoncle.
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

package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const timestampFormat = "2006-01-02 15:04:05.000"

// loggerSet owns every named logger so level and output changes reach
// loggers created before the change.
type loggerSet struct {
	mu      sync.RWMutex
	byName  map[string]*logrus.Logger
	level   logrus.Level
	format  string
	output  io.Writer
	noColor bool
}

var loggers = &loggerSet{
	byName:  map[string]*logrus.Logger{},
	level:   ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info")),
	format:  EnvDefaultString("CONSOLE_LOG_FORMAT", "text"),
	output:  os.Stdout,
	noColor: EnvDefaultBool("NO_COLOR", false),
}

// ConfigureConsoleLogFormat selects "json" or "text" for loggers created
// afterwards.
func ConfigureConsoleLogFormat(format string) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "json" {
		format = "text"
	}
	loggers.mu.Lock()
	loggers.format = format
	loggers.mu.Unlock()
}

// ConfigureConsoleOutput redirects every registered logger to w; nil means
// stdout.
func ConfigureConsoleOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	loggers.mu.Lock()
	defer loggers.mu.Unlock()
	loggers.output = w
	for _, l := range loggers.byName {
		l.SetOutput(w)
	}
}

// ParseLogLevel accepts logrus level names and falls back to info.
func ParseLogLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func RegisterLogger(name string, l *logrus.Logger) {
	loggers.mu.Lock()
	defer loggers.mu.Unlock()
	loggers.byName[name] = l
}

// ConfigureLogLevel sets the level of every registered logger and of
// loggers created later.
func ConfigureLogLevel(level string) {
	lvl := ParseLogLevel(level)
	loggers.mu.Lock()
	defer loggers.mu.Unlock()
	loggers.level = lvl
	for _, l := range loggers.byName {
		l.SetLevel(lvl)
	}
}

func SetLoggerLevel(name string, level string) bool {
	loggers.mu.RLock()
	l, ok := loggers.byName[name]
	loggers.mu.RUnlock()
	if ok {
		l.SetLevel(ParseLogLevel(level))
	}
	return ok
}

// NewLogger returns the logger registered under name, creating it on
// first use.
func NewLogger(name string) *logrus.Logger {
	loggers.mu.Lock()
	defer loggers.mu.Unlock()
	if l, ok := loggers.byName[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(loggers.output)
	l.SetLevel(loggers.level)
	l.SetReportCaller(true)
	if loggers.format == "json" {
		l.SetFormatter(&JSONLogFormatter{LoggerName: name, TimestampFormat: timestampFormat})
	} else {
		l.SetFormatter(&Log4jColorFormatter{
			LoggerName:      name,
			TimestampFormat: timestampFormat,
			NameWidth:       10,
			DisableColors:   loggers.noColor,
		})
	}
	loggers.byName[name] = l
	return l
}

// Log4jColorFormatter prints "time LEVEL pid - name file:line : msg k=v".
type Log4jColorFormatter struct {
	LoggerName      string
	TimestampFormat string
	NameWidth       int
	DisableColors   bool
}

var levelColors = map[logrus.Level]*color.Color{
	logrus.TraceLevel: color.New(color.FgBlue),
	logrus.DebugLevel: color.New(color.FgBlue),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.WarnLevel:  color.New(color.FgYellow),
}

var (
	nameColor   = color.New(color.FgCyan)
	callerColor = color.New(color.Faint)
	pidColor    = color.New(color.FgMagenta)
	errorColor  = color.New(color.FgRed)
)

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String()))
	name := f.LoggerName
	if r := []rune(name); f.NameWidth > 0 && len(r) > f.NameWidth {
		name = string(r[:f.NameWidth])
	}
	name = fmt.Sprintf("%*s", f.NameWidth, name)
	pid := fmt.Sprintf("%-6d", os.Getpid())
	caller := callerOf(entry)
	if caller != "" {
		caller = " " + caller
	}

	if !f.DisableColors {
		c, ok := levelColors[entry.Level]
		if !ok {
			c = errorColor
		}
		level = c.Sprint(level)
		name = nameColor.Sprint(name)
		caller = callerColor.Sprint(caller)
		pid = pidColor.Sprint(pid)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s - %s%s : %s",
		entry.Time.Format(f.TimestampFormat), level, pid, name, caller, entry.Message)
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// JSONLogFormatter prints one JSON object per entry with fields nested
// under "fields".
type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
}

type jsonLogRecord struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Model   string                 `json:"model"`
	Caller  string                 `json:"caller,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	rec := jsonLogRecord{
		Time:    entry.Time.Format(f.TimestampFormat),
		Level:   entry.Level.String(),
		Model:   f.LoggerName,
		Caller:  callerOf(entry),
		Message: entry.Message,
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	out, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func callerOf(entry *logrus.Entry) string {
	if entry.Caller == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
}

// Since formats an elapsed duration the way query logs print it.
func Since(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
