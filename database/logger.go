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

package database

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tomoncle/sift/utils"
)

// Logger is the key/value logger used across sift: fields alternate keys
// and values, e.g. Info("search", "entity", "order", "total", 3).
type Logger interface {
	// SetLevel takes a logrus level name such as "debug" or "warn".
	SetLevel(level string)
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

var defaultLogger struct {
	sync.Mutex
	logger Logger
}

// InitLogger replaces the logger GetLogger returns. nil is ignored.
func InitLogger(log Logger) {
	if log == nil {
		return
	}
	defaultLogger.Lock()
	defaultLogger.logger = log
	defaultLogger.Unlock()
}

// GetLogger returns the logger set by InitLogger, or a "DATABASE" logger.
func GetLogger() Logger {
	defaultLogger.Lock()
	defer defaultLogger.Unlock()
	if defaultLogger.logger == nil {
		defaultLogger.logger = NewLogger("DATABASE")
	}
	return defaultLogger.logger
}

// NewLogger returns a Logger backed by the named logrus logger.
func NewLogger(name string) *DefaultLogger {
	return &DefaultLogger{name: name, logger: utils.NewLogger(name)}
}

type DefaultLogger struct {
	name   string
	logger *utils.Logger
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.logger.WithFields(toFields(fields)).Debug(msg)
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.logger.WithFields(toFields(fields)).Info(msg)
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.logger.WithFields(toFields(fields)).Warn(msg)
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.logger.WithFields(toFields(fields)).Error(msg)
}

func (l *DefaultLogger) SetLevel(level string) {
	utils.SetLoggerLevel(l.name, level)
}

// toFields pairs up keys and values; a trailing key without a value is
// kept under "_extra".
func toFields(kv []interface{}) logrus.Fields {
	out := make(logrus.Fields, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			out["_extra"] = kv[i]
			break
		}
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
