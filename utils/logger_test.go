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
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog4jColorFormatter(t *testing.T) {
	f := &Log4jColorFormatter{LoggerName: "REPO", TimestampFormat: timestampFormat, NameWidth: 6, DisableColors: true}
	entry := logrus.NewEntry(logrus.New()).WithFields(logrus.Fields{"entity": "order", "build": "b1"})
	entry.Message = "search"
	entry.Level = logrus.InfoLevel

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Contains(t, string(out), "  REPO")
	assert.Contains(t, string(out), ": search build=b1 entity=order\n")
}

func TestJSONLogFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "REPO", TimestampFormat: timestampFormat}
	entry := logrus.NewEntry(logrus.New()).WithField("missing", 2)
	entry.Message = "partial hydration"
	entry.Level = logrus.WarnLevel

	out, err := f.Format(entry)
	require.NoError(t, err)
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.Equal(t, "warning", rec["level"])
	assert.Equal(t, "REPO", rec["model"])
	assert.Equal(t, float64(2), rec["fields"].(map[string]interface{})["missing"])
}

func TestNewLogger_Registry(t *testing.T) {
	var buf bytes.Buffer
	ConfigureConsoleOutput(&buf)
	defer ConfigureConsoleOutput(nil)

	a := NewLogger("UTILS_TEST")
	assert.Same(t, a, NewLogger("UTILS_TEST"))
	assert.True(t, SetLoggerLevel("UTILS_TEST", "error"))
	assert.False(t, SetLoggerLevel("NOPE", "error"))

	a.Info("hidden")
	a.Error("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("bogus"))
}
