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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTemp(t, `
env:
  application: { name: demo }
sources:
  - outputs: [orders]
    schema: "id:int, amount:double"
    type: generator
sinks:
  - inputs: [orders]
    type: stdout
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Env.Application.Parallelism)
	assert.Equal(t, defaultWebPort, cfg.Env.Web.Port)
	assert.Equal(t, defaultWebWorks, cfg.Env.Web.Works)
	assert.Len(t, cfg.Sources, 1)
	assert.Equal(t, "generator", cfg.Sources[0].Type)
}

func TestLoad_RejectsEmptySourcesOrSinks(t *testing.T) {
	path := writeTemp(t, `
env:
  application: { name: demo }
sources: []
sinks:
  - inputs: [x]
    type: stdout
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestNode_ParsedSchemaAndFields(t *testing.T) {
	n := Node{
		Schema: "id:int, name:string",
		Fields: map[string]interface{}{"rate": 5, "format": "json"},
	}
	s, err := n.ParsedSchema()
	require.NoError(t, err)
	assert.Len(t, s, 2)
	assert.Equal(t, "json", n.StringField("format"))
	assert.Equal(t, 5, n.IntField("rate", -1))
	assert.Equal(t, -1, n.IntField("missing", -1))
}

func TestActiveSinkSet_EmptyListActivatesAll(t *testing.T) {
	cfg := &Config{Sinks: []Node{
		{Inputs: []string{"a"}, Type: "stdout"},
		{Inputs: []string{"b"}, Type: "stdout"},
	}}
	active := cfg.ActiveSinkSet()
	assert.Len(t, active, 2)
}

func TestActiveSinkSet_AllowListNarrows(t *testing.T) {
	cfg := &Config{
		Sinks: []Node{
			{Inputs: []string{"a"}, Type: "stdout", Fields: map[string]interface{}{"name": "primary"}},
			{Inputs: []string{"b"}, Type: "stdout", Fields: map[string]interface{}{"name": "secondary"}},
		},
		ActiveSinks: []string{"primary"},
	}
	active := cfg.ActiveSinkSet()
	assert.True(t, active["primary"])
	assert.False(t, active["secondary"])
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ciphertext, err := EncryptForConfig("s3cr3t-password")
	require.NoError(t, err)

	plain, err := decryptAESCBC(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-password", plain)
}

func TestDecryptFields_ReplacesInPlace(t *testing.T) {
	ciphertext, err := EncryptForConfig("hunter2")
	require.NoError(t, err)

	raw := []byte("password: enc@(" + ciphertext + ")\nother: plain\n")
	out, err := decryptFields(raw)
	require.NoError(t, err)
	assert.Contains(t, string(out), "password: hunter2")
	assert.Contains(t, string(out), "other: plain")
}
