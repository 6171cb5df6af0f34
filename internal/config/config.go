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

// Package config loads and validates the engine's YAML configuration
// (§6): the env/sources/transforms/sinks/active_sinks document, its
// enc@(...) encrypted scalars, and the per-source schema DSL.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flowetl/flowetl/internal/schema"
)

// Application holds the engine-wide identity and default fan-out.
type Application struct {
	Name        string `yaml:"name"`
	Parallelism int    `yaml:"parallelism"`
}

// Web configures the optional metrics/observability HTTP listener.
// Wiring an actual HTTP server against it is out of core scope (§1);
// the field set is carried so a complete config document round-trips.
type Web struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	Works   int  `yaml:"works"`
}

// Env is the top-level "env" block.
type Env struct {
	Application Application `yaml:"application"`
	Web         Web         `yaml:"web"`
}

// Node is the shared shape of one source/transform/sink config entry: a
// type tag plus an open-ended field set, since "tag set and fields are
// extensible" (§6). Inputs is empty for sources; Outputs is empty for
// sinks.
type Node struct {
	Inputs  []string               `yaml:"inputs,omitempty"`
	Outputs []string               `yaml:"outputs,omitempty"`
	Schema  string                 `yaml:"schema,omitempty"`
	Type    string                 `yaml:"type"`
	Fields  map[string]interface{} `yaml:",inline"`
}

// ParsedSchema parses this node's schema DSL string, if present.
func (n Node) ParsedSchema() (schema.Schema, error) {
	if n.Schema == "" {
		return nil, nil
	}
	return schema.ParseDSL(n.Schema)
}

// StringField returns Fields[key] coerced to a string, or "" if absent.
func (n Node) StringField(key string) string {
	v, ok := n.Fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// HasField reports whether key was explicitly present in the config
// document, distinguishing "absent" from "present with its zero value"
// (needed for number_of_rows: 0 meaning "end immediately" vs. the field
// being omitted meaning "run unbounded", §8).
func (n Node) HasField(key string) bool {
	_, ok := n.Fields[key]
	return ok
}

// IntField returns Fields[key] coerced to an int, or def if absent or not
// numeric.
func (n Node) IntField(key string, def int) int {
	v, ok := n.Fields[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return def
	}
}

// Config is the fully parsed application.yaml document.
type Config struct {
	Env         Env      `yaml:"env"`
	Sources     []Node   `yaml:"sources"`
	Transforms  []Node   `yaml:"transforms"`
	Sinks       []Node   `yaml:"sinks"`
	ActiveSinks []string `yaml:"active_sinks,omitempty"`
}

const (
	defaultParallelism = 1
	defaultWebPort     = 8000
	defaultWebWorks    = 1
)

// Load reads and parses the YAML configuration at path, applying enc@(...)
// field decryption before unmarshaling and filling documented defaults
// (§6: "parallelism default 1", "default 8000, 1").
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	decrypted, err := decryptFields(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(decrypted, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Env.Application.Parallelism <= 0 {
		c.Env.Application.Parallelism = defaultParallelism
	}
	if c.Env.Web.Port == 0 {
		c.Env.Web.Port = defaultWebPort
	}
	if c.Env.Web.Works == 0 {
		c.Env.Web.Works = defaultWebWorks
	}
}

// validate checks the "required, non-empty" constraints §6 states
// directly in the document (the graph package separately validates name
// resolution and reachability, §4.11).
func (c *Config) validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("sources: at least one source is required")
	}
	if len(c.Sinks) == 0 {
		return fmt.Errorf("sinks: at least one sink is required")
	}
	for i, s := range c.Sources {
		if len(s.Outputs) == 0 {
			return fmt.Errorf("sources[%d]: outputs must be non-empty", i)
		}
		if s.Type == "" {
			return fmt.Errorf("sources[%d]: type is required", i)
		}
	}
	for i, s := range c.Sinks {
		if len(s.Inputs) == 0 {
			return fmt.Errorf("sinks[%d]: inputs must be non-empty", i)
		}
		if s.Type == "" {
			return fmt.Errorf("sinks[%d]: type is required", i)
		}
	}
	return nil
}

// ActiveSinkSet resolves which sinks actually run: an empty/absent
// active_sinks list activates every configured sink (the open question
// §9 leaves to implementers — documented here as the engine's choice:
// "allow-list present and non-empty narrows; absent or empty activates
// all", which matches how an opt-in allow-list is read everywhere else
// in this configuration format).
func (c *Config) ActiveSinkSet() map[string]bool {
	active := make(map[string]bool, len(c.Sinks))
	if len(c.ActiveSinks) == 0 {
		for _, s := range c.Sinks {
			active[s.SinkKey()] = true
		}
		return active
	}
	allow := make(map[string]bool, len(c.ActiveSinks))
	for _, name := range c.ActiveSinks {
		allow[name] = true
	}
	for _, s := range c.Sinks {
		if allow[s.SinkKey()] || allow[s.StringField("name")] {
			active[s.SinkKey()] = true
		}
	}
	return active
}

// SinkKey identifies a sink node for active_sinks matching: its declared
// "name" field if present, else its first input edge name. Exported so
// graph.Build can filter cfg.Sinks against the same key ActiveSinkSet
// produces.
func (n Node) SinkKey() string {
	if name := n.StringField("name"); name != "" {
		return name
	}
	if len(n.Inputs) > 0 {
		return n.Inputs[0]
	}
	return n.Type
}
