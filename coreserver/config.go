// The MIT License (MIT)
//
// Copyright (c) 2024 the project-palleon authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// PluginConfig is one entry of the Input/Data maps: how to spawn and what
// environment to hand one out-of-process plugin.
type PluginConfig struct {
	Command          []string          `json:"command"`
	Environment      map[string]string `json:"environment"`
	WorkingDirectory string            `json:"working_directory"`
}

// Config is the top-level configuration document for coreserver.
type Config struct {
	BindAddr           string                  `json:"bind_addr"`
	BindPortRangeStart uint16                  `json:"bind_port_range_start"`
	BindPortGUI        uint16                  `json:"bind_port_gui"`
	Input              map[string]PluginConfig `json:"input"`
	Data               map[string]PluginConfig `json:"data"`
	LogFile            string                  `json:"log"`
	Quiet              bool                    `json:"quiet"`
	Pprof              bool                    `json:"pprof"`
}

// configSchema is the structural contract the raw JSON document must satisfy
// before it is unmarshalled into a Config, per SPEC_FULL.md §3.1.
const configSchema = `{
  "type": "object",
  "required": ["bind_addr", "bind_port_range_start"],
  "properties": {
    "bind_addr": {"type": "string", "minLength": 1},
    "bind_port_range_start": {"type": "integer", "minimum": 0, "maximum": 65535},
    "bind_port_gui": {"type": "integer", "minimum": 0, "maximum": 65535},
    "input": {"type": "object", "additionalProperties": {"$ref": "#/definitions/plugin"}},
    "data": {"type": "object", "additionalProperties": {"$ref": "#/definitions/plugin"}},
    "log": {"type": "string"},
    "quiet": {"type": "boolean"},
    "pprof": {"type": "boolean"}
  },
  "definitions": {
    "plugin": {
      "type": "object",
      "required": ["command", "working_directory"],
      "properties": {
        "command": {"type": "array", "minItems": 1, "items": {"type": "string"}},
        "environment": {"type": "object", "additionalProperties": {"type": "string"}},
        "working_directory": {"type": "string", "minLength": 1}
      }
    }
  }
}`

// loadConfig reads path, validates its structure against configSchema, and
// unmarshals it into a Config. Both the schema check and the JSON decode
// must pass before a Config is handed back to the caller.
func loadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config file %s", path)
	}

	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	docLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return Config{}, errors.Wrap(err, "validating config against schema")
	}
	if !result.Valid() {
		msg := "config failed schema validation:"
		for _, e := range result.Errors() {
			msg += "\n  - " + e.String()
		}
		return Config{}, errors.New(msg)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg, nil
}

// validate checks the invariants the schema can't express: the port range
// starting at BindPortRangeStart and spanning every input and data plugin
// must not overflow uint16, per SPEC_FULL.md §5.
func (c Config) validate() error {
	total := len(c.Input) + len(c.Data)
	if int(c.BindPortRangeStart)+total > 1<<16 {
		return errors.Errorf("bind_port_range_start %d plus %d plugins overflows the port space",
			c.BindPortRangeStart, total)
	}
	for name, p := range c.Input {
		if err := validatePlugin(name, p); err != nil {
			return err
		}
	}
	for name, p := range c.Data {
		if err := validatePlugin(name, p); err != nil {
			return err
		}
	}
	return nil
}

func validatePlugin(name string, p PluginConfig) error {
	if len(p.Command) == 0 || p.Command[0] == "" {
		return errors.Errorf("plugin %q: command must name an executable", name)
	}
	if p.WorkingDirectory == "" {
		return errors.Errorf("plugin %q: working_directory must not be empty", name)
	}
	return nil
}

// inputNames and dataNames return each map's keys in a stable, sorted
// order so port allocation and fan-out ordering are deterministic across
// runs of the same configuration.
func (c Config) inputNames() []string { return sortedKeys(c.Input) }
func (c Config) dataNames() []string  { return sortedKeys(c.Data) }

func sortedKeys(m map[string]PluginConfig) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
