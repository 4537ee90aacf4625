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

// Package plugin launches and supervises the out-of-process input/data
// plugins: one child process and one dedicated listener per plugin, the Go
// sibling of plugin.rs in the original.
package plugin

import "github.com/pkg/errors"

// Kind distinguishes an input plugin from a data plugin.
type Kind int

const (
	Input Kind = iota
	Data
)

func (k Kind) String() string {
	if k == Input {
		return "input"
	}
	return "data"
}

// Config is the immutable descriptor of one plugin, built once from the
// loaded configuration document.
type Config struct {
	Name      string
	Kind      Kind
	BindHost  string
	BindPort  uint16
	Command   []string
	Env       map[string]string
	Cwd       string
}

// Validate checks the fields the supervisor cannot recover from if wrong.
// Fail-construct with a descriptive error, per spec.md §4.3 step 1.
func (c Config) Validate() error {
	if len(c.Command) == 0 || c.Command[0] == "" {
		return errors.Errorf("plugin %q: command must name an executable", c.Name)
	}
	if c.Cwd == "" {
		return errors.Errorf("plugin %q: working_directory must not be empty", c.Name)
	}
	return nil
}
