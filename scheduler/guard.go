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

package scheduler

import (
	"os"

	"github.com/inconshreveable/log15"
	"github.com/project-palleon/core/plugin"
)

// Guard is the supervision guard (C8): invoked at the top of each
// scheduler iteration, it aborts the process the instant any plugin or
// listener task has stopped. Deliberate crash-stop — see spec.md §7.
type Guard struct {
	plugins []*plugin.Supervisor
	log     log15.Logger
}

// NewGuard watches every plugin in plugins.
func NewGuard(plugins []*plugin.Supervisor, log log15.Logger) *Guard {
	return &Guard{plugins: plugins, log: log}
}

// CheckAllOrAbort queries every plugin's liveness; if any has stopped it
// logs a diagnostic and terminates the process with a non-zero exit code.
//
// os.Exit is used rather than panic() so the diagnostic log line is
// guaranteed to be written before the process dies — a bare panic racing
// log15's handler could interleave with or drop it.
func (g *Guard) CheckAllOrAbort() {
	for _, p := range g.plugins {
		if reason := p.ErroneouslyStopped(); reason != plugin.NotStopped {
			g.log.Crit("plugin or handler task exited unexpectedly, aborting",
				"plugin", p.Name(), "reason", reasonString(reason))
			os.Exit(1)
		}
	}
}

func reasonString(r plugin.StoppedReason) string {
	switch r {
	case plugin.SocketTaskStopped:
		return "socket_task"
	case plugin.ChildProcessStopped:
		return "child_process"
	default:
		return "unknown"
	}
}
