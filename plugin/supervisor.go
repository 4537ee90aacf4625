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

package plugin

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/project-palleon/core/stream"
)

// Handler processes the single connection a Supervisor's listener accepts.
// It runs on the supervisor's own goroutine; no further connection is
// accepted, and the socket task ends when it returns.
type Handler interface {
	Handle(name string, s *stream.Stream)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(name string, s *stream.Stream)

func (f HandlerFunc) Handle(name string, s *stream.Stream) { f(name, s) }

// StoppedReason names which half of a Supervisor was observed to have
// exited.
type StoppedReason int

const (
	// NotStopped is the zero value: nothing has been observed to stop yet.
	NotStopped StoppedReason = iota
	SocketTaskStopped
	ChildProcessStopped
)

// Supervisor owns exactly one plugin's child process and listener
// goroutine, per spec.md §4.3.
type Supervisor struct {
	cfg        Config
	instanceID string
	log        log15.Logger

	listener net.Listener
	cmd      *exec.Cmd

	socketDone int32 // atomic bool: listener goroutine has returned
	childDone  int32 // atomic bool: child process Wait() has returned
	stopReason atomic.Value // StoppedReason, once latched it never resets
}

// Start validates cfg, binds its listener, spawns the handler goroutine,
// and spawns the child process. Bind or spawn failure is fatal, per
// spec.md §4.3 steps 2 and 4.
func Start(cfg Config, handler Handler, parentLog log15.Logger) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	logger := parentLog.New("plugin", cfg.Name, "kind", cfg.Kind.String(), "instance", id)

	addr := fmt.Sprintf("%s:%d", cfg.BindHost, cfg.BindPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "plugin %q: binding listener on %s", cfg.Name, addr)
	}
	logger.Info("listening", "addr", addr)

	sup := &Supervisor{
		cfg:        cfg,
		instanceID: id,
		log:        logger,
		listener:   lis,
	}

	go sup.acceptLoop(handler)

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Cwd
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, "PALLEON_HOST="+cfg.BindHost, fmt.Sprintf("PALLEON_PORT=%d", cfg.BindPort))

	if err := cmd.Start(); err != nil {
		lis.Close()
		return nil, errors.Wrapf(err, "plugin %q: spawning %v", cfg.Name, cfg.Command)
	}
	sup.cmd = cmd
	logger.Info("spawned", "command", cfg.Command, "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		atomic.StoreInt32(&sup.childDone, 1)
		if err != nil {
			logger.Warn("child process exited", "err", err)
		} else {
			logger.Warn("child process exited", "status", "ok")
		}
	}()

	return sup, nil
}

// acceptLoop accepts exactly one connection and serves it to handler.
// Handlers are single-shot and are not restarted (spec.md §7 item 4): once
// handler.Handle returns — whether the plugin disconnected cleanly or the
// connection died to a protocol violation — the socket task is done and
// socketDone latches, so ErroneouslyStopped() reports SocketTaskStopped and
// the guard can catch it. This mirrors the original's socket thread, which
// terminates as soon as the handler call unwinds it.
func (s *Supervisor) acceptLoop(handler Handler) {
	defer atomic.StoreInt32(&s.socketDone, 1)

	conn, err := s.listener.Accept()
	if err != nil {
		s.log.Warn("listener stopped accepting", "err", err)
		return
	}
	s.log.Info("accepted connection", "remote", conn.RemoteAddr())
	handler.Handle(s.cfg.Name, stream.New(conn))
	s.log.Warn("plugin handler returned, socket task stopping")
}

// ErroneouslyStopped reports the first of {listener task finished, child
// process exited} observed. Once non-zero it stays non-zero.
func (s *Supervisor) ErroneouslyStopped() StoppedReason {
	if existing, ok := s.stopReason.Load().(StoppedReason); ok && existing != NotStopped {
		return existing
	}

	reason := NotStopped
	if atomic.LoadInt32(&s.socketDone) == 1 {
		reason = SocketTaskStopped
	} else if atomic.LoadInt32(&s.childDone) == 1 {
		reason = ChildProcessStopped
	}

	if reason != NotStopped {
		s.stopReason.Store(reason)
	}
	return reason
}

// Name returns the plugin's configured name.
func (s *Supervisor) Name() string { return s.cfg.Name }

// Config returns the plugin's immutable descriptor.
func (s *Supervisor) Config() Config { return s.cfg }
