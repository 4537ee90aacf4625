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
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/fatih/color"
	"github.com/inconshreveable/log15"
	"github.com/urfave/cli"

	"github.com/project-palleon/core/data"
	"github.com/project-palleon/core/gui"
	"github.com/project-palleon/core/history"
	"github.com/project-palleon/core/input"
	"github.com/project-palleon/core/model"
	"github.com/project-palleon/core/plugin"
	"github.com/project-palleon/core/scheduler"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	myApp := cli.NewApp()
	myApp.Name = "coreserver"
	myApp.Usage = "plugin-orchestrating frame processing core"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to the JSON configuration document",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.BoolFlag{
			Name:  "quiet",
			Usage: "to suppress the per-frame log lines",
		},
		cli.BoolFlag{
			Name:  "pprof",
			Usage: "start profiling server on :6060",
		},
	}
	myApp.Action = run
	if err := myApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		return cli.NewExitError("a -config/-c path is required", 1)
	}

	cfg, err := loadConfig(path)
	checkError(err)

	if c.IsSet("log") {
		cfg.LogFile = c.String("log")
	}
	if c.Bool("quiet") {
		cfg.Quiet = true
	}
	if c.Bool("pprof") {
		cfg.Pprof = true
	}

	checkError(cfg.validate())

	root := buildLogger(cfg.LogFile)
	warnAboutNameCollisions(cfg)

	inputNames := cfg.inputNames()
	dataNames := cfg.dataNames()

	root.Info("starting",
		"version", VERSION,
		"bind_addr", cfg.BindAddr,
		"bind_port_range_start", cfg.BindPortRangeStart,
		"bind_port_gui", cfg.BindPortGUI,
		"inputs", len(inputNames),
		"data_plugins", len(dataNames),
		"quiet", cfg.Quiet,
	)

	if cfg.Pprof {
		go http.ListenAndServe(":6060", nil)
	}

	inputPorts, dataPorts := plugin.AllocatePorts(cfg.BindPortRangeStart, inputNames, dataNames)
	store := history.New()

	var supervisors []*plugin.Supervisor
	imageRx := make([]<-chan model.Frame, len(inputNames))
	imageTx := make([]chan<- model.Frame, len(dataNames))
	dataRx := make([]<-chan model.Datum, len(dataNames))

	for i, name := range inputNames {
		plg := cfg.Input[name]
		ch := make(chan model.Frame)
		imageRx[i] = ch

		descriptor := plugin.Config{
			Name:     name,
			Kind:     plugin.Input,
			BindHost: cfg.BindAddr,
			BindPort: inputPorts[name],
			Command:  plg.Command,
			Env:      plg.Environment,
			Cwd:      plg.WorkingDirectory,
		}
		handler := input.New(ch, root, cfg.Quiet)
		sup, err := plugin.Start(descriptor, handler, root)
		checkError(err)
		supervisors = append(supervisors, sup)
	}

	for i, name := range dataNames {
		plg := cfg.Data[name]
		frameCh := make(chan model.Frame)
		datumCh := make(chan model.Datum)
		imageTx[i] = frameCh
		dataRx[i] = datumCh

		descriptor := plugin.Config{
			Name:     name,
			Kind:     plugin.Data,
			BindHost: cfg.BindAddr,
			BindPort: dataPorts[name],
			Command:  plg.Command,
			Env:      plg.Environment,
			Cwd:      plg.WorkingDirectory,
		}
		handler := data.New(frameCh, datumCh, store, root)
		sup, err := plugin.Start(descriptor, handler, root)
		checkError(err)
		supervisors = append(supervisors, sup)
	}

	var guiChannels *scheduler.GUIChannels
	if cfg.BindPortGUI != 0 {
		guiImages := make(chan model.Frame, 10)
		guiData := make(chan model.Datum, 10)
		guiAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.BindPortGUI)
		connector, err := gui.Start(guiAddr, guiImages, guiData, root)
		checkError(err)
		guiChannels = &scheduler.GUIChannels{Images: guiImages, Data: guiData, Attached: connector.Attached}
	}

	guard := scheduler.NewGuard(supervisors, root)
	sch := scheduler.New(inputNames, imageRx, dataNames, imageTx, dataRx, store, guard, guiChannels, root)
	sch.Run()
	return nil
}

func buildLogger(logFile string) log15.Logger {
	root := log15.New()
	if logFile == "" {
		root.SetHandler(log15.StreamHandler(os.Stderr, log15.LogfmtFormat()))
		return root
	}

	f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	checkError(err)
	root.SetHandler(log15.StreamHandler(f, log15.LogfmtFormat()))
	return root
}

// warnAboutNameCollisions flags a plugin name declared as both an input and
// a data plugin: the same name would then tag two different plugins in the
// logs and appear both as a series producer and as a frame source in the
// history store and GUI mirror.
func warnAboutNameCollisions(cfg Config) {
	for name := range cfg.Input {
		if _, ok := cfg.Data[name]; ok {
			color.Yellow("warning: %q is configured as both an input and a data plugin", name)
		}
	}
}

func checkError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
