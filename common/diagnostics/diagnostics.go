// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package diagnostics attaches the runtime profiling facilities to CLI
// commands.
package diagnostics

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"

	"github.com/urfave/cli/v2"
)

// WithProfiling wraps a command action such that the profiling facilities
// selected on the command line are active while the action runs. The port
// flag enables an HTTP server exposing live pprof data, the two file flags
// make the run record a CPU profile and an execution trace into the named
// files.
func WithProfiling(action cli.ActionFunc, portFlag *cli.IntFlag, cpuProfileFlag, traceFlag *cli.StringFlag) cli.ActionFunc {
	return func(context *cli.Context) error {
		servePprof(context.Int(portFlag.Names()[0]))

		if name := strings.TrimSpace(context.String(cpuProfileFlag.Names()[0])); name != "" {
			stop, err := profileCpu(name)
			if err != nil {
				return err
			}
			defer stop()
		}

		if name := strings.TrimSpace(context.String(traceFlag.Names()[0])); name != "" {
			stop, err := recordTrace(name)
			if err != nil {
				return err
			}
			defer stop()
		}

		return action(context)
	}
}

// servePprof starts a server exposing live runtime diagnostics on the
// given port. Ports outside the valid range disable the server.
func servePprof(port int) {
	if port <= 0 || port >= (1<<16) {
		return
	}
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)
	fmt.Printf("Profiling data is served on http://localhost:%d/debug/pprof\n", port)
	fmt.Printf("Block and mutex events are sampled at full rate while the server is up, which costs some throughput\n")
	go func() {
		log.Println(http.ListenAndServe(fmt.Sprintf("localhost:%d", port), nil))
	}()
}

// profileCpu starts recording a CPU profile into the named file and
// returns the function finishing the recording.
func profileCpu(filename string) (func(), error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(file); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to start the CPU profiler: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		file.Close()
	}, nil
}

// recordTrace starts recording an execution trace into the named file and
// returns the function finishing the recording.
func recordTrace(filename string) (func(), error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := trace.Start(file); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to start the tracer: %w", err)
	}
	return func() {
		trace.Stop()
		file.Close()
	}, nil
}
