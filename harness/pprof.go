// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"go.uber.org/multierr"
)

// profiler captures the CPU profile for the whole run and writes heap and
// allocation snapshots when it stops.
type profiler struct {
	cpuFile   *os.File
	snapshots map[string]string
}

func startProfiler(opts Options) (*profiler, error) {
	if opts.PprofCPU == "" && opts.PprofHeap == "" && opts.PprofAllocs == "" {
		return nil, nil
	}

	prof := &profiler{snapshots: map[string]string{}}
	if opts.PprofHeap != "" {
		prof.snapshots["heap"] = opts.PprofHeap
	}
	if opts.PprofAllocs != "" {
		prof.snapshots["allocs"] = opts.PprofAllocs
	}
	if opts.PprofCPU == "" {
		return prof, nil
	}

	file, err := createProfileFile(opts.PprofCPU)
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(file); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("harness: start cpu profile: %w", err)
	}
	prof.cpuFile = file

	return prof, nil
}

func (p *profiler) Stop() error {
	if p == nil {
		return nil
	}

	var err error
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if closeErr := p.cpuFile.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("harness: close cpu profile: %w", closeErr))
		}
	}
	if len(p.snapshots) > 0 {
		runtime.GC()
	}
	for _, name := range []string{"heap", "allocs"} {
		if path, ok := p.snapshots[name]; ok {
			err = multierr.Append(err, writeProfile(path, name))
		}
	}

	return err
}

func writeProfile(path, name string) error {
	prof := pprof.Lookup(name)
	if prof == nil {
		return fmt.Errorf("harness: %s profile unavailable", name)
	}
	file, err := createProfileFile(path)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	if err := prof.WriteTo(file, 0); err != nil {
		return fmt.Errorf("harness: write %s profile: %w", name, err)
	}

	return nil
}

func createProfileFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("harness: create profile dir %q: %w", dir, err)
		}
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("harness: create profile file %q: %w", path, err)
	}

	return file, nil
}
