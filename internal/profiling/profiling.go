// Package profiling wires pprof output behind the serve command's
// --cpu-profile and --mem-profile flags.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// StartCPU begins CPU profiling into path. The returned stop function
// flushes and closes the profile and must be called before exit.
func StartCPU(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile %s: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

// WriteHeap writes a point-in-time heap profile to path. A GC runs first so
// the snapshot reflects live objects.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}

// WriteGoroutines dumps all goroutine stacks to path. Useful when the
// server appears stuck.
func WriteGoroutines(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create goroutine profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := pprof.Lookup("goroutine").WriteTo(f, 1); err != nil {
		return fmt.Errorf("failed to write goroutine profile: %w", err)
	}
	return nil
}
