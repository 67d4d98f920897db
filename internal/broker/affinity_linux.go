//go:build linux

package broker

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore pins the calling goroutine's OS thread to a single logical CPU,
// chosen by round-robin over NumCPU. It returns an unpin func that restores
// the thread to the full CPU set; callers defer it before releasing the
// locked OS thread. Pinning failures are silently ignored: affinity is a
// scheduling hint, not a correctness requirement.
func pinToCore(workerIdx int) func() {
	runtime.LockOSThread()

	cores := runtime.NumCPU()
	if cores < 1 {
		cores = 1
	}
	target := workerIdx % cores

	var set unix.CPUSet
	set.Zero()
	set.Set(target)
	_ = unix.SchedSetaffinity(0, &set)

	return func() {
		var full unix.CPUSet
		full.Zero()
		for i := 0; i < cores; i++ {
			full.Set(i)
		}
		_ = unix.SchedSetaffinity(0, &full)
		runtime.UnlockOSThread()
	}
}
