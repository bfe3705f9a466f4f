//go:build unix

package probe

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Rusage reads this process's cumulative OS resource accounting. ok is false
// if the platform refuses the call; callers skip the statistics in that case.
func Rusage() (usage OSUsage, ok bool) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return OSUsage{}, false
	}
	return OSUsage{
		UserTime:   float64(ru.Utime.Nano()) / 1e9,
		SystemTime: float64(ru.Stime.Nano()) / 1e9,
		MaxRSS:     maxRSSBytes(int64(ru.Maxrss)),
	}, true
}

// maxRSSBytes normalizes ru_maxrss, which is reported in kilobytes on Linux
// and the BSDs but in bytes on Darwin.
func maxRSSBytes(v int64) uint64 {
	if v < 0 {
		return 0
	}
	switch runtime.GOOS {
	case "darwin", "ios":
		return uint64(v)
	default:
		return uint64(v) * 1024
	}
}
