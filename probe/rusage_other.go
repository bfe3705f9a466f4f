//go:build !unix

package probe

// Rusage is unavailable on this platform. The statistics it would feed are
// left unset, which readers treat as "not measured" rather than an error.
func Rusage() (OSUsage, bool) {
	return OSUsage{}, false
}
