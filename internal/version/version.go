// Package version carries the build version stamped in at link time.
package version

// Version is overridden by -ldflags "-X .../internal/version.Version=v1.2.3".
var Version = "dev"
