// Package version reports the build version of the client and CLI.
//
// Version, commit and build time are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/IshaanChat/ubiquitous-octo-pancake/version.Version=1.2.0" ./cmd/snowctl
//
// When they are not set, VCS settings embedded by the Go toolchain are used.
package version
