// Package version provides build and version information for AdventureEngine.
package version

// Version is the current release version of AdventureEngine.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/AdventureEngine/internal/version.Version=x.y.z"
var Version = "0.1.0"
