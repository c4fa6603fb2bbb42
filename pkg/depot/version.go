// Package depot exposes build metadata for the depot tools.
package depot

// Version is the current release version, overridable at build time with
// -ldflags "-X github.com/panelhost/depot/pkg/depot.Version=...".
var Version = "0.1.0"
