// Package paizhu holds build metadata for the paizhu tools.
package paizhu

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/paizhu/pkg/paizhu.Version=...".
var Version = "0.1.0"

// ModulePath is the Go module path of this repository.
const ModulePath = "github.com/mesh-intelligence/paizhu"
