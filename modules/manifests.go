// Package modules holds the compiled-in transform kernels. Each kernel lives
// in its own sub-package next to the HCL manifest that declares its
// parameters.
package modules

import "embed"

// Manifests embeds every kernel manifest shipped with the binary.
//
//go:embed */manifest.hcl
var Manifests embed.FS
