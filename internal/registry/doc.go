// Package registry provides the central "glue" for the kernel system.
//
// The Registry maps the algorithm names used in kernel manifests (e.g.
// `algorithm = "slr"`) to the compiled Go kernels and input types that
// implement them. It also holds the parsed, format-agnostic kernel
// definitions from the manifests themselves.
//
// During application startup, the registry is populated and then validated to
// ensure that the Go code and the public-facing manifests are perfectly in
// sync, preventing a wide class of runtime errors.
package registry
