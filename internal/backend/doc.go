// Package backend defines the capability interface that all task runtimes
// (the real containerd client, the deterministic in-process stand-in) must
// implement, along with the registry used to resolve a backend by name.
package backend
