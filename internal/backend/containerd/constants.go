package containerd

import "time"

// Backend constants.
const (
	// BackendName is the name used when registering with the backend registry.
	BackendName = "containerd"

	// DefaultAddress is the default containerd socket.
	DefaultAddress = "/run/containerd/containerd.sock"

	// DefaultNamespace is the containerd namespace tasks are created in.
	DefaultNamespace = "ballast"

	// shimPrefix is the mandatory prefix of shim binary names. A binary
	// named containerd-shim-<name>-<version> maps to the runtime
	// io.containerd.<name>.<version>.
	shimPrefix = "containerd-shim-"

	// runtimePrefix is prepended to the parsed shim name.
	runtimePrefix = "io.containerd."

	// connectTimeout bounds the initial connection to the containerd socket.
	connectTimeout = 10 * time.Second

	// snapshotSuffix is appended to the container ID for its snapshot.
	snapshotSuffix = "-snapshot"
)
