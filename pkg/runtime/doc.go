/*
Package runtime is sentinel's port to the container runtime.

The Runtime interface covers the handful of operations the control loops need:
inspect and restart containers, follow their logs, and inspect, remove and
create the shared resolver network.

	┌───────────── Runtime port ─────────────┐
	│                                          │
	│  reconciler ──┐                          │
	│  analyzer ────┼──► Runtime ──┬─► Docker  │
	│  health ──────┘              └─► containerd
	│                                          │
	└──────────────────────────────────────────┘

# Drivers

DockerRuntime talks to the Docker Engine API. It is the default driver and the
only one that can manage networks (macvlan with a parent interface).

ContainerdRuntime talks to containerd in a single namespace. containerd has no
health checks and no network API:

  - GetContainer reports task state only; Health is always empty
  - Restart kills the task (SIGTERM, then SIGKILL after 10s) and starts a new
    one whose output goes to a log file
  - StreamLogs follows that log file; its path comes from the
    sentinel.log-path annotation or <logDir>/<id>.log
  - network operations return ErrUnsupported

# Errors

Missing containers and networks are reported as ErrNotFound (wrapped), so
callers can use errors.Is regardless of the driver.

The runtimetest subpackage provides an in-memory Fake for tests.
*/
package runtime
