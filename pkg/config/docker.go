package config

import (
	"os"
	"sync"
)

// dockerHostAlias reaches services published on the host from inside a container.
const dockerHostAlias = "host.docker.internal"

// containerMarkers exist in Docker and Podman containers respectively.
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

var (
	inContainerOnce   sync.Once
	inContainerResult bool
)

// IsRunningInContainer reports whether orgpulse runs inside a container.
// The result is cached after the first call.
func IsRunningInContainer() bool {
	inContainerOnce.Do(func() {
		inContainerResult = detectContainer(os.Stat)
	})
	return inContainerResult
}

func detectContainer(stat func(string) (os.FileInfo, error)) bool {
	for _, marker := range containerMarkers {
		if _, err := stat(marker); err == nil {
			return true
		}
	}
	return false
}

// ResolveHostForDocker maps loopback hosts to the container host alias when
// running in a container, so Postgres and Redis on the developer machine stay
// reachable. Any other host is returned unchanged.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInContainer())
}

func resolveHost(host string, inContainer bool) string {
	if !inContainer {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return dockerHostAlias
	}
	return host
}
