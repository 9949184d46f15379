package config

import (
	"os"
	"strings"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv file which exists in all Docker containers.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker returns host.docker.internal for loopback hosts when
// running in Docker so databases on the host machine stay reachable.
// Otherwise, returns the original host unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}

	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}

	return host
}

// rewriteDSNHosts applies resolve to the host part of every comma-separated
// host:port segment. Segments without a port are left untouched.
func rewriteDSNHosts(dsn string, resolve func(string) string) string {
	segments := strings.Split(dsn, ",")
	for i, seg := range segments {
		trimmed := strings.TrimSpace(seg)
		idx := strings.LastIndex(trimmed, ":")
		if idx < 0 {
			continue
		}
		segments[i] = resolve(trimmed[:idx]) + trimmed[idx:]
	}
	return strings.Join(segments, ",")
}
