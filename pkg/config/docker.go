package config

import (
	"os"
	"sync"
)

var (
	dockerOnce sync.Once
	inDocker   bool

	// dockerEnvPath is a variable so tests can point detection elsewhere.
	dockerEnvPath = "/.dockerenv"
)

// IsRunningInDocker reports whether the process runs inside a Docker container,
// detected by the /.dockerenv marker. The result is cached.
func IsRunningInDocker() bool {
	dockerOnce.Do(func() {
		_, err := os.Stat(dockerEnvPath)
		inDocker = err == nil
	})
	return inDocker
}

// resolveHost maps loopback hosts to host.docker.internal when running in Docker,
// so a containerized engine reaches Postgres and Redis on the host machine.
func resolveHost(host string, docker bool) string {
	if !docker {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}

// applyDockerHosts rewrites loopback service hosts when running in Docker.
func (c *Config) applyDockerHosts(docker bool) {
	c.Database.Host = resolveHost(c.Database.Host, docker)
	c.Redis.Host = resolveHost(c.Redis.Host, docker)
}
