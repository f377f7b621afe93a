package docker

import (
	"sort"
	"time"
)

// Runtime describes how one language is run inside its sandbox image.
type Runtime struct {
	// Image is the Docker image the pool pre-warms for this language.
	Image string
	// Command builds the exec command line for a piece of code.
	Command func(code string) []string
}

// Config holds the configuration for Docker execution.
type Config struct {
	// Runtimes is keyed by canonical language name (see executor.CanonicalLanguage).
	Runtimes map[string]Runtime
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// Timeout is the maximum amount of time one execution can take.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers kept per runtime.
	PoolSize int
}

// DefaultRuntimes are the sandboxes shipped out of the box.
func DefaultRuntimes() map[string]Runtime {
	return map[string]Runtime{
		"python": {
			Image:   "python:3.12-alpine",
			Command: func(code string) []string { return []string{"python", "-c", code} },
		},
		"javascript": {
			Image:   "node:22-alpine",
			Command: func(code string) []string { return []string{"node", "-e", code} },
		},
		"shell": {
			Image:   "alpine:3.20",
			Command: func(code string) []string { return []string{"sh", "-c", code} },
		},
	}
}

// DefaultConfig provides sensible defaults for the sandboxes.
func DefaultConfig() Config {
	return Config{
		Runtimes: DefaultRuntimes(),
		// 128 MB memory limit
		MemoryLimit: 128 * 1024 * 1024,
		// 0.5 CPU shares
		CPULimit: 0.5,
		Timeout:  5 * time.Second,
		PoolSize: 2,
	}
}

// Languages returns the configured language names in sorted order.
func (c Config) Languages() []string {
	langs := make([]string, 0, len(c.Runtimes))
	for l := range c.Runtimes {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
