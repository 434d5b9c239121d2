package docker

import (
	"time"
)

// Toolchain is the image and command line that runs one language. The code
// is appended to Command as the last argument.
type Toolchain struct {
	Image   string
	Command []string
}

// Config holds the settings for the Docker executor.
type Config struct {
	// Toolchains maps a Piston language id to the container that runs it.
	// Only interpreters that accept code on the command line fit here,
	// because containers run with a read-only root filesystem.
	Toolchains map[string]Toolchain

	// MemoryLimit is the memory cap per container, in bytes.
	MemoryLimit int64

	// CPULimit is the fraction of one CPU a container may use.
	CPULimit float64

	// Timeout is the maximum execution time per request.
	Timeout time.Duration

	// PoolSize is the number of pre-warmed containers kept per language.
	PoolSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Toolchains: map[string]Toolchain{
			"javascript": {Image: "node:20-alpine", Command: []string{"node", "-e"}},
			"python":     {Image: "python:3.12-alpine", Command: []string{"python", "-c"}},
			"ruby":       {Image: "ruby:3.3-alpine", Command: []string{"ruby", "-e"}},
			"php":        {Image: "php:8.3-cli-alpine", Command: []string{"php", "-r"}},
		},
		MemoryLimit: 128 * 1024 * 1024,
		CPULimit:    0.5,
		Timeout:     5 * time.Second,
		PoolSize:    2,
	}
}
