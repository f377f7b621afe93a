// Package executor runs snippet code in an isolated sandbox.
package executor

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnsupportedLanguage is returned when no sandbox runtime is configured
// for the requested language.
var ErrUnsupportedLanguage = errors.New("executor: unsupported language")

// ExecutionRequest represents a request to execute a snippet.
type ExecutionRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ExecutionResult represents the output and status of the code execution.
// ExitCode 124 means the run was cut off by the sandbox timeout.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

// TimeoutExitCode mirrors the exit status of coreutils timeout(1).
const TimeoutExitCode = 124

// Executor represents the core interface for running code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
	// Languages lists the canonical language names Execute accepts.
	Languages() []string
}

// aliases maps common spellings of a language to its canonical name.
var aliases = map[string]string{
	"py":         "python",
	"python3":    "python",
	"js":         "javascript",
	"node":       "javascript",
	"nodejs":     "javascript",
	"sh":         "shell",
	"bash":       "shell",
	"javascript": "javascript",
	"python":     "python",
	"shell":      "shell",
}

// CanonicalLanguage lowercases a snippet's language label and resolves known
// aliases. Unknown labels come back lowercased and unchanged.
func CanonicalLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if c, ok := aliases[l]; ok {
		return c
	}
	return l
}
