// Package envconfig reads vggplan settings from the environment.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// MemoryLimit caps engine allocations in bytes; 0 is unlimited.
	MemoryLimit = Uint64("VGGPLAN_MEMORY_LIMIT", 0)

	// NumThreads sets the kernel worker count; 0 uses one per CPU.
	NumThreads = Uint("VGGPLAN_NUM_THREADS", 0)

	// DataDir is the directory holding the IDX dataset files.
	DataDir = String("VGGPLAN_DATA")
)

// LogLevel returns the log level.
// Configurable via VGGPLAN_DEBUG: 0/false = INFO (default), 1/true = DEBUG,
// larger integers step further down.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("VGGPLAN_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// Var returns an environment variable stripped of surrounding quotes and spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// String returns a getter for a string variable.
func String(key string) func() string {
	return func() string {
		return Var(key)
	}
}

// Uint returns a getter for an unsigned variable with a default.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Uint64 returns a getter for an unsigned 64-bit variable with a default.
func Uint64(key string, defaultValue uint64) func() uint64 {
	return func() uint64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return n
			}
		}
		return defaultValue
	}
}

// EnvVar describes one setting.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every setting with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"VGGPLAN_DEBUG":        {"VGGPLAN_DEBUG", LogLevel(), "Show additional debug information (e.g. VGGPLAN_DEBUG=1)"},
		"VGGPLAN_MEMORY_LIMIT": {"VGGPLAN_MEMORY_LIMIT", MemoryLimit(), "Maximum bytes the engine may allocate (default: unlimited)"},
		"VGGPLAN_NUM_THREADS":  {"VGGPLAN_NUM_THREADS", NumThreads(), "Kernel worker goroutines (default: one per CPU)"},
		"VGGPLAN_DATA":         {"VGGPLAN_DATA", DataDir(), "Directory with train-images-idx3-ubyte and train-labels-idx1-ubyte"},
	}
}

// Values returns every setting formatted as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
