// Package config holds the process-wide settings of the zipstream server.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Archiver names a strategy for producing archives.
type Archiver string

const (
	// ArchiverExec streams the output of an external zip process.
	ArchiverExec Archiver = "exec"
	// ArchiverMemory builds each archive in memory before streaming it.
	ArchiverMemory Archiver = "memory"
)

// Config holds the settings of a server. It is built once at startup and not
// modified afterward.
type Config struct {
	// Logging enables informational log messages. Warnings and errors are always
	// logged.
	Logging bool
	// Delay is an artificial pause inserted after each chunk of an archive
	// stream. Zero disables it.
	Delay time.Duration
	// PhotosDir is the base directory holding one subdirectory per archive.
	PhotosDir string
	Port      int
	// ChunkSize is the maximum number of bytes written to a client at once.
	ChunkSize int
	IndexFile string
	Archiver  Archiver
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		PhotosDir: "test_photos",
		Port:      8080,
		ChunkSize: 64 << 10,
		IndexFile: "index.html",
		Archiver:  ArchiverExec,
	}
}

// FromEnv returns the default configuration with any overrides found through
// getenv, which is normally os.Getenv. Empty variables are ignored.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	var errs []error

	if v := getenv("LOGGING"); v != "" {
		c.Logging = parseSwitch(v)
	}
	if v := getenv("RESPONSE_DELAY"); v != "" {
		d, err := ParseDelay(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RESPONSE_DELAY: %w", err))
		}
		c.Delay = d
	}
	if v := getenv("PHOTOS_DIR"); v != "" {
		c.PhotosDir = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		}
		c.Port = port
	}
	if v := getenv("CHUNK_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHUNK_SIZE: %w", err))
		}
		c.ChunkSize = size
	}
	if v := getenv("INDEX_FILE"); v != "" {
		c.IndexFile = v
	}
	if v := getenv("ARCHIVER"); v != "" {
		c.Archiver = Archiver(strings.ToLower(v))
	}

	return c, errors.Join(errs...)
}

// parseSwitch matches the spellings accepted for boolean environment switches.
func parseSwitch(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// ParseDelay parses a delay given either as a number of seconds, possibly
// fractional, or as a Go duration string like "250ms".
func ParseDelay(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q", v)
	}
	return d, nil
}

// Validate reports every setting of c that the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %v", c.Delay))
	}
	if c.PhotosDir == "" {
		errs = append(errs, errors.New("photos directory is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize))
	}
	switch c.Archiver {
	case ArchiverExec, ArchiverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown archiver %q", c.Archiver))
	}
	return errors.Join(errs...)
}

// Addr returns the TCP address the server listens on.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
