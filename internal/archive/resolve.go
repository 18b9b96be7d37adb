package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var (
	// ErrNotFound is returned when an identifier does not name an existing
	// archive directory.
	ErrNotFound = errors.New("archive not found")

	// ErrInvalidIdentifier is returned for identifiers that could escape the
	// base directory or break response headers. It wraps ErrNotFound, so clients
	// cannot tell a rejected identifier from a missing archive.
	ErrInvalidIdentifier = fmt.Errorf("invalid identifier: %w", ErrNotFound)
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Resolver maps archive identifiers to directories under Root.
type Resolver struct {
	Root string
}

// Resolve returns the directory holding the archive named by identifier.
//
// Identifiers come straight from request URLs, so only letters, digits, '.',
// '_' and '-' are accepted, and "." and ".." are rejected outright.
func (r Resolver) Resolve(identifier string) (string, error) {
	if !identifierPattern.MatchString(identifier) || identifier == "." || identifier == ".." {
		return "", ErrInvalidIdentifier
	}

	root := filepath.Clean(r.Root)
	dir := filepath.Join(root, identifier)
	if filepath.Dir(dir) != root {
		return "", ErrInvalidIdentifier
	}

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("checking archive directory: %w", err)
	}
	if !info.IsDir() {
		return "", ErrNotFound
	}
	return dir, nil
}
