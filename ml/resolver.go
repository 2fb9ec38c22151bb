package ml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver locates an artifact on local storage.
type Resolver interface {
	Resolve() (string, error)
	String() string
}

// CandidatePaths resolves to the first path that exists as a regular file.
type CandidatePaths []string

// Resolve returns the first candidate that is a regular file.
func (c CandidatePaths) Resolve() (string, error) {
	for _, path := range c {
		if fileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: none of %d candidate paths exist", ErrArtifactUnavailable, len(c))
}

// String lists the candidates for log and error messages.
func (c CandidatePaths) String() string {
	return "candidates[" + strings.Join(c, ", ") + "]"
}

// PointerFile names a text file whose content is a previously recorded artifact
// path. Relative content is taken relative to the pointer's directory.
type PointerFile string

// Resolve reads the pointer and checks that the named file exists.
func (p PointerFile) Resolve() (string, error) {
	path := string(p)
	if path == "" {
		return "", fmt.Errorf("%w: no pointer file configured", ErrArtifactUnavailable)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read pointer %s: %w", ErrArtifactUnavailable, path, err)
	}
	target := strings.TrimSpace(string(payload))
	if target == "" {
		return "", fmt.Errorf("%w: pointer %s is empty", ErrArtifactUnavailable, path)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	if !fileExists(target) {
		return "", fmt.Errorf("%w: pointer %s names missing file %s", ErrArtifactUnavailable, path, target)
	}
	return target, nil
}

// String names the pointer file for log and error messages.
func (p PointerFile) String() string {
	return "pointer[" + string(p) + "]"
}

// ResolveFirst tries resolvers in order and returns the first path found.
// The error joins every resolver's failure.
func ResolveFirst(resolvers ...Resolver) (string, error) {
	if len(resolvers) == 0 {
		return "", fmt.Errorf("%w: no resolvers configured", ErrArtifactUnavailable)
	}
	var errs []error
	for _, r := range resolvers {
		path, err := r.Resolve()
		if err == nil {
			return path, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", r, err))
	}
	return "", errors.Join(errs...)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
