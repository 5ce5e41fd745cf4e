// ABOUTME: URI validation and local asset lookup for media playback
// ABOUTME: Assets are found by name in a directory, with any extension
package media

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrInvalidURI is returned for inputs that are neither http(s) URLs nor asset names
	ErrInvalidURI = errors.New("invalid URL: only HTTP/HTTPS URLs or local assets are supported")

	// ErrResourceNotFound is returned when no asset matches a name
	ErrResourceNotFound = errors.New("resource not found")
)

// ValidateURI checks a caller-supplied play target before it reaches the player
func ValidateURI(uri string, isLocalResource bool) error {
	if isLocalResource {
		if !validAssetName(uri) {
			return fmt.Errorf("%w: bad asset name %q", ErrInvalidURI, uri)
		}
		return nil
	}

	if !isRemote(uri) {
		return ErrInvalidURI
	}
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return nil
}

func isRemote(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// validAssetName rejects anything that could escape the assets directory
func validAssetName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// Resolver maps asset names to files
type Resolver struct {
	dir string
}

// NewResolver creates a resolver rooted at dir
func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the path of the asset called name. An exact file name
// wins; otherwise the first file whose name without extension matches.
func (r *Resolver) Resolve(name string) (string, error) {
	if !validAssetName(name) {
		return "", fmt.Errorf("%w: %s", ErrResourceNotFound, name)
	}

	exact := filepath.Join(r.dir, name)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return exact, nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrResourceNotFound, name)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := e.Name()
		if strings.TrimSuffix(base, filepath.Ext(base)) == name {
			matches = append(matches, base)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrResourceNotFound, name)
	}

	sort.Strings(matches)
	return filepath.Join(r.dir, matches[0]), nil
}
