// Package storage - file systems the loader discovers and reads shard files from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// ErrBadLocation - a directory or object name could not be interpreted.
var ErrBadLocation = errors.New("bad storage location")

// FS - lists and opens shard files.
type FS interface {
	// List - names of the files directly under dir whose base name matches pattern, sorted.
	List(ctx context.Context, dir, pattern string) ([]string, error)
	// Open - opens a name returned by List.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// For - picks the file system for dir by scheme: s3:// uses S3, anything else Local.
func For(ctx context.Context, dir string) (FS, error) {
	if strings.HasPrefix(dir, s3Scheme) {
		return NewS3(ctx, "")
	}
	return Local{}, nil
}

// Local - the local file system.
type Local struct{}

// List - see FS.
func (Local) List(_ context.Context, dir, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w. pattern: %v", err, pattern)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := path.Match(pattern, e.Name()); ok {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(names)
	return names, nil
}

// Open - see FS.
func (Local) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(name)
}
