package preconditions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Checker is anything that can verify its own runtime requirements,
// e.g. a geometry engine
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Check verifies all preconditions are met
func Check(ctx context.Context, checkers ...Checker) error {
	for _, c := range checkers {
		if err := c.Check(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	return nil
}

// MeshExtensions are the input formats SmithForge reads
var MeshExtensions = []string{".3mf", ".stl"}

// IsMeshFile reports whether the path has a supported mesh extension
func IsMeshFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range MeshExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ValidateFiles checks that mesh files exist, are readable and have a supported extension
func ValidateFiles(paths ...string) error {
	for _, path := range paths {
		if err := ValidateFile(path); err != nil {
			return err
		}
		if !IsMeshFile(path) {
			return fmt.Errorf("%s is not a mesh file (must end in .3mf or .stl)", path)
		}
	}
	return nil
}

// ValidateFile checks that a regular file exists and is readable
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read file %s: %w", path, err)
	}
	return file.Close()
}

// ValidateOutputPath checks that the directory of the output path exists and is writable
func ValidateOutputPath(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output directory %s is not a directory", dir)
	}

	tmp, err := os.CreateTemp(dir, ".smithforge-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable", dir)
	}
	tmp.Close()
	return os.Remove(tmp.Name())
}
