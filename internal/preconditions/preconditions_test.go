package preconditions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string { return s.name }
func (s stubChecker) Check(ctx context.Context) error { return s.err }

func TestCheck(t *testing.T) {
	if err := Check(context.Background(), stubChecker{name: "ok"}); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	boom := errors.New("boom")
	err := Check(context.Background(), stubChecker{name: "ok"}, stubChecker{name: "python", err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("Check() error = %v, want wrapped boom", err)
	}
	if err.Error() != "python: boom" {
		t.Errorf("Check() error = %q", err.Error())
	}
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	stl := filepath.Join(dir, "base.STL")
	txt := filepath.Join(dir, "notes.txt")
	for _, p := range []string{stl, txt} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		paths   []string
		wantErr bool
	}{
		{"mesh file", []string{stl}, false},
		{"wrong extension", []string{txt}, true},
		{"missing", []string{filepath.Join(dir, "missing.3mf")}, true},
		{"directory", []string{dir}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFiles(tt.paths...)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFiles() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsMeshFile(t *testing.T) {
	for path, want := range map[string]bool{
		"a.3mf": true,
		"b.3MF": true,
		"c.stl": true,
		"d.obj": false,
		"e":     false,
	} {
		if got := IsMeshFile(path); got != want {
			t.Errorf("IsMeshFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateOutputPath(filepath.Join(dir, "out.3mf")); err != nil {
		t.Errorf("ValidateOutputPath() error = %v", err)
	}
	if err := ValidateOutputPath(filepath.Join(dir, "missing", "out.3mf")); err == nil {
		t.Error("expected error for missing directory")
	}
}
