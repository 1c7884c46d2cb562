package ui

import (
	"bytes"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := Output
	Output = &buf
	t.Cleanup(func() { Output = old })
	return &buf
}

func TestPrintFunctions(t *testing.T) {
	buf := capture(t)

	PrintKeyValue("Output", "combined.3mf")
	PrintWarning("careful")
	PrintList("Parts", []string{"3D/3dmodel.model"})

	out := buf.String()
	for _, want := range []string{"Output:", "combined.3mf", "careful", "Parts:", "3D/3dmodel.model"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestTable(t *testing.T) {
	tests := []struct {
		name    string
		widths  []int
		columns []string
		want    string
		notWant string
	}{
		{"pads", []int{5, 3}, []string{"ab", "c"}, "ab    │ c", ""},
		{"truncates", []int{6}, []string{"abcdefgh"}, "abc...", "abcd"},
		{"ignores extra", []int{2}, []string{"a", "b"}, "a", "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t)
			NewTable(tt.widths...).Row(tt.columns...)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Row() = %q, want it to contain %q", buf.String(), tt.want)
			}
			if tt.notWant != "" && strings.Contains(buf.String(), tt.notWant) {
				t.Errorf("Row() = %q, must not contain %q", buf.String(), tt.notWant)
			}
		})
	}
}

func TestReporterQuietMode(t *testing.T) {
	buf := capture(t)
	r := &Reporter{Verbose: false}

	r.Info("hidden")
	r.Success("hidden too")
	r.Warning("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("quiet reporter printed info: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("quiet reporter dropped warning: %q", out)
	}
}

func TestReporterVerboseMode(t *testing.T) {
	buf := capture(t)
	r := &Reporter{Verbose: true}

	r.Step(2, 5, "Load meshes")
	r.Info("Loaded base")

	out := buf.String()
	if !strings.Contains(out, "Step 2/5: Load meshes") || !strings.Contains(out, "Loaded base") {
		t.Errorf("verbose output = %q", out)
	}
}
