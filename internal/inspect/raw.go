package inspect

import (
	"bytes"
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/philipparndt/smithforge/internal/threemf"
)

// Highlighting defaults for Raw
const (
	DefaultFormatter = "terminal256"
	DefaultStyle     = "monokai"
)

// Raw writes one archive entry to w, syntax highlighted. Use the "noop"
// formatter for plain output.
func Raw(w io.Writer, filename, entry, formatter, style string) error {
	data, ok, err := threemf.ReadEntry(filename, entry)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s not found in archive", entry)
	}
	if formatter == "" {
		formatter = DefaultFormatter
	}
	if style == "" {
		style = DefaultStyle
	}
	return quick.Highlight(w, string(data), lexerFor(data), formatter, style)
}

// lexerFor picks the lexer from the content, .config parts are either XML or JSON
func lexerFor(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("<")):
		return "xml"
	case bytes.HasPrefix(trimmed, []byte("{")), bytes.HasPrefix(trimmed, []byte("[")):
		return "json"
	}
	return "plaintext"
}
