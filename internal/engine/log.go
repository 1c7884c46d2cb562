package engine

import (
	"errors"
	"strings"
)

// Failure messages shown to users
const (
	MessageNotWatertight = "not watertight"
	MessageGeneric       = "An error occurred during processing"
)

const volumeError = "Not all meshes are volumes"

// CompactLog trims the output lines, drops blank ones and collapses runs of
// "===" or "---" separator lines.
func CompactLog(output string) []string {
	lines := []string{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(lines) > 0 {
			last := lines[len(lines)-1]
			if strings.HasPrefix(line, "===") && strings.HasPrefix(last, "===") {
				continue
			}
			if strings.HasPrefix(line, "---") && strings.HasPrefix(last, "---") {
				continue
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// ClassifyFailure maps the error output of a failed run to a user message
func ClassifyFailure(stderr string) string {
	if strings.Contains(stderr, volumeError) {
		return MessageNotWatertight
	}
	return MessageGeneric
}

// Message maps an error returned by an engine to a user message
func Message(err error) string {
	if errors.Is(err, ErrNotWatertight) {
		return MessageNotWatertight
	}
	return MessageGeneric
}
