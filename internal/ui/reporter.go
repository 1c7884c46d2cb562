package ui

import "fmt"

// Reporter prints forge progress on the terminal. Step headers and info
// lines only show in verbose mode, otherwise a progress bar is drawn.
type Reporter struct {
	Verbose bool
}

// NewReporter creates a reporter honouring IsVerbose
func NewReporter() *Reporter {
	return &Reporter{Verbose: IsVerbose()}
}

func (r *Reporter) Step(index, total int, name string) {
	if r.Verbose {
		PrintHeader(fmt.Sprintf("Step %d/%d: %s", index, total, name))
		return
	}
	PrintProgress(index, total, name)
}

func (r *Reporter) Info(message string) {
	if r.Verbose {
		PrintInfo(message)
	}
}

func (r *Reporter) Success(message string) {
	if r.Verbose {
		PrintSuccess(message)
	}
}

func (r *Reporter) Warning(message string) {
	PrintWarning(message)
}
