package layers

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	filamentsHeader = regexp.MustCompile(`(?i)^Filaments?\s+Used:`)
	swapsHeader     = regexp.MustCompile(`(?i)^Swap\s+Instructions?:`)
	filamentLine    = regexp.MustCompile(`(?i)^(PLA|ABS|PETG|TPU|Bambu|Prusa|Hatchbox)`)
	startLine       = regexp.MustCompile(`(?i)^Start\s+with\s+(.+)`)
	swapLine        = regexp.MustCompile(`(?i)^At\s+layer\s+#(\d+)\s+\(([0-9.]+)mm\)\s+swap\s+to\s+(.+)`)
)

// ParseSwapInstructions reads the swap instructions HueForge prints for a
// model:
//
//	Filaments Used:
//	PLA BambuLab Basic Black
//	PLA BambuLab Basic Cobalt Blue
//
//	Swap Instructions:
//	Start with Black
//	At layer #8 (0.72mm) swap to Cobalt Blue
//
// The starting colour is extruder 1 and has no layer entry; every swap uses
// the next extruder.
func ParseSwapInstructions(text string) (*ColorData, error) {
	data := &ColorData{}

	inFilaments := false
	inSwaps := false
	extruder := 1

	lookup := func(name string) string {
		hex, note := LookupColor(name)
		if note != "" {
			data.Warnings = append(data.Warnings, note)
		}
		return hex
	}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if filamentsHeader.MatchString(line) {
			inFilaments, inSwaps = true, false
			continue
		}
		if swapsHeader.MatchString(line) {
			inFilaments, inSwaps = false, true
			continue
		}

		if inFilaments && filamentLine.MatchString(line) {
			data.FilamentColours = append(data.FilamentColours, lookup(line))
		}

		if inSwaps {
			if startLine.MatchString(line) {
				extruder = 2
				continue
			}
			if m := swapLine.FindStringSubmatch(line); m != nil {
				z, err := strconv.ParseFloat(m[2], 64)
				if err != nil {
					// e.g. "1.2.3mm"
					continue
				}
				data.Layers = append(data.Layers, SwapLayer{
					TopZ:     z,
					Extruder: strconv.Itoa(extruder),
					Color:    lookup(strings.TrimSpace(m[3])),
				})
				extruder++
			}
		}
	}

	if len(data.Layers) == 0 {
		return nil, ErrNoSwaps
	}

	if len(data.FilamentColours) == 0 {
		data.Warnings = append(data.Warnings, "No filaments listed, using colors from swap instructions")
		for _, l := range data.Layers {
			data.FilamentColours = append(data.FilamentColours, l.Color)
		}
	}
	return data, nil
}
