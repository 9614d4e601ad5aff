// Package sbfl ranks source lines by fault suspiciousness from test
// coverage spectra. One suite invocation yields one pass/fail outcome;
// lines executed by the failing run and not the passing one score
// highest under Ochiai.
package sbfl

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"swarm/internal/logging"
)

// NoFaultMessage is returned when the suite passed and there is
// nothing to localize.
const NoFaultMessage = "All tests passed. No fault localization needed."

// DefaultTopK bounds how many suspects reach the debug prompt.
const DefaultTopK = 5

// LineRef identifies one source line.
type LineRef struct {
	File string
	Line int
}

// CoverageSpectrum holds executed-line sets split by suite outcome.
// The suite runs as a single unit, so the counts are 0 or 1.
type CoverageSpectrum struct {
	Passed      map[string]map[int]bool
	Failed      map[string]map[int]bool
	TotalPassed int
	TotalFailed int
}

// SuspiciousLine is one ranked fault candidate.
type SuspiciousLine struct {
	File  string  `json:"file"`
	Line  int     `json:"line"`
	Score float64 `json:"score"`
}

// Suspiciousness computes the Ochiai score for every executed line:
//
//	S(l) = failed(l) / sqrt(totalFailed * (failed(l) + passed(l)))
//
// Lines no failing test executed score zero, as does a zero
// denominator.
func Suspiciousness(spectrum CoverageSpectrum) map[LineRef]float64 {
	scores := make(map[LineRef]float64)

	files := make(map[string]bool)
	for f := range spectrum.Passed {
		files[f] = true
	}
	for f := range spectrum.Failed {
		files[f] = true
	}

	for file := range files {
		passedLines := spectrum.Passed[file]
		failedLines := spectrum.Failed[file]

		lines := make(map[int]bool, len(passedLines)+len(failedLines))
		for l := range passedLines {
			lines[l] = true
		}
		for l := range failedLines {
			lines[l] = true
		}

		for line := range lines {
			var failedCount, passedCount int
			if failedLines[line] {
				failedCount = 1
			}
			if passedLines[line] {
				passedCount = 1
			}

			score := 0.0
			if failedCount > 0 {
				denom := math.Sqrt(float64(spectrum.TotalFailed) * float64(failedCount+passedCount))
				if denom > 0 {
					score = float64(failedCount) / denom
				}
			}
			scores[LineRef{File: file, Line: line}] = score
		}
	}

	logging.SBFLDebug("Scored %d lines", len(scores))
	return scores
}

// TopSuspicious ranks lines by score descending, file then line
// ascending on ties so repeated runs agree. topK <= 0 takes the
// default.
func TopSuspicious(scores map[LineRef]float64, topK int) []SuspiciousLine {
	if topK <= 0 {
		topK = DefaultTopK
	}

	ranked := make([]SuspiciousLine, 0, len(scores))
	for ref, score := range scores {
		ranked = append(ranked, SuspiciousLine{File: ref.File, Line: ref.Line, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].File != ranked[j].File {
			return ranked[i].File < ranked[j].File
		}
		return ranked[i].Line < ranked[j].Line
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// DebugPrompt renders the ranked suspects as a targeted debugging
// brief for a worker agent, with an optional source snippet per line.
func DebugPrompt(lines []SuspiciousLine, snippets map[LineRef]string) string {
	if len(lines) == 0 {
		return "No suspicious lines identified."
	}

	var b strings.Builder
	b.WriteString("**Automated Fault Localization Results**\n\n")
	b.WriteString("The tests failed. The Ochiai algorithm identified the following lines as most suspicious:\n\n")

	for i, l := range lines {
		fmt.Fprintf(&b, "%d. **%s:L%d** (Suspiciousness: %.2f)\n",
			i+1, filepath.Base(l.File), l.Line, l.Score)
		if snippet, ok := snippets[LineRef{File: l.File, Line: l.Line}]; ok {
			fmt.Fprintf(&b, "   ```\n   %s\n   ```\n", snippet)
		}
	}

	b.WriteString("\n**Action Required:**\n")
	b.WriteString("Analyze these high-suspicion lines first. The bug is likely in one of these locations.\n")
	return b.String()
}
