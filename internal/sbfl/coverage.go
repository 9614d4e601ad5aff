package sbfl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseCoverageFile reads a coverage report and returns the executed
// lines per file. Go cover profiles ("mode:" header) and lcov ("SF:"/
// "DA:" records) are the two formats the toolchain matrix produces.
func ParseCoverageFile(path string) (map[string]map[int]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open coverage file: %w", err)
	}
	defer f.Close()
	return ParseCoverage(f)
}

// ParseCoverage sniffs the format from the first meaningful line.
func ParseCoverage(r io.Reader) (map[string]map[int]bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read coverage data: %w", err)
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "mode:") {
			return parseGoProfile(lines)
		}
		if strings.HasPrefix(trimmed, "SF:") || strings.HasPrefix(trimmed, "TN:") || strings.HasPrefix(trimmed, "DA:") {
			return parseLcov(lines)
		}
		return nil, fmt.Errorf("unrecognized coverage format: %q", trimmed)
	}
	return map[string]map[int]bool{}, nil
}

// parseGoProfile handles the "go test -coverprofile" format:
//
//	mode: set
//	pkg/file.go:12.34,15.2 3 1
//
// A block whose count is positive marks every line in its span
// executed.
func parseGoProfile(lines []string) (map[string]map[int]bool, error) {
	covered := make(map[string]map[int]bool)

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "mode:") {
			continue
		}

		colon := strings.LastIndex(line, ":")
		if colon < 0 {
			continue
		}
		file := line[:colon]
		rest := strings.Fields(line[colon+1:])
		if len(rest) != 3 {
			continue
		}

		count, err := strconv.Atoi(rest[2])
		if err != nil || count == 0 {
			continue
		}

		span := strings.SplitN(rest[0], ",", 2)
		if len(span) != 2 {
			continue
		}
		start, err := parseLineCol(span[0])
		if err != nil {
			continue
		}
		end, err := parseLineCol(span[1])
		if err != nil {
			continue
		}

		if covered[file] == nil {
			covered[file] = make(map[int]bool)
		}
		for l := start; l <= end; l++ {
			covered[file][l] = true
		}
	}
	return covered, nil
}

// parseLineCol extracts the line from a "line.column" position.
func parseLineCol(pos string) (int, error) {
	dot := strings.Index(pos, ".")
	if dot < 0 {
		return strconv.Atoi(pos)
	}
	return strconv.Atoi(pos[:dot])
}

// parseLcov handles lcov tracefiles: SF: opens a file section, DA:
// records line,hits, end_of_record closes the section.
func parseLcov(lines []string) (map[string]map[int]bool, error) {
	covered := make(map[string]map[int]bool)
	current := ""

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "SF:"):
			current = strings.TrimPrefix(line, "SF:")
		case strings.HasPrefix(line, "DA:") && current != "":
			parts := strings.SplitN(strings.TrimPrefix(line, "DA:"), ",", 3)
			if len(parts) < 2 {
				continue
			}
			lineNum, err := strconv.Atoi(strings.TrimSpace(parts[0]))
			if err != nil {
				continue
			}
			hits, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil || hits == 0 {
				continue
			}
			if covered[current] == nil {
				covered[current] = make(map[int]bool)
			}
			covered[current][lineNum] = true
		case line == "end_of_record":
			current = ""
		}
	}
	return covered, nil
}
