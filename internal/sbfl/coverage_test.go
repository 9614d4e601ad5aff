package sbfl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoverage_GoProfile(t *testing.T) {
	profile := `mode: set
swarm/internal/app/app.go:3.10,5.2 1 1
swarm/internal/app/app.go:7.2,9.10 2 0
swarm/internal/app/util.go:1.1,1.20 1 3
`
	covered, err := ParseCoverage(strings.NewReader(profile))
	require.NoError(t, err)

	// Count > 0 covers the whole block span; zero-count blocks do not.
	assert.Equal(t, map[int]bool{3: true, 4: true, 5: true}, covered["swarm/internal/app/app.go"])
	assert.Equal(t, map[int]bool{1: true}, covered["swarm/internal/app/util.go"])
}

func TestParseCoverage_GoProfileWindowsPath(t *testing.T) {
	// The last colon splits file from span, so drive letters survive.
	profile := "mode: count\nC:\\src\\app.go:2.1,2.9 1 1\n"
	covered, err := ParseCoverage(strings.NewReader(profile))
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{2: true}, covered[`C:\src\app.go`])
}

func TestParseCoverage_Lcov(t *testing.T) {
	tracefile := `TN:
SF:src/auth.js
DA:1,1
DA:2,0
DA:3,5
LF:3
LH:2
end_of_record
SF:src/db.js
DA:10,1
end_of_record
`
	covered, err := ParseCoverage(strings.NewReader(tracefile))
	require.NoError(t, err)

	assert.Equal(t, map[int]bool{1: true, 3: true}, covered["src/auth.js"])
	assert.Equal(t, map[int]bool{10: true}, covered["src/db.js"])
}

func TestParseCoverage_LcovIgnoresOrphanRecords(t *testing.T) {
	// DA: before any SF: has no file to attach to.
	covered, err := ParseCoverage(strings.NewReader("TN:\nDA:1,1\n"))
	require.NoError(t, err)
	assert.Empty(t, covered)
}

func TestParseCoverage_UnrecognizedFormat(t *testing.T) {
	_, err := ParseCoverage(strings.NewReader("<xml>not coverage</xml>"))
	assert.Error(t, err)
}

func TestParseCoverage_Empty(t *testing.T) {
	covered, err := ParseCoverage(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, covered)
}

func TestParseCoverageFile_Missing(t *testing.T) {
	_, err := ParseCoverageFile("/nonexistent/coverage.out")
	assert.Error(t, err)
}
