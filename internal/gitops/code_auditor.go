package gitops

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"swarm/internal/logging"
	"swarm/internal/types"
)

const maxAuditFiles = 20

// auditFinding is one flagged line in a scanned file.
type auditFinding struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

type securityCheck struct {
	pattern  *regexp.Regexp
	message  string
	severity string
}

// securityChecks is the fixed pattern table the auditor scans with.
// Patterns are deliberately blunt: this is a triage net, not a SAST
// engine, and false positives get filtered by the flagged tasks.
var securityChecks = []securityCheck{
	{regexp.MustCompile(`(?i)password\s*=\s*["'][^"']+["']`), "Hardcoded password", "critical"},
	{regexp.MustCompile(`(?i)api_key\s*=\s*["'][^"']+["']`), "Hardcoded API key", "critical"},
	{regexp.MustCompile(`(?i)eval\s*\(`), "Use of eval()", "high"},
	{regexp.MustCompile(`(?i)exec\s*\(`), "Use of exec()", "high"},
	{regexp.MustCompile(`(?i)subprocess\.call.*shell\s*=\s*True`), "Shell injection risk", "high"},
}

var maintenancePattern = regexp.MustCompile(`(?i)(#|//)\s*(TODO|FIXME)`)

// CodeAuditor sweeps known source files for security smells and
// maintenance debt, renders an audit report snapshot, and flags the
// worst findings as priority tasks.
type CodeAuditor struct{}

func (CodeAuditor) Name() string { return types.RoleCodeAuditor }

// TriggerCheck fires on an explicit audit intent or the periodic
// audit flag.
func (CodeAuditor) TriggerCheck(task *types.Task, rctx *RoleContext) bool {
	if task != nil && task.Intents.Has(types.IntentCodeAudit) {
		return true
	}
	return rctx.BoolVar("periodic_audit")
}

func (a CodeAuditor) Execute(ctx context.Context, task *types.Task, rctx *RoleContext) (types.ExitReport, error) {
	report := types.ExitReport{TaskID: task.ID, Status: types.ReportInProgress}

	files := a.filesFromGraph(rctx)
	if len(files) == 0 {
		logging.GitOpsWarn("knowledge graph has no source files; falling back to recent diff")
		files = a.filesFromDiff(ctx, rctx)
	}
	if len(files) == 0 {
		report.Status = types.ReportCompleted
		report.RemainingWork = "No files to audit"
		return report, nil
	}

	var findings []auditFinding
	for _, file := range files {
		findings = append(findings, a.scanFile(rctx.RepoRoot, file)...)
	}

	rendered := renderAuditReport(files, findings)
	rctx.saveSnapshot("audit_report", map[string]interface{}{
		"report":   rendered,
		"findings": findings,
	})

	flagged := flagPriorities(findings)
	for _, f := range flagged {
		rctx.recordProvenance(types.RoleCodeAuditor, "issue_flagged", f.File)
	}

	critical := countSeverity(findings, "critical")
	report.Status = types.ReportCompleted
	report.FilesTouched = files
	report.RemainingWork = fmt.Sprintf("Found %d issues (%d critical). Created %d priority tasks.",
		len(findings), critical, len(flagged))
	logging.GitOps("audit: %d files, %d findings, %d critical", len(files), len(findings), critical)
	return report, nil
}

// filesFromGraph collects distinct source files known to the graph.
func (CodeAuditor) filesFromGraph(rctx *RoleContext) []string {
	if rctx.Graph == nil {
		return nil
	}
	seen := make(map[string]bool)
	var files []string
	for _, id := range rctx.Graph.NodeIDs() {
		meta := rctx.Graph.Meta(id)
		if meta == nil || meta.File == "" || seen[meta.File] {
			continue
		}
		if !sourceExtensions[filepath.Ext(meta.File)] {
			continue
		}
		seen[meta.File] = true
		files = append(files, meta.File)
		if len(files) >= maxAuditFiles {
			break
		}
	}
	return files
}

// filesFromDiff uses the recent change set when the graph is empty.
func (CodeAuditor) filesFromDiff(ctx context.Context, rctx *RoleContext) []string {
	if rctx.Repo == nil || !rctx.Repo.IsAvailable() {
		return nil
	}
	changed, err := rctx.Repo.Executor().DiffNames(ctx, "HEAD~5")
	if err != nil {
		logging.GitOpsWarn("diff fallback failed: %v", err)
		return nil
	}
	var files []string
	for _, file := range changed {
		if !sourceExtensions[filepath.Ext(file)] {
			continue
		}
		files = append(files, file)
		if len(files) >= maxAuditFiles {
			break
		}
	}
	return files
}

// scanFile runs the pattern table over one file. A missing file is
// skipped silently (graphs outlive deletions); other read errors
// become a medium finding so they surface in the report.
func (CodeAuditor) scanFile(root, file string) []auditFinding {
	path := file
	if !filepath.IsAbs(path) && root != "" {
		path = filepath.Join(root, file)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []auditFinding{{
			File: file, Severity: "medium", Category: "analysis",
			Message: fmt.Sprintf("Could not analyze: %v", err),
		}}
	}
	defer f.Close()

	var findings []auditFinding
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		for _, check := range securityChecks {
			if check.pattern.MatchString(line) {
				findings = append(findings, auditFinding{
					File: file, Line: lineNo, Severity: check.severity,
					Category: "security", Message: check.message,
				})
			}
		}
		if maintenancePattern.MatchString(line) {
			findings = append(findings, auditFinding{
				File: file, Line: lineNo, Severity: "low",
				Category: "maintenance", Message: "TODO/FIXME comment found",
			})
		}
	}
	if err := scanner.Err(); err != nil {
		findings = append(findings, auditFinding{
			File: file, Severity: "medium", Category: "analysis",
			Message: fmt.Sprintf("Could not analyze: %v", err),
		})
	}
	return findings
}

// renderAuditReport produces the markdown summary persisted with the
// audit snapshot.
func renderAuditReport(files []string, findings []auditFinding) string {
	var b strings.Builder
	b.WriteString("# Code Audit Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Files analyzed: %d\n", len(files))
	fmt.Fprintf(&b, "Total findings: %d\n\n", len(findings))

	b.WriteString("## Summary\n\n")
	for _, row := range []struct{ label, severity string }{
		{"Critical", "critical"}, {"High", "high"}, {"Medium", "medium"}, {"Low", "low"},
	} {
		fmt.Fprintf(&b, "- %s: %d\n", row.label, countSeverity(findings, row.severity))
	}

	var critical []auditFinding
	for _, f := range findings {
		if f.Severity == "critical" {
			critical = append(critical, f)
		}
	}
	if len(critical) > 0 {
		b.WriteString("\n## Critical Findings\n\n")
		if len(critical) > 5 {
			critical = critical[:5]
		}
		for _, f := range critical {
			fmt.Fprintf(&b, "- **%s:%d** - %s\n", f.File, f.Line, f.Message)
		}
	}
	return b.String()
}

// flagPriorities picks the worst findings (critical before high, at
// most five) for promotion into priority tasks.
func flagPriorities(findings []auditFinding) []auditFinding {
	var flagged []auditFinding
	for _, severity := range []string{"critical", "high"} {
		for _, f := range findings {
			if f.Severity == severity {
				flagged = append(flagged, f)
				if len(flagged) >= 5 {
					return flagged
				}
			}
		}
	}
	return flagged
}

func countSeverity(findings []auditFinding, severity string) int {
	n := 0
	for _, f := range findings {
		if f.Severity == severity {
			n++
		}
	}
	return n
}
