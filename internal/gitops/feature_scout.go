package gitops

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"swarm/internal/graph"
	"swarm/internal/logging"
	"swarm/internal/types"
)

const (
	maxPatternProposals = 5
	maxTodoProposals    = 10
	maxGraphProposals   = 5
)

var todoPattern = regexp.MustCompile(`(TODO|FIXME):`)

// featureProposal is one improvement candidate before publication.
type featureProposal struct {
	Title     string
	Rationale string
}

// FeatureScout mines the telemetry ledger, the source tree, and the
// knowledge graph for improvement opportunities and publishes them as
// GitHub issues, falling back to a local proposals file when no API
// access is available.
type FeatureScout struct{}

func (FeatureScout) Name() string { return types.RoleFeatureScout }

// TriggerCheck fires on an explicit discovery intent or the periodic
// scan flag.
func (FeatureScout) TriggerCheck(task *types.Task, rctx *RoleContext) bool {
	if task != nil && task.Intents.Has(types.IntentFeatureScout) {
		return true
	}
	return rctx.BoolVar("periodic_feature_scan")
}

func (s FeatureScout) Execute(ctx context.Context, task *types.Task, rctx *RoleContext) (types.ExitReport, error) {
	report := types.ExitReport{TaskID: task.ID, Status: types.ReportInProgress}

	var proposals []featureProposal
	proposals = append(proposals, s.minePatterns(rctx)...)
	proposals = append(proposals, s.findTodos(rctx.RepoRoot)...)
	proposals = append(proposals, s.findUnderdeveloped(rctx.Graph)...)

	if len(proposals) == 0 {
		report.Status = types.ReportCompleted
		report.RemainingWork = "No feature opportunities found"
		return report, nil
	}

	var refs []string
	var titles []string
	useGitHub := rctx.GitHub.HasToken() && rctx.RepoOwner != "" && rctx.RepoName != ""
	for _, p := range proposals {
		var ref string
		var err error
		if useGitHub {
			ref, err = s.publishIssue(ctx, rctx, p)
		} else {
			ref, err = s.publishLocal(rctx.RepoRoot, p)
		}
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("publish %q: %v", p.Title, err))
			continue
		}
		refs = append(refs, ref)
		titles = append(titles, p.Title)
		rctx.recordProvenance(types.RoleFeatureScout, "feature_proposed", ref)
	}

	if !useGitHub && len(refs) > 0 {
		report.FilesTouched = append(report.FilesTouched, proposalsFile)
	}
	report.Status = types.ReportCompleted
	report.RemainingWork = fmt.Sprintf("Created %d feature proposals: %s", len(refs), strings.Join(titles, ", "))
	logging.GitOps("feature scout published %d/%d proposals", len(refs), len(proposals))
	return report, nil
}

// minePatterns turns telemetry signals into proposals: unreliable
// tools and files that keep failing.
func (FeatureScout) minePatterns(rctx *RoleContext) []featureProposal {
	if rctx.Ledger == nil {
		return nil
	}
	var proposals []featureProposal

	for _, tool := range rctx.Ledger.ProblematicTools(0.7, 7) {
		proposals = append(proposals, featureProposal{
			Title: fmt.Sprintf("Improve reliability of %s", tool.Tool),
			Rationale: fmt.Sprintf("Tool has %.1f%% success rate over last 7 days (used %d times)",
				tool.SuccessRate*100, tool.TotalUses),
		})
	}

	for _, pattern := range rctx.Ledger.FailurePatterns(7 * 24) {
		if pattern.FailureCount < 3 || !sourceExtensions[filepath.Ext(pattern.Target)] {
			continue
		}
		proposals = append(proposals, featureProposal{
			Title:     fmt.Sprintf("Refactor error-prone code in %s", pattern.Target),
			Rationale: fmt.Sprintf("File has %d recent errors, may need refactoring", pattern.FailureCount),
		})
	}

	if len(proposals) > maxPatternProposals {
		proposals = proposals[:maxPatternProposals]
	}
	return proposals
}

// findTodos scans source files for actionable TODO/FIXME markers.
func (FeatureScout) findTodos(root string) []featureProposal {
	if root == "" {
		return nil
	}
	var proposals []featureProposal
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "node_modules", "vendor":
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExtensions[filepath.Ext(path)] {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if !todoPattern.MatchString(line) {
				continue
			}
			proposals = append(proposals, featureProposal{
				Title:     fmt.Sprintf("TODO in %s", filepath.Base(path)),
				Rationale: strings.TrimSpace(line),
			})
			if len(proposals) >= maxTodoProposals {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil && err != fs.SkipAll {
		logging.GitOpsWarn("todo scan: %v", err)
	}
	return proposals
}

// findUnderdeveloped flags callable symbols with no outgoing edges:
// code that exists but connects to nothing yet.
func (FeatureScout) findUnderdeveloped(g *graph.Graph) []featureProposal {
	if g == nil {
		return nil
	}
	var proposals []featureProposal
	for _, id := range g.NodeIDs() {
		if g.OutDegree(id) != 0 {
			continue
		}
		meta := g.Meta(id)
		if meta == nil || strings.Contains(meta.File, "test") {
			continue
		}
		switch meta.Type {
		case "function", "class", "method":
		default:
			continue
		}
		symbol := graph.SymbolPart(id)
		if symbol == "" {
			symbol = meta.Name
		}
		proposals = append(proposals, featureProposal{
			Title:     fmt.Sprintf("Underdeveloped: %s", symbol),
			Rationale: fmt.Sprintf("Low connectivity (%s with no outgoing calls)", meta.Type),
		})
		if len(proposals) >= maxGraphProposals {
			break
		}
	}
	return proposals
}

func (FeatureScout) publishIssue(ctx context.Context, rctx *RoleContext, p featureProposal) (string, error) {
	body := p.Rationale
	if body == "" {
		body = "No description provided"
	}
	issue, err := rctx.GitHub.CreateIssue(ctx, rctx.RepoOwner, rctx.RepoName,
		"[Feature] "+p.Title, body, []string{"enhancement", "auto-generated"})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("#%d", issue.Number), nil
}

// proposalsFile is where proposals land without GitHub access.
const proposalsFile = "docs/ai/issues.md"

func (FeatureScout) publishLocal(root string, p featureProposal) (string, error) {
	path := filepath.Join(root, proposalsFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if os.IsNotExist(statErr) {
		if _, err := f.WriteString("# Feature Proposals\n\n"); err != nil {
			return "", err
		}
	}

	now := time.Now()
	id := fmt.Sprintf("FEATURE-%s", now.Format("20060102-150405"))
	entry := fmt.Sprintf("## %s: %s\n\n- Status: Proposed\n- Created: %s\n- Rationale: %s\n\n---\n\n",
		id, p.Title, now.Format("2006-01-02"), p.Rationale)
	if _, err := f.WriteString(entry); err != nil {
		return "", err
	}
	return id, nil
}
