package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/kofron/lattice/internal/doctor"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/plan"
	"github.com/kofron/lattice/internal/scanner"
)

// StackTree prints the branch graph rooted at trunk, one line per branch,
// annotated with PR and freeze state. In JSON format it emits the same
// data as a nested structure instead.
func (o *Output) StackTree(snap *scanner.RepoSnapshot) {
	if o.printStructured(stackTreeJSON(snap)) {
		return
	}

	o.Header(fmt.Sprintf("Stack (trunk: %s)", snap.Trunk))
	o.printBranchChildren(snap, snap.Trunk, 0)
}

func (o *Output) printBranchChildren(snap *scanner.RepoSnapshot, parent latticemodel.BranchName, depth int) {
	children := append([]latticemodel.BranchName{}, snap.Graph.Children[parent]...)
	sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })

	for _, child := range children {
		line := strings.Repeat("  ", depth) + "└─ " + string(child)
		tracked, ok := snap.Tracked[child]
		if ok {
			line += branchAnnotations(tracked)
		}
		if child == snap.CurrentBranch {
			if o.colorEnabled {
				line = color.New(color.Bold).Sprint(line) + color.CyanString(" (current)")
			} else {
				line += " (current)"
			}
		}
		fmt.Fprintln(o.writer, line)
		o.printBranchChildren(snap, child, depth+1)
	}
}

func branchAnnotations(tracked scanner.TrackedBranch) string {
	var parts []string
	if tracked.Record.IsFrozen() {
		parts = append(parts, "frozen")
	}
	if tracked.Record.Pr.State == latticemodel.PrStateLinked {
		parts = append(parts, fmt.Sprintf("PR #%d", tracked.Record.Pr.Number))
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

func stackTreeJSON(snap *scanner.RepoSnapshot) map[string]any {
	nodes := map[string]any{}
	var build func(latticemodel.BranchName) []map[string]any
	build = func(parent latticemodel.BranchName) []map[string]any {
		var out []map[string]any
		for _, child := range snap.Graph.Children[parent] {
			node := map[string]any{"branch": string(child)}
			if tracked, ok := snap.Tracked[child]; ok {
				node["frozen"] = tracked.Record.IsFrozen()
				node["pr_linked"] = tracked.Record.Pr.State == latticemodel.PrStateLinked
			}
			node["children"] = build(child)
			out = append(out, node)
		}
		return out
	}
	nodes["trunk"] = string(snap.Trunk)
	nodes["children"] = build(snap.Trunk)
	return nodes
}

// Plan previews a Plan's steps before execution. Human format prints one
// line per step; JSON format emits the Plan's own serialisable shape.
func (o *Output) Plan(p *plan.Plan) {
	if o.printStructured(p) {
		return
	}

	o.Header(fmt.Sprintf("Plan: %s (%d steps)", p.Command, len(p.Steps)))
	for i, step := range p.Steps {
		fmt.Fprintf(o.writer, "  %d. %s\n", i+1, describeStep(step))
	}
}

func describeStep(s plan.Step) string {
	switch s.Kind {
	case plan.StepUpdateRefCas:
		return fmt.Sprintf("update ref %s -> %s", s.Refname, s.NewOid)
	case plan.StepDeleteRefCas:
		return fmt.Sprintf("delete ref %s", s.Refname)
	case plan.StepWriteMetadataCas:
		return fmt.Sprintf("write metadata for %s", s.Branch)
	case plan.StepDeleteMetadataCas:
		return fmt.Sprintf("delete metadata for %s", s.Branch)
	case plan.StepRunVcs:
		if s.Description != "" {
			return s.Description
		}
		return "run: " + strings.Join(s.Args, " ")
	case plan.StepCheckpoint:
		return "checkpoint: " + s.Name
	case plan.StepPotentialConflictPause:
		return fmt.Sprintf("(pause point for %s on %s)", s.VcsOperation, s.Branch)
	case plan.StepCreateSnapshotBranch:
		return fmt.Sprintf("snapshot %s at %s", s.BranchName, s.HeadOid)
	case plan.StepCheckout:
		return "checkout " + string(s.Branch)
	case plan.StepForgeFetch:
		return "fetch from forge"
	case plan.StepForgePush:
		return "push " + string(s.Branch)
	case plan.StepForgeCreatePr:
		return fmt.Sprintf("create PR for %s against %s", s.Branch, s.PrBase)
	case plan.StepForgeUpdatePr:
		return fmt.Sprintf("update PR #%d", s.PrNumber)
	case plan.StepForgeDraftToggle:
		return fmt.Sprintf("set PR #%d draft=%v", s.PrNumber, s.Draft)
	case plan.StepForgeRequestReviewers:
		return fmt.Sprintf("request reviewers on PR #%d: %s", s.PrNumber, strings.Join(s.Reviewers, ", "))
	case plan.StepForgeMergePr:
		return fmt.Sprintf("merge PR #%d (%s)", s.PrNumber, s.MergeMethod)
	default:
		return string(s.Kind)
	}
}

// PrintAny renders the result of a read-only query in human format. Most
// queries return a simple value (a branch name, a slice of entries); there
// is no per-query renderer, just a readable fallback.
func (o *Output) PrintAny(v any) {
	switch val := v.(type) {
	case latticemodel.BranchName:
		fmt.Fprintln(o.writer, string(val))
	case []latticemodel.BranchName:
		for _, b := range val {
			fmt.Fprintln(o.writer, string(b))
		}
	case nil:
		fmt.Fprintln(o.writer, "<none>")
	default:
		fmt.Fprintf(o.writer, "%+v\n", val)
	}
}

// HealthReport prints every issue a scan found, grouped by severity.
func (o *Output) HealthReport(h scanner.HealthReport) {
	if o.printStructured(h.Issues) {
		return
	}

	if len(h.Issues) == 0 {
		o.Success("repository is healthy")
		return
	}

	o.Header("Health issues")
	for _, issue := range h.Issues {
		switch issue.Severity {
		case scanner.SeverityError:
			o.Error(issue.String())
		case scanner.SeverityWarn:
			o.Warning(issue.String())
		default:
			o.Info(issue.String())
		}
	}
}

// RepairBundle explains why a Gate refused readiness and what would fix it.
func (o *Output) RepairBundle(rb *gate.RepairBundle) {
	if o.printStructured(rb) {
		return
	}

	o.Header("Repository is not ready for this command")
	if len(rb.MissingCapabilities) > 0 {
		caps := make([]string, len(rb.MissingCapabilities))
		for i, c := range rb.MissingCapabilities {
			caps[i] = string(c)
		}
		o.Infof("Missing: %s", strings.Join(caps, ", "))
	}
	for _, issue := range rb.RelatedIssues {
		o.Warning(issue.String())
	}
	for _, fix := range rb.SuggestedFixes {
		fmt.Fprintf(o.writer, "  - %s\n", fix)
	}
}

// DoctorReport prints proposed fixes and anything doctor could not
// automatically resolve.
func (o *Output) DoctorReport(report *doctor.Report) {
	if o.printStructured(report) {
		return
	}

	if len(report.Fixes) == 0 && len(report.Unfixable) == 0 {
		o.Success("repository is healthy")
		return
	}

	if len(report.Fixes) > 0 {
		o.Header("Proposed fixes")
		for _, fix := range report.Fixes {
			fmt.Fprintf(o.writer, "  [%s] %s %s — %s\n", fix.ID, fix.Kind, fix.Branch, fix.Reason)
		}
	}
	if len(report.Unfixable) > 0 {
		o.Header("Issues without an automatic fix")
		for _, issue := range report.Unfixable {
			o.Warning(issue.String())
		}
	}
}
