package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/scanner"
)

func newTestOutput(buf *bytes.Buffer) *Output {
	o := NewOutput(buf)
	o.SetFormat(FormatHuman)
	o.SetColorEnabled(false)
	return o
}

func TestSuccessAndErrorHumanFormat(t *testing.T) {
	var buf bytes.Buffer
	o := newTestOutput(&buf)

	o.Success("done")
	o.Error("failed")
	out := buf.String()

	assert.Contains(t, out, "done")
	assert.Contains(t, out, "failed")
}

func TestQuietSuppressesSuccessAndInfoNotErrorOrWarning(t *testing.T) {
	var buf bytes.Buffer
	o := newTestOutput(&buf)
	o.SetQuiet(true)

	o.Success("quiet success")
	o.Info("quiet info")
	o.Warning("loud warning")
	o.Error("loud error")

	out := buf.String()
	assert.NotContains(t, out, "quiet success")
	assert.NotContains(t, out, "quiet info")
	assert.Contains(t, out, "loud warning")
	assert.Contains(t, out, "loud error")
}

func TestDebugfRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	o := newTestOutput(&buf)

	o.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	o.SetVerbose(true)
	o.Debugf("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}

func TestJSONFormatIgnoresQuiet(t *testing.T) {
	var buf bytes.Buffer
	o := NewOutput(&buf)
	o.SetFormat(FormatJSON)
	o.SetQuiet(true)

	o.Success("still reported")
	assert.Contains(t, buf.String(), "still reported")
}

func newSnapshot() *scanner.RepoSnapshot {
	now := time.Now()
	main := latticemodel.BranchName("main")
	a := latticemodel.BranchName("feature-a")
	b := latticemodel.BranchName("feature-b")

	snap := &scanner.RepoSnapshot{
		Trunk:         main,
		CurrentBranch: a,
		Tracked:       map[latticemodel.BranchName]scanner.TrackedBranch{},
		Graph: scanner.StackGraph{
			Children: map[latticemodel.BranchName][]latticemodel.BranchName{
				main: {a},
				a:    {b},
			},
		},
	}
	snap.Tracked[a] = scanner.TrackedBranch{
		Record: latticemodel.NewMetadataRecord(a, latticemodel.Parent{Kind: latticemodel.ParentKindTrunk, Name: main}, latticemodel.Oid("deadbeef"), now),
	}
	recB := latticemodel.NewMetadataRecord(b, latticemodel.Parent{Kind: latticemodel.ParentKindBranch, Name: a}, latticemodel.Oid("cafebabe"), now)
	recB.Freeze.State = latticemodel.FreezeStateFrozen
	snap.Tracked[b] = scanner.TrackedBranch{Record: recB}
	return snap
}

func TestStackTreeHumanFormat(t *testing.T) {
	var buf bytes.Buffer
	o := newTestOutput(&buf)

	o.StackTree(newSnapshot())
	out := buf.String()

	assert.Contains(t, out, "main")
	assert.Contains(t, out, "feature-a")
	assert.Contains(t, out, "feature-b")
	assert.Contains(t, out, "frozen")
	assert.True(t, strings.Contains(out, "(current)"))
}

func TestStackTreeJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	o := NewOutput(&buf)
	o.SetFormat(FormatJSON)

	o.StackTree(newSnapshot())
	out := buf.String()

	assert.Contains(t, out, `"trunk": "main"`)
	assert.Contains(t, out, "feature-a")
}

func TestHealthReportHealthy(t *testing.T) {
	var buf bytes.Buffer
	o := newTestOutput(&buf)

	o.HealthReport(scanner.HealthReport{})
	assert.Contains(t, buf.String(), "healthy")
}

func TestHealthReportWithIssues(t *testing.T) {
	var buf bytes.Buffer
	o := newTestOutput(&buf)

	var h scanner.HealthReport
	h.Add(scanner.IssueMissingTrunk, scanner.SeverityError, "", "no trunk branch configured")
	h.Add(scanner.IssueOrphanMetadata, scanner.SeverityWarn, "stale-branch", "metadata exists but ref is gone")

	o.HealthReport(h)
	out := buf.String()
	assert.Contains(t, out, "no trunk branch configured")
	assert.Contains(t, out, "stale-branch")
}

func TestPrintAnyBranchNameAndSlice(t *testing.T) {
	var buf bytes.Buffer
	o := newTestOutput(&buf)

	o.PrintAny(latticemodel.BranchName("main"))
	assert.Equal(t, "main\n", buf.String())

	buf.Reset()
	o.PrintAny([]latticemodel.BranchName{"a", "b"})
	assert.Equal(t, "a\nb\n", buf.String())

	buf.Reset()
	o.PrintAny(nil)
	assert.Equal(t, "<none>\n", buf.String())
}
