package planner

import (
	"fmt"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/gate"
	"github.com/kofron/lattice/internal/latticemodel"
)

// ReadOnlyQuery is the contract for commands that only read a snapshot:
// log, info, parent, children, trunk, changelog, get. They never build a
// Plan; the executor's Scan→Gate path is their entire lifecycle.
type ReadOnlyQuery interface {
	Requirements() gate.RequirementSet
	Run(ready *gate.ReadyContext) (any, error)
}

// Log renders the whole tracked stack graph, trunk-down.
type Log struct{}

func (Log) Requirements() gate.RequirementSet { return gate.ReadOnly }

// StackEntry is one row of a Log result: a branch and its depth from trunk.
type StackEntry struct {
	Branch latticemodel.BranchName
	Depth  int
	Record *latticemodel.MetadataRecord
}

func (Log) Run(ready *gate.ReadyContext) (any, error) {
	snap := ready.Snapshot
	var entries []StackEntry
	var walk func(name latticemodel.BranchName, depth int)
	walk = func(name latticemodel.BranchName, depth int) {
		for _, child := range snap.Graph.Children[name] {
			tb := snap.Tracked[child]
			entries = append(entries, StackEntry{Branch: child, Depth: depth, Record: tb.Record})
			walk(child, depth+1)
		}
	}
	walk(snap.Trunk, 0)
	return entries, nil
}

// Info returns the metadata record and current ref oid for one branch.
type Info struct {
	Branch latticemodel.BranchName
}

func (Info) Requirements() gate.RequirementSet { return gate.ReadOnly }

func (c Info) Run(ready *gate.ReadyContext) (any, error) {
	tb, err := requireTracked(ready.Snapshot, c.Branch)
	if err != nil {
		return nil, err
	}
	return tb, nil
}

// Parent returns a branch's parent name.
type Parent struct {
	Branch latticemodel.BranchName
}

func (Parent) Requirements() gate.RequirementSet { return gate.ReadOnly }

func (c Parent) Run(ready *gate.ReadyContext) (any, error) {
	snap := ready.Snapshot
	tracked, err := requireTracked(snap, c.Branch)
	if err != nil {
		return nil, err
	}
	return parentOf(tracked.Record, snap.Trunk), nil
}

// Children returns a branch's direct children.
type Children struct {
	Branch latticemodel.BranchName
}

func (Children) Requirements() gate.RequirementSet { return gate.ReadOnly }

func (c Children) Run(ready *gate.ReadyContext) (any, error) {
	return ready.Snapshot.Graph.Children[c.Branch], nil
}

// Trunk returns the snapshot's resolved trunk branch.
type Trunk struct{}

func (Trunk) Requirements() gate.RequirementSet { return gate.ReadOnly }

func (Trunk) Run(ready *gate.ReadyContext) (any, error) {
	if ready.Snapshot.Trunk == "" {
		return nil, errs.NeedsRepair("no trunk branch could be determined")
	}
	return ready.Snapshot.Trunk, nil
}

// ChangelogEntry pairs a branch with its PR link for changelog rendering.
type ChangelogEntry struct {
	Branch latticemodel.BranchName
	Pr     latticemodel.PrLink
}

// Changelog renders the stack's PR links in trunk-down order.
type Changelog struct{}

func (Changelog) Requirements() gate.RequirementSet { return gate.ReadOnly }

func (Changelog) Run(ready *gate.ReadyContext) (any, error) {
	log, _ := Log{}.Run(ready)
	entries := log.([]StackEntry)
	out := make([]ChangelogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ChangelogEntry{Branch: e.Branch, Pr: e.Record.Pr})
	}
	return out, nil
}

// Get resolves a branch name to a summary, used by `lattice get`. Target
// must be a valid branch name; a PR number is not looked up.
type Get struct {
	Target string
}

func (Get) Requirements() gate.RequirementSet { return gate.ReadOnly }

func (c Get) Run(ready *gate.ReadyContext) (any, error) {
	name, err := latticemodel.NewBranchName(c.Target)
	if err != nil {
		return nil, errs.InvalidInput(fmt.Sprintf("%q is not a valid branch name", c.Target))
	}
	return Info{Branch: name}.Run(ready)
}
