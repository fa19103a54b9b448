package recall

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeos/graph-service/internal/model"
)

// ConflictRow is one decision with its recorded conflicts, surfaced in
// project context.
type ConflictRow struct {
	UUID          string   `json:"uuid"`
	LocalID       string   `json:"local_id,omitempty"`
	DisplayID     string   `json:"display_id,omitempty"`
	Text          string   `json:"text"`
	ConflictsWith []string `json:"conflicts_with"`
}

// ProjectContext is the composed state of one project.
type ProjectContext struct {
	Project         string           `json:"project"`
	ActiveDecisions []model.Decision `json:"active_decisions,omitempty"`
	OpenThreads     []model.Thread   `json:"open_threads,omitempty"`
	PendingFlags    []model.Flag     `json:"pending_flags,omitempty"`
	StaleDecisions  []model.Decision `json:"stale_decisions,omitempty"`
	StaleThreads    []model.Thread   `json:"stale_threads,omitempty"`
	Conflicts       []ConflictRow    `json:"conflicts,omitempty"`
}

// ProjectContext composes the full state of a project. sections limits
// the work to the named sections (decisions, threads, flags, stale,
// conflicts); empty means all.
func (e *Engine) ProjectContext(ctx context.Context, project string, sections []string) (*ProjectContext, error) {
	want := func(name string) bool {
		if len(sections) == 0 {
			return true
		}
		for _, s := range sections {
			if s == name {
				return true
			}
		}
		return false
	}

	pc := &ProjectContext{Project: project}

	if want("decisions") || want("stale") || want("conflicts") {
		decisions, err := e.reg.ListActiveDecisions(ctx, project)
		if err != nil {
			return nil, err
		}
		if want("decisions") {
			pc.ActiveDecisions = decisions
		}
		if want("conflicts") {
			for _, d := range decisions {
				if len(d.ConflictsWith) == 0 {
					continue
				}
				pc.Conflicts = append(pc.Conflicts, ConflictRow{
					UUID:          d.UUID,
					LocalID:       d.LocalID,
					DisplayID:     d.GlobalDisplayID,
					Text:          truncate(d.Text, lineLimit),
					ConflictsWith: d.ConflictsWith,
				})
			}
		}
		if want("stale") {
			now := nowUTC()
			for _, d := range decisions {
				if e.reg.IsDecisionStale(&d, now) {
					pc.StaleDecisions = append(pc.StaleDecisions, d)
				}
			}
		}
	}

	if want("threads") || want("stale") {
		threads, err := e.reg.OpenThreads(ctx, project)
		if err != nil {
			return nil, err
		}
		if want("threads") {
			pc.OpenThreads = threads
		}
		if want("stale") {
			now := nowUTC()
			for _, t := range threads {
				if e.reg.IsThreadStale(&t, now) {
					pc.StaleThreads = append(pc.StaleThreads, t)
				}
			}
		}
	}

	if want("flags") {
		flags, err := e.reg.ListFlags(ctx, project, model.FlagPending, "")
		if err != nil {
			return nil, err
		}
		pc.PendingFlags = flags
	}

	return pc, nil
}

// ContextLoadOutput combines project context with an optional recall.
type ContextLoadOutput struct {
	Context     *ProjectContext `json:"context"`
	Recall      *Output         `json:"recall,omitempty"`
	ContextText string          `json:"context_text"`
	BudgetUsed  int             `json:"budget_used"`
}

// ContextLoad renders the project state into a budgeted text and, when
// a query is given, spends the remaining budget on a recall.
func (e *Engine) ContextLoad(ctx context.Context, project, query string, budget int) (*ContextLoadOutput, error) {
	if budget <= 0 {
		budget = e.cfg.GravityDefaultBudget
	}
	pc, err := e.ProjectContext(ctx, project, nil)
	if err != nil {
		return nil, err
	}
	stateText := renderProjectContext(pc, budget)
	out := &ContextLoadOutput{
		Context:     pc,
		ContextText: stateText,
		BudgetUsed:  len(stateText),
	}
	remaining := budget - out.BudgetUsed
	if query != "" && remaining > minTailChars {
		recall, err := e.Recall(ctx, query, project, remaining, 0)
		if err != nil {
			return nil, err
		}
		out.Recall = recall
		if recall.ContextText != "" {
			out.ContextText += "\n\n" + recall.ContextText
			out.BudgetUsed = len(out.ContextText)
		}
	}
	return out, nil
}

// renderProjectContext formats the project state, dropping whole
// sections from the bottom once the budget is exceeded.
func renderProjectContext(pc *ProjectContext, budget int) string {
	var sections []string

	if len(pc.ActiveDecisions) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "## Active decisions (%d)\n", len(pc.ActiveDecisions))
		for _, d := range pc.ActiveDecisions {
			fmt.Fprintf(&b, "- %s %s\n", displayLabel(d.GlobalDisplayID, d.LocalID, d.UUID), truncate(d.Text, lineLimit))
		}
		sections = append(sections, b.String())
	}
	if len(pc.OpenThreads) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "## Open threads (%d)\n", len(pc.OpenThreads))
		for _, t := range pc.OpenThreads {
			fmt.Fprintf(&b, "- %s [%s/%s] %s\n", displayLabel(t.GlobalDisplayID, t.LocalID, t.UUID), t.Priority, t.Status, truncate(t.Title, lineLimit))
		}
		sections = append(sections, b.String())
	}
	if len(pc.PendingFlags) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "## Pending flags (%d)\n", len(pc.PendingFlags))
		for _, f := range pc.PendingFlags {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Category, truncate(f.Description, lineLimit))
		}
		sections = append(sections, b.String())
	}
	if len(pc.StaleDecisions)+len(pc.StaleThreads) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "## Stale items (%d)\n", len(pc.StaleDecisions)+len(pc.StaleThreads))
		for _, d := range pc.StaleDecisions {
			fmt.Fprintf(&b, "- decision %s (hops=%d)\n", displayLabel(d.GlobalDisplayID, d.LocalID, d.UUID), d.HopsSinceValidated)
		}
		for _, t := range pc.StaleThreads {
			fmt.Fprintf(&b, "- thread %s (hops=%d)\n", displayLabel(t.GlobalDisplayID, t.LocalID, t.UUID), t.HopsSinceValidated)
		}
		sections = append(sections, b.String())
	}
	if len(pc.Conflicts) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "## Conflicts (%d)\n", len(pc.Conflicts))
		for _, c := range pc.Conflicts {
			fmt.Fprintf(&b, "- %s conflicts with %s\n", displayLabel(c.DisplayID, c.LocalID, c.UUID), strings.Join(c.ConflictsWith, ", "))
		}
		sections = append(sections, b.String())
	}

	var out strings.Builder
	for _, s := range sections {
		if out.Len()+len(s) > budget {
			break
		}
		out.WriteString(s)
	}
	return strings.TrimRight(out.String(), "\n")
}

func displayLabel(displayID, localID, uuid string) string {
	if displayID != "" {
		return displayID
	}
	if localID != "" {
		return localID
	}
	if len(uuid) >= 8 {
		return uuid[:8]
	}
	return uuid
}
