package recall

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// lineLimit caps one rendered context line.
	lineLimit = 500
	// minTailChars is the smallest truncated tail worth including when
	// the budget boundary falls inside a line.
	minTailChars = 50
)

// renderLine formats one result for the assembled context text.
func renderLine(r *Result) string {
	label := r.DisplayID
	if label == "" {
		label = r.LocalID
	}
	if label == "" && len(r.UUID) >= 8 {
		label = r.UUID[:8]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", r.Category)
	if label != "" {
		fmt.Fprintf(&b, " %s", label)
	}
	if r.Project != "" {
		fmt.Fprintf(&b, " (%s)", r.Project)
	}
	fmt.Fprintf(&b, " %s", strings.ReplaceAll(r.Text, "\n", " "))
	line := b.String()
	if len(line) > lineLimit {
		line = line[:lineLimit]
	}
	return line
}

// trimToBudget orders results by attention and greedily assembles a
// context text no longer than budget chars. The boundary line is
// truncated rather than dropped when at least minTailChars fit.
func trimToBudget(results []Result, budget int) ([]Result, string, int) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Attention > results[j].Attention
	})

	var (
		included []Result
		lines    []string
		used     int
	)
	for i := range results {
		line := renderLine(&results[i])
		cost := len(line)
		if len(lines) > 0 {
			cost++ // newline separator
		}
		if used+cost <= budget {
			included = append(included, results[i])
			lines = append(lines, line)
			used += cost
			continue
		}
		remaining := budget - used
		if len(lines) > 0 {
			remaining-- // separator before the truncated tail
		}
		if remaining >= minTailChars {
			included = append(included, results[i])
			lines = append(lines, line[:remaining])
			used += remaining
			if len(lines) > 1 {
				used++
			}
		}
		break
	}
	return included, strings.Join(lines, "\n"), used
}
