// Package gravity orchestrates multi-lens recall: each lens scopes the
// attention engine to one project and role, and the results are fused
// into convergences, divergences, and a field coherence score.
package gravity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/model"
	"github.com/forgeos/graph-service/internal/recall"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// Lens scopes one recall to a project with a role-derived disposition.
type Lens struct {
	Project     string            `json:"project"`
	Role        model.Role        `json:"role"`
	Weight      float64           `json:"weight"`
	GravityType model.GravityType `json:"gravity_type"`
}

// LensInput is a caller-supplied lens before resolution.
type LensInput struct {
	Project string     `json:"project"`
	Role    model.Role `json:"role"`
	Weight  float64    `json:"weight,omitempty"`
}

// LensRecall is one lens's recall output.
type LensRecall struct {
	Lens         Lens           `json:"lens"`
	Output       *recall.Output `json:"output"`
	TopAttention float64        `json:"top_attention"`
}

// Convergence is two lenses agreeing on related knowledge.
type Convergence struct {
	Type         string  `json:"type"` // entanglement_cluster or semantic_overlap
	LensA        string  `json:"lens_a"`
	LensB        string  `json:"lens_b"`
	ItemA        string  `json:"item_a"`
	ItemB        string  `json:"item_b"`
	TextA        string  `json:"text_a"`
	TextB        string  `json:"text_b"`
	CombinedMass float64 `json:"combined_mass"`
	ClusterID    string  `json:"cluster_id,omitempty"`
	Jaccard      float64 `json:"jaccard,omitempty"`
}

// Divergence is tension between two lenses.
type Divergence struct {
	Type         string  `json:"type"` // gap or tier_mismatch
	LensA        string  `json:"lens_a"`
	LensB        string  `json:"lens_b"`
	TensionScore float64 `json:"tension_score"`
	Detail       string  `json:"detail,omitempty"`
}

// Field is the composed result of one gravity observation.
type Field struct {
	Lenses       []LensRecall  `json:"lenses"`
	Convergences []Convergence `json:"convergences"`
	Divergences  []Divergence  `json:"divergences"`
	Coherence    float64       `json:"coherence"`
	ContextText  string        `json:"context_text"`
	BudgetUsed   int           `json:"budget_used"`
}

// Orchestrator runs multi-lens observations over the recall engine.
type Orchestrator struct {
	reg    *graph.Registry
	engine *recall.Engine
	scans  recall.ScanProvider
	cfg    *config.Config
}

// NewOrchestrator creates an Orchestrator. scans may be nil.
func NewOrchestrator(reg *graph.Registry, engine *recall.Engine, scans recall.ScanProvider, cfg *config.Config) *Orchestrator {
	return &Orchestrator{reg: reg, engine: engine, scans: scans, cfg: cfg}
}

// ResolveLenses turns the caller's intent into concrete lenses: an
// explicit list wins, then a named configuration, then the default set
// of every project with an assigned role. Capped at the configured
// maximum.
func (o *Orchestrator) ResolveLenses(ctx context.Context, explicit []LensInput, configName string) ([]Lens, error) {
	var lenses []Lens
	switch {
	case len(explicit) > 0:
		for _, in := range explicit {
			lens, err := resolveLens(in)
			if err != nil {
				return nil, err
			}
			lenses = append(lenses, lens)
		}
	case configName != "":
		cfg, err := o.reg.Store().GetLensConfig(ctx, configName)
		if err != nil {
			return nil, err
		}
		for _, spec := range cfg.Lenses {
			lens, err := resolveLens(LensInput{Project: spec.Project, Role: spec.Role, Weight: spec.Weight})
			if err != nil {
				return nil, err
			}
			lenses = append(lenses, lens)
		}
	default:
		roles, err := o.reg.Store().ListProjectRoles(ctx)
		if err != nil {
			return nil, err
		}
		for _, role := range roles {
			lens, err := resolveLens(LensInput{Project: role.Project, Role: role.Role, Weight: role.Weight})
			if err != nil {
				continue // skip rows with retired roles
			}
			lenses = append(lenses, lens)
		}
	}
	if len(lenses) == 0 {
		return nil, &registrystore.ValidationError{Field: "lenses", Message: "no lenses resolved"}
	}
	if max := o.cfg.GravityMaxLenses; len(lenses) > max {
		lenses = lenses[:max]
	}
	return lenses, nil
}

func resolveLens(in LensInput) (Lens, error) {
	gt, ok := in.Role.GravityType()
	if !ok {
		return Lens{}, &registrystore.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", in.Role)}
	}
	weight := in.Weight
	if weight <= 0 {
		weight = 1.0
	}
	return Lens{Project: in.Project, Role: in.Role, Weight: weight, GravityType: gt}, nil
}

// Observe embeds the query once, recalls through every lens in
// parallel, and fuses the results into a field.
func (o *Orchestrator) Observe(ctx context.Context, query string, explicit []LensInput, configName string, budget int) (*Field, error) {
	lenses, err := o.ResolveLenses(ctx, explicit, configName)
	if err != nil {
		return nil, err
	}
	if budget <= 0 {
		budget = o.cfg.GravityDefaultBudget
	}

	embedder := o.reg.Embedder()
	if embedder == nil {
		return nil, &registrystore.ValidationError{Field: "query", Message: "no embedder configured"}
	}
	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	perLensBudget := budget / len(lenses)
	recalls := make([]LensRecall, len(lenses))
	g, gctx := errgroup.WithContext(ctx)
	for i, lens := range lenses {
		g.Go(func() error {
			out, err := o.engine.RecallWithEmbedding(gctx, vector, lens.Project, perLensBudget, 0)
			if err != nil {
				return err
			}
			top := 0.0
			if len(out.Results) > 0 {
				top = out.Results[0].Attention
			}
			recalls[i] = LensRecall{Lens: lens, Output: out, TopAttention: top}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	convergences := o.detectConvergences(ctx, recalls)
	divergences := o.detectDivergences(recalls)
	coherence := fieldCoherence(recalls, convergences, divergences)

	field := &Field{
		Lenses:       recalls,
		Convergences: convergences,
		Divergences:  divergences,
		Coherence:    coherence,
	}
	field.ContextText = compose(field, budget)
	field.BudgetUsed = len(field.ContextText)
	return field, nil
}

// detectConvergences compares every lens pair with two methods: shared
// entanglement cluster membership and semantic word overlap.
func (o *Orchestrator) detectConvergences(ctx context.Context, recalls []LensRecall) []Convergence {
	clusterOf := o.clusterIndex(ctx)
	boost := o.cfg.GravityConvergenceBoost
	var convergences []Convergence

	for a := 0; a < len(recalls); a++ {
		for b := a + 1; b < len(recalls); b++ {
			ra, rb := recalls[a], recalls[b]
			for _, ia := range ra.Output.Results {
				for _, ib := range rb.Output.Results {
					if ca, ok := clusterOf[ia.UUID]; ok {
						if cb, ok := clusterOf[ib.UUID]; ok && ca == cb {
							convergences = append(convergences, Convergence{
								Type:         "entanglement_cluster",
								LensA:        ra.Lens.Project,
								LensB:        rb.Lens.Project,
								ItemA:        ia.UUID,
								ItemB:        ib.UUID,
								TextA:        ia.Text,
								TextB:        ib.Text,
								CombinedMass: (ia.Attention + ib.Attention) * boost,
								ClusterID:    ca,
							})
							continue
						}
					}
					if j, ok := jaccard(ia.Text, ib.Text); ok && j >= o.cfg.GravityJaccardThreshold {
						convergences = append(convergences, Convergence{
							Type:         "semantic_overlap",
							LensA:        ra.Lens.Project,
							LensB:        rb.Lens.Project,
							ItemA:        ia.UUID,
							ItemB:        ib.UUID,
							TextA:        ia.Text,
							TextB:        ib.Text,
							CombinedMass: (ia.Attention + ib.Attention) * boost,
							Jaccard:      j,
						})
					}
				}
			}
		}
	}
	sort.SliceStable(convergences, func(i, j int) bool {
		return convergences[i].CombinedMass > convergences[j].CombinedMass
	})
	return convergences
}

// clusterIndex maps result uuid to cluster id from the cached scan.
func (o *Orchestrator) clusterIndex(ctx context.Context) map[string]string {
	index := map[string]string{}
	if o.scans == nil {
		return index
	}
	scan, err := o.scans.Latest(ctx, "")
	if err != nil || scan == nil {
		return index
	}
	for _, c := range scan.Clusters {
		for _, item := range c.Items {
			index[item.UUID] = c.ClusterID
		}
	}
	return index
}

// detectDivergences finds gaps (one lens sees what another does not)
// and tier mismatches between decision hits.
func (o *Orchestrator) detectDivergences(recalls []LensRecall) []Divergence {
	var divergences []Divergence
	for a := 0; a < len(recalls); a++ {
		for b := a + 1; b < len(recalls); b++ {
			ra, rb := recalls[a], recalls[b]
			na, nb := len(ra.Output.Results), len(rb.Output.Results)
			if (na == 0) != (nb == 0) {
				divergences = append(divergences, Divergence{
					Type:         "gap",
					LensA:        ra.Lens.Project,
					LensB:        rb.Lens.Project,
					TensionScore: 0.6,
					Detail:       fmt.Sprintf("%d results vs %d", na, nb),
				})
				continue
			}
			for _, ia := range ra.Output.Results {
				if ia.Category != model.CategoryDecision || ia.EpistemicTier == nil {
					continue
				}
				for _, ib := range rb.Output.Results {
					if ib.Category != model.CategoryDecision || ib.EpistemicTier == nil {
						continue
					}
					delta := math.Abs(*ia.EpistemicTier - *ib.EpistemicTier)
					if delta < o.cfg.GravityTierMismatch {
						continue
					}
					divergences = append(divergences, Divergence{
						Type:         "tier_mismatch",
						LensA:        ra.Lens.Project,
						LensB:        rb.Lens.Project,
						TensionScore: math.Min(1, math.Max(0, delta/0.5)),
						Detail:       fmt.Sprintf("tier delta %.2f between %s and %s", delta, ia.UUID, ib.UUID),
					})
				}
			}
		}
	}
	sort.SliceStable(divergences, func(i, j int) bool {
		return divergences[i].TensionScore > divergences[j].TensionScore
	})
	return divergences
}

// fieldCoherence folds convergence mass and divergence tension into a
// single [0,1] score. 0.5 is neutral.
func fieldCoherence(recalls []LensRecall, convergences []Convergence, divergences []Divergence) float64 {
	var totalMass float64
	for _, r := range recalls {
		for _, res := range r.Output.Results {
			totalMass += res.Attention
		}
	}
	if totalMass == 0 {
		return 0.5
	}
	var convergenceMass float64
	for _, c := range convergences {
		convergenceMass += c.CombinedMass
	}
	var tension float64
	for _, d := range divergences {
		tension += d.TensionScore
	}
	coherence := 0.5 + 0.5*(convergenceMass/totalMass) - 0.5*(tension/math.Max(totalMass, 1))
	return math.Min(1, math.Max(0, coherence))
}

// jaccard computes word-set overlap; texts under five words are not
// comparable.
func jaccard(a, b string) (float64, bool) {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) < 5 || len(wb) < 5 {
		return 0, false
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0, false
	}
	return float64(inter) / float64(union), true
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// compose renders the field in three bands: convergences, per-lens
// results sorted by top attention, then up to three divergence notes.
func compose(f *Field, budget int) string {
	var b strings.Builder
	write := func(s string) bool {
		if b.Len()+len(s) > budget {
			return false
		}
		b.WriteString(s)
		return true
	}

	if len(f.Convergences) > 0 {
		write(fmt.Sprintf("## Convergences (%d, coherence %.2f)\n", len(f.Convergences), f.Coherence))
		for _, c := range f.Convergences {
			line := fmt.Sprintf("- [%s] %s <-> %s (mass %.2f): %s | %s\n",
				c.Type, c.LensA, c.LensB, c.CombinedMass, firstN(c.TextA, 120), firstN(c.TextB, 120))
			if !write(line) {
				break
			}
		}
	}

	ordered := append([]LensRecall(nil), f.Lenses...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TopAttention > ordered[j].TopAttention
	})
	for _, lr := range ordered {
		if len(lr.Output.Results) == 0 {
			continue
		}
		header := fmt.Sprintf("\n## Lens %s (%s, top %.2f)\n", lr.Lens.Project, lr.Lens.GravityType, lr.TopAttention)
		if !write(header) {
			break
		}
		if lr.Output.ContextText != "" {
			write(lr.Output.ContextText + "\n")
		}
	}

	if len(f.Divergences) > 0 {
		write("\n## Divergences\n")
		for i, d := range f.Divergences {
			if i >= 3 {
				break
			}
			if !write(fmt.Sprintf("- [%s] %s vs %s (tension %.2f) %s\n", d.Type, d.LensA, d.LensB, d.TensionScore, d.Detail)) {
				break
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstN(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n]
}
