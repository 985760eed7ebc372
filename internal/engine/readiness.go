package engine

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Readiness blend weights: how fast maintainers respond, how alive the repo
// is, how many newcomer-sized tasks exist, and whether the docs get you to a
// first build.
var readinessWeights = []float64{0.35, 0.20, 0.25, 0.20}

// Per-label weights for the raw task-supply count.
const (
	supplyGoodFirstWeight  = 2.0
	supplyHelpWantedWeight = 1.5
	supplyDocsWeight       = 1.0
	supplyI18NWeight       = 1.0
)

var tokenSplit = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	parts := tokenSplit.Split(strings.ToLower(text), -1)
	out := parts[:0]
	for _, t := range parts {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// containsMatch reports whether target loosely matches any entry: exact or
// substring in either direction, case-insensitive. An empty target never
// matches, so a query without a domain or stack contributes nothing to fit.
func containsMatch(values []string, target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" {
		return false
	}
	for _, v := range values {
		lv := strings.ToLower(v)
		if lv == "" {
			continue
		}
		if t == lv || strings.Contains(lv, t) || strings.Contains(t, lv) {
			return true
		}
	}
	return false
}

// keywordOverlap is the fraction of the user's keywords found among the
// candidate's tag and description tokens.
func keywordOverlap(keywords []string, tags []string, description string) float64 {
	user := make(map[string]struct{})
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			user[k] = struct{}{}
		}
	}
	if len(user) == 0 {
		return 0
	}
	target := make(map[string]struct{})
	for _, tok := range tokenize(strings.Join(tags, " ")) {
		target[tok] = struct{}{}
	}
	for _, tok := range tokenize(description) {
		target[tok] = struct{}{}
	}
	if len(target) == 0 {
		return 0
	}
	overlap := 0
	for k := range user {
		if _, ok := target[k]; ok {
			overlap++
		}
	}
	return clip(float64(overlap)/float64(len(user)), 0, 1)
}

// FitScore measures interest match: 40 points for a domain hit, 35 for a
// stack hit, up to 25 for keyword overlap.
func FitScore(profile CandidateProfile, q Query) float64 {
	score := 0.0
	if containsMatch(profile.Domains, q.Domain) {
		score += 40
	}
	if containsMatch(profile.Stacks, q.Stack) {
		score += 35
	}
	score += 25 * keywordOverlap(q.Keywords, profile.Tags, profile.Description)
	return math.Min(score, 100)
}

// cohortBounds holds the cross-sectional 10th/90th percentile baselines,
// recomputed from the candidate set on every call.
type cohortBounds struct {
	respLo, respHi         *float64
	activityLo, activityHi *float64
	supplyLo, supplyHi     *float64
}

func supplyRaw(s IssueStats) float64 {
	return supplyGoodFirstWeight*float64(s.GoodFirst) +
		supplyHelpWantedWeight*float64(s.HelpWanted) +
		supplyDocsWeight*float64(s.Docs) +
		supplyI18NWeight*float64(s.I18N)
}

func cohortPercentiles(cands []Candidate) cohortBounds {
	var resp, activity, supply []float64
	for _, c := range cands {
		for _, v := range []*float64{
			c.Metrics.IssueResponseTimeH, c.Metrics.PRResponseTimeH,
			c.Metrics.IssueAgeH, c.Metrics.PRAgeH,
		} {
			if v != nil {
				resp = append(resp, *v)
			}
		}
		for _, v := range []*float64{
			c.Metrics.Activity3M, c.Metrics.ActivityGrowth, c.Metrics.NewContributors,
		} {
			if v != nil {
				activity = append(activity, *v)
			}
		}
		supply = append(supply, math.Log1p(supplyRaw(c.Issues)))
	}
	b := cohortBounds{}
	if len(cands) < 2 {
		// A single candidate has no cross-section to rank against. Collapse
		// each baseline so every normalized component lands on the neutral
		// midpoint instead of comparing the candidate's metrics to each other.
		b.respLo, b.respHi = collapsedBounds(resp)
		b.activityLo, b.activityHi = collapsedBounds(activity)
		b.supplyLo, b.supplyHi = collapsedBounds(supply)
		return b
	}
	b.respLo, b.respHi = PercentileBounds(resp)
	b.activityLo, b.activityHi = PercentileBounds(activity)
	b.supplyLo, b.supplyHi = PercentileBounds(supply)
	return b
}

func collapsedBounds(values []float64) (*float64, *float64) {
	mid := Percentile(values, 50)
	return mid, mid
}

// responseComponent blends the four latency metrics, each normalized against
// the cohort's pooled response-time distribution (lower is better).
func responseComponent(m CandidateMetrics, b cohortBounds) *float64 {
	norms := []*float64{
		PercentileNormalize(m.IssueResponseTimeH, b.respLo, b.respHi, false),
		PercentileNormalize(m.PRResponseTimeH, b.respLo, b.respHi, false),
		PercentileNormalize(m.IssueAgeH, b.respLo, b.respHi, false),
		PercentileNormalize(m.PRAgeH, b.respLo, b.respHi, false),
	}
	return WeightedAvg(norms, []float64{0.4, 0.3, 0.2, 0.1})
}

func activityComponent(m CandidateMetrics, b cohortBounds) *float64 {
	norms := []*float64{
		PercentileNormalize(m.Activity3M, b.activityLo, b.activityHi, true),
		PercentileNormalize(m.ActivityGrowth, b.activityLo, b.activityHi, true),
		PercentileNormalize(m.NewContributors, b.activityLo, b.activityHi, true),
	}
	return WeightedAvg(norms, []float64{0.45, 0.25, 0.30})
}

// supplyComponent is the log-compressed, percentile-normalized task count,
// scaled by how recently those tasks were touched. Stale supply keeps at
// least 60% of its value.
func supplyComponent(s IssueStats, b cohortBounds) float64 {
	base := math.Log1p(supplyRaw(s))
	norm := PercentileNormalize(Ptr(base), b.supplyLo, b.supplyHi, true)
	freshness := clip(s.FreshnessFactor, 0.6, 1.0)
	return val(norm) * freshness
}

// onboardingComponent is a flat point sum over onboarding docs, capped at 100.
func onboardingComponent(d DocInfo) float64 {
	score := 0.0
	if d.HasReadme {
		score += 30
	}
	if d.HasContributing {
		score += 40
	}
	if d.HasPRTemplate {
		score += 15
	}
	if len(d.SetupCommands) > 0 {
		score += 15
	}
	return math.Min(score, 100)
}

// ReadinessScore blends the four readiness components for one candidate
// against the cohort baselines. Components that cannot be computed drop out
// and the weights renormalize; with nothing at all it scores 0.
func ReadinessScore(c Candidate, b cohortBounds) float64 {
	components := []*float64{
		responseComponent(c.Metrics, b),
		activityComponent(c.Metrics, b),
		Ptr(supplyComponent(c.Issues, b)),
		Ptr(onboardingComponent(c.Docs)),
	}
	return val(WeightedAvg(components, readinessWeights))
}

// DifficultyLabel converts readiness into a difficulty tag, shifting the cuts
// down for users with more weekly time: they can absorb rougher onboarding.
func DifficultyLabel(readiness float64, timePerWeek string) string {
	easy, medium := 75.0, 55.0
	switch {
	case strings.HasPrefix(timePerWeek, "3-5"):
		easy, medium = 70, 50
	case strings.HasPrefix(timePerWeek, "6") || strings.Contains(timePerWeek, "+"):
		easy, medium = 65, 45
	}
	if readiness >= easy {
		return "Easy"
	}
	if readiness >= medium {
		return "Medium"
	}
	return "Hard"
}

// buildReasons assembles at most five human-readable callouts, deterministic
// in the same inputs that produced the scores.
func buildReasons(c Candidate, readiness, fit float64) []string {
	reasons := make([]string, 0, 5)
	reasons = append(reasons, fmt.Sprintf("Interest match: domain/stack weighted %d%%", int(math.Round(fit))))
	if c.Metrics.IssueResponseTimeH != nil {
		reasons = append(reasons, fmt.Sprintf("Fast first response: issues answered in ~%dh", int(math.Round(*c.Metrics.IssueResponseTimeH))))
	}
	if c.Issues.GoodFirst > 0 {
		reasons = append(reasons, fmt.Sprintf("Newcomer task supply: %d good-first issues open", c.Issues.GoodFirst))
	}
	if c.Issues.Docs > 0 {
		reasons = append(reasons, fmt.Sprintf("Documentation starter tasks: %d open", c.Issues.Docs))
	}
	if readiness > 0 {
		reasons = append(reasons, fmt.Sprintf("Newcomer readiness %d%%", int(math.Round(readiness))))
	}
	if len(reasons) > 5 {
		reasons = reasons[:5]
	}
	return reasons
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ScoreCandidates ranks a cohort of candidate repos against a user's stated
// interest and time budget. Percentile baselines are cross-sectional over
// this cohort and recomputed per call; a cohort of one degenerates to neutral
// midpoints rather than erroring. The result is sorted by match score
// descending, candidate name as the deterministic tie-break.
func ScoreCandidates(cands []Candidate, q Query) []ScoredCandidate {
	bounds := cohortPercentiles(cands)

	scored := make([]ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		fit := FitScore(c.Profile, q)
		readiness := ReadinessScore(c, bounds)
		match := 0.55*fit + 0.45*readiness
		scored = append(scored, ScoredCandidate{
			Repo:           c.Profile.Repo,
			URL:            c.Profile.URL,
			FitScore:       round2(fit),
			ReadinessScore: round2(readiness),
			MatchScore:     round2(match),
			Difficulty:     DifficultyLabel(readiness, q.TimePerWeek),
			Responsiveness: responseComponent(c.Metrics, bounds),
			Activity:       activityComponent(c.Metrics, bounds),
			Reasons:        buildReasons(c, readiness, fit),
			Issues:         c.Issues,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].MatchScore != scored[j].MatchScore {
			return scored[i].MatchScore > scored[j].MatchScore
		}
		return scored[i].Repo < scored[j].Repo
	})
	return scored
}

// Per-label priority when ranking individual starter issues.
var labelPriority = map[string]float64{
	"good_first":  1.0,
	"docs":        0.8,
	"help_wanted": 0.7,
	"i18n":        0.6,
}

// IssueTaskScore ranks a single labelled issue for a newcomer plan: label
// priority first, recency second, repo readiness third. Freshness is the
// decayed recency from Freshness; readiness is the repo's 0-100 score.
func IssueTaskScore(label string, freshness, readiness float64) float64 {
	priority, ok := labelPriority[strings.ToLower(label)]
	if !ok {
		priority = 0.6
	}
	return 0.5*priority + 0.3*freshness + 0.2*(readiness/100.0)
}
