package engine

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Dimension and sub-score weights for the daily health snapshot. Fixed by the
// product delivery plan; changing any of these changes every persisted score.
var (
	vitalityWeights       = []float64{0.30, 0.40, 0.20, 0.10}
	responsivenessWeights = []float64{0.45, 0.35, 0.20}
	resilienceWeights     = []float64{0.45, 0.35, 0.20}
	governanceWeights     = []float64{0.45, 0.35, 0.20}
	securityWeights       = []float64{0.7, 0.2, 0.1}
	healthWeights         = []float64{0.30, 0.25, 0.20, 0.15, 0.10}
)

// Latency thresholds in hours: at or under good scores 100, at or over bad
// scores 0.
const (
	issueFirstGood = 24
	issueFirstBad  = 168
	prFirstGood    = 12
	prFirstBad     = 120
	issueCloseGood = 72
	issueCloseBad  = 720
	prCloseGood    = 48
	prCloseBad     = 720
	backlogAgeGood = 168
	backlogAgeBad  = 2160
)

// securityDefaultScore is the neutral placeholder used when no scorecard data
// exists for a repo. Deliberately 50, not 0: absence of data is not evidence
// of bad practice.
const securityDefaultScore = 50.0

func coerceFloat(v any) *float64 {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return Ptr(x)
	case float32:
		return Ptr(float64(x))
	case int:
		return Ptr(float64(x))
	case int64:
		return Ptr(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return Ptr(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) {
			return nil
		}
		return Ptr(f)
	case bool:
		if x {
			return Ptr(1)
		}
		return Ptr(0)
	default:
		return nil
	}
}

// num looks a metric up under its bare key, then under the metric_ prefix,
// coercing malformed values to nil.
func (m RawMetrics) num(key string) *float64 {
	if v, ok := m[key]; ok {
		if f := coerceFloat(v); f != nil {
			return f
		}
	}
	if !strings.HasPrefix(key, "metric_") {
		if v, ok := m["metric_"+key]; ok {
			return coerceFloat(v)
		}
	}
	return nil
}

// firstNum returns the first key that resolves to a present value.
func (m RawMetrics) firstNum(keys ...string) *float64 {
	for _, k := range keys {
		if v := m.num(k); v != nil {
			return v
		}
	}
	return nil
}

func (m RawMetrics) obj(key string) map[string]any {
	for _, k := range []string{"metric_" + key, key} {
		if v, ok := m[k]; ok {
			if mp, ok := v.(map[string]any); ok {
				return mp
			}
		}
	}
	return nil
}

func (m RawMetrics) flag(key string) bool {
	for _, k := range []string{"metric_" + key, key} {
		if v, ok := m[k]; ok {
			return truthy(v)
		}
	}
	return false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && !strings.EqualFold(x, "false") && x != "0"
	case nil:
		return false
	default:
		if f := coerceFloat(v); f != nil {
			return *f != 0
		}
		return true
	}
}

// parseGovernanceFiles maps a loose string-keyed payload onto the enumerated
// seven-key checklist. nil means no payload was supplied at all, which the
// coverage ratio treats as zero hits.
func parseGovernanceFiles(payload map[string]any) *GovernanceFiles {
	if len(payload) == 0 {
		return nil
	}
	gf := &GovernanceFiles{}
	for k, v := range payload {
		present := truthy(v)
		switch strings.ToLower(k) {
		case "readme":
			gf.Readme = present
		case "license":
			gf.License = present
		case "contributing":
			gf.Contributing = present
		case "code_of_conduct":
			gf.CodeOfConduct = present
		case "security":
			gf.Security = present
		case "issue_template":
			gf.IssueTemplate = present
		case "pull_request_template":
			gf.PullRequestTemplate = present
		}
	}
	return gf
}

// parseScorecardChecks accepts either {name: score} or {name: {"score": n}}
// shapes and returns the checks sorted by name for deterministic output.
func parseScorecardChecks(payload map[string]any) []ScorecardCheck {
	if len(payload) == 0 {
		return nil
	}
	checks := make([]ScorecardCheck, 0, len(payload))
	for name, v := range payload {
		var score *float64
		if nested, ok := v.(map[string]any); ok {
			score = coerceFloat(nested["score"])
		} else {
			score = coerceFloat(v)
		}
		checks = append(checks, ScorecardCheck{Name: name, Score: score})
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })
	return checks
}

// coverageScore is the fraction of the seven governance files present.
func coverageScore(gf *GovernanceFiles) float64 {
	if gf == nil {
		return 0
	}
	hits := 0
	for _, present := range []bool{
		gf.Readme, gf.License, gf.Contributing, gf.CodeOfConduct,
		gf.Security, gf.IssueTemplate, gf.PullRequestTemplate,
	} {
		if present {
			hits++
		}
	}
	return 100.0 * float64(hits) / 7.0
}

// transparencyBonus scores 100 when the core trio (readme, license,
// contributing) plus at least one template are present, otherwise it falls
// back to the plain coverage ratio.
func transparencyBonus(gf *GovernanceFiles) float64 {
	if gf != nil && gf.Readme && gf.License && gf.Contributing &&
		(gf.IssueTemplate || gf.PullRequestTemplate) {
		return 100
	}
	return coverageScore(gf)
}

// criticalSecurityScore averages all named scorecard checks (each 0-10) onto
// the 0-100 scale. No usable checks yields nil.
func criticalSecurityScore(checks []ScorecardCheck) *float64 {
	sum := 0.0
	n := 0
	for _, c := range checks {
		if c.Score == nil {
			continue
		}
		sum += *c.Score * 10
		n++
	}
	if n == 0 {
		return nil
	}
	return Clamp(Ptr(sum / float64(n)))
}

// ComputeHealth derives one repo's five-dimension health snapshot for one day
// from a raw metric payload. Pure and deterministic: identical inputs yield an
// identical snapshot, and no payload content makes it fail. Malformed numbers
// coerce to nil and fall out of the weighted averages.
func ComputeHealth(metrics RawMetrics, repo string, dt time.Time) *HealthSnapshot {
	snap := &HealthSnapshot{Repo: repo, Dt: NewDate(dt)}
	m := &snap.Metrics

	m.OpenRank = metrics.num("openrank")
	m.Activity = metrics.num("activity")
	m.Attention = metrics.num("attention")
	m.Participants = metrics.firstNum("participants_3m", "participants")
	m.NewContributors = metrics.firstNum("new_contributors_3m", "new_contributors")
	m.Activity3M = metrics.num("activity_3m")
	m.ActivityPrev3M = metrics.num("activity_prev_3m")
	m.ActiveMonths12M = metrics.num("active_months_12m")
	m.Stars = metrics.num("stars")
	m.ActivityGrowth = GrowthScore(m.Activity3M, m.ActivityPrev3M)

	// Vitality: influence, momentum, community, growth.
	snap.ScoreVitalityInfluence = LogScore(m.OpenRank)
	snap.ScoreVitalityMomentum = LogScore(m.Activity3M)

	partScore := LogScore(m.Participants)
	newScore := LogScore(m.NewContributors)
	if partScore != nil || newScore != nil {
		// A missing side counts as 0 once either side is present.
		snap.ScoreVitalityCommunity = Ptr(0.7*val(partScore) + 0.3*val(newScore))
	}

	var sustainScore *float64
	if m.ActiveMonths12M != nil {
		sustainScore = Clamp(Ptr(100 * *m.ActiveMonths12M / 12))
	}
	if m.ActivityGrowth != nil || sustainScore != nil {
		snap.ScoreVitalityGrowth = Ptr(0.6*val(m.ActivityGrowth) + 0.4*val(sustainScore))
	}

	snap.ScoreVitality = WeightedAvg(
		[]*float64{snap.ScoreVitalityInfluence, snap.ScoreVitalityMomentum, snap.ScoreVitalityCommunity, snap.ScoreVitalityGrowth},
		vitalityWeights,
	)

	// Responsiveness: issue and PR channels blended by throughput.
	m.IssueResponseTimeH = metrics.num("issue_response_time_h")
	m.IssueResolutionH = metrics.num("issue_resolution_duration_h")
	m.IssueAgeH = metrics.num("issue_age_h")
	m.IssuesNew = metrics.num("issues_new")
	m.PRResponseTimeH = metrics.firstNum("pr_response_time_h", "change_request_response_time_h")
	m.PRResolutionH = metrics.firstNum("pr_resolution_duration_h", "change_request_resolution_duration_h")
	m.PRAgeH = metrics.firstNum("pr_age_h", "change_request_age_h")
	m.PRsNew = metrics.firstNum("prs_new", "change_requests_new")

	issueFirst := TimeScore(m.IssueResponseTimeH, issueFirstGood, issueFirstBad)
	prFirst := TimeScore(m.PRResponseTimeH, prFirstGood, prFirstBad)
	issueClose := TimeScore(m.IssueResolutionH, issueCloseGood, issueCloseBad)
	prClose := TimeScore(m.PRResolutionH, prCloseGood, prCloseBad)
	issueAge := TimeScore(m.IssueAgeH, backlogAgeGood, backlogAgeBad)
	prAge := TimeScore(m.PRAgeH, backlogAgeGood, backlogAgeBad)

	// The busier channel gets the heavier say.
	wIssue := math.Log1p(val(m.IssuesNew))
	wPR := math.Log1p(val(m.PRsNew))

	snap.ScoreRespFirst = WeightedAvg([]*float64{issueFirst, prFirst}, []float64{wIssue, wPR})
	snap.ScoreRespClose = WeightedAvg([]*float64{issueClose, prClose}, []float64{wIssue, wPR})
	snap.ScoreRespBacklog = WeightedAvg([]*float64{issueAge, prAge}, []float64{wIssue, wPR})

	snap.ScoreResponsiveness = WeightedAvg(
		[]*float64{snap.ScoreRespFirst, snap.ScoreRespClose, snap.ScoreRespBacklog},
		responsivenessWeights,
	)
	if snap.ScoreResponsiveness == nil && val(m.Activity) > 0 {
		// Active repo with no latency telemetry at all: neutral, not absent.
		snap.ScoreResponsiveness = Ptr(neutralMidpoint)
	}

	// Resilience: bus factor, contributor diversity, retention.
	m.BusFactor = metrics.num("bus_factor")
	m.HHI = metrics.num("hhi")
	m.Top1Share = metrics.num("top1_share")
	m.InactiveContributors = metrics.num("inactive_contributors")
	m.RetentionRate = metrics.num("retention_rate")

	snap.ScoreResBusFactor = Clamp(Ptr(val(m.BusFactor) * 20))

	concentration := m.HHI
	if concentration == nil {
		concentration = m.Top1Share
	}
	if concentration != nil {
		snap.ScoreResDiversity = Clamp(Ptr(100 * (1 - *concentration)))
	}

	if m.RetentionRate != nil {
		snap.ScoreResRetention = Clamp(Ptr(100 * *m.RetentionRate))
	} else if val(m.Participants) > 0 {
		retention := 1 - val(m.InactiveContributors)/math.Max(1, val(m.Participants))
		snap.ScoreResRetention = Clamp(Ptr(100 * retention))
	}

	snap.ScoreResilience = WeightedAvg(
		[]*float64{snap.ScoreResBusFactor, snap.ScoreResDiversity, snap.ScoreResRetention},
		resilienceWeights,
	)

	// Governance: community profile, process speed, transparency.
	govFiles := parseGovernanceFiles(metrics.obj("governance_files"))
	m.GovernanceFiles = govFiles
	m.GitHubHealthPercentage = metrics.num("github_health_percentage")

	snap.ScoreGovFiles = Clamp(m.GitHubHealthPercentage)
	if snap.ScoreRespFirst != nil || snap.ScoreRespClose != nil {
		snap.ScoreGovProcess = Ptr(0.6*val(snap.ScoreRespFirst) + 0.4*val(snap.ScoreRespClose))
	}
	snap.ScoreGovTransparency = Ptr(transparencyBonus(govFiles))

	snap.ScoreGovernance = WeightedAvg(
		[]*float64{snap.ScoreGovFiles, snap.ScoreGovProcess, snap.ScoreGovTransparency},
		governanceWeights,
	)
	if snap.ScoreGovernance == nil {
		snap.ScoreGovernance = Clamp(Ptr(val(snap.ScoreVitality)*0.8 + 20))
	}

	// Security: OSSF scorecard, or the neutral placeholder without data.
	m.ScorecardScore = metrics.num("scorecard_score")
	m.ScorecardChecks = parseScorecardChecks(metrics.obj("scorecard_checks"))
	m.SecurityDefaulted = metrics.flag("security_defaulted")

	if m.SecurityDefaulted {
		snap.ScoreSecBase = Ptr(securityDefaultScore)
		snap.ScoreSecCritical = nil
		snap.ScoreSecBonus = Ptr(0)
		snap.ScoreSecurity = Ptr(securityDefaultScore)
	} else {
		snap.ScoreSecBase = Clamp(Ptr(val(m.ScorecardScore) * 10))
		snap.ScoreSecCritical = criticalSecurityScore(m.ScorecardChecks)
		snap.ScoreSecBonus = Ptr(10)
		snap.ScoreSecurity = WeightedAvg(
			[]*float64{snap.ScoreSecBase, snap.ScoreSecCritical, snap.ScoreSecBonus},
			securityWeights,
		)
		if snap.ScoreSecurity == nil {
			snap.ScoreSecurity = Ptr(60)
		}
	}

	snap.ScoreHealth = WeightedAvg(
		[]*float64{snap.ScoreVitality, snap.ScoreResponsiveness, snap.ScoreResilience, snap.ScoreGovernance, snap.ScoreSecurity},
		healthWeights,
	)

	if raw, ok := metrics["raw_payloads"].(map[string]any); ok {
		snap.RawPayloads = raw
	}

	return snap
}
