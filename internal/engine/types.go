package engine

import (
	"fmt"
	"time"
)

// Date is a calendar day. It marshals as ISO-8601 (YYYY-MM-DD) because the
// API layer serves snapshot and series dates as plain day strings.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.Format("2006-01-02"))), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", s)
	}
	t, err := time.Parse("2006-01-02", s[1:len(s)-1])
	if err != nil {
		return err
	}
	*d = Date{t}
	return nil
}

// RawMetrics is the flat metric payload handed over by the ETL collaborator:
// metric key to numeric value, plus nested objects for governance file flags
// and scorecard check lists. Values may be malformed; accessors coerce what
// they can and treat failures as absent.
type RawMetrics map[string]any

// GovernanceFiles is the enumerated governance checklist. The upstream payload
// is a loose string-keyed map; parsing it into named booleans avoids silent
// typos in the seven-key checklist.
type GovernanceFiles struct {
	Readme              bool `json:"readme"`
	License             bool `json:"license"`
	Contributing        bool `json:"contributing"`
	CodeOfConduct       bool `json:"code_of_conduct"`
	Security            bool `json:"security"`
	IssueTemplate       bool `json:"issue_template"`
	PullRequestTemplate bool `json:"pull_request_template"`
}

// ScorecardCheck is one named OSSF Scorecard sub-check with its 0-10 score.
type ScorecardCheck struct {
	Name  string   `json:"name"`
	Score *float64 `json:"score"`
}

// SnapshotMetrics carries the raw metric values a snapshot was derived from.
// They are kept for traceability and audit, not for recomputation.
type SnapshotMetrics struct {
	OpenRank               *float64 `json:"metric_openrank"`
	Activity               *float64 `json:"metric_activity"`
	Attention              *float64 `json:"metric_attention"`
	Participants           *float64 `json:"metric_participants"`
	NewContributors        *float64 `json:"metric_new_contributors"`
	Activity3M             *float64 `json:"metric_activity_3m"`
	ActivityPrev3M         *float64 `json:"metric_activity_prev_3m"`
	ActivityGrowth         *float64 `json:"metric_activity_growth"`
	ActiveMonths12M        *float64 `json:"metric_active_months_12m"`
	Stars                  *float64 `json:"metric_stars"`
	IssueResponseTimeH     *float64 `json:"metric_issue_response_time_h"`
	IssueResolutionH       *float64 `json:"metric_issue_resolution_duration_h"`
	IssueAgeH              *float64 `json:"metric_issue_age_h"`
	IssuesNew              *float64 `json:"metric_issues_new"`
	PRResponseTimeH        *float64 `json:"metric_pr_response_time_h"`
	PRResolutionH          *float64 `json:"metric_pr_resolution_duration_h"`
	PRAgeH                 *float64 `json:"metric_pr_age_h"`
	PRsNew                 *float64 `json:"metric_prs_new"`
	BusFactor              *float64 `json:"metric_bus_factor"`
	HHI                    *float64 `json:"metric_hhi"`
	Top1Share              *float64 `json:"metric_top1_share"`
	InactiveContributors   *float64 `json:"metric_inactive_contributors"`
	RetentionRate          *float64 `json:"metric_retention_rate"`
	GitHubHealthPercentage *float64 `json:"metric_github_health_percentage"`
	ScorecardScore         *float64 `json:"metric_scorecard_score"`
	SecurityDefaulted      bool     `json:"metric_security_defaulted"`

	GovernanceFiles *GovernanceFiles `json:"metric_governance_files"`
	ScorecardChecks []ScorecardCheck `json:"metric_scorecard_checks,omitempty"`
}

// HealthSnapshot is one repo's health picture for one day: five dimension
// scores, their sub-scores, the overall blend, and the raw inputs.
// Every score field is nil or within [0,100]. Persistence (external) upserts
// by the (repo, dt) unique key, last write wins.
type HealthSnapshot struct {
	Repo string `json:"repo_full_name"`
	Dt   Date   `json:"dt"`

	ScoreHealth         *float64 `json:"score_health"`
	ScoreVitality       *float64 `json:"score_vitality"`
	ScoreResponsiveness *float64 `json:"score_responsiveness"`
	ScoreResilience     *float64 `json:"score_resilience"`
	ScoreGovernance     *float64 `json:"score_governance"`
	ScoreSecurity       *float64 `json:"score_security"`

	ScoreVitalityInfluence *float64 `json:"score_vitality_influence"`
	ScoreVitalityMomentum  *float64 `json:"score_vitality_momentum"`
	ScoreVitalityCommunity *float64 `json:"score_vitality_community"`
	ScoreVitalityGrowth    *float64 `json:"score_vitality_growth"`

	ScoreRespFirst   *float64 `json:"score_resp_first"`
	ScoreRespClose   *float64 `json:"score_resp_close"`
	ScoreRespBacklog *float64 `json:"score_resp_backlog"`

	ScoreResBusFactor *float64 `json:"score_res_bf"`
	ScoreResDiversity *float64 `json:"score_res_diversity"`
	ScoreResRetention *float64 `json:"score_res_retention"`

	ScoreGovFiles        *float64 `json:"score_gov_files"`
	ScoreGovProcess      *float64 `json:"score_gov_process"`
	ScoreGovTransparency *float64 `json:"score_gov_transparency"`

	ScoreSecBase     *float64 `json:"score_sec_base"`
	ScoreSecCritical *float64 `json:"score_sec_critical"`
	ScoreSecBonus    *float64 `json:"score_sec_bonus"`

	Metrics SnapshotMetrics `json:"metrics"`

	RawPayloads map[string]any `json:"raw_payloads,omitempty"`
}

// SeriesRow is one dated row of a repo's metric time series, keyed by the
// wire metric names (metric_activity, metric_issue_response_time_h, ...).
type SeriesRow struct {
	Dt     Date
	Values map[string]*float64
}

// CompositeMetric is one component of a composite index.
type CompositeMetric struct {
	Key            string
	Weight         float64
	HigherIsBetter bool
}

// CompositeSpec names a composite index and lists its components.
type CompositeSpec struct {
	Name    string
	Metrics []CompositeMetric
}

// CompositePoint is one date of a composite series. Value is nil when every
// component was absent on that date.
type CompositePoint struct {
	Dt    Date     `json:"dt"`
	Value *float64 `json:"value"`
}

// ComponentExplain attributes the latest composite value to one component,
// for dashboard tooltips.
type ComponentExplain struct {
	Raw    *float64 `json:"raw"`
	Score  *float64 `json:"score"`
	Weight float64  `json:"weight"`
}

// CompositeResult is a composite series plus its attribution block.
type CompositeResult struct {
	Series           []CompositePoint            `json:"series"`
	Weights          map[string]float64          `json:"weights"`
	ComponentsLatest map[string]ComponentExplain `json:"components_latest"`
}

// CandidateProfile is the static part of a newcomer candidate repo.
type CandidateProfile struct {
	Repo        string   `json:"repo_full_name"`
	URL         string   `json:"url,omitempty"`
	Domains     []string `json:"domains"`
	Stacks      []string `json:"stacks"`
	Tags        []string `json:"tags"`
	Description string   `json:"description,omitempty"`
}

// CandidateMetrics is the latest known telemetry for a candidate repo.
type CandidateMetrics struct {
	IssueResponseTimeH *float64 `json:"metric_issue_response_time_h"`
	PRResponseTimeH    *float64 `json:"metric_pr_response_time_h"`
	IssueAgeH          *float64 `json:"metric_issue_age_h"`
	PRAgeH             *float64 `json:"metric_pr_age_h"`
	Activity3M         *float64 `json:"metric_activity_3m"`
	ActivityGrowth     *float64 `json:"metric_activity_growth"`
	NewContributors    *float64 `json:"metric_new_contributors"`
	OpenRank           *float64 `json:"metric_openrank"`
}

// IssueStats counts labelled newcomer-friendly issues for a candidate.
// FreshnessFactor decays with the age of the most recently updated issue;
// see Freshness.
type IssueStats struct {
	GoodFirst       int     `json:"good_first"`
	HelpWanted      int     `json:"help_wanted"`
	Docs            int     `json:"docs"`
	I18N            int     `json:"i18n"`
	FreshnessFactor float64 `json:"freshness_factor"`
}

// DocInfo records which onboarding documents a candidate repo ships.
type DocInfo struct {
	HasReadme       bool     `json:"has_readme"`
	HasContributing bool     `json:"has_contributing"`
	HasPRTemplate   bool     `json:"has_pr_template"`
	SetupCommands   []string `json:"setup_commands,omitempty"`
}

// Candidate is one repo in a readiness/fit cohort.
type Candidate struct {
	Profile CandidateProfile
	Metrics CandidateMetrics
	Issues  IssueStats
	Docs    DocInfo
}

// Query is a user's stated interest and time budget.
type Query struct {
	Domain      string   `json:"domain"`
	Stack       string   `json:"stack"`
	Keywords    []string `json:"keywords"`
	TimePerWeek string   `json:"time_per_week"`
}

// ScoredCandidate is the ranked output for one candidate. Ephemeral: computed
// per request, never persisted by the engine.
type ScoredCandidate struct {
	Repo           string     `json:"repo_full_name"`
	URL            string     `json:"url,omitempty"`
	FitScore       float64    `json:"fit_score"`
	ReadinessScore float64    `json:"readiness_score"`
	MatchScore     float64    `json:"match_score"`
	Difficulty     string     `json:"difficulty"`
	Responsiveness *float64   `json:"responsiveness"`
	Activity       *float64   `json:"activity"`
	Reasons        []string   `json:"reasons"`
	Issues         IssueStats `json:"issue_stats"`
}
