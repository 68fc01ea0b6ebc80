package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Unlimited marks a limit without a ceiling.
const Unlimited = -1

// QuotaWarningPercent is the usage share from which a feature is reported as close to its limit.
const QuotaWarningPercent = 90

// Feature is a metered capability.
type Feature string

const (
	FeatureArticles  Feature = "articles"
	FeatureImages    Feature = "images"
	FeatureVideos    Feature = "videos"
	FeatureResearch  Feature = "research"
	FeatureWordPress Feature = "wordpress"
	FeatureTokens    Feature = "tokens"
)

// Features lists the metered features in report order.
var Features = []Feature{
	FeatureArticles,
	FeatureImages,
	FeatureVideos,
	FeatureResearch,
	FeatureWordPress,
	FeatureTokens,
}

var featureNames = map[Feature]string{
	FeatureArticles:  "article",
	FeatureImages:    "image",
	FeatureVideos:    "video",
	FeatureResearch:  "research",
	FeatureWordPress: "WordPress publishing",
	FeatureTokens:    "AI token",
}

// DisplayName is the human-readable name used in quota messages.
func (f Feature) DisplayName() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return string(f)
}

var ErrUnknownFeature = errors.New("unknown feature")

// ParseFeature validates a feature name.
func ParseFeature(raw string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := featureNames[f]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFeature, raw)
}

// PlanName identifies a subscription tier.
type PlanName string

const (
	PlanFree       PlanName = "FREE"
	PlanPro        PlanName = "PRO"
	PlanEnterprise PlanName = "ENTERPRISE"
)

// Plan holds the per-period limits of a tier.
type Plan struct {
	Name   PlanName
	Limits map[Feature]int
}

var plans = map[PlanName]Plan{
	PlanFree: {
		Name: PlanFree,
		Limits: map[Feature]int{
			FeatureArticles:  10,
			FeatureImages:    25,
			FeatureVideos:    0,
			FeatureResearch:  20,
			FeatureWordPress: 0,
			FeatureTokens:    100_000,
		},
	},
	PlanPro: {
		Name: PlanPro,
		Limits: map[Feature]int{
			FeatureArticles:  100,
			FeatureImages:    500,
			FeatureVideos:    20,
			FeatureResearch:  Unlimited,
			FeatureWordPress: 50,
			FeatureTokens:    10_000_000,
		},
	},
	PlanEnterprise: {
		Name: PlanEnterprise,
		Limits: map[Feature]int{
			FeatureArticles:  Unlimited,
			FeatureImages:    Unlimited,
			FeatureVideos:    100,
			FeatureResearch:  Unlimited,
			FeatureWordPress: Unlimited,
			FeatureTokens:    Unlimited,
		},
	},
}

// PlanFor returns the plan by name. Unknown names fall back to FREE.
func PlanFor(name PlanName) Plan {
	if plan, ok := plans[PlanName(strings.ToUpper(string(name)))]; ok {
		return plan
	}
	return plans[PlanFree]
}

// Limit returns the plan's limit for a feature; features the plan does not list get 0.
func (p Plan) Limit(f Feature) int {
	return p.Limits[f]
}

// WithinLimit reports whether one more unit fits under the limit.
func WithinLimit(used, limit int) bool {
	return limit == Unlimited || used < limit
}

// FitsLimit reports whether usage stays at or under the limit after amount more units.
func FitsLimit(used, amount, limit int) bool {
	return limit == Unlimited || used+amount <= limit
}

// Remaining returns how many units are left, or Unlimited.
func Remaining(used, limit int) int {
	if limit == Unlimited {
		return Unlimited
	}
	if limit < 0 {
		return 0
	}
	return max(0, limit-used)
}

// QuotaStatus is the classification of a {used, limit} pair.
type QuotaStatus struct {
	Percentage int  `json:"percentage"`
	Warning    bool `json:"warning"`
	Exceeded   bool `json:"exceeded"`
}

// Classify computes usage percentage and warning/exceeded flags.
// Limits below zero other than Unlimited are handled like a zero limit.
func Classify(used, limit int) QuotaStatus {
	switch {
	case limit == Unlimited:
		return QuotaStatus{}
	case limit <= 0:
		return QuotaStatus{Percentage: 100, Warning: true, Exceeded: true}
	}
	pct := int(math.Round(float64(used) / float64(limit) * 100))
	pct = min(100, pct)
	return QuotaStatus{
		Percentage: pct,
		Warning:    pct >= QuotaWarningPercent,
		Exceeded:   used >= limit,
	}
}

// QuotaUsage is the usage of a single feature in the current period.
type QuotaUsage struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// NewQuotaUsage fills Remaining from used and limit.
func NewQuotaUsage(used, limit int) QuotaUsage {
	return QuotaUsage{Used: used, Limit: limit, Remaining: Remaining(used, limit)}
}

// UsagePeriod is the billing period a report covers.
type UsagePeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UsageReport is the usage of every feature for one user and period.
// On the wire features are flattened next to plan and period.
type UsageReport struct {
	Plan     PlanName
	Period   UsagePeriod
	Features map[Feature]QuotaUsage
}

// MarshalJSON flattens features into top-level keys.
func (r UsageReport) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Features)+2)
	out["plan"] = r.Plan
	out["period"] = r.Period
	for f, usage := range r.Features {
		out[string(f)] = usage
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (r *UsageReport) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	report := UsageReport{Features: make(map[Feature]QuotaUsage)}
	for key, value := range raw {
		switch key {
		case "plan":
			if err := json.Unmarshal(value, &report.Plan); err != nil {
				return fmt.Errorf("plan: %w", err)
			}
		case "period":
			if err := json.Unmarshal(value, &report.Period); err != nil {
				return fmt.Errorf("period: %w", err)
			}
		default:
			var usage QuotaUsage
			if err := json.Unmarshal(value, &usage); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			report.Features[Feature(key)] = usage
		}
	}
	*r = report
	return nil
}

// FeatureQuota is the full quota check of one feature.
type FeatureQuota struct {
	Feature    Feature `json:"feature"`
	Allowed    bool    `json:"allowed"`
	Warning    bool    `json:"warning"`
	Exceeded   bool    `json:"exceeded"`
	Percentage int     `json:"percentage"`
	Remaining  int     `json:"remaining"`
	Used       int     `json:"used"`
	Limit      int     `json:"limit"`
}

// CheckFeature classifies a feature of the report. A feature absent from the report is denied.
func CheckFeature(report UsageReport, f Feature) FeatureQuota {
	usage, ok := report.Features[f]
	if !ok {
		return FeatureQuota{Feature: f, Exceeded: true, Percentage: 100}
	}
	status := Classify(usage.Used, usage.Limit)
	return FeatureQuota{
		Feature:    f,
		Allowed:    !status.Exceeded,
		Warning:    status.Warning,
		Exceeded:   status.Exceeded,
		Percentage: status.Percentage,
		Remaining:  usage.Remaining,
		Used:       usage.Used,
		Limit:      usage.Limit,
	}
}

// WarningMessage returns the text shown to a user close to or over a limit.
func WarningMessage(q FeatureQuota) (string, bool) {
	name := q.Feature.DisplayName()
	switch {
	case q.Exceeded:
		return fmt.Sprintf("You have reached your %s quota limit. Please upgrade your plan to continue.", name), true
	case q.Warning:
		return fmt.Sprintf("You're using %d%% of your %s quota (%d remaining). Consider upgrading your plan.", q.Percentage, name, q.Remaining), true
	}
	return "", false
}
