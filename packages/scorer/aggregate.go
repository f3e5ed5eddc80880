package scorer

import (
	"math"

	"sitesignal/packages/domain"
)

// Evaluate folds every check over the signals and aggregates the result.
// It is pure: the same signals and year always give the same score.
func Evaluate(sig Signals, year int) domain.WebsiteScore {
	in := Input{Signals: sig, Year: year}

	var raw Tally
	score := domain.WebsiteScore{
		Issues:               []string{},
		CriticalIssues:       []string{},
		OutdatedTechnologies: []string{},
		EmailsFound:          []string{},
		PhonesFound:          []string{},
	}
	for _, c := range checks {
		d := c.run(in)
		raw = raw.Add(d.Points)
		score.Issues = append(score.Issues, d.Issues...)
		score.CriticalIssues = append(score.CriticalIssues, d.Critical...)
		score.OutdatedTechnologies = append(score.OutdatedTechnologies, d.Outdated...)
	}

	applyTally(&score, raw)
	if sig.CopyrightYear != "" {
		y := sig.CopyrightYear
		score.LastUpdated = &y
	}
	score.BadnessScore = Badness(score)
	return score
}

// WeightedOverall rounds the weighted sum of raw (unclamped) category points,
// rounding halves up.
func WeightedOverall(t Tally) int {
	// Explicit conversions keep each product rounded before the add.
	sum := float64(float64(t.SEO) * 0.20)
	sum += float64(float64(t.Mobile) * 0.20)
	sum += float64(float64(t.Security) * 0.20)
	sum += float64(float64(t.Performance) * 0.15)
	sum += float64(float64(t.Design) * 0.10)
	sum += float64(float64(t.Content) * 0.10)
	sum += float64(float64(t.Contact) * 0.05)
	return int(math.Floor(sum + 0.5))
}

func applyTally(score *domain.WebsiteScore, raw Tally) {
	score.Overall = clamp(WeightedOverall(raw))
	score.SEO = clamp(raw.SEO)
	score.Mobile = clamp(raw.Mobile)
	score.Security = clamp(raw.Security)
	score.Performance = clamp(raw.Performance)
	score.Design = clamp(raw.Design)
	score.Content = clamp(raw.Content)
	score.Contact = clamp(raw.Contact)
}

// Badness is not clamped.
func Badness(s domain.WebsiteScore) int {
	return (100 - s.Overall) + 5*len(s.CriticalIssues) + 3*len(s.OutdatedTechnologies)
}

func clamp(v int) int {
	return max(0, min(100, v))
}
