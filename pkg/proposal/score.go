package proposal

import (
	"math/rand"
	"time"
)

const rejectionReasonLowScore = "score too low for credit approval"

// ScoreCalculator estimates a credit score from monthly income, age and a
// random component standing in for external credit history checks. Scores
// are clamped to the 0..1000 range.
type ScoreCalculator struct {
	random func(n int) int
}

func NewScoreCalculator() *ScoreCalculator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &ScoreCalculator{random: rng.Intn}
}

func (c *ScoreCalculator) Calculate(monthlyIncome float64, dateBirth time.Time) int {
	score := incomeScore(monthlyIncome) + ageScore(age(dateBirth)) + c.random(301)

	if score < 0 {
		return 0
	}
	if score > 1000 {
		return 1000
	}
	return score
}

func incomeScore(income float64) int {
	switch {
	case income >= 10000:
		return 400
	case income >= 5000:
		return 300
	case income >= 3000:
		return 200
	case income >= 1500:
		return 100
	default:
		return 50
	}
}

func ageScore(years int) int {
	switch {
	case years >= 30 && years <= 60:
		return 300
	case years >= 25 && years < 30:
		return 200
	case years >= 21 && years < 25:
		return 150
	case years >= 18 && years < 21:
		return 100
	default:
		return 50
	}
}

func age(dateBirth time.Time) int {
	now := time.Now().UTC()
	years := now.Year() - dateBirth.Year()
	if now.YearDay() < dateBirth.YearDay() {
		years--
	}
	return years
}

// ScorePolicy maps a score band to a proposal outcome. The first applicable
// policy wins.
type ScorePolicy interface {
	Applicable(score int) bool
	Apply(p *Proposal)
}

type LowScorePolicy struct{}

func (LowScorePolicy) Applicable(score int) bool { return score <= 100 }
func (LowScorePolicy) Apply(p *Proposal)         { p.reject(rejectionReasonLowScore) }

type MediumScorePolicy struct{}

func (MediumScorePolicy) Applicable(score int) bool { return score > 100 && score <= 500 }
func (MediumScorePolicy) Apply(p *Proposal)         { p.approve(1000, 1) }

type HighScorePolicy struct{}

func (HighScorePolicy) Applicable(score int) bool { return score > 500 }
func (HighScorePolicy) Apply(p *Proposal)         { p.approve(5000, 2) }

type Evaluator struct {
	policies []ScorePolicy
}

func NewEvaluator() *Evaluator {
	return &Evaluator{policies: []ScorePolicy{
		LowScorePolicy{},
		MediumScorePolicy{},
		HighScorePolicy{},
	}}
}

func (e *Evaluator) Evaluate(p *Proposal) {
	for _, policy := range e.policies {
		if policy.Applicable(p.Score) {
			policy.Apply(p)
			return
		}
	}
}
