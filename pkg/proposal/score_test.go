package proposal

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func fixedRandom(value int) func(int) int {
	return func(int) int { return value }
}

func birthDate(age int) time.Time {
	return time.Now().UTC().AddDate(-age, 0, -1)
}

func TestCalculate_IncomeBands(t *testing.T) {
	calc := &ScoreCalculator{random: fixedRandom(0)}
	adult := birthDate(40) // 300 age points

	tests := []struct {
		income float64
		want   int
	}{
		{12000, 700},
		{10000, 700},
		{5000, 600},
		{3000, 500},
		{1500, 400},
		{800, 350},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calc.Calculate(tt.income, adult), "income %.0f", tt.income)
	}
}

func TestCalculate_AgeBands(t *testing.T) {
	calc := &ScoreCalculator{random: fixedRandom(0)}
	const income = 800.0 // 50 income points

	tests := []struct {
		age  int
		want int
	}{
		{45, 350},
		{27, 250},
		{22, 200},
		{19, 150},
		{70, 100},
		{16, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calc.Calculate(income, birthDate(tt.age)), "age %d", tt.age)
	}
}

func TestCalculate_ClampsToThousand(t *testing.T) {
	calc := &ScoreCalculator{random: fixedRandom(300)}

	// 400 income + 300 age + 300 random = 1000; never above.
	score := calc.Calculate(20000, birthDate(40))
	assert.Equal(t, 1000, score)
}

func TestCalculate_RandomStaysInRange(t *testing.T) {
	calc := NewScoreCalculator()

	for i := 0; i < 100; i++ {
		score := calc.Calculate(20000, birthDate(40))
		assert.GreaterOrEqual(t, score, 700)
		assert.LessOrEqual(t, score, 1000)
	}
}

func newScoredProposal(score int) *Proposal {
	return NewProposal(uuid.New(), "Ana Souza", "11144477735", 5000, score)
}

func TestEvaluate_LowScoreRejects(t *testing.T) {
	evaluator := NewEvaluator()

	for _, score := range []int{0, 50, 100} {
		p := newScoredProposal(score)
		evaluator.Evaluate(p)

		assert.Equal(t, StatusRejected, p.Status, "score %d", score)
		assert.Zero(t, p.ApprovedLimit)
		assert.Zero(t, p.CardsAllowed)
		assert.NotEmpty(t, p.RejectionReason)
		assert.False(t, p.EvaluationDate.IsZero())
	}
}

func TestEvaluate_MediumScoreApprovesOneCard(t *testing.T) {
	evaluator := NewEvaluator()

	for _, score := range []int{101, 300, 500} {
		p := newScoredProposal(score)
		evaluator.Evaluate(p)

		assert.Equal(t, StatusApproved, p.Status, "score %d", score)
		assert.Equal(t, 1000.0, p.ApprovedLimit)
		assert.Equal(t, 1, p.CardsAllowed)
		assert.Empty(t, p.RejectionReason)
	}
}

func TestEvaluate_HighScoreApprovesTwoCards(t *testing.T) {
	evaluator := NewEvaluator()

	for _, score := range []int{501, 750, 1000} {
		p := newScoredProposal(score)
		evaluator.Evaluate(p)

		assert.Equal(t, StatusApproved, p.Status, "score %d", score)
		assert.Equal(t, 5000.0, p.ApprovedLimit)
		assert.Equal(t, 2, p.CardsAllowed)
	}
}
