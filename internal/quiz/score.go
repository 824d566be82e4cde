package quiz

import (
	"context"

	"github.com/brightpath/brightpath-lms/internal/grading"
)

// scorePercent grades the captured answers against the full question list and
// returns a percentage. Questions without a persisted answer score as blank.
func scorePercent(ctx context.Context, g grading.Grader, questions []Question, answers map[string]string) float64 {
	var earned float64
	var max float64
	for _, q := range questions {
		max += q.Points
		resp, ok := answers[q.ID]
		if !ok {
			continue
		}
		res, err := g.Grade(ctx, grading.Q{Type: q.Type, Points: q.Points, AnswerKey: q.AnswerKey}, resp)
		if err != nil {
			continue
		}
		earned += res.AutoPoints
	}
	return grading.Percent(earned, max)
}
