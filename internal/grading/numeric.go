package grading

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// numericStrategy compares a numeric response against the first answer key
// entry, with optional tolerance directives in the remaining entries:
//
//	AnswerKey: ["3.14159", "tol=0.01"]   // absolute tolerance
//	AnswerKey: ["100", "reltol=0.05"]    // 5% relative tolerance
//
// An exact string match always passes, so non-numeric keys still work.
type numericStrategy struct{}

func (numericStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	if len(q.AnswerKey) == 0 {
		return res, nil
	}
	target := q.AnswerKey[0]
	if response == target {
		res.AutoPoints = q.Points
		return res, nil
	}

	got, okGot := leadingFloat(response)
	want, okWant := leadingFloat(target)
	if okGot && okWant && withinTolerance(got, want, q.AnswerKey[1:]) {
		res.AutoPoints = q.Points
	}
	return res, nil
}

// leadingFloat parses s as a float, falling back to its first whitespace
// separated field so units ("9.8 m/s2") do not spoil the parse.
func leadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if fields := strings.Fields(s); len(fields) > 0 {
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func withinTolerance(got, want float64, directives []string) bool {
	diff := math.Abs(got - want)
	for _, d := range directives {
		d = strings.TrimSpace(strings.ToLower(d))
		switch {
		case strings.HasPrefix(d, "tol="):
			if tol, err := strconv.ParseFloat(strings.TrimPrefix(d, "tol="), 64); err == nil && diff <= tol {
				return true
			}
		case strings.HasPrefix(d, "reltol="):
			if rel, err := strconv.ParseFloat(strings.TrimPrefix(d, "reltol="), 64); err == nil && diff <= rel*math.Abs(want) {
				return true
			}
		}
	}
	return false
}
