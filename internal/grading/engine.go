package grading

import (
	"context"
	"errors"
)

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type      string
	Points    float64
	AnswerKey []string
}

// Result is the outcome of grading a single question response.
type Result struct {
	AutoPoints float64  // points awarded automatically
	MaxPoints  float64  // the question's max points
	Feedback   []string // optional notes
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

var ErrNoStrategy = errors.New("no grading strategy for question type")

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points}, ErrNoStrategy
	}
	return s.Grade(ctx, q, response)
}

// Engine options

type Option func(*config)

type config struct {
	MaxEditDistance int // for short-word fuzzy
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		MaxEditDistance: 1,
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"mcq_single": exactMatchStrategy{},
			"true_false": exactMatchStrategy{},
			"short_word": shortWordStrategy{maxEdit: cfg.MaxEditDistance},
			"numeric":    numericStrategy{},
		},
	}
}

// Percent converts earned/max points into a percentage score.
func Percent(earned, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return earned / max * 100
}

// --- Strategies ---

type exactMatchStrategy struct{}

func (exactMatchStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	for _, k := range q.AnswerKey {
		if response == k {
			res.AutoPoints = q.Points
			return res, nil
		}
	}
	return res, nil
}

type shortWordStrategy struct{ maxEdit int }

func (s shortWordStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	normResp := normalize(response)

	fuzzy := false
	for _, k := range q.AnswerKey {
		nk := normalize(k)
		if nk == normResp {
			res.AutoPoints = q.Points
			return res, nil
		}
		if s.maxEdit > 0 && levenshtein(nk, normResp) <= s.maxEdit {
			fuzzy = true
		}
	}
	if fuzzy {
		res.AutoPoints = q.Points * 0.5
		res.Feedback = append(res.Feedback, "close match (fuzzy)")
	}
	return res, nil
}
