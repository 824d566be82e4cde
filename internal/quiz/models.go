package quiz

// Choice is one selectable answer option on a multiple-choice question.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

type Question struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"` // mcq_single, true_false, short_word
	Prompt  string   `json:"prompt,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
	// AnswerKey is stripped before a quiz is served to a student role.
	AnswerKey []string `json:"answer_key,omitempty"`
	Points    float64  `json:"points"`
	Order     int      `json:"order,omitempty"`
}

type Quiz struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	TimeLimitSec int        `json:"time_limit_sec"` // 0 = untimed
	DueAt        int64      `json:"due_at,omitempty"` // unix seconds, 0 = no due date
	Questions    []Question `json:"questions"`
	CreatedAt    int64      `json:"created_at,omitempty"`
}

// MaxPoints is the sum of all question point values.
func (q Quiz) MaxPoints() float64 {
	var sum float64
	for _, qu := range q.Questions {
		sum += qu.Points
	}
	return sum
}

// Attempt statuses. An attempt row is written once, at submission time;
// "graded" only replaces "submitted" when the grading call lands.
const (
	StatusSubmitted = "submitted"
	StatusGraded    = "graded"
)

// Attempt end reasons.
const (
	EndReasonStudent   = "student"
	EndReasonTimeout   = "timeout"
	EndReasonViolation = "violation"
)

type Attempt struct {
	ID     string `json:"id"`
	QuizID string `json:"quiz_id"`
	UserID string `json:"user_id"`
	Status string `json:"status"` // submitted|graded
	// Score is a percentage; nil until grading completes.
	Score       *float64 `json:"score,omitempty"`
	StartedAt   int64    `json:"started_at"`
	SubmittedAt int64    `json:"submitted_at"`
	Forced      bool     `json:"forced,omitempty"`
	EndReason   string   `json:"end_reason,omitempty"` // student|timeout|violation
	Violations  int      `json:"violations,omitempty"`
	// Answers is questionID -> chosen answer, loaded from the answer rows.
	Answers map[string]string `json:"answers,omitempty"`
}

type QuizSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	TimeLimitSec  int    `json:"time_limit_sec"`
	DueAt         int64  `json:"due_at,omitempty"`
	QuestionCount int    `json:"question_count"`
	CreatedAt     int64  `json:"created_at,omitempty"`
}
