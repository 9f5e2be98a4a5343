package models

import "time"

// Thresholds applied when a posting does not carry its own.
const (
	DefaultRequiredCVScore   = 75
	DefaultRequiredQuizScore = 70
)

// JobPosting represents a job listing as served by the job directory
type JobPosting struct {
	ID                int       `json:"id"`
	Title             string    `json:"job_title"`
	Description       string    `json:"description"`
	RequiredCVScore   int       `json:"cv_score"`
	RequiredQuizScore int       `json:"quiz_score"`
	CreatedAt         time.Time `json:"created_at"`
	FetchedAt         time.Time `json:"-"`
}

// CVThreshold returns the minimum CV score, falling back to the default
func (j JobPosting) CVThreshold() int {
	if j.RequiredCVScore <= 0 {
		return DefaultRequiredCVScore
	}
	return j.RequiredCVScore
}

// QuizThreshold returns the minimum quiz score, falling back to the default
func (j JobPosting) QuizThreshold() int {
	if j.RequiredQuizScore <= 0 {
		return DefaultRequiredQuizScore
	}
	return j.RequiredQuizScore
}

// DetailedScores is the display-only breakdown returned by the CV analyzer
type DetailedScores struct {
	ATSScore         int       `json:"ats_score"`
	AverageScore     float64   `json:"average_score"`
	ATSSimilarity    float64   `json:"ats_similarity_score"`
	TotalCriteria    int       `json:"total_criteria"`
	IndividualScores []float64 `json:"individual_scores"`
}

// QuestionType distinguishes multiple-choice from free-text questions
type QuestionType string

const (
	QuestionMCQ  QuestionType = "mcq"
	QuestionCode QuestionType = "code"
)

// Question is a single generated quiz question
type Question struct {
	ID          int          `json:"id"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"question"`
	Options     []string     `json:"options,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
	Correct     *int         `json:"correct,omitempty"`
}

// Answer holds either a selected option index or free text
type Answer struct {
	Option *int   `json:"option,omitempty"`
	Text   string `json:"text,omitempty"`
}

// ChoiceAnswer builds an answer selecting option i
func ChoiceAnswer(i int) Answer {
	return Answer{Option: &i}
}

// TextAnswer builds a free-text answer
func TextAnswer(s string) Answer {
	return Answer{Text: s}
}

// IsEmpty reports whether nothing was recorded
func (a Answer) IsEmpty() bool {
	return a.Option == nil && a.Text == ""
}

// ApplicationState is the persisted summary of one application, written when
// the wizard reaches a decision and merged with the quiz outcome later.
type ApplicationState struct {
	JobID           int            `json:"jobId"`
	CVScore         int            `json:"cvScore"`
	HasProfilePhoto bool           `json:"hasProfilePhoto"`
	Qualified       bool           `json:"qualified"`
	Degraded        bool           `json:"degraded,omitempty"`
	QuizScore       *int           `json:"quizScore,omitempty"`
	QuizCompleted   bool           `json:"quizCompleted"`
	QuizPassed      bool           `json:"quizPassed"`
	Answers         map[int]Answer `json:"answers,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Application statuses derived from ApplicationState
const (
	StatusDisqualified = "disqualified"
	StatusAwaitingQuiz = "awaiting_quiz"
	StatusQuizPassed   = "quiz_passed"
	StatusQuizFailed   = "quiz_failed"
)

// Status derives a display status
func (s ApplicationState) Status() string {
	switch {
	case !s.Qualified:
		return StatusDisqualified
	case !s.QuizCompleted:
		return StatusAwaitingQuiz
	case s.QuizPassed:
		return StatusQuizPassed
	default:
		return StatusQuizFailed
	}
}

// QuizResult is the outcome merged into an ApplicationState on completion
type QuizResult struct {
	Score   int            `json:"score"`
	Passed  bool           `json:"passed"`
	Answers map[int]Answer `json:"answers"`
}
