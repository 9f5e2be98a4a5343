package quiz

import "github.com/khrees2412/jobportal/pkg/models"

// Snapshot is a read-only view of a quiz session.
type Snapshot struct {
	State     State
	Index     int
	Total     int
	Question  models.Question
	Answer    *models.Answer
	Answered  int
	Remaining int
	PassScore int
	Trigger   Trigger
	Result    *models.QuizResult
}

// Progress is the position through the set as a percentage.
func (s Snapshot) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Index+1) / float64(s.Total) * 100
}

// IsLast reports whether the current question is the final one.
func (s Snapshot) IsLast() bool {
	return s.Index == s.Total-1
}

// Completed reports whether the quiz was submitted.
func (s Snapshot) Completed() bool {
	return s.State == StateCompleted
}

// TimeLeft renders the remaining time as m:ss.
func (s Snapshot) TimeLeft() string {
	return FormatTime(s.Remaining)
}
