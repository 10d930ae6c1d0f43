package mastery

import (
	"slices"
	"time"
)

const (
	// MaxLevels is the number of quiz levels per stage.
	MaxLevels = 3

	// MaxHistory bounds QuizHistory.
	MaxHistory = 10

	// PointsPerCorrect converts correct answers to progress and mastery points.
	PointsPerCorrect = 10

	// CompleteProgress marks a level as complete for aggregate statistics.
	CompleteProgress = 100
)

// HistoryEntry is one graded answer in a level's recent history.
type HistoryEntry struct {
	Question  string    `json:"question"`
	Correct   bool      `json:"correct"`
	Timestamp time.Time `json:"timestamp"`
	Level     int       `json:"level"`
}

// LevelProgress is a learner's state for one (stage, level).
type LevelProgress struct {
	Progress           int            `json:"progress"`
	AnsweredQuestions  []string       `json:"answered_questions"`
	IncorrectQuestions []string       `json:"incorrect_questions"`
	TotalCorrect       int            `json:"total_correct"`
	TotalIncorrect     int            `json:"total_incorrect"`
	TotalQuestionsSeen int            `json:"total_questions_seen"`
	QuizHistory        []HistoryEntry `json:"quiz_history"`
}

// MasteryScore is TotalCorrect × 10 and is not capped.
func (p *LevelProgress) MasteryScore() int {
	return p.TotalCorrect * PointsPerCorrect
}

// Complete reports whether progress has reached 100.
func (p *LevelProgress) Complete() bool {
	return p.Progress >= CompleteProgress
}

// Apply records one graded answer. Repeating a correct answer for a
// question already answered correctly does not add to TotalCorrect.
func (p *LevelProgress) Apply(question string, correct bool, level int, at time.Time) {
	if correct {
		if i := slices.Index(p.IncorrectQuestions, question); i >= 0 {
			p.IncorrectQuestions = slices.Delete(p.IncorrectQuestions, i, i+1)
			p.TotalIncorrect--
		}
		if !slices.Contains(p.AnsweredQuestions, question) {
			p.AnsweredQuestions = append(p.AnsweredQuestions, question)
			p.TotalCorrect++
		}
	} else if !slices.Contains(p.IncorrectQuestions, question) {
		p.IncorrectQuestions = append(p.IncorrectQuestions, question)
		p.TotalIncorrect++
	}

	p.TotalQuestionsSeen++
	p.Progress = min(CompleteProgress, p.TotalCorrect*PointsPerCorrect)

	p.QuizHistory = append([]HistoryEntry{{
		Question:  question,
		Correct:   correct,
		Timestamp: at,
		Level:     level,
	}}, p.QuizHistory...)
	if len(p.QuizHistory) > MaxHistory {
		p.QuizHistory = p.QuizHistory[:MaxHistory]
	}
}
