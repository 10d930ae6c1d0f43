package quizplay

import (
	"github.com/abhisek/dalil/internal/events"
	"github.com/abhisek/dalil/internal/quiz"
)

// quizGradedMsg carries the graded multiple-choice submission.
type quizGradedMsg struct {
	Result *quiz.SubmitResult
	Err    error
}

// eventsGradedMsg carries the graded events-quiz answers.
type eventsGradedMsg struct {
	Results []events.Result
	Err     error
}
