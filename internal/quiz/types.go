// Package quiz turns retrieved curriculum content into multiple-choice
// quizzes: it prompts the generation backend, recognizes the loosely
// formatted reply, shuffles answers and grades submissions.
package quiz

// OptionsPerQuestion is the number of answers every accepted question has.
const OptionsPerQuestion = 3

// Answer is one option of a Question.
type Answer struct {
	Label     string `json:"label"`
	IsCorrect bool   `json:"is_correct"`

	// Index is the option's position after shuffling.
	Index int `json:"index"`
}

// Question is a parsed quiz item with exactly one correct answer.
type Question struct {
	ID      int                        `json:"id"`
	Text    string                     `json:"question"`
	Answers [OptionsPerQuestion]Answer `json:"answers"`
}

// Correct returns the index of the correct answer, or -1.
func (q *Question) Correct() int {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.Index
		}
	}
	return -1
}

// Find returns the question with id.
func Find(questions []Question, id int) (*Question, bool) {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i], true
		}
	}
	return nil, false
}
