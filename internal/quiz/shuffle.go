package quiz

import "math/rand/v2"

// Shuffle permutes q's answers and renumbers their indices 0..2.
// A nil rng uses the global source.
func Shuffle(q *Question, rng *rand.Rand) {
	swap := func(i, j int) { q.Answers[i], q.Answers[j] = q.Answers[j], q.Answers[i] }
	if rng != nil {
		rng.Shuffle(len(q.Answers), swap)
	} else {
		rand.Shuffle(len(q.Answers), swap)
	}
	for i := range q.Answers {
		q.Answers[i].Index = i
	}
}

// Grade reports whether selected is the correct answer of question id.
// An unknown id or index is graded false.
func Grade(questions []Question, id, selected int) bool {
	q, ok := Find(questions, id)
	if !ok {
		return false
	}
	for _, a := range q.Answers {
		if a.Index == selected {
			return a.IsCorrect
		}
	}
	return false
}
