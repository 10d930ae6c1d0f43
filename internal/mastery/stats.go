package mastery

import (
	"context"
	"fmt"
)

// LevelStats is the per-level breakdown inside UserStats.
type LevelStats struct {
	Progress         int     `json:"progress"`
	TotalQuestions   int     `json:"total_questions"`
	CorrectAnswers   int     `json:"correct_answers"`
	IncorrectAnswers int     `json:"incorrect_answers"`
	Accuracy         float64 `json:"accuracy"`
}

// StageStats aggregates the levels of one stage.
type StageStats struct {
	// Progress is the mean progress over levels with any record.
	Progress float64            `json:"progress"`
	Levels   map[int]LevelStats `json:"levels"`
}

// UserStats aggregates a learner's quiz activity.
type UserStats struct {
	TotalQuestionsAnswered int                   `json:"total_questions_answered"`
	TotalCorrect           int                   `json:"total_correct"`
	TotalIncorrect         int                   `json:"total_incorrect"`
	Accuracy               float64               `json:"accuracy"`
	LevelsCompleted        int                   `json:"levels_completed"`
	Stages                 map[string]StageStats `json:"stages_progress"`
}

// UserStats aggregates all of a user's levels, or only those of stage when
// stage is non-empty.
func (t *Tracker) UserStats(ctx context.Context, userID, stage string) (*UserStats, error) {
	recs, err := t.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	stats := &UserStats{Stages: make(map[string]StageStats)}
	for _, rec := range recs {
		if stage != "" && rec.Stage != stage {
			continue
		}
		p, err := decode(rec.Data)
		if err != nil {
			t.logger.Warn("skipping unreadable progress record", "stage", rec.Stage, "level", rec.Level, "error", err)
			continue
		}

		ss, ok := stats.Stages[rec.Stage]
		if !ok {
			ss = StageStats{Levels: make(map[int]LevelStats)}
		}
		ss.Levels[rec.Level] = LevelStats{
			Progress:         p.Progress,
			TotalQuestions:   p.TotalQuestionsSeen,
			CorrectAnswers:   p.TotalCorrect,
			IncorrectAnswers: p.TotalIncorrect,
			Accuracy:         percent(p.TotalCorrect, p.TotalQuestionsSeen),
		}
		stats.Stages[rec.Stage] = ss

		if p.Complete() {
			stats.LevelsCompleted++
		}
		stats.TotalQuestionsAnswered += p.TotalQuestionsSeen
		stats.TotalCorrect += p.TotalCorrect
		stats.TotalIncorrect += p.TotalIncorrect
	}

	for name, ss := range stats.Stages {
		sum := 0
		for _, l := range ss.Levels {
			sum += l.Progress
		}
		ss.Progress = float64(sum) / float64(len(ss.Levels))
		stats.Stages[name] = ss
	}
	stats.Accuracy = percent(stats.TotalCorrect, stats.TotalQuestionsAnswered)
	return stats, nil
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
