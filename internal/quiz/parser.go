package quiz

import (
	"log/slog"
	"regexp"
	"strings"
)

// Reply grammar:
//
//	document := block*          blocks split on itemDelim
//	block    := text "\n-" options
//	options  := option{3}       option := "-" ws ("wrong"|"correct") ":" text
//
// Options end at the next "\n-", the next "\n<n>." or end of input.
// Item numbers may use any decimal digits, so "١." splits like "1.".
var (
	itemDelim    = regexp.MustCompile(`\n\s*\p{Nd}+\.\s+`)
	leadingIndex = regexp.MustCompile(`^\s*\p{Nd}+\.\s+`)
	optionHead   = regexp.MustCompile(`(?is)^\s*(wrong|correct)\s*:\s*(.*)$`)
	trailingItem = regexp.MustCompile(`\n\p{Nd}+\.`)
)

// Parse extracts the well-formed questions from a generation reply.
// Malformed blocks are dropped; ids are assigned from 1 in block order
// over accepted blocks only. An empty result is the normal failure mode.
func Parse(raw string) []Question {
	return parse(raw, slog.Default())
}

func parse(raw string, logger *slog.Logger) []Question {
	raw = strings.ReplaceAll(raw, "*", "")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	var (
		questions []Question
		nextID    = 1
	)
	for i, block := range itemDelim.Split(raw, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		q, reason := parseBlock(block)
		if reason != "" {
			logger.Debug("dropping quiz block", "block", i, "reason", reason)
			continue
		}
		q.ID = nextID
		nextID++
		questions = append(questions, q)
	}
	return questions
}

// parseBlock returns the question or a non-empty reason for rejecting it.
func parseBlock(block string) (Question, string) {
	head, rest, ok := strings.Cut(block, "\n-")
	if !ok {
		return Question{}, "no options"
	}
	text := strings.TrimSpace(leadingIndex.ReplaceAllString(head, ""))
	if text == "" {
		return Question{}, "empty question text"
	}

	var (
		q       = Question{Text: text}
		n       int
		correct int
	)
	for _, seg := range strings.Split(rest, "\n-") {
		if loc := trailingItem.FindStringIndex(seg); loc != nil {
			seg = seg[:loc[0]]
		}
		m := optionHead.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		label := strings.TrimSpace(m[2])
		if label == "" {
			continue
		}
		if n == OptionsPerQuestion {
			return Question{}, "too many options"
		}
		isCorrect := strings.EqualFold(m[1], "correct")
		if isCorrect {
			correct++
		}
		q.Answers[n] = Answer{Label: label, IsCorrect: isCorrect, Index: n}
		n++
	}

	switch {
	case n != OptionsPerQuestion:
		return Question{}, "wrong number of options"
	case correct != 1:
		return Question{}, "need exactly one correct option"
	}
	return q, ""
}
