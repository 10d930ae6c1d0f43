package quiz

import (
	"fmt"
	"strings"

	"github.com/abhisek/dalil/internal/tier"
)

const optionsSystemPrompt = `You are a history teacher. Generate 3 possible answers for each question following these rules:
1. Only 1 answer should be correct
2. All options must be of similar length and detail level
3. Wrong answers must be historically plausible but incorrect
4. Avoid making the correct answer more detailed than others
5. Each option should be 10-15 words maximum

Format your response as the following for the 3 questions and do not write anything else:
question <question>:
- wrong: <wrong answer 1>
- wrong: <wrong answer 2>
- correct: <correct answer>
Do the same for the other questions.`

// questionsSystemPrompt asks for n new questions at the stage's tier.
func questionsSystemPrompt(stage string, n int, answered []string) string {
	var b strings.Builder
	b.WriteString("You are a history teacher creating quiz questions in Arabic ONLY.\n")
	b.WriteString(tier.Guidance(stage, tier.Questions))
	fmt.Fprintf(&b, "\nEducational level: %s\n", stage)
	b.WriteString("\nPreviously correctly answered questions:\n")
	b.WriteString(formatAnswered(answered))
	fmt.Fprintf(&b, "\n\nPlease generate %d NEW questions that are different from the above correctly answered questions and appropriate for this educational level.", n)
	return b.String()
}

// formatAnswered lists questions as bullets, or "None".
func formatAnswered(answered []string) string {
	if len(answered) == 0 {
		return "None"
	}
	var b strings.Builder
	for _, q := range answered {
		fmt.Fprintf(&b, "- %s\n", q)
	}
	return strings.TrimRight(b.String(), "\n")
}

func optionsUserMessage(questions, passage string) string {
	return fmt.Sprintf("Questions: %s\nContext: %s", questions, passage)
}

// capWords keeps at most max whitespace-separated words.
func capWords(s string, max int) string {
	words := strings.Fields(s)
	if max > 0 && len(words) > max {
		words = words[:max]
	}
	return strings.Join(words, " ")
}
