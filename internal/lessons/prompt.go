package lessons

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abhisek/dalil/internal/tier"
)

func lessonSystemPrompt(stage string) string {
	var b strings.Builder
	b.WriteString("You are an expert history teacher and writer.\n")
	b.WriteString(tier.Guidance(stage, tier.Lesson))
	fmt.Fprintf(&b, "\nEducational level: %s\n", stage)
	b.WriteString(`Transform the given historical content into a well-structured markdown lesson appropriate for this educational level.
Start directly with the markdown content using ## for main sections.
Do not add any introductory text or concluding remarks.

Follow these rules:
1. Maintain historical accuracy
2. Use proper markdown headings (##, ###)
3. Include bullet points for key events
4. Add quote blocks for important historical quotes or facts
5. Use **bold** for key terms and dates
6. Use *italic* for emphasis
7. Start with a brief summary section
8. Use consistent date format
9. Keep the original Arabic language and stay true to the given content, because it is from school textbooks
10. Keep paragraphs concise and well-organized`)
	return b.String()
}

func lessonUserMessage(topic, content string) string {
	return fmt.Sprintf("Topic: %s\nContent: %s\n\nTransform this into a markdown lesson. Start directly with the markdown content.", topic, content)
}

var (
	preambleEnd    = regexp.MustCompile(`##|\n#`)
	closingRemarks = regexp.MustCompile(`\n*(?:Note:|In conclusion:|That's it!|The end)[\s\S]*$`)
	topHeading     = regexp.MustCompile(`(?m)^#($|[^#])`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	paddedBold     = regexp.MustCompile(`\*\*[ \t]*([^*\n]+?)[ \t]*\*\*`)
	listBullet     = regexp.MustCompile(`(?m)^-[ \t]*([^-\s])`)
	blockquote     = regexp.MustCompile(`(?m)^>[ \t]*`)
)

// CleanMarkdown strips the preamble and closing remarks from a generated
// lesson and normalizes its markdown. Top-level headings become "##".
func CleanMarkdown(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	if loc := preambleEnd.FindStringIndex(s); loc != nil {
		s = s[loc[0]:]
	}
	s = closingRemarks.ReplaceAllString(s, "")
	s = topHeading.ReplaceAllString(s, "##$1")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	s = paddedBold.ReplaceAllString(s, "**$1**")
	s = listBullet.ReplaceAllString(s, "- $1")
	s = blockquote.ReplaceAllString(s, "> ")
	return strings.TrimSpace(s)
}
