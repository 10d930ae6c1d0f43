// Package tier maps an educational stage code to one of five language
// complexity tiers and the prompt guidance for each.
package tier

import "strings"

// Tier is a complexity band, from simplest vocabulary to scholarly depth.
type Tier string

const (
	Primary    Tier = "PS"
	Junior     Tier = "JS"
	HighSchool Tier = "HSS"
	Literary   Tier = "HSL"
	University Tier = "UNI"
)

// Purpose selects which flavour of guidance a prompt needs.
type Purpose int

const (
	Answer Purpose = iota
	Questions
	Lesson
)

// Longer codes first so "HSS2" does not match a shorter prefix.
var byPrefix = []Tier{HighSchool, Literary, University, Primary, Junior}

// Of returns the tier of stage, e.g. "JS2" → Junior. Unknown or empty
// stages fall back to Junior.
func Of(stage string) Tier {
	s := strings.ToUpper(strings.TrimSpace(stage))
	for _, t := range byPrefix {
		if strings.HasPrefix(s, string(t)) {
			return t
		}
	}
	return Junior
}

var guidance = map[Purpose]map[Tier]string{
	Answer: {
		Primary:    "Use simple vocabulary and short sentences. Explain concepts in very basic terms. Avoid complex historical terms.",
		Junior:     "Use moderate vocabulary with clear explanations. Define any complex terms. Keep sentences straightforward.",
		HighSchool: "Use academic vocabulary with detailed explanations. Include historical context and connections.",
		Literary:   "Use sophisticated vocabulary and complex analysis. Include historical debates and interpretations.",
		University: "Use advanced academic language with scholarly depth. Include historiographical perspectives.",
	},
	Questions: {
		Primary:    "Create very simple questions using basic vocabulary. Focus on direct facts and simple recall.",
		Junior:     "Create clear questions with moderate complexity. Use straightforward historical concepts.",
		HighSchool: "Create challenging questions that test understanding of historical concepts and relationships.",
		Literary:   "Create sophisticated questions that test analytical and critical thinking skills.",
		University: "Create advanced questions that test deep historical understanding and interpretation.",
	},
	Lesson: {
		Primary:    "Transform content into very simple, clear explanations. Use basic vocabulary and short sentences.",
		Junior:     "Present content clearly with moderate complexity. Define technical terms. Use straightforward examples.",
		HighSchool: "Present content with academic depth. Include detailed explanations and historical context.",
		Literary:   "Present content with sophisticated analysis. Include historical interpretations and connections.",
		University: "Present content with advanced academic depth. Include historiographical perspectives.",
	},
}

// Guidance returns the instruction text for stage and purpose.
func Guidance(stage string, p Purpose) string {
	return guidance[p][Of(stage)]
}
