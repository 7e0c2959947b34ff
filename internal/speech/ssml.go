package speech

import (
	"regexp"
	"strings"
)

// emphasisWords matches the persona's signature words for moderate SSML
// emphasis.
var emphasisWords = regexp.MustCompile(`(?i)\b(bhai|yo|got it|sure|awesome|cool)\b`)

// AddSSMLTags wraps text in SSML with natural pauses after punctuation and
// emphasis on the persona's signature words. Sentence ends pause 300ms,
// commas 200ms, questions and exclamations 400ms.
func AddSSMLTags(text string) string {
	var b strings.Builder
	b.WriteString("<speak>")

	marked := strings.NewReplacer(
		".", `.<break time="300ms"/>`,
		",", `,<break time="200ms"/>`,
		"?", `?<break time="400ms"/>`,
		"!", `!<break time="400ms"/>`,
	).Replace(text)

	marked = emphasisWords.ReplaceAllString(marked, `<emphasis level="moderate">$1</emphasis>`)

	b.WriteString(marked)
	b.WriteString("</speak>")
	return b.String()
}
