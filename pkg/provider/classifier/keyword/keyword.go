// Package keyword provides a deterministic, model-free intent classifier that
// matches utterances against per-action keyword sets. It implements the
// classifier.Provider interface and exists as a swappable variant of the LLM
// classifier: tests use it for repeatable intents, and the resilience layer
// uses it as the last-resort fallback when every LLM backend is down.
//
// Matching is token-based with fuzzy tolerance: a token matches a keyword
// when it is an exact hit or when its Jaro-Winkler similarity exceeds a
// threshold, which absorbs common speech-to-text misspellings ("yutube",
// "serch"). Known site names are resolved to URLs so open_website intents
// come out fully parameterised.
package keyword

import (
	"context"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/swarajlabs/vaani/pkg/provider/classifier"
	"github.com/swarajlabs/vaani/pkg/types"
)

// Compile-time interface assertion.
var _ classifier.Provider = (*Classifier)(nil)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a token to count
// as a keyword hit. 0.92 tolerates one-character slips without letting short
// unrelated words collide.
const fuzzyThreshold = 0.92

// keywordConfidence is the confidence assigned to keyword-matched intents.
// Lower than the LLM's function-call confidence but above the validator's
// threshold, so keyword intents execute directly.
const keywordConfidence = 0.75

// conversationConfidence is assigned when no rule fires and the utterance is
// passed through as general conversation.
const conversationConfidence = 0.5

// rule maps a set of trigger keywords to an action and an entity builder.
type rule struct {
	action   string
	keywords []string
	build    func(text string) map[string]any
}

// knownSites resolves spoken site names to URLs for open_website intents.
var knownSites = map[string]string{
	"youtube":   "https://youtube.com",
	"google":    "https://google.com",
	"github":    "https://github.com",
	"spotify":   "https://open.spotify.com",
	"wikipedia": "https://wikipedia.org",
}

// Classifier is a deterministic keyword-based intent classifier.
// The zero value is not usable; construct with [New].
type Classifier struct {
	rules []rule
}

// New constructs a keyword Classifier with the default rule set covering the
// built-in actions.
func New() *Classifier {
	return &Classifier{rules: defaultRules()}
}

// ParseIntent implements classifier.Provider. It never returns an error:
// utterances that match no rule become general_conversation intents, so a
// fallback chain ending in this classifier can never fail to parse.
func (c *Classifier) ParseIntent(_ context.Context, text string, _ *types.ConversationContext) (types.Intent, error) {
	tokens := tokenize(text)

	for _, r := range c.rules {
		if matchAny(tokens, r.keywords) {
			return types.Intent{
				Action:               r.action,
				Entities:             r.build(text),
				Confidence:           keywordConfidence,
				RequiresConfirmation: r.action == "get_system_info",
			}, nil
		}
	}

	return types.Intent{
		Action:     "general_conversation",
		Entities:   map[string]any{"topic": text},
		Confidence: conversationConfidence,
	}, nil
}

// GenerateReply implements classifier.Provider. The keyword classifier has no
// generative capability; it always errors so that callers fall through to the
// deterministic template path.
func (c *Classifier) GenerateReply(context.Context, classifier.ReplyRequest) (string, error) {
	return "", fmt.Errorf("keyword: no generative capability")
}

// DetectLanguage implements classifier.Provider.
func (c *Classifier) DetectLanguage(text string) types.Language {
	return classifier.DetectLanguage(text)
}

func defaultRules() []rule {
	return []rule{
		{
			action:   "play_media",
			keywords: []string{"play", "music", "song", "video", "lofi"},
			build: func(text string) map[string]any {
				ents := map[string]any{"query": stripTriggers(text, "play", "some", "music", "song", "video")}
				if containsToken(text, "spotify") {
					ents["platform"] = "spotify"
				}
				return ents
			},
		},
		{
			action:   "open_website",
			keywords: []string{"open", "launch", "start", "website"},
			build: func(text string) map[string]any {
				for name, url := range knownSites {
					if containsToken(text, name) {
						return map[string]any{"url": url, "name": capitalize(name)}
					}
				}
				return map[string]any{"name": stripTriggers(text, "open", "launch", "start", "the", "website")}
			},
		},
		{
			action:   "search_web",
			keywords: []string{"search", "find", "look", "lookup"},
			build: func(text string) map[string]any {
				return map[string]any{"query": stripTriggers(text, "search", "find", "look", "lookup", "for", "up")}
			},
		},
		{
			action:   "get_system_info",
			keywords: []string{"system", "cpu", "memory", "ram", "uptime"},
			build: func(text string) map[string]any {
				switch {
				case containsToken(text, "cpu"):
					return map[string]any{"infoType": "cpu"}
				case containsToken(text, "memory"), containsToken(text, "ram"):
					return map[string]any{"infoType": "memory"}
				default:
					return map[string]any{"infoType": "all"}
				}
			},
		},
		{
			action:   "get_news",
			keywords: []string{"news", "headlines", "headline"},
			build: func(text string) map[string]any {
				topic := stripTriggers(text, "news", "headlines", "headline", "latest", "about", "the", "get", "show", "me")
				if topic == "" {
					topic = "technology"
				}
				return map[string]any{"topic": topic}
			},
		},
		{
			action:   "show_time",
			keywords: []string{"time", "date", "today"},
			build:    func(string) map[string]any { return map[string]any{} },
		},
		{
			action:   "add_note",
			keywords: []string{"note", "remember", "remind"},
			build: func(text string) map[string]any {
				return map[string]any{"content": stripTriggers(text, "note", "add", "a", "remember", "to", "that", "remind", "me")}
			},
		},
	}
}

// tokenize lowercases text and splits it into alphanumeric tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && !(r >= 0x0900 && r <= 0x097F)
	})
}

// matchAny reports whether any token is an exact or fuzzy hit on any keyword.
func matchAny(tokens, keywords []string) bool {
	for _, t := range tokens {
		for _, k := range keywords {
			if t == k {
				return true
			}
			// Fuzzy comparison only pays off for words long enough that a
			// single slip doesn't turn them into a different word.
			if len(t) >= 4 && len(k) >= 4 && matchr.JaroWinkler(t, k, false) >= fuzzyThreshold {
				return true
			}
		}
	}
	return false
}

// containsToken reports whether text contains word as a token (fuzzy-tolerant).
func containsToken(text, word string) bool {
	return matchAny(tokenize(text), []string{word})
}

// capitalize upper-cases the first ASCII letter of s.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// stripTriggers removes trigger words from text and returns the trimmed rest,
// which approximates the query/topic the user meant.
func stripTriggers(text string, triggers ...string) string {
	drop := make(map[string]bool, len(triggers))
	for _, t := range triggers {
		drop[t] = true
	}
	var kept []string
	for _, tok := range tokenize(text) {
		if !drop[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}
