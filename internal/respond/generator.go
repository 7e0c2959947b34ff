// Package respond turns executed intents into persona-consistent reply text.
//
// The generator prefers the classifier's generative path for natural,
// context-aware phrasing; whenever that fails it falls back to deterministic
// bilingual templates, so producing a response never fails.
package respond

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/swarajlabs/vaani/pkg/provider/classifier"
	"github.com/swarajlabs/vaani/pkg/types"
)

// Generator produces reply text for completed turns. Safe for concurrent use
// as long as the injected rand source is (the default is).
type Generator struct {
	provider classifier.Provider
	intn     func(n int) int
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand injects a deterministic random source for template selection.
// Used in tests.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.intn = rng.IntN }
}

// NewGenerator creates a Generator. The provider may be nil, in which case
// every response comes from the template tables.
func NewGenerator(provider classifier.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider: provider,
		intn:     rand.IntN,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate renders the reply for one turn. Routing:
//
//   - failed results get an error response quoting the failure message
//   - unconfirmed sensitive intents get a confirmation request
//   - everything else gets a success response, generative when possible
//
// Generate itself never fails; the worst case is a language-matched fallback
// line.
func (g *Generator) Generate(ctx context.Context, intent types.Intent, result types.ActionResult, convCtx *types.ConversationContext, lang types.Language) string {
	if !lang.IsValid() {
		lang = types.LangEnglish
	}

	if !result.Success {
		return g.errorResponse(result, lang)
	}
	if intent.RequiresConfirmation && result.Data["confirmed"] != true {
		return g.confirmationRequest(intent, lang)
	}
	return g.successResponse(ctx, intent, result, convCtx, lang)
}

func (g *Generator) successResponse(ctx context.Context, intent types.Intent, result types.ActionResult, convCtx *types.ConversationContext, lang types.Language) string {
	if g.provider != nil {
		reply, err := g.provider.GenerateReply(ctx, classifier.ReplyRequest{
			Prompt:       buildPrompt(intent, result),
			Context:      convCtx,
			ActionResult: &result,
		})
		if err == nil && reply != "" {
			return reply
		}
		if err != nil {
			slog.Debug("generative reply failed, using template",
				"action", intent.Action,
				"error", err,
			)
		}
	}
	return g.templateResponse(intent, result, lang)
}

// buildPrompt describes the completed action for the generative path.
func buildPrompt(intent types.Intent, result types.ActionResult) string {
	var description string
	switch intent.Action {
	case "open_website":
		description = fmt.Sprintf("I just opened %s for the user.", templateSubject(intent.Action, result))
	case "search_web":
		description = fmt.Sprintf("I'm searching for %q on Google.", templateSubject(intent.Action, result))
	case "play_media":
		platform, _ := result.Data["platform"].(string)
		if platform == "" {
			platform = "YouTube"
		}
		description = fmt.Sprintf("I'm playing %s on %s.", templateSubject(intent.Action, result), platform)
	case "get_system_info":
		description = fmt.Sprintf("Here's the system information: %v", result.Data)
	case "get_news":
		description = fmt.Sprintf("I'm fetching news about %s.", templateSubject(intent.Action, result))
	case "general_conversation":
		description = "The user said something that doesn't require a specific action."
	default:
		description = fmt.Sprintf("I executed the action: %s. Result: %s", intent.Action, result.Message)
	}
	return description + " Respond naturally and conversationally, maintaining Swaraj's personality."
}

func (g *Generator) templateResponse(intent types.Intent, result types.ActionResult, lang types.Language) string {
	actionTemplates, ok := successTemplates[intent.Action]
	if !ok {
		// Unknown action: the handler's own message is the best we have.
		if result.Message != "" {
			return result.Message
		}
		return fallbackResponses[lang]
	}

	templates := actionTemplates[lang]
	if len(templates) == 0 {
		templates = actionTemplates[types.LangEnglish]
	}
	tmpl := templates[g.intn(len(templates))]
	return fillTemplate(tmpl, templateSubject(intent.Action, result))
}

func (g *Generator) errorResponse(result types.ActionResult, lang types.Language) string {
	templates := errorTemplates[lang]
	if len(templates) == 0 {
		templates = errorTemplates[types.LangEnglish]
	}
	reason := result.Message
	if reason == "" {
		reason = "unknown error"
	}
	tmpl := templates[g.intn(len(templates))]
	return fillTemplate(tmpl, reason)
}

func (g *Generator) confirmationRequest(intent types.Intent, lang types.Language) string {
	if byLang, ok := confirmationTemplates[intent.Action]; ok {
		if msg, ok := byLang[lang]; ok {
			return msg
		}
		return byLang[types.LangEnglish]
	}
	return fmt.Sprintf("Do you want me to proceed with %s? Please confirm.", intent.Action)
}

// Greeting returns a session-opening line.
func (g *Generator) Greeting(lang types.Language) string {
	return g.pick(greetingTemplates, lang)
}

// Goodbye returns a session-closing line.
func (g *Generator) Goodbye(lang types.Language) string {
	return g.pick(goodbyeTemplates, lang)
}

// ClarificationRequest returns a line asking the user to rephrase. Used when
// intent parsing or validation could not produce something executable.
func (g *Generator) ClarificationRequest(lang types.Language) string {
	return g.pick(clarificationTemplates, lang)
}

// Fallback returns the last-resort line for a turn that failed outside the
// normal error path.
func (g *Generator) Fallback(lang types.Language) string {
	if msg, ok := fallbackResponses[lang]; ok {
		return msg
	}
	return fallbackResponses[types.LangEnglish]
}

func (g *Generator) pick(table map[types.Language][]string, lang types.Language) string {
	templates := table[lang]
	if len(templates) == 0 {
		templates = table[types.LangEnglish]
	}
	return templates[g.intn(len(templates))]
}
