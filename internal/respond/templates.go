package respond

import (
	"fmt"
	"strings"

	"github.com/swarajlabs/vaani/pkg/types"
)

// Template tables for the deterministic fallback path. All verbs stay in the
// assistant's persona. Each action carries variants per language; languages
// without a table fall back to English.

var successTemplates = map[string]map[types.Language][]string{
	"open_website": {
		types.LangEnglish: {
			"Got it, bhai. Opening %s for you.",
			"Sure thing! %s coming right up.",
			"On it! Opening %s now.",
		},
		types.LangHindi: {
			"हो गया भाई। %s खोल रहा हूं।",
			"बिल्कुल! %s खुल रही है।",
		},
		types.LangMixed: {
			"Got it, bhai. %s खोल रहा हूं।",
		},
	},
	"search_web": {
		types.LangEnglish: {
			"Searching for %q, let's see what we find.",
			"On it! Looking up %s for you.",
			"Got it, searching for %s now.",
		},
		types.LangHindi: {
			"%q ढूंढ रहा हूं, देखते हैं क्या मिलता है।",
		},
		types.LangMixed: {
			"Searching for %q, देखते हैं क्या मिलता है।",
		},
	},
	"play_media": {
		types.LangEnglish: {
			"Playing %s, enjoy the vibes! 🎧",
			"Got it! %s coming up.",
			"Sure thing, loading %s for you.",
		},
		types.LangHindi: {
			"%s चला रहा हूं, मज़े करो! 🎧",
		},
		types.LangMixed: {
			"Playing %s, मज़े करो! 🎧",
		},
	},
	"get_system_info": {
		types.LangEnglish: {
			"Here's your system info. Everything looking smooth!",
			"Got the system stats for you. All good!",
		},
		types.LangHindi: {
			"यह रहा आपका सिस्टम इन्फो। सब ठीक चल रहा है!",
		},
		types.LangMixed: {
			"Here's your system info, सब ठीक चल रहा है!",
		},
	},
	"get_news": {
		types.LangEnglish: {
			"Fetching the latest on %s, let's stay updated!",
			"Got it! Looking up news about %s.",
		},
		types.LangHindi: {
			"%s की ताज़ा खबरें ला रहा हूं।",
		},
		types.LangMixed: {
			"Fetching latest news on %s, ताज़ा खबरें आ रही हैं।",
		},
	},
	"general_conversation": {
		types.LangEnglish: {
			"I'm here to help! What would you like to do?",
			"Sure, I'm listening. What's on your mind?",
			"Yo, what can I do for you?",
		},
		types.LangHindi: {
			"मैं यहां हूं मदद के लिए! क्या करना है?",
		},
		types.LangMixed: {
			"I'm here, bhai! क्या करना है?",
		},
	},
}

var errorTemplates = map[types.Language][]string{
	types.LangEnglish: {
		"Hmm, ran into an issue: %s. Let me try another way.",
		"Oops, something went wrong: %s. Want to try again?",
		"Sorry bhai, couldn't complete that: %s",
	},
	types.LangHindi: {
		"अरे, कुछ गड़बड़ हो गई: %s। फिर से कोशिश करें?",
	},
	types.LangMixed: {
		"Sorry bhai, कुछ गड़बड़ हो गई: %s",
	},
}

var confirmationTemplates = map[string]map[types.Language]string{
	"get_system_info": {
		types.LangEnglish: "Just to confirm, you want me to access your system information (CPU, memory, etc.)? Say yes to proceed.",
		types.LangHindi:   "कन्फर्म करना है, आप चाहते हैं कि मैं आपकी सिस्टम जानकारी देखूं? हां बोलें।",
		types.LangMixed:   "Just to confirm, आप चाहते हैं system info? Say yes.",
	},
}

var fallbackResponses = map[types.Language]string{
	types.LangEnglish: "I'm here, but something went wrong on my end. Let's try that again?",
	types.LangHindi:   "मैं यहां हूं, पर कुछ गड़बड़ हो गई। फिर से कोशिश करें?",
	types.LangMixed:   "I'm here, bhai, पर कुछ गड़बड़ हो गई। Try again?",
}

var greetingTemplates = map[types.Language][]string{
	types.LangEnglish: {
		"Yo! Swaraj AI here. Ready to build something cool?",
		"Hey there! What can I help you with today?",
		"What's up? I'm here to assist, just say the word.",
	},
	types.LangHindi: {
		"नमस्ते! Swaraj AI यहां है। क्या करना है?",
		"हेलो! मैं यहां हूं मदद के लिए।",
	},
	types.LangMixed: {
		"Yo! Swaraj AI here. क्या करना है?",
		"Hey bhai! Ready to help, बोलो क्या चाहिए?",
	},
}

var goodbyeTemplates = map[types.Language][]string{
	types.LangEnglish: {
		"Catch you later! Stay awesome. 🚀",
		"See you soon, bhai! Keep coding.",
		"Alright, signing off. Hit me up anytime!",
	},
	types.LangHindi: {
		"फिर मिलेंगे! अच्छा रहो। 🚀",
		"बाद में मिलते हैं भाई!",
	},
	types.LangMixed: {
		"Catch you later, bhai! Stay awesome. 🚀",
		"See you soon! फिर मिलेंगे।",
	},
}

var clarificationTemplates = map[types.Language][]string{
	types.LangEnglish: {
		"I didn't quite catch that. Could you rephrase?",
		"Hmm, not sure what you mean. Can you say that differently?",
		"Sorry bhai, didn't understand. Try again?",
	},
	types.LangHindi: {
		"समझ नहीं आया। फिर से बोलें?",
		"क्षमा करें, समझ नहीं आया। दोबारा कहें?",
	},
	types.LangMixed: {
		"Sorry bhai, समझ नहीं आया। Try again?",
	},
}

// templateSubject extracts the value interpolated into an action's success
// template: the website name, the search query, the news topic.
func templateSubject(action string, result types.ActionResult) string {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := result.Data[k].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}
	switch action {
	case "open_website":
		if s := get("name", "url"); s != "" {
			return s
		}
		return "that"
	case "search_web", "play_media":
		if s := get("query"); s != "" {
			return s
		}
		return "that"
	case "get_news":
		if s := get("topic"); s != "" {
			return s
		}
		return "the news"
	}
	return ""
}

// fillTemplate interpolates subject into tmpl when the template carries a
// placeholder.
func fillTemplate(tmpl, subject string) string {
	if subject == "" {
		return tmpl
	}
	if strings.Contains(tmpl, "%s") || strings.Contains(tmpl, "%q") {
		return fmt.Sprintf(tmpl, subject)
	}
	return tmpl
}
