package action

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/swarajlabs/vaani/internal/webinfo"
	"github.com/swarajlabs/vaani/pkg/types"
)

// NewsSource fetches live headlines. *webinfo.NewsClient satisfies it; a nil
// source makes get_news answer with a browsable fallback link.
type NewsSource interface {
	Headlines(ctx context.Context, topic string, limit int) ([]webinfo.Article, error)
}

// Searcher performs live web searches. *webinfo.SearchClient satisfies it; a
// nil searcher makes search_web answer with a browsable fallback link.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]webinfo.SearchResult, error)
}

// NotePad stores per-session notes. *memory.Layer satisfies it.
type NotePad interface {
	AddNote(ctx context.Context, sessionID, content string) error
	Notes(ctx context.Context, sessionID string) ([]string, error)
}

// Deps carries the collaborators the built-in actions need. Any field may be
// nil; the affected actions then degrade to their offline behaviour.
type Deps struct {
	News   NewsSource
	Search Searcher
	Notes  NotePad
}

// defaultNewsLimit is how many headlines get_news returns when the intent
// carries no limit entity.
const defaultNewsLimit = 5

// RegisterBuiltins registers the standard action set on r.
func RegisterBuiltins(r *Registry, deps Deps) {
	r.Register(Definition{
		Name:        "open_website",
		Description: "Opens a website in the browser",
		Parameters: []types.ParameterSchema{
			{Name: "url", Type: "string", Required: true, Description: "Website URL"},
			{Name: "name", Type: "string", Required: false, Description: "Website name"},
		},
		Handler: handleOpenWebsite,
	})

	r.Register(Definition{
		Name:        "search_web",
		Description: "Performs a web search",
		Parameters: []types.ParameterSchema{
			{Name: "query", Type: "string", Required: true, Description: "Search query"},
		},
		Handler: searchWebHandler(deps.Search),
	})

	r.Register(Definition{
		Name:        "play_media",
		Description: "Plays media content",
		Parameters: []types.ParameterSchema{
			{Name: "query", Type: "string", Required: true, Description: "What to play"},
			{Name: "platform", Type: "string", Required: false, Description: "Platform (youtube/spotify)"},
		},
		Handler: handlePlayMedia,
	})

	r.Register(Definition{
		Name:        "get_system_info",
		Description: "Retrieves system information",
		Parameters: []types.ParameterSchema{
			{Name: "infoType", Type: "string", Required: true, Description: "Type of info (cpu/memory/all)"},
		},
		RequiresConfirmation: true,
		Handler:              handleGetSystemInfo,
	})

	r.Register(Definition{
		Name:        "get_news",
		Description: "Fetches latest news headlines",
		Parameters: []types.ParameterSchema{
			{Name: "topic", Type: "string", Required: true, Description: "News topic"},
		},
		Handler: getNewsHandler(deps.News),
	})

	r.Register(Definition{
		Name:        "general_conversation",
		Description: "General conversation without specific action",
		Parameters: []types.ParameterSchema{
			{Name: "topic", Type: "string", Required: false, Description: "Conversation topic"},
		},
		Handler: handleGeneralConversation,
	})

	r.Register(Definition{
		Name:        "show_time",
		Description: "Tells the current date and time",
		Handler:     handleShowTime,
	})

	r.Register(Definition{
		Name:        "add_note",
		Description: "Saves a note for the session",
		Parameters: []types.ParameterSchema{
			{Name: "content", Type: "string", Required: true, Description: "Note text"},
		},
		Handler: addNoteHandler(deps.Notes),
	})

	r.Register(Definition{
		Name:        "get_notes",
		Description: "Reads back the session's saved notes",
		Handler:     getNotesHandler(deps.Notes),
	})
}

func handleOpenWebsite(_ context.Context, _ string, entities map[string]any) types.ActionResult {
	target, _ := entities["url"].(string)
	name, _ := entities["name"].(string)

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return types.ActionResult{
			Success: false,
			Message: "Invalid URL format. URL must start with http:// or https://",
		}
	}

	label := name
	if label == "" {
		label = target
	}
	return types.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Opening %s", label),
		Data:    map[string]any{"url": target, "name": name, "action": "open_url"},
	}
}

func searchWebHandler(searcher Searcher) Handler {
	return func(ctx context.Context, _ string, entities map[string]any) types.ActionResult {
		query, _ := entities["query"].(string)
		searchURL := webinfo.SearchFallbackURL(query)

		if searcher != nil {
			results, err := searcher.Search(ctx, query, defaultNewsLimit)
			if err == nil && len(results) > 0 {
				items := make([]map[string]any, 0, len(results))
				for _, r := range results {
					items = append(items, map[string]any{
						"title":   r.Title,
						"url":     r.URL,
						"snippet": r.Snippet,
					})
				}
				return types.ActionResult{
					Success: true,
					Message: fmt.Sprintf("Searching for: %s", query),
					Data:    map[string]any{"url": searchURL, "query": query, "results": items, "action": "open_url"},
				}
			}
		}

		// No live search available: still succeed with a browsable link.
		return types.ActionResult{
			Success: true,
			Message: fmt.Sprintf("Searching for: %s", query),
			Data:    map[string]any{"url": searchURL, "query": query, "fallback": true, "action": "open_url"},
		}
	}
}

func handlePlayMedia(_ context.Context, _ string, entities map[string]any) types.ActionResult {
	query, _ := entities["query"].(string)
	platform, _ := entities["platform"].(string)
	if platform == "" {
		platform = "youtube"
	}

	var target string
	switch platform {
	case "spotify":
		target = "https://open.spotify.com/search/" + url.PathEscape(query)
	default:
		platform = "youtube"
		target = "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)
	}

	return types.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Playing %s on %s", query, platform),
		Data:    map[string]any{"url": target, "query": query, "platform": platform, "action": "open_url"},
	}
}

func handleGetSystemInfo(_ context.Context, _ string, entities map[string]any) types.ActionResult {
	infoType, _ := entities["infoType"].(string)
	info := map[string]any{}

	if infoType == "cpu" || infoType == "all" {
		info["cpu"] = map[string]any{
			"arch":  runtime.GOARCH,
			"cores": runtime.NumCPU(),
		}
	}
	if infoType == "memory" || infoType == "all" {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		info["memory"] = map[string]any{
			"allocated": fmt.Sprintf("%.2f MB", float64(ms.Alloc)/1024/1024),
			"system":    fmt.Sprintf("%.2f MB", float64(ms.Sys)/1024/1024),
			"gcRuns":    ms.NumGC,
		}
	}
	if infoType == "all" {
		hostname, _ := os.Hostname()
		info["platform"] = runtime.GOOS
		info["hostname"] = hostname
		info["goroutines"] = runtime.NumGoroutine()
	}
	if len(info) == 0 {
		return types.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Unknown info type %q; try cpu, memory, or all", infoType),
		}
	}

	return types.ActionResult{
		Success: true,
		Message: "System information retrieved",
		Data:    info,
	}
}

func getNewsHandler(source NewsSource) Handler {
	return func(ctx context.Context, _ string, entities map[string]any) types.ActionResult {
		topic, _ := entities["topic"].(string)
		newsURL := webinfo.NewsFallbackURL(topic)

		if source != nil {
			articles, err := source.Headlines(ctx, topic, defaultNewsLimit)
			if err == nil && len(articles) > 0 {
				items := make([]map[string]any, 0, len(articles))
				for _, a := range articles {
					items = append(items, map[string]any{
						"title":  a.Title,
						"source": a.Source,
						"url":    a.URL,
					})
				}
				return types.ActionResult{
					Success: true,
					Message: fmt.Sprintf("Fetching news about: %s", topic),
					Data:    map[string]any{"url": newsURL, "topic": topic, "articles": items, "action": "open_url"},
				}
			}
		}

		// No API key or the feed is down: hand back a Google News link so the
		// user still gets something browsable.
		return types.ActionResult{
			Success: true,
			Message: fmt.Sprintf("Fetching news about: %s", topic),
			Data:    map[string]any{"url": newsURL, "topic": topic, "fallback": true, "action": "open_url"},
		}
	}
}

func handleGeneralConversation(_ context.Context, _ string, entities map[string]any) types.ActionResult {
	return types.ActionResult{
		Success: true,
		Message: "Conversation response",
		Data:    map[string]any{"topic": entities["topic"]},
	}
}

func handleShowTime(_ context.Context, _ string, _ map[string]any) types.ActionResult {
	now := time.Now()
	timeStr := now.Format("03:04 PM")
	dateStr := now.Format("Monday, 2 January 2006")

	return types.ActionResult{
		Success: true,
		Message: fmt.Sprintf("It's %s. %s.", timeStr, dateStr),
		Data:    map[string]any{"time": timeStr, "date": dateStr},
	}
}

func addNoteHandler(pad NotePad) Handler {
	return func(ctx context.Context, sessionID string, entities map[string]any) types.ActionResult {
		content, _ := entities["content"].(string)
		if pad == nil {
			return types.ActionResult{Success: false, Message: "Note storage is not available"}
		}
		if err := pad.AddNote(ctx, sessionID, content); err != nil {
			return types.ActionResult{Success: false, Message: "Could not save the note"}
		}
		return types.ActionResult{
			Success: true,
			Message: fmt.Sprintf("Note added: %q", content),
			Data:    map[string]any{"content": content},
		}
	}
}

func getNotesHandler(pad NotePad) Handler {
	return func(ctx context.Context, sessionID string, _ map[string]any) types.ActionResult {
		if pad == nil {
			return types.ActionResult{Success: false, Message: "Note storage is not available"}
		}
		notes, err := pad.Notes(ctx, sessionID)
		if err != nil {
			return types.ActionResult{Success: false, Message: "Could not read the notes"}
		}
		if len(notes) == 0 {
			return types.ActionResult{
				Success: true,
				Message: "No notes found",
				Data:    map[string]any{"notes": []string{}},
			}
		}

		var b strings.Builder
		for i, n := range notes {
			fmt.Fprintf(&b, "%d. %s\n", i+1, n)
		}
		return types.ActionResult{
			Success: true,
			Message: strings.TrimRight(b.String(), "\n"),
			Data:    map[string]any{"notes": notes, "count": len(notes)},
		}
	}
}
