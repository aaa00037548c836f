package analyzer

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/flarexio/marketfit/opportunity"
)

const SystemPrompt = "You are a Product Manager. You output JSON only."

const ideasPrompt = `
Analyze these complaints/discussions provided below.
Output 5 Specific Micro-SaaS Ideas that solve these problems.

Return the response as a valid JSON object with a key "ideas" containing a list of objects.
Each object in the list must have:
- "name": Brief name of the idea.
- "pitch": One sentence pitch.
- "source_id": The exact integer ID (from the input "ID: X") of the data point that inspired this idea.

Do not add any markdown formatting (like ` + "```json" + `). Just the raw JSON string.
`

var ErrMalformedResponse = errors.New("malformed llm response")

// BuildPrompt numbers the first max items by position so ideas can be mapped back.
func BuildPrompt(items []*opportunity.Opportunity, max int) string {
	if max > 0 && len(items) > max {
		items = items[:max]
	}

	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "ID: " + strconv.Itoa(i) + " | Content: " + item.Text
	}

	return ideasPrompt + "\nDATA:\n" + strings.Join(lines, "\n")
}

type rawIdea struct {
	Name     string `json:"name"`
	Pitch    string `json:"pitch"`
	SourceID any    `json:"source_id"`
}

// ParseIdeas decodes the llm answer and links each idea to the item it cites.
// Ideas citing an unknown item or missing a name or pitch are dropped.
func ParseIdeas(content string, items []*opportunity.Opportunity) ([]*opportunity.Idea, error) {
	content = stripFences(content)

	var result struct {
		Ideas []rawIdea `json:"ideas"`
	}

	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, errors.Join(ErrMalformedResponse, err)
	}

	ideas := make([]*opportunity.Idea, 0, len(result.Ideas))
	for _, raw := range result.Ideas {
		if raw.Name == "" || raw.Pitch == "" {
			continue
		}

		idx, ok := sourceIndex(raw.SourceID)
		if !ok || idx < 0 || idx >= len(items) {
			continue
		}

		origin := items[idx]
		ideas = append(ideas, &opportunity.Idea{
			Name:         raw.Name,
			Pitch:        raw.Pitch,
			SourceText:   origin.Text,
			SourceURL:    origin.URL,
			SourceOrigin: origin.Source,
		})
	}

	return ideas, nil
}

func sourceIndex(v any) (int, bool) {
	switch id := v.(type) {
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return 0, false
		}
		return int(id), true

	case string:
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			return 0, false
		}
		return n, true

	default:
		return 0, false
	}
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[i+1:]
	}

	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
