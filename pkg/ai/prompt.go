package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	messagedomain "voicebox-backend/internal/message/domain"
)

// maxContentLength truncates message bodies to stay well inside token limits
const maxContentLength = 5000

// BuildClassifyPrompt produces the fixed instruction prompt asking the model
// for a structured triage verdict
func BuildClassifyPrompt(input ClassificationInput) string {
	content := input.Content
	if len(content) > maxContentLength {
		// Back up to a rune boundary so the cut never produces invalid UTF-8
		cut := maxContentLength
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	return fmt.Sprintf(`You are an assistant that triages incoming messages for a busy user.

Classify the message below and decide the follow-up action.

Categories:
- "important": directly requires the user's attention or a reply
- "indirectly-relevant": useful context, no direct action needed
- "marketing": promotional or bulk mail
- "system-alert": automated notification from a system or service
- "unknown": none of the above fits

Actions:
- "generate-prompt": important messages that need a drafted reply prompt
- "create-summary": messages worth a short summary
- "mark-read": messages safe to dismiss
- "move": system alerts to file away

Respond with ONLY a JSON object, no other text:
{"category": "...", "action": "...", "summary": "<1-2 sentence summary, for actionable messages>", "prompt": "<suggested reply prompt, only for generate-prompt>"}

MESSAGE:
From: %s
Subject: %s

%s`, input.Sender, input.Subject, content)
}

// rawClassification mirrors the JSON shape the prompt asks for, before
// translation into the closed vocabulary
type rawClassification struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Summary  string `json:"summary"`
	Prompt   string `json:"prompt"`
}

// ParseClassification maps arbitrary model output into the closed
// category/action vocabulary. Model output is untrusted: anything that
// cannot be parsed falls back to (unknown, mark-read) so a single
// malformed response never blocks the queue. It never returns an error.
func ParseClassification(text string) *Classification {
	fallback := &Classification{
		Category: messagedomain.CategoryUnknown,
		Action:   messagedomain.ActionMarkRead,
	}

	responseText := strings.TrimSpace(text)

	// Clean up markdown code blocks if present
	if strings.HasPrefix(responseText, "```json") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimSuffix(responseText, "```")
	} else if strings.HasPrefix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
	}
	responseText = strings.TrimSpace(responseText)

	// Extract the JSON object from surrounding chatter
	jsonStart := strings.Index(responseText, "{")
	jsonEnd := strings.LastIndex(responseText, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return fallback
	}
	responseText = responseText[jsonStart : jsonEnd+1]

	var raw rawClassification
	if err := json.Unmarshal([]byte(responseText), &raw); err != nil {
		return fallback
	}

	category := messagedomain.Category(strings.ToLower(strings.TrimSpace(raw.Category)))
	if !category.IsValid() {
		return fallback
	}

	action := messagedomain.Action(strings.ToLower(strings.TrimSpace(raw.Action)))
	if !action.IsValid() {
		action = messagedomain.DefaultActionFor(category)
	}

	return &Classification{
		Category: category,
		Action:   action,
		Summary:  strings.TrimSpace(raw.Summary),
		Prompt:   strings.TrimSpace(raw.Prompt),
	}
}
