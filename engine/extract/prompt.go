package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Task is one field as presented to the model.
type Task struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Task  string `json:"task"`
}

const systemTemplate = `You are an expert event brief extractor for the '%s' section.

TASK: Extract the EXACT requested information from the context.

CRITICAL RULES:
1. Return ONLY valid JSON. Keys MUST be the 'id' strings provided.
2. Search the ENTIRE context THOROUGHLY - information may be anywhere.
3. Extract EXACT values (names, numbers, dates, URLs) as they appear in the context.
4. For each task, look for ANY related information in the context - be flexible with terminology.
5. For stakeholders: use format "Name (email@example.com)". If email is missing, use "Name (Nil)".
6. Use "Nil" ONLY if information is truly absent after thorough search.
7. Match these common terms:
   - "name"/"title" → Project Name
   - "emb"/"event_code" → EMB
   - "budget"/"cost"/"total" → Budget
   - "country"/"location" → Country
   - "producer"/"lead"/"manager" → Producer
   - "executive_sponsor"/"fm"/"field_marketer" → Executive Sponsor
Example:
{
  "0": "IBM Cloud Modernization Expo 2025",
  "1": "2025-11-20",
  "2": "Linda Hamilton (linda.h@ibm.com)"
}

Return ONLY the JSON object with NO additional text.`

// SystemPrompt returns the instructions for extracting fields of section.
func SystemPrompt(section string) string {
	return fmt.Sprintf(systemTemplate, section)
}

// UserPrompt returns the context and task list message.
func UserPrompt(context string, tasks []Task) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tasks); err != nil {
		return "", fmt.Errorf("extract: encode tasks: %w", err)
	}
	list := strings.TrimSuffix(buf.String(), "\n")

	return "\nCONTEXT FROM DOCUMENTS:\n" + context +
		"\n\nTASKS:\n" + list +
		"\n\nReturn the extracted data as a JSON object:\n", nil
}

// stripFence returns the body of a ```json block, or else of the first
// plain ``` block, or content unchanged.
func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if _, after, ok := strings.Cut(content, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(content, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return content
}

// ParseReply decodes the model reply into an id → value map.
func ParseReply(content string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(stripFence(content)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: null", ErrInvalidReply)
	}
	return out, nil
}
