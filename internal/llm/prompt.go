package llm

import (
	"fmt"
	"strings"
)

// DefaultSystemPrompt is used whenever no prompt is configured.
const DefaultSystemPrompt = `You are an assistant that answers questions using only the documents provided in the context.
If the context does not contain the answer, say that the information is not available in the knowledge base.
When you use information from a document, cite it by number, for example "According to Document 1".
If documents disagree, point out the discrepancy.`

const (
	maxBlockRunes   = 3000
	maxContextRunes = 14000
	emptyContext    = "No relevant documents found in the knowledge base."
)

// BuildMessages composes the system instruction, numbered context blocks and
// the question. Blocks are truncated and dropped once the context budget is
// spent; the first block is always kept.
func BuildMessages(systemPrompt, query string, chunks, titles []string) []Message {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: "Context information is below.\n\n" + formatContext(chunks, titles) +
			"\n\nGiven the context information and not prior knowledge, answer the question: " + query},
	}
}

func formatContext(chunks, titles []string) string {
	var blocks []string
	used := 0
	for i, chunk := range chunks {
		title := fmt.Sprintf("Untitled %d", i+1)
		if i < len(titles) && titles[i] != "" {
			title = titles[i]
		}
		block := fmt.Sprintf("[Document %d: %s]\n%s\n[End of Document %d]", i+1, title, truncateRunes(chunk, maxBlockRunes), i+1)
		n := len([]rune(block))
		if used+n > maxContextRunes && len(blocks) > 0 {
			break
		}
		blocks = append(blocks, block)
		used += n
	}
	if len(blocks) == 0 {
		return emptyContext
	}
	return strings.Join(blocks, "\n\n")
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

// Citations de-duplicates titles while keeping first-seen order.
func Citations(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
