package retrieval

import (
	"strings"

	"mercator-hq/saturn/pkg/providers"
)

// ContextHeader opens the system message built from retrieved chunks.
const ContextHeader = "Retrieved context chunks:"

// BuildContext renders chunks as a system message, one "[chunk_id] text"
// line per chunk.
func BuildContext(chunks []Chunk) providers.Message {
	var b strings.Builder
	b.WriteString(ContextHeader)
	for _, c := range chunks {
		b.WriteString("\n[")
		b.WriteString(c.ChunkID)
		b.WriteString("] ")
		b.WriteString(c.Text)
	}
	return providers.Message{Role: providers.RoleSystem, Content: b.String()}
}

// Citations returns one citation per chunk, in order.
func Citations(chunks []Chunk) []Citation {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]Citation, len(chunks))
	for i, c := range chunks {
		out[i] = Citation{
			SourceID:    c.SourceID,
			ConnectorID: c.ConnectorID,
			URI:         c.URI,
			ChunkID:     c.ChunkID,
			Score:       c.Score,
		}
	}
	return out
}

// LastUserMessage returns the content of the last user message, or of the
// last message when there is none. It is the retrieval query.
func LastUserMessage(messages []providers.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == providers.RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}
