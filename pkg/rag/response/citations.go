package response

import (
	"fmt"
	"strings"

	"ai-helpdesk-be/pkg/store"
)

// MaxCitations bounds how many sources are appended to an answer
const MaxCitations = 3

// WithCitations appends up to MaxCitations numbered sources to answer.
// Passages without a filename are labelled "Document N".
func WithCitations(answer string, retrieved []store.RetrievalResult) string {
	if len(retrieved) == 0 {
		return answer
	}

	var sb strings.Builder
	sb.WriteString(answer)
	sb.WriteString("\n\nSources:")
	for i, r := range retrieved {
		if i >= MaxCitations {
			break
		}
		name := r.Filename()
		if name == "" {
			name = fmt.Sprintf("Document %d", i+1)
		}
		sb.WriteString(fmt.Sprintf("\n[%d] %s", i+1, name))
	}
	return sb.String()
}
