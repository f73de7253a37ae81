package summary

import (
	"fmt"

	"github.com/engramdb/engram/internal/store"
)

// promptFor builds the per-tier compression prompt for model-backed
// summarizers. Each tier has its own length and fidelity contract.
func promptFor(text string, target store.Tier) string {
	switch target {
	case store.TierSummary:
		return fmt.Sprintf(`Compress this memory into a short summary.

MEMORY:
%s

Rules:
- Keep the key facts and relationships
- Drop specific details and dates
- Two sentences at most
- Return ONLY the summary, no explanation`, text)

	case store.TierTag:
		return fmt.Sprintf(`Reduce this memory to topic tags.

MEMORY:
%s

Rules:
- Keep only the core topics or categories
- At most five comma-separated tags
- Generalize, do not quote the original
- Return ONLY the tags, no explanation`, text)

	case store.TierTrace:
		return fmt.Sprintf(`Reduce this memory to a faint trace.

MEMORY:
%s

Rules:
- One clause in the form "once knew something about <topic>"
- Keep only the broadest category
- Return ONLY the trace line, no explanation`, text)

	default: // archive
		return fmt.Sprintf(`Reduce this memory to an archive marker.

MEMORY:
%s

Rules:
- One line in the form "archived: <topic>"
- As short as possible
- Return ONLY the marker, no explanation`, text)
	}
}
