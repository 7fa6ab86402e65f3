package query

import (
	"fmt"
	"strings"

	"github.com/stratagraph/strata/pkg/common"
)

// FormatContext renders a retrieval result as the prompt context block
// consumed by downstream answer generation: the seed labels as core
// concepts, then one line per relationship. An empty subgraph renders an
// empty string.
func FormatContext(sub *common.Subgraph) string {
	if sub == nil || len(sub.Nodes) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("### Core Concepts\n")
	b.WriteString(strings.Join(sub.Seeds, ", "))
	b.WriteString("\n")

	if len(sub.Edges) > 0 {
		b.WriteString("\n### Knowledge Graph Paths\n")
		for _, e := range sub.Edges {
			if e.Context != "" {
				fmt.Fprintf(&b, "- %s --[%s]--> %s (Context: %s)\n", e.Source, e.Relation, e.Target, e.Context)
			} else {
				fmt.Fprintf(&b, "- %s --[%s]--> %s\n", e.Source, e.Relation, e.Target)
			}
		}
	}

	return b.String()
}
