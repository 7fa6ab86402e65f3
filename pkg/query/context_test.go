package query

import (
	"testing"

	"github.com/stratagraph/strata/pkg/common"
)

func TestFormatContext(t *testing.T) {
	tests := []struct {
		name string
		sub  *common.Subgraph
		want string
	}{
		{
			name: "nil subgraph",
			sub:  nil,
			want: "",
		},
		{
			name: "empty subgraph",
			sub:  &common.Subgraph{Nodes: []*common.Node{}, Edges: []*common.Edge{}},
			want: "",
		},
		{
			name: "nodes without edges",
			sub: &common.Subgraph{
				Seeds: []string{"Alpha"},
				Nodes: []*common.Node{{ID: "Alpha"}},
				Edges: []*common.Edge{},
			},
			want: "### Core Concepts\nAlpha\n",
		},
		{
			name: "edges with and without context",
			sub: &common.Subgraph{
				Seeds: []string{"Alpha Service", "Beta Cache"},
				Nodes: []*common.Node{
					{ID: "Alpha Service"},
					{ID: "Beta Cache"},
					{ID: "Epsilon Monitor"},
				},
				Edges: []*common.Edge{
					{Source: "Alpha Service", Relation: "routes to", Target: "Beta Cache", Context: "alpha routes beta"},
					{Source: "Alpha Service", Relation: "reports to", Target: "Epsilon Monitor"},
				},
			},
			want: "### Core Concepts\n" +
				"Alpha Service, Beta Cache\n" +
				"\n" +
				"### Knowledge Graph Paths\n" +
				"- Alpha Service --[routes to]--> Beta Cache (Context: alpha routes beta)\n" +
				"- Alpha Service --[reports to]--> Epsilon Monitor\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatContext(tt.sub); got != tt.want {
				t.Errorf("FormatContext() = %q, want %q", got, tt.want)
			}
		})
	}
}
