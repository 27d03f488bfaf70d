package sequence

import (
	"fmt"
	"strings"
)

// NodeSnapshot is a point-in-time copy of one node of a sequence tree.
type NodeSnapshot struct {
	Kind     string         `json:"kind" yaml:"kind"`
	Label    string         `json:"label" yaml:"label"`
	Times    string         `json:"times" yaml:"times"`
	Count    int            `json:"count" yaml:"count"`
	Complete bool           `json:"complete" yaml:"complete"`
	Closed   bool           `json:"closed,omitempty" yaml:"closed,omitempty"`
	Children []NodeSnapshot `json:"children,omitempty" yaml:"children,omitempty"`
}

// Render formats the snapshot as an indented tree, one node per line:
//
//	sequence "sequence" [at most once] count=1
//	  step "open" [once] count=1 complete
//	  loop "loop #1" [exactly 2 times] count=2
//	    step "send" [once] count=1
func (n NodeSnapshot) Render() string {
	var b strings.Builder
	n.render(&b, 0)
	return b.String()
}

func (n NodeSnapshot) render(b *strings.Builder, depth int) {
	fmt.Fprintf(b, "%s%s %q [%s] count=%d", strings.Repeat("  ", depth), n.Kind, n.Label, n.Times, n.Count)
	if n.Complete {
		b.WriteString(" complete")
	}
	b.WriteByte('\n')
	for _, child := range n.Children {
		child.render(b, depth+1)
	}
}
