package css

import (
	"fmt"
	"strconv"
	"strings"
)

type treeWriter struct {
	w strings.Builder
}

func (tw *treeWriter) line(depth int, format string, args ...any) {
	tw.w.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&tw.w, format, args...)
	tw.w.WriteByte('\n')
}

func quoted(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}

// Dump returns indented text representation of parsed stylesheet with node
// offsets, handy when parsing result has to be investigated.
func (s *Stylesheet) Dump() string {
	tw := &treeWriter{}
	tw.line(0, "stylesheet: %d bytes, %d nodes", len(s.Source), len(s.Nodes))
	s.Walk(func(n Node, parents []Node) bool {
		depth := len(parents) + 1
		start, end := n.Span()
		switch v := n.(type) {
		case *AtRule:
			tw.line(depth, "@%s [%d:%d] prelude: %s", v.Name, start, end, quoted(strings.TrimSpace(joinTokens(v.Prelude))))
		case *Rule:
			tw.line(depth, "rule [%d:%d] selector: %s", start, end, quoted(v.Selector))
		case *Declaration:
			important := ""
			if v.Important {
				important = " !important"
			}
			tw.line(depth, "%s [%d:%d]: %s%s", v.Property, start, end, quoted(v.Text()), important)
		}
		return true
	})
	return tw.w.String()
}
