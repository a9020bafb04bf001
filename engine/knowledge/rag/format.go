package rag

import (
	"fmt"
	"strings"
)

type Format string

const (
	FormatText   Format = "text"
	FormatChunks Format = "chunks"
)

func (f Format) Valid() bool {
	return f == "" || f == FormatText || f == FormatChunks
}

// formatText renders chunks as "[namespace] text" blocks separated by a
// blank line.
func formatText(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", c.Namespace, c.Text)
	}
	return b.String()
}
