package diag

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const (
	colorError = "\033[1;31m"
	colorNote  = "\033[1;34m"
	colorReset = "\033[0m"
	tabWidth   = 4
)

// Formatter renders diagnostics against the source they were produced from.
type Formatter struct {
	Source   string
	Filename string
	Color    bool
}

// Format renders err. Diagnostics get the description, the file and line,
// the source line and a caret underline; any other error renders as its
// message.
func (f Formatter) Format(err error) string {
	d, ok := AsError(err)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	f.paint(&sb, colorError, d.Message)
	sb.WriteString("\n")

	if d.Anchor == nil {
		return sb.String()
	}
	f.block(&sb, d.Anchor.Primary())

	if dual, ok := d.Anchor.(Dual); ok {
		f.paint(&sb, colorNote, "previously declared here")
		sb.WriteString("\n")
		f.block(&sb, dual.Previous)
	}
	return sb.String()
}

func (f Formatter) block(sb *strings.Builder, span Span) {
	line, lineStart, lineEnd := f.locate(span.Start)

	sb.WriteString("File ")
	sb.WriteString(f.Filename)
	sb.WriteString(", line ")
	sb.WriteString(strconv.Itoa(line))
	sb.WriteString("\n")

	text := expandTabs(ansi.Strip(f.Source[lineStart:lineEnd]))
	sb.WriteString("\t")
	sb.WriteString(text)
	sb.WriteString("\n")

	start := clamp(span.Start, lineStart, lineEnd)
	end := clamp(span.End, start, lineEnd)
	pad := ansi.StringWidth(expandTabs(f.Source[lineStart:start]))
	width := ansi.StringWidth(expandTabs(f.Source[start:end]))
	if width < 1 {
		width = 1
	}

	sb.WriteString("\t")
	sb.WriteString(strings.Repeat(" ", pad))
	f.paint(sb, colorError, strings.Repeat("^", width))
	sb.WriteString("\n")
}

// locate returns the 1-based line holding offset and that line's byte range.
func (f Formatter) locate(offset int) (line, start, end int) {
	offset = clamp(offset, 0, len(f.Source))
	line = 1 + strings.Count(f.Source[:offset], "\n")
	start = strings.LastIndexByte(f.Source[:offset], '\n') + 1
	end = strings.IndexByte(f.Source[offset:], '\n')
	if end < 0 {
		end = len(f.Source)
	} else {
		end += offset
	}
	if end > start && f.Source[end-1] == '\r' {
		end--
	}
	return line, start, end
}

func (f Formatter) paint(sb *strings.Builder, color, text string) {
	if f.Color {
		sb.WriteString(color)
		sb.WriteString(text)
		sb.WriteString(colorReset)
		return
	}
	sb.WriteString(text)
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
