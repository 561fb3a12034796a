package avdl

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies a Diagnostic as fatal or advisory (spec §7).
type Severity int

// Severity levels.
const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic carries a source span, a message, and an optional short label
// used for the source underline (spec §7: "Every diagnostic carries: a
// source span ..., a message, and optionally a shorter label").
type Diagnostic struct {
	Span     SourceSpan
	Severity Severity
	Message  string
	Label    string
}

// Fatal reports whether this diagnostic halts the current phase.
func (d Diagnostic) Fatal() bool { return d.Severity == SeverityError }

// Diagnostics accumulates diagnostics across a compilation. Phases append to
// a shared accumulator; the driver checks HasFatal after each phase (spec
// §7 propagation policy: "after a phase, if any fatal diagnostics were
// produced, later phases are skipped").
type Diagnostics struct {
	items []Diagnostic
}

// Error appends a fatal diagnostic.
func (d *Diagnostics) Error(span SourceSpan, label, format string, args ...any) {
	d.items = append(d.items, Diagnostic{
		Span: span, Severity: SeverityError, Label: label, Message: fmt.Sprintf(format, args...),
	})
}

// Warning appends a non-fatal diagnostic.
func (d *Diagnostics) Warning(span SourceSpan, label, format string, args ...any) {
	d.items = append(d.items, Diagnostic{
		Span: span, Severity: SeverityWarning, Label: label, Message: fmt.Sprintf(format, args...),
	})
}

// Append merges another Diagnostics' items in.
func (d *Diagnostics) Append(other *Diagnostics) {
	if other == nil {
		return
	}
	d.items = append(d.items, other.items...)
}

// HasFatal reports whether any accumulated diagnostic is fatal.
func (d *Diagnostics) HasFatal() bool {
	for _, item := range d.items {
		if item.Fatal() {
			return true
		}
	}
	return false
}

// All returns every accumulated diagnostic, ordered by source span when
// spans are comparable (same file), else in phase (insertion) order — spec
// §7: "in source order when spans are available, else in phase order".
func (d *Diagnostics) All() []Diagnostic {
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.File != out[j].Span.File {
			return false
		}
		return out[i].Span.Start < out[j].Span.Start
	})
	return out
}

// SourceSet maps a file path to its full text, used by Render to compute
// line/column and underline a diagnostic's span.
type SourceSet map[string]string

// Render formats all accumulated diagnostics in the "file:line:col: message"
// style the CLI prints to the error stream, each followed by an underline
// when Label is set and the source text is available (spec §6: "Diagnostics
// print to the error stream with source location, short underline label,
// and top-level message").
func (d *Diagnostics) Render(sources SourceSet) string {
	var b strings.Builder
	for _, diag := range d.All() {
		line, col, lineText := locate(sources[diag.Span.File], diag.Span.Start)
		fmt.Fprintf(&b, "%s:%d:%d: %s: %s\n", diag.Span.File, line, col, diag.Severity, diag.Message)
		if lineText == "" {
			continue
		}
		b.WriteString(lineText)
		b.WriteByte('\n')
		underlineLen := diag.Span.End - diag.Span.Start
		if underlineLen < 1 {
			underlineLen = 1
		}
		b.WriteString(strings.Repeat(" ", col-1))
		b.WriteString(strings.Repeat("^", underlineLen))
		if diag.Label != "" {
			b.WriteByte(' ')
			b.WriteString(diag.Label)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// locate converts a byte offset into a 1-based line/column and returns the
// text of that line, or ("", 0, "") if src is empty (source unavailable).
func locate(src string, offset int) (line, col int, lineText string) {
	if src == "" {
		return 0, 0, ""
	}
	if offset > len(src) {
		offset = len(src)
	}
	line = 1
	lineStart := 0
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := strings.IndexByte(src[lineStart:], '\n')
	if lineEnd == -1 {
		lineText = src[lineStart:]
	} else {
		lineText = src[lineStart : lineStart+lineEnd]
	}
	col = offset - lineStart + 1
	return line, col, lineText
}
