package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/schema"
	"github.com/conduit-lang/docmap/internal/orm/validation"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a formatted CLI message.
//
//	❌ UNKNOWN CLASS: Persn
//	   Persn: unknown document class
//
//	   Did you mean: Person?
//
//	   → docmap schema
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Details     []string
	Suggestions []string
	Hints       []string
}

// Format renders the message
func (m Message) Format(noColor bool) string {
	var b strings.Builder

	var header, body *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		header, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "⚠️"
	case LevelInfo:
		header, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "ℹ️"
	default:
		header, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "❌"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if noColor {
		for _, c := range []*color.Color{header, body, yellow, cyan} {
			c.DisableColor()
		}
	}

	if m.Context != "" {
		header.Fprintf(&b, "%s %s\n", symbol, strings.ToUpper(m.Context))
		if m.Problem != "" {
			body.Fprintf(&b, "   %s\n", m.Problem)
		}
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	for _, d := range m.Details {
		body.Fprintf(&b, "   - %s\n", d)
	}
	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.Hints) > 0 {
		b.WriteString("\n")
		for _, h := range m.Hints {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Write writes the formatted message to w
func (m Message) Write(w io.Writer, noColor bool) {
	fmt.Fprint(w, m.Format(noColor))
}

// Success writes a success line to w
func Success(w io.Writer, noColor bool, format string, args ...any) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	green.Fprintf(w, "✓ "+format+"\n", args...)
}

// Describe turns an error into a message. classes are the registered class
// names used for suggestions.
func Describe(err error, classes []string) Message {
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		m := Message{Context: "validation failed", Problem: verrs.Class + " has invalid fields"}
		for _, fe := range verrs.Fields() {
			m.Details = append(m.Details, fe.Error())
		}
		return m
	}

	var ce *schema.ConfigError
	if errors.As(err, &ce) {
		m := Message{Context: "configuration error", Problem: firstLine(ce.Error())}
		if ce.Hint != "" {
			m.Hints = append(m.Hints, ce.Hint)
		}
		switch {
		case errors.Is(ce, schema.ErrUnknownClass):
			m.Context = "unknown class"
			m.Suggestions = Suggest(ce.Class, classes)
			m.Hints = append(m.Hints, "docmap schema")
		case errors.Is(ce, schema.ErrNotBound):
			m.Hints = append(m.Hints, "check database.uri in docmap.yaml")
		}
		return m
	}

	switch {
	case errors.Is(err, engine.ErrNotFound):
		return Message{Level: LevelWarning, Problem: "no matching document"}
	case errors.Is(err, engine.ErrDuplicateKey):
		return Message{Context: "duplicate key", Problem: err.Error()}
	case errors.Is(err, engine.ErrNotConnected):
		return Message{Context: "not connected", Problem: err.Error(), Hints: []string{"check database.uri in docmap.yaml"}}
	}
	return Message{Problem: err.Error()}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
