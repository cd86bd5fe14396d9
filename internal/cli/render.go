package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/i2y/mcptrace/internal/exectrace"
)

const maxContentWidth = 60

func renderSteps(w io.Writer, steps []exectrace.Step) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tKIND\tFROM\tTO\tDURATION\tCONTENT")
	for _, s := range steps {
		duration := "-"
		if d, ok := s.Duration(); ok {
			duration = d.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Kind, s.Actor, dash(s.Target), duration, truncate(s.Content))
	}
	_ = tw.Flush()
}

func renderDiagram(w io.Writer, d exectrace.Diagram) {
	fmt.Fprintf(w, "participants: %s\n", strings.Join(d.Participants, ", "))
	for _, m := range d.Messages {
		arrow := "->"
		if m.Kind == exectrace.KindError {
			arrow = "-x"
		}
		fmt.Fprintf(w, "  %3d  %s %s %s: %s\n", m.StepID, m.From, arrow, m.To, truncate(m.Label))
	}
	if len(d.Orphans) > 0 {
		fmt.Fprintf(w, "unanswered requests: %v\n", d.Orphans)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxContentWidth {
		return s
	}
	return string(runes[:maxContentWidth-3]) + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
