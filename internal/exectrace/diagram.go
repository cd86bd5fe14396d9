package exectrace

// Message is one directed edge of a causal diagram.
type Message struct {
	StepID int    `json:"stepId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Kind   Kind   `json:"kind"`
	Label  string `json:"label"`
}

// Diagram is the who-told-whom view of a trace.
type Diagram struct {
	// Participants in order of first appearance.
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
	// Orphans lists tool-call-issued step ids that never got a completion or
	// error reported back to their actor.
	Orphans []int `json:"orphans,omitempty"`
}

// BuildDiagram derives the participants, messages and unanswered requests of
// a trace. Steps without both an actor and a target are not messages.
func BuildDiagram(steps []Step) Diagram {
	var d Diagram
	seen := make(map[string]bool)
	addParticipant := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		d.Participants = append(d.Participants, name)
	}

	// Open requests per issuing actor, answered first-in first-out.
	open := make(map[string][]int)
	var order []string

	for _, s := range steps {
		addParticipant(s.Actor)
		addParticipant(s.Target)
		if s.Actor != "" && s.Target != "" {
			d.Messages = append(d.Messages, Message{
				StepID: s.ID,
				From:   s.Actor,
				To:     s.Target,
				Kind:   s.Kind,
				Label:  s.Content,
			})
		}

		switch s.Kind {
		case KindToolCallIssued:
			if _, ok := open[s.Actor]; !ok {
				order = append(order, s.Actor)
			}
			open[s.Actor] = append(open[s.Actor], s.ID)
		case KindToolCallCompleted, KindError:
			if pending := open[s.Target]; len(pending) > 0 {
				open[s.Target] = pending[1:]
			}
		}
	}

	for _, actor := range order {
		d.Orphans = append(d.Orphans, open[actor]...)
	}
	return d
}
