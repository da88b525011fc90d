package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/zenebedagim/dental-clinic-sub002/internal/client"
	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
)

var tierColors = map[models.Priority]lipgloss.Color{
	models.PriorityCritical: lipgloss.Color("196"),
	models.PriorityHigh:     lipgloss.Color("208"),
	models.PriorityNormal:   lipgloss.Color("39"),
	models.PriorityLow:      lipgloss.Color("245"),
}

// terminalSurface prints presentations as lines. Audible tiers ring the bell.
// Colours are dropped automatically when out is not a terminal.
type terminalSurface struct {
	mu    sync.Mutex
	out   io.Writer
	tags  map[models.Priority]lipgloss.Style
	title lipgloss.Style
	muted lipgloss.Style
}

func newTerminalSurface(out io.Writer) *terminalSurface {
	r := lipgloss.NewRenderer(out)
	tags := make(map[models.Priority]lipgloss.Style, len(tierColors))
	for p, c := range tierColors {
		tags[p] = r.NewStyle().Foreground(c).Bold(p == models.PriorityCritical)
	}
	return &terminalSurface{
		out:   out,
		tags:  tags,
		title: r.NewStyle().Bold(true),
		muted: r.NewStyle().Faint(true),
	}
}

func (s *terminalSurface) Show(n client.Notification, policy client.Policy) {
	tag, ok := s.tags[n.Priority]
	if !ok {
		tag = s.tags[models.PriorityNormal]
	}

	var b strings.Builder
	if policy.Audible {
		b.WriteByte('\a')
	}
	b.WriteString(tag.Render("[" + string(n.Priority) + "]"))
	b.WriteByte(' ')
	b.WriteString(s.title.Render(n.Title))
	if n.Message != "" {
		fmt.Fprintf(&b, ": %s", n.Message)
	}
	if n.ActionURL != "" {
		b.WriteString(" " + s.muted.Render("("+n.ActionURL+")"))
	}
	if policy.Sticky {
		b.WriteString(" *")
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.out, b.String())
}

func (s *terminalSurface) Hide(n client.Notification, reason client.DismissReason) {
	if reason != client.DismissTimeout {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "  %s\n", s.muted.Render("dismissed "+n.Title))
}
