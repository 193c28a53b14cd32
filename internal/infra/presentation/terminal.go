package presentation

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/infra/i18n"
)

var _ adapter.PresentationSink = (*TerminalSink)(nil)

const flashWidth = 44

// TerminalSink draws the door display: a green or red flash bar on
// conclusion, a status line otherwise, and the holder's details on approval.
type TerminalSink struct {
	mu sync.Mutex
	w  io.Writer
	tr *i18n.Translator

	pass    lipgloss.Style
	fail    lipgloss.Style
	status  lipgloss.Style
	details lipgloss.Style
}

func NewTerminalSink(w io.Writer, tr *i18n.Translator) *TerminalSink {
	r := lipgloss.NewRenderer(w)
	bar := r.NewStyle().Bold(true).Padding(1, 2).Width(flashWidth).Align(lipgloss.Center)
	return &TerminalSink{
		w:       w,
		tr:      tr,
		pass:    bar.Background(lipgloss.Color("#1b873f")).Foreground(lipgloss.Color("#ffffff")),
		fail:    bar.Background(lipgloss.Color("#c62828")).Foreground(lipgloss.Color("#ffffff")),
		status:  r.NewStyle().Faint(true).Italic(true),
		details: r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(flashWidth),
	}
}

func (s *TerminalSink) Publish(_ context.Context, ev model.Event) {
	out := s.Render(ev)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, out)
}

// Render returns the block printed for ev.
func (s *TerminalSink) Render(ev model.Event) string {
	msg := localize(s.tr, ev)
	if !ev.Kind.Terminal() {
		return s.status.Render(msg)
	}
	style := s.fail
	if ev.Success {
		style = s.pass
	}
	blocks := []string{style.Render(msg)}
	if ev.Success && ev.Record != nil {
		blocks = append(blocks, s.details.Render(s.holderLines(ev.Record)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (s *TerminalSink) holderLines(rec *model.TicketRecord) string {
	t := func(key, v string) string {
		if s.tr == nil {
			return strings.ToUpper(key[:1]) + key[1:] + ": " + v
		}
		return s.tr.T(key, v)
	}
	var lines []string
	if rec.Key != "" {
		lines = append(lines, t("key", rec.Key))
	}
	lines = append(lines, t("holder", rec.Name))
	if rec.Number != "" {
		lines = append(lines, t("number", rec.Number))
	}
	if rec.Email != "" {
		lines = append(lines, t("email", rec.Email))
	}
	return strings.Join(lines, "\n")
}
