// Package term renders the precinct view and leaderboards for a terminal.
package term

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/okian/tally/internal/domain/grouping"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/export"
)

// EmptyMessage is shown when the service has neither mined nor pending votes.
const EmptyMessage = "No votes recorded yet."

const cardsPerRow = 3

// Renderer writes styled views. The zero value is not usable; call New.
type Renderer struct {
	theme Theme
	now   func() time.Time

	card    lipgloss.Style
	title   lipgloss.Style
	faint   lipgloss.Style
	leader  lipgloss.Style
	pending lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTheme replaces DefaultTheme.
func WithTheme(t Theme) Option {
	return func(r *Renderer) { r.theme = t }
}

// WithClock overrides time.Now for relative timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{theme: DefaultTheme, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(r.theme.Border).
		Foreground(r.theme.NormalText).
		Padding(0, 1).
		MarginRight(1)
	r.title = lipgloss.NewStyle().Bold(true).Foreground(r.theme.Header)
	r.faint = lipgloss.NewStyle().Foreground(r.theme.FaintText)
	r.leader = lipgloss.NewStyle().Bold(true).Foreground(r.theme.Leader)
	r.pending = lipgloss.NewStyle().Foreground(r.theme.Pending)
	r.warning = lipgloss.NewStyle().Foreground(r.theme.Warning)
	r.err = lipgloss.NewStyle().Bold(true).Foreground(r.theme.Error)
	return r
}

// Summaries writes one card per precinct, a few cards per row. An empty
// list renders EmptyMessage.
func (r *Renderer) Summaries(w io.Writer, summaries []grouping.Summary, fetchedAt time.Time) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, r.faint.Render(EmptyMessage))
		return err
	}
	cards := make([]string, 0, len(summaries))
	for _, s := range summaries {
		body := []string{
			r.title.Render(s.Precinct),
			"Mined:   " + humanize.Comma(int64(s.Mined)),
			r.pending.Render("Pending: " + humanize.Comma(int64(s.Pending))),
		}
		cards = append(cards, r.card.Render(strings.Join(body, "\n")))
	}
	var rows []string
	for i := 0; i < len(cards); i += cardsPerRow {
		end := min(i+cardsPerRow, len(cards))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}
	out := lipgloss.JoinVertical(lipgloss.Left, rows...)
	if !fetchedAt.IsZero() {
		out += "\n" + r.faint.Render("updated "+humanize.RelTime(fetchedAt, r.now(), "ago", "from now"))
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

// Leaderboard writes one card per role in display order. The leading
// candidate is highlighted; candidates outside the roster are flagged.
func (r *Renderer) Leaderboard(w io.Writer, lb model.Leaderboard) error {
	cards := make([]string, 0, len(lb.Roles)+1)
	for _, rs := range lb.Roles {
		lines := []string{r.title.Render(rs.Role.String())}
		if len(rs.Standings) == 0 && len(rs.Unrostered) == 0 {
			lines = append(lines, r.faint.Render("no candidates"))
		}
		for i, s := range rs.Standings {
			line := fmt.Sprintf("%-20s %6s", s.Candidate, humanize.Comma(int64(s.Votes)))
			if i == 0 && s.Votes > 0 {
				line = r.leader.Render(line)
			}
			lines = append(lines, line)
		}
		for _, s := range rs.Unrostered {
			lines = append(lines, r.warning.Render(fmt.Sprintf("%-20s %6s  not on roster", s.Candidate, humanize.Comma(int64(s.Votes)))))
		}
		cards = append(cards, r.card.Render(strings.Join(lines, "\n")))
	}
	if len(lb.Unassigned) > 0 {
		lines := []string{r.warning.Render("Unassigned")}
		for _, s := range lb.Unassigned {
			lines = append(lines, fmt.Sprintf("%-20s %6s", s.Candidate, humanize.Comma(int64(s.Votes))))
		}
		cards = append(cards, r.card.Render(strings.Join(lines, "\n")))
	}
	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, cards...))
	return err
}

// Precinct writes the votes of one precinct followed by its leaderboard.
func (r *Renderer) Precinct(w io.Writer, g model.PrecinctGroup, lb model.Leaderboard) error {
	var b strings.Builder
	b.WriteString(r.title.Render("Barangay: "+g.Precinct) + "\n")
	b.WriteString("Mined Votes:\n")
	if len(g.Mined) == 0 {
		b.WriteString(r.faint.Render("  none") + "\n")
	}
	for _, v := range g.Mined {
		b.WriteString("  " + export.VoteLine(v) + "\n")
	}
	b.WriteString(r.pending.Render("Pending Votes:") + "\n")
	if len(g.Pending) == 0 {
		b.WriteString(r.faint.Render("  none") + "\n")
	}
	for _, v := range g.Pending {
		b.WriteString(r.pending.Render("  "+export.VoteLine(v)) + "\n")
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	return r.Leaderboard(w, lb)
}

// Notice writes a one-line message. Errors are styled as failures.
func (r *Renderer) Notice(w io.Writer, msg string, err error) error {
	if err != nil {
		_, werr := fmt.Fprintln(w, r.err.Render("✗ "+err.Error()))
		return werr
	}
	_, werr := fmt.Fprintln(w, r.leader.Render("✓ "+msg))
	return werr
}
