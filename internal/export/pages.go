// Package export renders the current view into paginated text, a print
// document and a compressed archive. Every export works from data that was
// already grouped and tallied; nothing here talks to the service.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/okian/tally/internal/domain/model"
)

// Layout positions lines on a page in abstract vertical units. No line is
// placed below MaxOffset; the line that would be is carried to a new page.
type Layout struct {
	TopOffset    int
	LineHeight   int
	HeaderHeight int
	MaxOffset    int
}

// DefaultLayout fits about 44 vote lines on a page.
func DefaultLayout() Layout {
	return Layout{TopOffset: 10, LineHeight: 6, HeaderHeight: 8, MaxOffset: 270}
}

// Line is one positioned line of text.
type Line struct {
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}

// Page is one page of the paginated export, numbered from 1.
type Page struct {
	Number int    `json:"number"`
	Lines  []Line `json:"lines"`
}

// pager accumulates lines. Pages are opened by the first line written to
// them, so a break requested at the end of the input never leaves a blank page.
type pager struct {
	layout    Layout
	pages     []Page
	y         int
	breakNext bool
}

func (p *pager) newPage() {
	p.pages = append(p.pages, Page{Number: len(p.pages) + 1})
	p.y = p.layout.TopOffset
	p.breakNext = false
}

// ensureRoom opens a page when none is open, a break was requested, or the
// next line would sit past MaxOffset.
func (p *pager) ensureRoom() {
	if len(p.pages) == 0 || p.breakNext || p.y > p.layout.MaxOffset {
		p.newPage()
	}
}

func (p *pager) emit(text string, advance int) {
	p.ensureRoom()
	cur := &p.pages[len(p.pages)-1]
	cur.Lines = append(cur.Lines, Line{Offset: p.y, Text: text})
	p.y += advance
}

// Pages lays out each group starting on a fresh page: the precinct header,
// its mined votes, a blank gap, then its pending votes.
func Pages(layout Layout, groups []model.PrecinctGroup) []Page {
	p := &pager{layout: layout}
	for _, g := range groups {
		p.breakNext = len(p.pages) > 0
		p.emit("Barangay: "+g.Precinct, layout.HeaderHeight)
		p.emit("Mined Votes:", layout.LineHeight)
		for _, v := range g.Mined {
			p.emit(VoteLine(v), layout.LineHeight)
		}
		p.emit("", layout.LineHeight)
		p.emit("Pending Votes:", layout.LineHeight)
		for _, v := range g.Pending {
			p.emit(VoteLine(v), layout.LineHeight)
		}
	}
	return p.pages
}

// VoteLine formats a vote as
// "Voter: <id> | Mayor: <x> | Vice Mayor: <y> | Councilor: <a, b>".
// An empty multi-select role prints "None".
func VoteLine(v model.Vote) string {
	var b strings.Builder
	b.WriteString("Voter: ")
	b.WriteString(v.VoterID)
	for _, role := range model.Roles {
		b.WriteString(" | ")
		b.WriteString(role.String())
		b.WriteString(": ")
		b.WriteString(SelectionText(v, role))
	}
	return b.String()
}

// SelectionText joins the choices of role. Empty multi-select roles read
// "None"; empty single-select roles are blank.
func SelectionText(v model.Vote, role model.Role) string {
	choices := v.Choices(role)
	if len(choices) == 0 && role.Policy() == model.MultiSelect {
		return "None"
	}
	return strings.Join(choices, ", ")
}

// WriteText writes pages as plain text, separating pages with a form feed.
func WriteText(w io.Writer, pages []Page) error {
	bw := bufio.NewWriter(w)
	for i, page := range pages {
		if i > 0 {
			if _, err := bw.WriteString("\f"); err != nil {
				return fmt.Errorf("export: write page break: %w", err)
			}
		}
		for _, line := range page.Lines {
			if _, err := bw.WriteString(line.Text + "\n"); err != nil {
				return fmt.Errorf("export: write page %d: %w", page.Number, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}
