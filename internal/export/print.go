package export

import (
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/okian/tally/internal/domain/model"
)

// DefaultMarker replaces voter ids in the print document.
const DefaultMarker = "#####"

// PrintVote is one redacted mined vote.
type PrintVote struct {
	VoterID    string           `json:"voter_id"`
	Selections []PrintSelection `json:"selections"`
}

// PrintSelection is the text of one role's choices.
type PrintSelection struct {
	Role model.Role `json:"role"`
	Text string     `json:"text"`
}

// PrintPrecinct lists the mined votes of one precinct.
type PrintPrecinct struct {
	Precinct string      `json:"precinct"`
	Votes    []PrintVote `json:"votes"`
}

// PrintDocument is the print-ready view: redacted mined votes per precinct
// and one results table per role in leaderboard order. Pending votes never
// appear.
type PrintDocument struct {
	Title     string                `json:"title"`
	Precincts []PrintPrecinct       `json:"precincts"`
	Results   []model.RoleStandings `json:"results"`
}

// NewPrintDocument builds the print document from the current groups and
// leaderboard. Precincts without mined votes are left out, as are roles with
// neither standings nor unrostered names.
func NewPrintDocument(groups []model.PrecinctGroup, lb model.Leaderboard, marker string) PrintDocument {
	if marker == "" {
		marker = DefaultMarker
	}
	doc := PrintDocument{
		Title:     "Barangay Tally",
		Precincts: make([]PrintPrecinct, 0, len(groups)),
		Results:   make([]model.RoleStandings, 0, len(lb.Roles)),
	}
	for _, rs := range lb.Roles {
		if len(rs.Standings) == 0 && len(rs.Unrostered) == 0 {
			continue
		}
		doc.Results = append(doc.Results, rs)
	}
	for _, g := range groups {
		if len(g.Mined) == 0 {
			continue
		}
		pp := PrintPrecinct{Precinct: g.Precinct, Votes: make([]PrintVote, 0, len(g.Mined))}
		for _, v := range g.Mined {
			pv := PrintVote{VoterID: marker, Selections: make([]PrintSelection, 0, len(model.Roles))}
			for _, role := range model.Roles {
				pv.Selections = append(pv.Selections, PrintSelection{Role: role, Text: SelectionText(v, role)})
			}
			pp.Votes = append(pp.Votes, pv)
		}
		doc.Precincts = append(doc.Precincts, pp)
	}
	return doc
}

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
h1, h2, h3 { text-align: center; }
table { width: 100%; border-collapse: collapse; margin: 10px 0; }
th, td { border: 1px solid #ccc; padding: 8px; text-align: left; }
th { background-color: #f0f0f0; }
.vote { border: 1px solid #ddd; padding: 10px; margin: 10px 0; }
.unrostered td { font-style: italic; }
</style></head>
<body>
<h1>{{.Title}}</h1>
<h2>All Votes (Masked)</h2>
{{range .Precincts}}<h3>Barangay: {{.Precinct}}</h3>
{{range .Votes}}<div class="vote">
<div><strong>Voter ID:</strong> {{.VoterID}}</div>
{{range .Selections}}<div><strong>{{.Role}}:</strong> {{.Text}}</div>
{{end}}</div>
{{end}}{{end}}<h2>Overall Results</h2>
{{range .Results}}<h3>{{.Role}}</h3>
<table><thead><tr><th>Candidate</th><th>Votes</th></tr></thead><tbody>
{{range .Standings}}<tr><td>{{.Candidate}}</td><td>{{.Votes}}</td></tr>
{{end}}{{range .Unrostered}}<tr class="unrostered"><td>{{.Candidate}} (not on roster)</td><td>{{.Votes}}</td></tr>
{{end}}</tbody></table>
{{end}}</body></html>
`))

// WriteHTML renders the document as a standalone print page.
func (d PrintDocument) WriteHTML(w io.Writer) error {
	if err := printTemplate.Execute(w, d); err != nil {
		return fmt.Errorf("export: render html: %w", err)
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	countStyle  = cellStyle.Align(lipgloss.Right)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// WriteTable renders one bordered table per role for the terminal.
func (d PrintDocument) WriteTable(w io.Writer) error {
	for i, rs := range d.Results {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Candidate", "Votes").
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle
				case col == 1:
					return countStyle
				default:
					return cellStyle
				}
			})
		for _, s := range rs.Standings {
			t.Row(s.Candidate, strconv.Itoa(s.Votes))
		}
		for _, s := range rs.Unrostered {
			t.Row(s.Candidate+" (not on roster)", strconv.Itoa(s.Votes))
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(rs.Role.String()), t.Render()); err != nil {
			return fmt.Errorf("export: write table: %w", err)
		}
	}
	return nil
}
