package ui

import (
	"fmt"
	"io"

	"github.com/BioHazard786/SyncPlayer/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RoomInfo is the invite box shown by the host.
type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func (r RoomInfo) View() string {
	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room ready\n\n%s Room ID:    %s\n%s Join link:  %s",
		IconRoom,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconLink, MutedStyle.Render(r.RoomLink),
	)
	return box.Render(content)
}

// Status is a snapshot of a running session for the status table.
type Status struct {
	Room       string
	Role       string
	State      string
	Position   float64
	Paused     bool
	LocalFile  string
	RemoteFile string
	Peer       string
}

func StatusView(s Status) string {
	playback := IconPlay + " playing"
	if s.Paused {
		playback = IconPause + " paused"
	}
	rows := [][]string{
		{"Room", s.Room},
		{"Role", s.Role},
		{"State", s.State},
		{"Playback", fmt.Sprintf("%s at %s", playback, utils.FormatPosition(s.Position))},
		{"Your file", orDash(s.LocalFile)},
		{"Peer file", orDash(s.RemoteFile)},
	}
	if s.Peer != "" {
		rows = append(rows, []string{"Peer", s.Peer})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return tableCellStyle.Foreground(Muted)
			}
			if row%2 == 0 {
				return TableRowStyle
			}
			return TableRowAltStyle
		}).
		Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return utils.TruncateString(s, 40)
}

// CandidateRow is one mailbox candidate as shown by inspect.
type CandidateRow struct {
	Index    int
	Type     string
	Protocol string
	Address  string
	Mid      string
}

// Inspection is the mailbox content of one room.
type Inspection struct {
	RoomID     string
	Offer      string
	Answer     string
	Candidates []CandidateRow
	ChatLines  int
}

// RenderInspection writes the room as go-pretty tables.
func RenderInspection(w io.Writer, in Inspection) {
	// Outside the table: a go-pretty title wraps at the table width.
	fmt.Fprintf(w, "%s Room %s\n", IconRoom, in.RoomID)

	summary := prettytable.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(prettytable.StyleRounded)
	summary.AppendRows([]prettytable.Row{
		{"Offer", orDash(in.Offer)},
		{"Answer", orDash(in.Answer)},
		{"Candidates", len(in.Candidates)},
		{"Chat lines", in.ChatLines},
	})
	summary.SetColumnConfigs([]prettytable.ColumnConfig{
		{Number: 1, Colors: text.Colors{text.Bold}},
	})
	summary.Render()

	if len(in.Candidates) == 0 {
		return
	}

	cands := prettytable.NewWriter()
	cands.SetOutputMirror(w)
	cands.SetStyle(prettytable.StyleRounded)
	cands.AppendHeader(prettytable.Row{"#", "Type", "Protocol", "Address", "Mid"})
	for _, c := range in.Candidates {
		cands.AppendRow(prettytable.Row{c.Index, c.Type, c.Protocol, c.Address, c.Mid})
	}
	cands.SetColumnConfigs([]prettytable.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	cands.Render()
}
