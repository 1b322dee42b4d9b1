package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	key    lipgloss.Style
	dim    lipgloss.Style
}

// newStyles returns colored styles when w is a terminal.
func newStyles(w io.Writer, noColor bool) styles {
	plain := lipgloss.NewStyle()
	s := styles{title: plain.Bold(true), header: plain.Bold(true), cell: plain.Padding(0, 1), key: plain, dim: plain}
	s.header = s.header.Padding(0, 1)
	if noColor || !isTerminal(w) {
		return s
	}
	s.title = s.title.Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	s.header = s.header.Foreground(lipgloss.Color("#87CEEB"))
	s.key = s.key.Foreground(lipgloss.Color("#98FB98"))
	s.dim = s.dim.Foreground(lipgloss.Color("#666666"))
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s styles) table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.dim).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.cell
		}).
		String()
}
