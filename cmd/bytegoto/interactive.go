package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/internal/scan"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	gotoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type pane int

const (
	paneMarkers pane = iota
	paneSource
	panePatched
	paneCount
)

func (p pane) String() string {
	switch p {
	case paneMarkers:
		return "markers"
	case paneSource:
		return "source"
	case panePatched:
		return "patched"
	}
	return "?"
}

// chrome is the number of lines taken by the header and help line.
const chrome = 4

type viewerModel struct {
	results []result
	view    viewport.Model
	file    int
	pane    pane
	ready   bool
}

func newViewerModel(results []result, width, height int) *viewerModel {
	m := &viewerModel{results: results}
	if width > 0 && height > chrome {
		m.view = viewport.New(width, height-chrome)
		m.ready = true
		m.refresh()
	}
	return m
}

func (m *viewerModel) Init() tea.Cmd {
	return nil
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.pane = (m.pane + 1) % paneCount
			m.refresh()
			return m, nil
		case "shift+tab":
			m.pane = (m.pane + paneCount - 1) % paneCount
			m.refresh()
			return m, nil
		case "right", "l":
			if m.file < len(m.results)-1 {
				m.file++
				m.refresh()
			}
			return m, nil
		case "left", "h":
			if m.file > 0 {
				m.file--
				m.refresh()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.view = viewport.New(msg.Width, msg.Height-chrome)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = msg.Height - chrome
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *viewerModel) refresh() {
	if !m.ready || len(m.results) == 0 {
		return
	}
	m.view.SetContent(m.content())
	m.view.GotoTop()
}

func (m *viewerModel) content() string {
	res := m.results[m.file]
	switch m.pane {
	case paneSource:
		return listing(res.in)
	case panePatched:
		return listing(res.out)
	}
	return markers(res)
}

func (m *viewerModel) View() string {
	if len(m.results) == 0 {
		return "Nothing to show.\n"
	}
	if !m.ready {
		return "Loading..."
	}
	res := m.results[m.file]

	var b strings.Builder
	b.WriteString(titleStyle.Render("bytegoto"))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%s (%d/%d)", res.path, m.file+1, len(m.results)))
	b.WriteString("\n")
	for p := range paneCount {
		style := tabStyle
		if p == m.pane {
			style = activeTabStyle
		}
		b.WriteString(style.Render(p.String()))
	}
	b.WriteString("\n\n")
	b.WriteString(m.view.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab pane • ←/→ file • ↑/↓ scroll • q quit"))
	return b.String()
}

func listing(r *code.Routine) string {
	s, err := code.Disassemble(r)
	if err != nil {
		return warnStyle.Render(fmt.Sprintf("Error: %v", err))
	}
	return s
}

// markers renders the labels and gotos of the source routine with the
// block stacks the scanner saw around them.
func markers(res result) string {
	sr, err := scan.Scan(res.in, zap.NewNop())
	if err != nil {
		return warnStyle.Render(fmt.Sprintf("Error: %v", err))
	}
	labels := make([]*scan.Label, 0, len(sr.Labels))
	for _, l := range sr.Labels {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Start < labels[j].Start })

	var b strings.Builder
	rep := res.rep
	fmt.Fprintf(&b, "%s: %d exits, %d entries, %d inline, %d trampolines\n\n",
		rep.Routine, rep.Exits, rep.Entries, rep.Inline, rep.Trampolines)
	for _, l := range labels {
		b.WriteString(labelStyle.Render(fmt.Sprintf("label .%s", l.Name)))
		fmt.Fprintf(&b, " @%d  %s\n", l.Start, sr.Describe(l.Stack))
	}
	if len(labels) > 0 {
		b.WriteString("\n")
	}
	for _, g := range sr.Gotos {
		kind := "goto"
		switch {
		case g.Multi:
			kind = "goto.params"
		case g.HasParams:
			kind = "goto.param"
		}
		b.WriteString(gotoStyle.Render(fmt.Sprintf("%s .%s", kind, g.Label)))
		fmt.Fprintf(&b, " @%d  %s\n", g.Start, sr.Describe(g.Stack))
	}
	for _, w := range sr.Warnings {
		b.WriteString(warnStyle.Render("warning " + w.String()))
		b.WriteString("\n")
	}
	return b.String()
}

func runInteractive(log *zap.Logger, cfg Config, paths []string) error {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	results, err := patchFiles(log, cfg, paths)
	if err != nil {
		return err
	}
	width, height, err := term.GetSize(fd)
	if err != nil {
		width, height = 0, 0
	}
	p := tea.NewProgram(newViewerModel(results, width, height), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
