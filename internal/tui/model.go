// Package tui is the terminal front-end: a menu tree over one core.Session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JonMunkholm/PreChart2DB/internal/config"
	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
	"github.com/JonMunkholm/PreChart2DB/internal/importer"
)

type mode int

const (
	modeMenu mode = iota
	modePrompt
	modeText
	modeGrid
)

// Messages returned by async commands.
type (
	WdMsg   string
	DoneMsg string
	ErrMsg  struct{ Err error }

	resultMsg dbsync.Result
)

// Model is the bubbletea model of the terminal UI.
type Model struct {
	service *core.Service
	sess    *core.Session
	cfg     *config.Config
	opts    importer.Options

	menu   *Menu
	cursor int
	mode   mode

	input    textinput.Model
	prompt   string
	submit   func(m *Model, value string) tea.Cmd
	onCancel func(m *Model)

	title  string
	lines  []string
	scroll int

	busy      bool
	status    string
	statusErr bool

	initialFile   string
	width, height int
}

// New creates a model working on a fresh session of svc.
func New(svc *core.Service, cfg *config.Config) Model {
	ti := textinput.New()
	ti.CharLimit = 1024
	ti.Width = 60

	return Model{
		service: svc,
		sess:    svc.Sessions().Create(),
		cfg:     cfg,
		menu:    buildMenuTree(),
		input:   ti,
		opts: importer.Options{
			Delimiter: importer.DefaultDelimiter,
			Encoding:  importer.DefaultEncoding,
		},
	}
}

// WithFile makes the model load path on start.
func (m Model) WithFile(path string) Model {
	m.initialFile = path
	m.busy = path != ""
	return m
}

// Run starts the terminal UI and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, svc *core.Service, cfg *config.Config, path string) error {
	p := tea.NewProgram(New(svc, cfg).WithFile(path), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	if m.initialFile != "" {
		return m.loadFile(m.initialFile)
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modePrompt:
			return m.updatePrompt(msg)
		case modeText, modeGrid:
			return m.updateViewer(msg), nil
		default:
			return m.updateMenu(msg)
		}

	case WdMsg:
		m.setStatus(string(msg), false)
		return m, nil

	case DoneMsg:
		m.busy = false
		m.setStatus(string(msg), false)
		return m, nil

	case ErrMsg:
		m.busy = false
		m.setStatus(core.FormatUserError(msg.Err), true)
		return m, nil

	case resultMsg:
		m.busy = false
		m.setStatus(msg.Message, !msg.Success)
		return m, nil
	}

	if m.mode == modePrompt {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.menu.Items)-1 {
			m.cursor++
		}
	case "esc", "backspace":
		if m.menu.Parent != nil {
			m.menu = m.menu.Parent
			m.cursor = 0
		}
	case "q":
		return m, tea.Quit
	case "enter":
		item := m.menu.Items[m.cursor]
		if item.Submenu != nil {
			m.menu = item.Submenu
			m.cursor = 0
			return m, nil
		}
		if item.Label == "Back" {
			// Back in the root menu has no parent.
			return m, nil
		}
		if item.Action == nil {
			return m, nil
		}
		if m.busy && item.Label != "Quit" {
			m.setStatus("Busy, wait for the current operation to finish", true)
			return m, nil
		}
		cmd := item.Action(&m)
		return m, cmd
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.onCancel != nil {
			m.onCancel(&m)
		}
		m.closePrompt()
		return m, nil
	case "enter":
		submit, value := m.submit, m.input.Value()
		m.closePrompt()
		return m, submit(&m, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateViewer(msg tea.KeyMsg) Model {
	total := len(m.lines)
	if m.mode == modeGrid {
		m.sess.View(func(st core.State) {
			if st.Table != nil {
				total = st.Table.NumRows()
			}
		})
	}
	page := m.bodyHeight()

	switch msg.String() {
	case "up", "k":
		m.scroll--
	case "down", "j":
		m.scroll++
	case "pgup":
		m.scroll -= page
	case "pgdown", " ":
		m.scroll += page
	case "home", "g":
		m.scroll = 0
	case "end", "G":
		m.scroll = total - page
	case "esc", "q", "backspace":
		m.mode = modeMenu
		m.lines = nil
		return m
	}
	m.scroll = max(0, min(m.scroll, total-1))
	return m
}

// ask switches to the prompt. submit runs with the entered value on enter.
func (m *Model) ask(label, initial string, submit func(m *Model, value string) tea.Cmd) tea.Cmd {
	m.mode = modePrompt
	m.prompt = label
	m.submit = submit
	m.onCancel = nil
	m.input.SetValue(initial)
	m.input.CursorEnd()
	m.input.Focus()
	return textinput.Blink
}

func (m *Model) closePrompt() {
	m.mode = modeMenu
	m.submit = nil
	m.onCancel = nil
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) show(title string, lines []string) {
	m.mode = modeText
	m.title = title
	m.lines = lines
	m.scroll = 0
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.status = msg
	m.statusErr = isErr
}

func (m *Model) fail(err error) {
	m.setStatus(core.FormatUserError(err), true)
}

func (m Model) bodyHeight() int {
	// Title, status bar and hints.
	return max(5, m.height-6)
}

/* ----------------------------------------
	VIEW
---------------------------------------- */

func (m Model) View() string {
	name := "PreChart2DB"
	if m.cfg != nil && m.cfg.App.Name != "" {
		name = m.cfg.App.Name
	}
	header := styleTitle.Render(name) + styleMuted.Render(m.menu.Title)

	var body, hints string
	switch m.mode {
	case modePrompt:
		body = styleBox.Render(m.prompt + "\n" + m.input.View())
		hints = "Enter: Submit │ Esc: Cancel"
	case modeText:
		body = m.viewLines(m.title, m.lines)
		hints = "↑/↓ PgUp/PgDn: Scroll │ Esc: Back"
	case modeGrid:
		body = m.viewGrid()
		hints = "↑/↓ PgUp/PgDn: Scroll │ g/G: Top/Bottom │ Esc: Back"
	default:
		body = m.viewMenu()
		hints = "↑/↓: Navigate │ Enter: Select │ Esc: Up │ q: Quit"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		body,
		"",
		m.viewStatusBar(),
		styleMuted.Render(hints),
	)
}

func (m Model) viewMenu() string {
	var b strings.Builder
	for i, item := range m.menu.Items {
		if i == m.cursor {
			b.WriteString(styleSelected.Render("> " + item.Label))
		} else {
			b.WriteString("  " + item.Label)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewLines(title string, lines []string) string {
	end := min(m.scroll+m.bodyHeight(), len(lines))
	start := min(m.scroll, end)
	return styleHeader.Render(title) + "\n" + strings.Join(lines[start:end], "\n")
}

func (m Model) viewGrid() string {
	var out string
	m.sess.View(func(st core.State) {
		if st.Table == nil {
			out = styleMuted.Render("No file loaded")
			return
		}
		title := fmt.Sprintf("%s (%d rows, rows %d-%d)", st.FileName, st.Table.NumRows(),
			m.scroll, min(m.scroll+m.bodyHeight()-2, st.Table.NumRows())-1)
		out = styleHeader.Render(title) + "\n" +
			strings.Join(renderGrid(st.Table, m.scroll, m.bodyHeight()-2), "\n")
	})
	return out
}

func (m Model) viewStatusBar() string {
	st := m.sess.Snapshot()
	left := "no file"
	if st.FileName != "" {
		left = fmt.Sprintf("%s → %s", st.FileName, dbsync.SanitizeTableName(st.TableName))
	}
	left += " @ " + st.Conn.String()

	right := m.status
	switch {
	case m.busy:
		right = "Working... " + right
	case m.statusErr:
		right = styleError.Render(right)
	case right != "":
		right = styleSuccess.Render(right)
	}

	bar := left
	if right != "" {
		pad := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
		bar += strings.Repeat(" ", pad) + right
	}
	return styleStatusBar.Render(bar)
}
