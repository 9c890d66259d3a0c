package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/PreChart2DB/internal/importer"
)

/* ----------------------------------------
	MENU TREE
---------------------------------------- */

type MenuItem struct {
	Label   string
	Submenu *Menu
	Action  func(m *Model) tea.Cmd
}

type Menu struct {
	Title  string
	Items  []MenuItem
	Parent *Menu
}

/* ----------------------------------------
	MENU TREE DEFINITION
---------------------------------------- */

func linkParents(menu *Menu, parent *Menu) {
	menu.Parent = parent

	for i := range menu.Items {
		item := &menu.Items[i]

		if item.Label == "Back" {
			item.Submenu = parent
			continue
		}

		if item.Submenu != nil {
			linkParents(item.Submenu, menu)
		}
	}
}

func buildMenuTree() *Menu {
	root := &Menu{
		Title: "Main Menu",
		Items: []MenuItem{
			{Label: "Load file", Action: func(m *Model) tea.Cmd {
				return m.ask("File path (.csv, .xlsx, .xls):", "", (*Model).loadFile)
			}},
			{Label: "Load options ->", Submenu: loadOptionsMenu()},
			{Label: "Data ->", Submenu: dataMenu()},
			{Label: "Analysis ->", Submenu: analysisMenu()},
			{Label: "Database ->", Submenu: databaseMenu()},
			{Label: "Status log", Action: (*Model).showStatusLog},
			{Label: "Quit", Action: func(*Model) tea.Cmd { return tea.Quit }},
		},
	}

	linkParents(root, nil)

	return root
}

/* ----------------------------------------
	LOAD MENUS
---------------------------------------- */

func loadOptionsMenu() *Menu {
	return &Menu{
		Title: "Load Options",
		Items: []MenuItem{
			{Label: "Delimiter", Action: func(m *Model) tea.Cmd {
				return m.ask(`Delimiter ("," ";" or "tab"):`, m.opts.Delimiter, (*Model).setDelimiter)
			}},
			{Label: "Encoding", Action: func(m *Model) tea.Cmd {
				label := fmt.Sprintf("Encoding (%s):", strings.Join(importer.Encodings, ", "))
				return m.ask(label, m.opts.Encoding, (*Model).setEncoding)
			}},
			{Label: "Sheet", Action: func(m *Model) tea.Cmd {
				return m.ask("Sheet name (empty for the first sheet):", m.opts.Sheet, (*Model).setSheet)
			}},
			{Label: "Back"},
		},
	}
}

func dataMenu() *Menu {
	return &Menu{
		Title: "Data",
		Items: []MenuItem{
			{Label: "Show table", Action: (*Model).showTable},
			{Label: "Edit cell", Action: func(m *Model) tea.Cmd {
				return m.ask("row, column, value:", "", (*Model).editCell)
			}},
			{Label: "Add row", Action: func(m *Model) tea.Cmd {
				return m.ask("Comma-separated values:", "", (*Model).addRow)
			}},
			{Label: "Delete row", Action: func(m *Model) tea.Cmd {
				return m.ask("Row index:", "", (*Model).deleteRow)
			}},
			{Label: "Convert column", Action: func(m *Model) tea.Cmd {
				return m.ask("column kind (e.g. price float):", "", (*Model).convertColumn)
			}},
			{Label: "Rename table", Action: func(m *Model) tea.Cmd {
				return m.ask("Table name:", m.sess.Snapshot().TableName, (*Model).renameTable)
			}},
			{Label: "Back"},
		},
	}
}

func analysisMenu() *Menu {
	return &Menu{
		Title: "Analysis",
		Items: []MenuItem{
			{Label: "Summary", Action: (*Model).showSummary},
			{Label: "Describe column", Action: func(m *Model) tea.Cmd {
				return m.ask("Column name or index:", "", (*Model).describeColumn)
			}},
			{Label: "Back"},
		},
	}
}

func databaseMenu() *Menu {
	return &Menu{
		Title: "Database",
		Items: []MenuItem{
			{Label: "Show connection", Action: (*Model).showConnection},
			{Label: "Test connection", Action: (*Model).testConnection},
			{Label: "Overwrite table", Action: (*Model).requestOverwrite},
			{Label: "Append new rows", Action: (*Model).appendRows},
			{Label: "Back"},
		},
	}
}
