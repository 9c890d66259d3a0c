package templates

import (
	"strconv"

	"github.com/a-h/templ"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
)

// SettingsData is the connection form of one session.
type SettingsData struct {
	Meta  PageMeta
	Flash *Flash

	Conn     dbsync.ConnConfig
	Messages []string
}

// Settings renders the database connection page. The password field is
// never pre-filled; leaving it empty keeps the current password.
func Settings(d SettingsData) templ.Component {
	d.Meta.Title = "Database"

	drivers := make([]Node, 0, len(dbsync.Drivers))
	for _, drv := range dbsync.Drivers {
		drivers = append(drivers, optionSelected(drv, drv, d.Conn.Driver))
	}

	field := func(label, name, value string) Node {
		return Label(Text(label+" "), Input(Type("text"), Name(name), Value(value)))
	}

	return component(page(d.Meta, "settings",
		flash(d.Flash),
		Div(Class("card"),
			H2(Text("Connection")),
			P(Class("muted"), Text("Current: "+d.Conn.String())),
			Form(Class("row"), Method("post"), Action("/settings"),
				Label(Text("Driver "), Select(Name("driver"), Group(drivers))),
				field("Host", "host", d.Conn.Host),
				Label(Text("Port "), Input(Type("number"), Name("port"), Value(strconv.Itoa(d.Conn.Port)), Min("1"), Max("65535"))),
				field("User", "user", d.Conn.User),
				Label(Text("Password "), Input(Type("password"), Name("password"), AutoComplete("off"))),
				field("Database", "database", d.Conn.Database),
				field("Charset", "charset", d.Conn.Charset),
				field("SQLite directory", "data_dir", d.Conn.DataDir),
				Button(Type("submit"), Text("Save")),
			),
			P(postButton("/settings/test", "Test connection")),
			P(Class("muted"), Text("Test connection does not create the database; overwrite does.")),
		),
		statusLog(d.Messages),
	))
}

// StatusData is the status page of one session.
type StatusData struct {
	Meta PageMeta

	Active        int
	MaxConcurrent int
	Targets       []string
	Messages      []string

	// Audit holds the session's recent edits and writes, newest first.
	Audit []core.AuditEntry
}

// Status renders the status log and write limiter state.
func Status(d StatusData) templ.Component {
	d.Meta.Title = "Status"

	targets := make([]Node, 0, len(d.Targets))
	for _, t := range d.Targets {
		targets = append(targets, Li(Text(t)))
	}

	return component(page(d.Meta, "status",
		Div(Class("card"),
			H2(Text("Database writes")),
			P(Textf("%d of %d write slots in use", d.Active, d.MaxConcurrent)),
			Ul(Group(targets)),
		),
		auditTable(d.Audit),
		statusLog(d.Messages),
	))
}

func auditTable(entries []core.AuditEntry) Node {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]Node, 0, len(entries))
	for _, e := range entries {
		change := e.NewValue
		if e.OldValue != "" {
			change = e.OldValue + " → " + e.NewValue
		}
		if e.Reason != "" {
			change = e.Reason
		}
		rows = append(rows, Tr(
			If(e.Failed, Class("failed")),
			Td(Text(e.CreatedAt.Format("15:04:05"))),
			Td(Text(string(e.Action))),
			Td(Text(string(e.Severity))),
			Td(Text(e.Table)),
			Td(Text(e.RowKey)),
			Td(Text(e.ColumnName)),
			Td(Text(change)),
			Td(Text(strconv.Itoa(e.RowsAffected))),
		))
	}
	return Div(Class("card"),
		H2(Text("Recent changes")),
		Table(
			THead(Tr(Th(Text("time")), Th(Text("action")), Th(Text("severity")), Th(Text("table")),
				Th(Text("row")), Th(Text("column")), Th(Text("change")), Th(Text("rows")))),
			TBody(Group(rows)),
		),
	)
}
