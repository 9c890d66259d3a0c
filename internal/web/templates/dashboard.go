package templates

import (
	"fmt"
	"strconv"

	"github.com/a-h/templ"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/JonMunkholm/PreChart2DB/internal/analysis"
	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
	"github.com/JonMunkholm/PreChart2DB/internal/importer"
)

// DefaultPageSize is the number of rows shown per page of the data grid.
const DefaultPageSize = 50

// DashboardData is everything the data page shows.
type DashboardData struct {
	Meta  PageMeta
	Flash *Flash

	FileName  string
	TableName string

	// Table is nil until a file is loaded.
	Table   *dataset.Table
	Summary analysis.Summary
	Page    int

	LoadOptions importer.Options

	// Target is the masked connection string.
	Target           string
	OverwritePending bool
	LastResult       *dbsync.Result

	Messages []string
}

// Dashboard renders the data page: upload, grid editor and write actions.
func Dashboard(d DashboardData) templ.Component {
	d.Meta.Title = "Data"
	if d.Table == nil {
		return component(page(d.Meta, "data",
			flash(d.Flash),
			uploadForm(d.LoadOptions),
			P(Class("muted"), Text("Upload a CSV or Excel file to get started.")),
			statusLog(d.Messages),
		))
	}

	return component(page(d.Meta, "data",
		flash(d.Flash),
		uploadForm(d.LoadOptions),
		fileInfo(d),
		writePanel(d),
		grid(d.Table, d.Page),
		addRowForm(d.Table),
		statusLog(d.Messages),
	))
}

func uploadForm(opts importer.Options) Node {
	delimiters := make([]Node, 0, len(importer.Delimiters))
	for _, delim := range importer.Delimiters {
		delimiters = append(delimiters, optionSelected(delim, delimiterLabel(delim), opts.Delimiter))
	}
	encodings := make([]Node, 0, len(importer.Encodings))
	for _, enc := range importer.Encodings {
		encodings = append(encodings, optionSelected(enc, enc, opts.Encoding))
	}

	return Div(Class("card"),
		H2(Text("Load file")),
		Form(Class("row"), Method("post"), Action("/upload"), EncType("multipart/form-data"),
			Label(Text("File "), Input(Type("file"), Name("file"), Accept(".csv,.xlsx,.xls"), Required())),
			Label(Text("Delimiter "), Select(Name("delimiter"), Group(delimiters))),
			Label(Text("Encoding "), Select(Name("encoding"), Group(encodings))),
			Label(Text("Sheet "), Input(Type("text"), Name("sheet"), Value(opts.Sheet), Placeholder("first sheet"))),
			Button(Type("submit"), Text("Load")),
		),
	)
}

func delimiterLabel(d string) string {
	switch d {
	case "\t":
		return "tab"
	case ",":
		return "comma (,)"
	case ";":
		return "semicolon (;)"
	}
	return d
}

func fileInfo(d DashboardData) Node {
	return Div(Class("card"),
		H2(Text(d.FileName)),
		P(Textf("%d rows, %d columns, %d missing values", d.Summary.Rows, d.Summary.Columns, d.Summary.Missing)),
		Form(Class("row"), Method("post"), Action("/table/name"),
			Label(Text("Table name "), Input(Type("text"), Name("name"), Value(d.TableName))),
			Button(Type("submit"), Text("Rename")),
			Span(Class("muted"), Text("stored as "+dbsync.SanitizeTableName(d.TableName))),
		),
	)
}

func writePanel(d DashboardData) Node {
	var confirm Node
	if d.OverwritePending {
		confirm = Div(Class("alert warn"),
			P(Textf("Table '%s' will be dropped and recreated with %d rows. This cannot be undone.",
				dbsync.SanitizeTableName(d.TableName), d.Summary.Rows)),
			postButton("/db/overwrite/confirm", "Confirm overwrite"),
			Text(" "),
			postButton("/db/overwrite/cancel", "Cancel"),
		)
	}

	var last Node
	if r := d.LastResult; r != nil {
		className := "alert"
		if r.Success {
			className = "alert ok"
		}
		last = Div(Class(className), Text(r.Message))
	}

	return Div(Class("card"),
		H2(Text("Database")),
		P(Class("muted"), Text("Target: "+d.Target+" "), A(Href("/settings"), Text("change"))),
		postButton("/db/overwrite", "Overwrite table"),
		Text(" "),
		postButton("/db/append", "Append new rows"),
		confirm,
		last,
	)
}

// pageBounds returns the [start, end) rows of page p and the page count.
func pageBounds(rows, p int) (start, end, pages int) {
	pages = max(1, (rows+DefaultPageSize-1)/DefaultPageSize)
	p = min(max(p, 1), pages)
	start = (p - 1) * DefaultPageSize
	end = min(start+DefaultPageSize, rows)
	return start, end, pages
}

func grid(t *dataset.Table, p int) Node {
	start, end, pages := pageBounds(t.NumRows(), p)
	cols := t.Columns()

	header := []Node{Th(Text("#"))}
	for j, c := range cols {
		header = append(header, Th(
			Div(Text(c.Name)),
			kindForm(j, c.Kind),
		))
	}
	header = append(header, Th())

	body := make([]Node, 0, end-start)
	for i := start; i < end; i++ {
		formID := "row-" + strconv.Itoa(i)
		cells := []Node{Td(Text(strconv.Itoa(i)))}
		for j, v := range t.Row(i) {
			cells = append(cells, Td(Input(
				Type("text"),
				Name("c"+strconv.Itoa(j)),
				Value(v.String()),
				Attr("form", formID),
				Aria("label", fmt.Sprintf("row %d %s", i, cols[j].Name)),
			)))
		}
		cells = append(cells, Td(
			Form(ID(formID), Class("inline"), Method("post"), Action(fmt.Sprintf("/table/rows/%d", i)),
				Button(Type("submit"), Text("Save")),
			),
			postButton(fmt.Sprintf("/table/rows/%d/delete", i), "Delete"),
		))
		body = append(body, Tr(Group(cells)))
	}

	return Div(Class("card"),
		H2(Text("Rows")),
		Table(THead(Tr(Group(header))), TBody(Group(body))),
		pager(p, pages),
	)
}

func kindForm(col int, current dataset.Kind) Node {
	opts := make([]Node, 0, len(dataset.Kinds()))
	for _, k := range dataset.Kinds() {
		opts = append(opts, optionSelected(k.String(), k.String(), current.String()))
	}
	return Form(Class("inline"), Method("post"), Action(fmt.Sprintf("/table/columns/%d/kind", col)),
		Select(Name("kind"), Group(opts)),
		Button(Type("submit"), Text("Set")),
	)
}

func pager(p, pages int) Node {
	if pages <= 1 {
		return nil
	}
	p = min(max(p, 1), pages)
	var links []Node
	if p > 1 {
		links = append(links, A(Href(fmt.Sprintf("/?page=%d", p-1)), Text("Previous")), Text(" "))
	}
	links = append(links, Span(Textf("Page %d of %d", p, pages)))
	if p < pages {
		links = append(links, Text(" "), A(Href(fmt.Sprintf("/?page=%d", p+1)), Text("Next")))
	}
	return P(Group(links))
}

func addRowForm(t *dataset.Table) Node {
	fields := make([]Node, 0, t.NumCols())
	for j, c := range t.Columns() {
		fields = append(fields, Label(
			Text(c.Name+" "),
			Input(Type("text"), Name("c"+strconv.Itoa(j)), Placeholder(c.Kind.String())),
		))
	}
	return Div(Class("card"),
		H2(Text("Add row")),
		Form(Class("row"), Method("post"), Action("/table/rows"),
			Group(fields),
			Button(Type("submit"), Text("Add")),
		),
	)
}
