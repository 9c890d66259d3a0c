package templates

import (
	"fmt"
	"math"
	"strconv"

	"github.com/a-h/templ"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/JonMunkholm/PreChart2DB/internal/analysis"
)

// AnalysisData is everything the analysis page shows.
type AnalysisData struct {
	Meta  PageMeta
	Flash *Flash

	FileName string
	Summary  analysis.Summary
	Head     [][]string
	Columns  []string

	// Selected is the analysed column; the fields below describe it.
	Selected    string
	Description analysis.Description
	Counts      []analysis.Count
	Histogram   []analysis.Bin
	Box         *analysis.BoxStats
	Unique      []analysis.Count
	UniqueTotal int
}

// Analysis renders the analysis page.
func Analysis(d AnalysisData) templ.Component {
	d.Meta.Title = "Analysis"
	if len(d.Columns) == 0 {
		return component(page(d.Meta, "analysis",
			flash(d.Flash),
			P(Class("muted"), Text("Load a file on the data page first.")),
		))
	}

	return component(page(d.Meta, "analysis",
		flash(d.Flash),
		summaryCard(d),
		headCard(d),
		columnPicker(d.Columns, d.Selected),
		If(d.Selected != "", columnCard(d)),
	))
}

func summaryCard(d AnalysisData) Node {
	rows := make([]Node, 0, len(d.Summary.Info))
	for _, ci := range d.Summary.Info {
		rows = append(rows, Tr(
			Td(Text(ci.Name)),
			Td(Text(ci.Kind.String())),
			Td(Text(strconv.Itoa(ci.NonNull))),
			Td(Text(strconv.Itoa(ci.Missing))),
		))
	}
	return Div(Class("card"),
		H2(Text("Summary of "+d.FileName)),
		P(Textf("%d rows, %d columns, %d missing values", d.Summary.Rows, d.Summary.Columns, d.Summary.Missing)),
		Table(
			THead(Tr(Th(Text("Column")), Th(Text("Type")), Th(Text("Non-null")), Th(Text("Missing")))),
			TBody(Group(rows)),
		),
	)
}

func headCard(d AnalysisData) Node {
	header := make([]Node, 0, len(d.Columns))
	for _, c := range d.Columns {
		header = append(header, Th(Text(c)))
	}
	rows := make([]Node, 0, len(d.Head))
	for _, r := range d.Head {
		cells := make([]Node, 0, len(r))
		for _, v := range r {
			cells = append(cells, Td(Text(v)))
		}
		rows = append(rows, Tr(Group(cells)))
	}
	return Div(Class("card"),
		H2(Textf("First %d rows", len(d.Head))),
		Table(THead(Tr(Group(header))), TBody(Group(rows))),
	)
}

func columnPicker(columns []string, selected string) Node {
	opts := make([]Node, 0, len(columns))
	for _, c := range columns {
		opts = append(opts, optionSelected(c, c, selected))
	}
	return Div(Class("card"),
		Form(Class("row"), Method("get"), Action("/analysis"),
			Label(Text("Column "), Select(Name("column"), Group(opts))),
			Button(Type("submit"), Text("Analyse")),
		),
	)
}

func columnCard(d AnalysisData) Node {
	stats := make([]Node, 0, len(d.Description.Stats))
	for _, s := range d.Description.Stats {
		stats = append(stats, Tr(Th(Text(s.Label)), Td(Text(s.Value))))
	}

	return Div(Class("card"),
		H2(Text(d.Selected)),
		Table(TBody(Group(stats))),
		If(len(d.Histogram) > 0, histogram(d.Histogram)),
		boxCard(d.Box),
		H3(Textf("Top %d values", len(d.Counts))),
		countBars(d.Counts),
		H3(Textf("Unique values (%d)", d.UniqueTotal)),
		uniqueList(d.Unique, d.UniqueTotal),
	)
}

func countBars(counts []analysis.Count) Node {
	peak := 0
	for _, c := range counts {
		peak = max(peak, c.Count)
	}
	rows := make([]Node, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, Tr(
			Td(Text(c.Value)),
			Td(Text(strconv.Itoa(c.Count))),
			Td(bar(c.Count, peak)),
		))
	}
	return Table(TBody(Group(rows)))
}

func histogram(bins []analysis.Bin) Node {
	peak := 0
	for _, b := range bins {
		peak = max(peak, b.Count)
	}
	rows := make([]Node, 0, len(bins))
	for _, b := range bins {
		rows = append(rows, Tr(
			Td(Textf("%s to %s", formatNumber(b.Lower), formatNumber(b.Upper))),
			Td(Text(strconv.Itoa(b.Count))),
			Td(bar(b.Count, peak)),
		))
	}
	return Group{H3(Text("Histogram")), Table(TBody(Group(rows)))}
}

func boxCard(b *analysis.BoxStats) Node {
	if b == nil {
		return nil
	}
	return Group{
		H3(Text("Box plot")),
		Table(TBody(
			Tr(Th(Text("min")), Th(Text("25%")), Th(Text("median")), Th(Text("75%")), Th(Text("max"))),
			Tr(
				Td(Text(formatNumber(b.Min))),
				Td(Text(formatNumber(b.Q1))),
				Td(Text(formatNumber(b.Median))),
				Td(Text(formatNumber(b.Q3))),
				Td(Text(formatNumber(b.Max))),
			),
		)),
	}
}

func uniqueList(values []analysis.Count, total int) Node {
	items := make([]Node, 0, len(values))
	for _, v := range values {
		items = append(items, Li(Text(v.Value)))
	}
	return Group{
		Ul(Group(items)),
		If(total > len(values), P(Class("muted"), Textf("... and %d more", total-len(values)))),
	}
}

func bar(n, peak int) Node {
	width := 0.0
	if peak > 0 {
		width = math.Round(float64(n) / float64(peak) * 100)
	}
	return Div(Class("bar"), Style(fmt.Sprintf("width:%g%%", width)))
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
