// Package templates renders the web pages. Pages are built from gomponents
// nodes and exposed as templ components so handlers render every page the
// same way.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

// component adapts a gomponents node to templ.Component.
func component(n Node) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return n.Render(w)
	})
}

// PageMeta is the page chrome shared by all pages.
type PageMeta struct {
	AppName string
	Title   string
	Version string
}

type navItem struct {
	Label string
	Href  string
	Key   string
}

var navItems = []navItem{
	{Label: "Data", Href: "/", Key: "data"},
	{Label: "Analysis", Href: "/analysis", Key: "analysis"},
	{Label: "Database", Href: "/settings", Key: "settings"},
	{Label: "Status", Href: "/status", Key: "status"},
}

const stylesheet = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1d232b}
main{max-width:1200px;margin:0 auto;padding:1rem 1.5rem}
nav a{margin-right:1rem;text-decoration:none;color:#3a5a8c}
nav a.active{font-weight:600;color:#1d232b}
.card{background:#fff;border:1px solid #dde1e6;border-radius:6px;padding:1rem;margin:1rem 0}
.muted{color:#6b7480}
.alert{border-left:4px solid #c0392b;background:#fdecea;padding:.6rem 1rem;margin:1rem 0}
.alert.ok{border-color:#27ae60;background:#eafaf1}
tr.failed td{color:#c0392b}
.alert.warn{border-color:#e67e22;background:#fef5e7}
table{border-collapse:collapse;width:100%;font-size:.9rem}
th,td{border:1px solid #dde1e6;padding:.25rem .4rem;text-align:left;vertical-align:top}
td input{width:100%;box-sizing:border-box;border:0;background:transparent}
.bar{background:#3a5a8c;height:.9rem}
.log{font-family:ui-monospace,monospace;font-size:.85rem;max-height:20rem;overflow:auto}
form.inline{display:inline}
.row{display:flex;gap:1rem;flex-wrap:wrap;align-items:end}
`

func page(m PageMeta, active string, body ...Node) Node {
	nav := make([]Node, 0, len(navItems))
	for _, item := range navItems {
		className := ""
		if item.Key == active {
			className = "active"
		}
		nav = append(nav, A(Href(item.Href), Class(className), Text(item.Label)))
	}

	return Doctype(HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(m.Title+" | "+m.AppName)),
			StyleEl(Raw(stylesheet)),
		),
		Body(
			Main(
				Header(
					Strong(Text(m.AppName)),
					If(m.Version != "", Span(Class("muted"), Text(" v"+m.Version))),
				),
				Nav(Group(nav)),
				H1(Text(m.Title)),
				Group(body),
			),
		),
	))
}

// Flash is a one-time notice shown at the top of a page.
type Flash struct {
	Message string
	Action  string
	Code    string
	OK      bool
}

func flash(f *Flash) Node {
	if f == nil || f.Message == "" {
		return nil
	}
	className := "alert"
	if f.OK {
		className = "alert ok"
	}
	return Div(Class(className), Role("alert"),
		Strong(Text(f.Message)),
		If(f.Code != "", Span(Class("muted"), Text(" (Code: "+f.Code+")"))),
		If(f.Action != "", P(Text(f.Action))),
	)
}

// ErrorAlert renders a standalone error fragment.
func ErrorAlert(message, action, code string) templ.Component {
	return component(flash(&Flash{Message: message, Action: action, Code: code}))
}

// ErrorPage renders a full error page.
func ErrorPage(m PageMeta, message, action, code string) templ.Component {
	m.Title = "Error"
	return component(page(m, "",
		flash(&Flash{Message: message, Action: action, Code: code}),
		P(A(Href("/"), Text("Back to data"))),
	))
}

func statusLog(messages []string) Node {
	items := make([]Node, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		items = append(items, Li(Text(messages[i])))
	}
	return Div(Class("card"),
		H2(Text("Status")),
		If(len(messages) == 0, P(Class("muted"), Text("No messages yet."))),
		Ul(Class("log"), Group(items)),
	)
}

func postButton(action, label string, extra ...Node) Node {
	return Form(Class("inline"), Method("post"), Action(action),
		Group(extra),
		Button(Type("submit"), Text(label)),
	)
}

func optionSelected(value, label, selected string) Node {
	return Option(Value(value), If(value == selected, Selected()), Text(label))
}
