// Package redirect rewrites HTML returned by plugin scripts so that form
// submissions come back through the host and closing the window terminates
// the job.
package redirect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SubmitAction is the form action scripts use to mean "send to the host".
const SubmitAction = "submit_action"

// Default endpoint paths, relative to the page that shows the HTML.
const (
	DefaultInteractURL  = "../interact/"
	DefaultTerminateURL = "../terminate/"
)

// Redirector rewrites script HTML for one host.
type Redirector struct {
	InteractURL  string
	TerminateURL string
}

// New returns a Redirector using the default endpoint paths.
func New() *Redirector {
	return &Redirector{InteractURL: DefaultInteractURL, TerminateURL: DefaultTerminateURL}
}

// Rewrite points every submit_action form at the interaction endpoint and
// adds a hidden job_id input to it. When the input is a full document it
// also appends a script that sizes the window and sends a termination beacon
// when the window is closed without submitting. Input with neither an html
// element nor a form is returned unchanged.
func (r *Redirector) Rewrite(src, jobID string) (string, error) {
	lower := strings.ToLower(src)
	hasDocument := strings.Contains(lower, "<html")
	if !hasDocument && !strings.Contains(lower, "<form") {
		return src, nil
	}

	var buf bytes.Buffer
	if !hasDocument {
		body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
		nodes, err := html.ParseFragment(strings.NewReader(src), body)
		if err != nil {
			return "", fmt.Errorf("redirect: parsing fragment: %w", err)
		}
		for _, n := range nodes {
			r.rewriteForms(n, jobID)
			if err := html.Render(&buf, n); err != nil {
				return "", fmt.Errorf("redirect: rendering: %w", err)
			}
		}
		return buf.String(), nil
	}

	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("redirect: parsing document: %w", err)
	}
	r.rewriteForms(doc, jobID)

	w, h := Dimensions(doc)
	if root := find(doc, atom.Html); root != nil {
		root.AppendChild(r.script(jobID, w, h))
	}

	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("redirect: rendering: %w", err)
	}
	return buf.String(), nil
}

func (r *Redirector) rewriteForms(n *html.Node, jobID string) {
	walk(n, func(el *html.Node) {
		if el.DataAtom != atom.Form || attr(el, "action") != SubmitAction {
			return
		}
		setAttr(el, "action", r.InteractURL)
		el.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     "input",
			DataAtom: atom.Input,
			Attr: []html.Attribute{
				{Key: "type", Val: "hidden"},
				{Key: "id", Val: "job_id"},
				{Key: "name", Val: "job_id"},
				{Key: "value", Val: jobID},
			},
		})
	})
}

const scriptTemplate = `
function terminate() {
    navigator.sendBeacon(%[1]s, %[2]s);
}
window.addEventListener("unload", terminate);
const all = document.getElementsByTagName("*");
for (let i = 0; i < all.length; i++) {
    if (all[i].name === "result") {
        all[i].addEventListener("click", function () {
            window.removeEventListener("unload", terminate);
        });
    }
}
function resize_me() {
    var max_x = %[3]d;
    var max_y = %[4]d;
    if (max_x == 0 || max_x > window.screen.width) {
        max_x = window.screen.width;
    }
    if (max_y == 0 || max_y > window.screen.height) {
        max_y = window.screen.height;
    }
    if (window.outerWidth) {
        window.resizeTo(
            max_x + (window.outerWidth - window.innerWidth) + 50,
            max_y + (window.outerHeight - window.innerHeight) + 50
        );
    } else {
        window.resizeTo(500, 500);
        window.resizeTo(
            max_x + (500 - document.body.offsetWidth),
            max_y + (500 - document.body.offsetHeight)
        );
    }
}
window.onload = resize_me;
`

func (r *Redirector) script(jobID string, w, h int) *html.Node {
	s := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "type", Val: "text/javascript"}},
	}
	s.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: fmt.Sprintf(scriptTemplate, jsString(r.TerminateURL), jsString(jobID), w, h),
	})
	return s
}

// jsString quotes s as a JavaScript string literal safe inside a script element.
func jsString(s string) string {
	raw, _ := json.Marshal(s)
	return strings.ReplaceAll(string(raw), "</", `<\/`)
}

// Dimensions returns the largest pixel width and height declared on the
// first table of doc, from its width/height attributes or inline style.
// Values without a px unit are ignored.
func Dimensions(doc *html.Node) (width, height int) {
	table := find(doc, atom.Table)
	if table == nil {
		return 0, 0
	}
	width = max(width, pixels(attr(table, "width")))
	height = max(height, pixels(attr(table, "height")))

	style := strings.ReplaceAll(attr(table, "style"), " ", "")
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(prop) {
		case "width":
			width = max(width, pixels(val))
		case "height":
			height = max(height, pixels(val))
		}
	}
	return width, height
}

func pixels(v string) int {
	num, ok := strings.CutSuffix(strings.TrimSpace(v), "px")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
