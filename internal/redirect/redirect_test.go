package redirect

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const page = `<html><body>
<table width="640px" height="300" style="height: 480px; width:200px">
<tr><td>
<form action="submit_action" method="post">
  <input type="text" name="comment">
  <input type="submit" name="result" value="OK">
</form>
<form action="/elsewhere/"></form>
</td></tr></table>
</body></html>`

func TestRewrite_Document(t *testing.T) {
	t.Parallel()

	out, err := New().Rewrite(page, "42")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	doc, err := html.Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}

	var forms []*html.Node
	walk(doc, func(n *html.Node) {
		if n.Data == "form" {
			forms = append(forms, n)
		}
	})
	if len(forms) != 2 {
		t.Fatalf("forms = %d, want 2", len(forms))
	}
	if got := attr(forms[0], "action"); got != DefaultInteractURL {
		t.Errorf("submit form action = %q, want %q", got, DefaultInteractURL)
	}
	if got := attr(forms[1], "action"); got != "/elsewhere/" {
		t.Errorf("other form action = %q, want untouched", got)
	}

	var hidden []*html.Node
	walk(forms[0], func(n *html.Node) {
		if n.Data == "input" && attr(n, "type") == "hidden" {
			hidden = append(hidden, n)
		}
	})
	if len(hidden) != 1 || attr(hidden[0], "name") != "job_id" || attr(hidden[0], "value") != "42" {
		t.Errorf("hidden inputs = %v", hidden)
	}

	for _, want := range []string{
		`navigator.sendBeacon("../terminate/", "42")`,
		`var max_x = 640;`,
		`var max_y = 480;`,
		`window.removeEventListener("unload", terminate)`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRewrite_PassThrough(t *testing.T) {
	t.Parallel()

	for _, in := range []string{`{"ack": "ok"}`, "plain text & more", ""} {
		out, err := New().Rewrite(in, "1")
		if err != nil {
			t.Fatalf("Rewrite(%q): %v", in, err)
		}
		if out != in {
			t.Errorf("Rewrite(%q) = %q, want unchanged", in, out)
		}
	}
}

func TestRewrite_Fragment(t *testing.T) {
	t.Parallel()

	out, err := New().Rewrite(`<form action="submit_action"><input name="result"></form>`, "7")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if strings.Contains(out, "<script") {
		t.Error("fragment output gained a script")
	}
	if strings.Contains(out, "<html") {
		t.Error("fragment output gained a document wrapper")
	}
	if !strings.Contains(out, `action="../interact/"`) || !strings.Contains(out, `value="7"`) {
		t.Errorf("fragment not rewritten: %s", out)
	}
}

func TestRewrite_CustomURLs(t *testing.T) {
	t.Parallel()

	r := &Redirector{InteractURL: "/plugin/interact/", TerminateURL: "/plugin/terminate/"}
	out, err := r.Rewrite(`<html><form action="submit_action"></form></html>`, `"</script>`)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if !strings.Contains(out, `action="/plugin/interact/"`) {
		t.Errorf("interact url not used: %s", out)
	}
	if strings.Count(out, "</script>") != 1 {
		t.Errorf("job id escaped the script element: %s", out)
	}
}

func TestDimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		html  string
		wantW int
		wantH int
	}{
		{"no table", `<p>hi</p>`, 0, 0},
		{"attributes", `<table width="300px" height="200px"></table>`, 300, 200},
		{"unitless ignored", `<table width="300" height="50%"></table>`, 0, 0},
		{"style wins when larger", `<table width="100px" style="width: 500px;height:20px"></table>`, 500, 20},
		{"first table only", `<table width="10px"><tr><td><table width="900px"></table></td></tr></table>`, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := html.Parse(strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			w, h := Dimensions(doc)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Dimensions = %d x %d, want %d x %d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
