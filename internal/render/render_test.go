package render

import (
	"strings"
	"testing"
)

func TestRenderLayout(t *testing.T) {
	s := NewService()

	out, err := s.RenderLayout("<p>Hello</p>", "Acme", "https://acme.example.com")
	if err != nil {
		t.Fatalf("RenderLayout() error: %v", err)
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<p>Hello</p>",
		"Acme",
		`href="https://acme.example.com"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("layout output missing %q", want)
		}
	}
}

func TestRenderLayoutEscapesTitle(t *testing.T) {
	s := NewService()

	out, err := s.RenderLayout("<p>x</p>", "Acme <script>", "https://acme.example.com")
	if err != nil {
		t.Fatalf("RenderLayout() error: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Error("site title must be escaped in the layout")
	}
}

func TestRenderCachesTemplates(t *testing.T) {
	s := NewService()
	tmpl := `Hi {{ name | default: "Friend" }}`

	first, err := s.Render(tmpl, map[string]interface{}{"name": "Ada"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if first != "Hi Ada" {
		t.Errorf("Render() = %q", first)
	}

	second, err := s.Render(tmpl, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Render() cached error: %v", err)
	}
	if second != "Hi Friend" {
		t.Errorf("Render() cached = %q", second)
	}
}

func TestRenderParseError(t *testing.T) {
	s := NewService()
	if _, err := s.Render("{% if %}", nil); err == nil {
		t.Error("Render() should fail on malformed template")
	}
}

func TestTextToHTML(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"single paragraph", "hello world", "<p>hello world</p>\n"},
		{"two paragraphs", "one\n\ntwo", "<p>one</p>\n<p>two</p>\n"},
		{"line break inside paragraph", "one\ntwo", "<p>one<br>\ntwo</p>\n"},
		{"escapes markup", "a <b> & c", "<p>a &lt;b&gt; &amp; c</p>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextToHTML(tt.text); got != tt.want {
				t.Errorf("TextToHTML(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
