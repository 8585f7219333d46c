package scraper

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractText(t *testing.T) {
	body := []byte(`<html><body>
		<h2> Flood update </h2>
		<p>First paragraph.</p>
		<h2>Cholera response</h2>
		<p>   </p>
		<h2>Flood update</h2>
		<div><p>Nested <b>bold</b> text</p></div>
	</body></html>`)

	headings, err := ExtractText(body, "h2")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if diff := cmp.Diff([]string{"Flood update", "Cholera response", "Flood update"}, headings); diff != "" {
		t.Errorf("headings mismatch (-want +got):\n%s", diff)
	}

	paragraphs, err := ExtractText(body, "p")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if diff := cmp.Diff([]string{"First paragraph.", "", "Nested bold text"}, paragraphs); diff != "" {
		t.Errorf("paragraphs mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractText_NoMatches(t *testing.T) {
	texts, err := ExtractText([]byte("<html></html>"), "h2")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if texts == nil || len(texts) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", texts)
	}
}

func TestRenderCSV(t *testing.T) {
	data, err := RenderCSV([]string{"A", `Quote "this", please`})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "Title\nA\n\"Quote \"\"this\"\", please\"\n"
	if string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}
}

func TestRenderTXT(t *testing.T) {
	got := string(RenderTXT([]string{"one", "", "three"}))
	if got != "one\n\nthree\n" {
		t.Errorf("got %q", got)
	}
	if got := RenderTXT(nil); len(got) != 0 {
		t.Errorf("expected empty output, got %q", got)
	}
}
