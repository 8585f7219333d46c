package reliefweb

import (
	"testing"

	"github.com/FranksOps/reliefscope/internal/table"
	"github.com/google/go-cmp/cmp"
)

func TestRawReport_Accessors(t *testing.T) {
	r := RawReport(`{
		"id": "4012",
		"href": "https://api.reliefweb.int/v1/reports/4012",
		"fields": {
			"title": "Flood update",
			"body": "Rivers rose overnight.",
			"primary_country": {"name": "Chad"},
			"date": {"created": "2024-05-01T00:00:00+00:00"}
		}
	}`)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"id", r.ID(), "4012"},
		{"title", r.Title(), "Flood update"},
		{"country", r.Country(), "Chad"},
		{"created", r.CreationDate(), "2024-05-01T00:00:00+00:00"},
		{"summary", r.Summary(), "Rivers rose overnight."},
		{"url", r.URL(), "https://api.reliefweb.int/v1/reports/4012"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestRawReport_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no fields", `{"id": "1"}`},
		{"null values", `{"fields": {"title": null, "primary_country": null, "date": null, "body": null}, "href": null}`},
		{"wrong shape", `{"fields": {"primary_country": "Chad", "date": "yesterday"}}`},
		{"not json", `not json`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RawReport(tt.raw)
			for _, got := range []string{r.Title(), r.Country(), r.CreationDate(), r.Summary(), r.URL()} {
				if got != table.NotAvailable {
					t.Errorf("expected %q, got %q", table.NotAvailable, got)
				}
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	reports := []RawReport{
		RawReport(`{"href": "u1", "fields": {"title": "A", "primary_country": {"name": "Chad"}, "date": {"created": "d1"}, "body": "s1"}}`),
		RawReport(`{"fields": {"title": "B"}}`),
	}

	tbl := Normalize(reports)
	if diff := cmp.Diff(Columns, tbl.Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	want := [][]string{
		{"A", "Chad", "d1", "s1", "u1"},
		{"B", "N/A", "N/A", "N/A", "N/A"},
	}
	if diff := cmp.Diff(want, tbl.Rows()); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Empty(t *testing.T) {
	tbl := Normalize(nil)
	if tbl.Len() != 0 {
		t.Errorf("expected no rows, got %d", tbl.Len())
	}
	if len(tbl.Columns()) != len(Columns) {
		t.Errorf("expected %d columns, got %d", len(Columns), len(tbl.Columns()))
	}
}
