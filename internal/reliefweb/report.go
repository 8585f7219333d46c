package reliefweb

import (
	"github.com/FranksOps/reliefscope/internal/table"
	"github.com/tidwall/gjson"
)

// Report table columns, in display order.
const (
	ColTitle        = "Title"
	ColCountry      = "Country"
	ColCreationDate = "CreationDate"
	ColSummary      = "Summary"
	ColURL          = "URL"
)

// Columns lists the report table columns in order.
var Columns = []string{ColTitle, ColCountry, ColCreationDate, ColSummary, ColURL}

// DefaultSelection is the column selection shown before the user picks one.
var DefaultSelection = []string{ColTitle, ColCountry, ColCreationDate}

// RawReport is one element of the API's data array, kept as raw JSON.
// Fields are read through the accessor methods, which never fail.
type RawReport []byte

// field returns the value at a gjson path, or table.NotAvailable when the
// path is absent, null, or the record is not a JSON object.
func (r RawReport) field(path string) string {
	if !gjson.ValidBytes(r) {
		return table.NotAvailable
	}
	res := gjson.GetBytes(r, path)
	if !res.Exists() || res.Type == gjson.Null {
		return table.NotAvailable
	}
	return res.String()
}

// ID returns the report's API identifier.
func (r RawReport) ID() string { return r.field("id") }

// Title returns fields.title.
func (r RawReport) Title() string { return r.field("fields.title") }

// Country returns the primary country's name.
func (r RawReport) Country() string { return r.field("fields.primary_country.name") }

// CreationDate returns fields.date.created as sent by the API.
func (r RawReport) CreationDate() string { return r.field("fields.date.created") }

// Summary returns the report body.
func (r RawReport) Summary() string { return r.field("fields.body") }

// URL returns the report's API link.
func (r RawReport) URL() string { return r.field("href") }

// Normalize flattens raw reports into the report table, one row per record
// in input order.
func Normalize(reports []RawReport) *table.Table {
	t := table.MustNew(Columns...)
	for _, r := range reports {
		// width always matches Columns
		_ = t.Append(r.Title(), r.Country(), r.CreationDate(), r.Summary(), r.URL())
	}
	return t
}
