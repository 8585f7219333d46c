package table

import (
	"strconv"
	"strings"
)

// TitleAliases are the header names accepted as the title join column of an
// uploaded supplement.
var TitleAliases = []string{"Title", "Título", "Titulo"}

// JoinStats describes how a left join resolved its rows.
type JoinStats struct {
	Matched    int
	Unmatched  int
	Duplicates int // supplement rows shadowed by an earlier row with the same key
	Renamed    map[string]string
}

// ResolveColumn finds the column of t matching key or one of its aliases.
// Exact names win over trimmed case-insensitive matches.
func ResolveColumn(t *Table, key string, aliases ...string) (string, bool) {
	candidates := append([]string{key}, aliases...)
	for _, c := range candidates {
		if t.HasColumn(c) {
			return c, true
		}
	}
	for _, c := range candidates {
		want := strings.TrimSpace(c)
		for _, col := range t.columns {
			if strings.EqualFold(strings.TrimSpace(col), want) {
				return col, true
			}
		}
	}
	return "", false
}

// LeftJoin appends the supplement's columns to every base row whose key
// matches. All base rows are kept exactly once, in order, with their
// original columns unchanged. Unmatched base rows get empty supplement
// cells; unmatched supplement rows are dropped. When several supplement
// rows share a key the first one wins.
//
// A nil supplement returns base unchanged. A supplement without a column
// resolvable to key (or one of aliases) is a *SchemaError.
func LeftJoin(base, supplement *Table, key string, aliases ...string) (*Table, JoinStats, error) {
	var stats JoinStats
	if supplement == nil {
		return base, stats, nil
	}

	baseKey := base.ColumnIndex(key)
	if baseKey < 0 {
		return nil, stats, &SchemaError{Column: key, Reason: "base table has no join column"}
	}
	supKeyName, ok := ResolveColumn(supplement, key, aliases...)
	if !ok {
		return nil, stats, &SchemaError{Column: key, Reason: "uploaded table has no join column"}
	}
	supKey := supplement.index[supKeyName]

	lookup := make(map[string]int, len(supplement.rows))
	for i, r := range supplement.rows {
		k := strings.TrimSpace(r[supKey])
		if _, seen := lookup[k]; seen {
			stats.Duplicates++
			continue
		}
		lookup[k] = i
	}

	columns := base.Columns()
	var extra []int
	for i, name := range supplement.columns {
		if i == supKey {
			continue
		}
		extra = append(extra, i)
		unique := uniqueName(name, columns)
		if unique != name {
			if stats.Renamed == nil {
				stats.Renamed = make(map[string]string)
			}
			stats.Renamed[name] = unique
		}
		columns = append(columns, unique)
	}

	out, err := New(columns...)
	if err != nil {
		return nil, stats, err
	}
	out.rows = make([][]string, 0, len(base.rows))

	for _, r := range base.rows {
		row := make([]string, 0, len(columns))
		row = append(row, r...)

		match, found := lookup[strings.TrimSpace(r[baseKey])]
		if found {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
		for _, i := range extra {
			if found {
				row = append(row, supplement.rows[match][i])
			} else {
				row = append(row, "")
			}
		}
		out.rows = append(out.rows, row)
	}

	return out, stats, nil
}

func uniqueName(name string, taken []string) string {
	exists := func(n string) bool {
		for _, t := range taken {
			if t == n {
				return true
			}
		}
		return false
	}
	if !exists(name) {
		return name
	}
	for n := 2; ; n++ {
		candidate := name + "_" + strconv.Itoa(n)
		if !exists(candidate) {
			return candidate
		}
	}
}
