package sweep

import (
	"sort"

	"github.com/banshee-data/expression.report/internal/sim"
)

// Key is the two-level column key of a results table: one environmental
// condition crossed with one comparison metric.
type Key struct {
	Condition string
	Metric    string
}

// Value is one results cell. Missing marks a metric that exists in the schema
// but never reached a valid state; its Values are nil. Scalar distinguishes a
// simple comparison's single value from a one-threshold vector.
type Value struct {
	Values  []float64
	Scalar  bool
	Missing bool
}

// MissingValue is the explicit missing-value marker.
func MissingValue() Value { return Value{Missing: true} }

// Record is one simulation's parsed comparison output: every condition
// present in the simulation contributes all six metrics, reached or not.
type Record map[Key]Value

// Table is the aggregate result set of a sweep: one row per completed sample,
// columns keyed by (condition, metric). Rows are ascending sample indices;
// Columns is the union across contributing records in canonical order
// (conditions sorted, metrics in sim.MetricNames order).
type Table struct {
	Rows    []int
	Columns []Key
	Cells   map[int]Record
}

// NewTable assembles a table from per-index records. records must hold one
// entry per contributing sample index; iteration order of the map does not
// affect the result.
func NewTable(records map[int]Record) *Table {
	t := &Table{Cells: make(map[int]Record, len(records))}

	conditions := map[string]bool{}
	for i, rec := range records {
		t.Rows = append(t.Rows, i)
		t.Cells[i] = rec
		for k := range rec {
			conditions[k.Condition] = true
		}
	}
	sort.Ints(t.Rows)

	ordered := make([]string, 0, len(conditions))
	for c := range conditions {
		ordered = append(ordered, c)
	}
	sort.Strings(ordered)
	for _, c := range ordered {
		for _, m := range sim.MetricNames {
			t.Columns = append(t.Columns, Key{Condition: c, Metric: m})
		}
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Conditions returns the distinct conditions present, sorted.
func (t *Table) Conditions() []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range t.Columns {
		if !seen[k.Condition] {
			seen[k.Condition] = true
			out = append(out, k.Condition)
		}
	}
	return out
}

// Value returns the cell for (row index, key). A row that never produced the
// column (condition absent from that simulation) reports ok=false, which is
// distinct from an explicit missing-value marker.
func (t *Table) Value(index int, key Key) (Value, bool) {
	rec, ok := t.Cells[index]
	if !ok {
		return Value{}, false
	}
	v, ok := rec[key]
	return v, ok
}

// Slice is a single-level cross-section of a Table: the same rows, columns
// reduced to one string key (metric names for a condition slice, condition
// names for a metric slice).
type Slice struct {
	Rows    []int
	Columns []string
	Cells   map[int]map[string]Value
}

// SliceByMetric returns the cross-section holding the given metric across all
// conditions.
func (t *Table) SliceByMetric(metric string) *Slice {
	s := &Slice{
		Rows:  append([]int(nil), t.Rows...),
		Cells: make(map[int]map[string]Value, len(t.Rows)),
	}
	s.Columns = t.Conditions()
	for _, i := range t.Rows {
		row := make(map[string]Value, len(s.Columns))
		for _, c := range s.Columns {
			if v, ok := t.Value(i, Key{Condition: c, Metric: metric}); ok {
				row[c] = v
			}
		}
		s.Cells[i] = row
	}
	return s
}

// SliceByCondition returns the cross-section holding the given condition
// across all six metrics.
func (t *Table) SliceByCondition(condition string) *Slice {
	s := &Slice{
		Rows:    append([]int(nil), t.Rows...),
		Columns: append([]string(nil), sim.MetricNames...),
		Cells:   make(map[int]map[string]Value, len(t.Rows)),
	}
	for _, i := range t.Rows {
		row := make(map[string]Value, len(s.Columns))
		for _, m := range s.Columns {
			if v, ok := t.Value(i, Key{Condition: condition, Metric: m}); ok {
				row[m] = v
			}
		}
		s.Cells[i] = row
	}
	return s
}

// ScalarColumn extracts one column as floats, one entry per row that holds a
// present, non-missing value. Vector values contribute their last component,
// matching the reference threshold used for reporting.
func (t *Table) ScalarColumn(key Key) []float64 {
	var out []float64
	for _, i := range t.Rows {
		v, ok := t.Value(i, key)
		if !ok || v.Missing || len(v.Values) == 0 {
			continue
		}
		out = append(out, v.Values[len(v.Values)-1])
	}
	return out
}
