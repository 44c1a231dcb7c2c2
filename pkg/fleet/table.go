package fleet

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Column selects one column of the fleet table.
type Column int

const (
	ColumnInstanceID Column = iota
	ColumnGPUName
	ColumnGPUCount
	ColumnHourlyCost
	ColumnCostPerGPU
	ColumnHashRate
	ColumnHashPerGPU
	ColumnBlocks
	ColumnRuntime
	ColumnBlocksPerHour
	ColumnHashPerDollar
	ColumnCostPerBlock
	ColumnLabel
)

// DefaultSortColumn orders the table cheapest block first.
const DefaultSortColumn = ColumnCostPerBlock

var columnNames = [...]string{
	"Instance ID", "GPU Name", "GPU's", "USD/h", "USD/GPU", "Instance h/s", "GPU h/s",
	"XNM Blocks", "Runtime", "Block/h", "h/s/USD", "USD/Block", "Label",
}

// Unavailable is how an unset value renders.
const Unavailable = "N/A"

// Columns returns the table header in display order.
func Columns() []string {
	return slices.Clone(columnNames[:])
}

func (c Column) Valid() bool {
	return c >= 0 && int(c) < len(columnNames)
}

func (c Column) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Column(%d)", int(c))
	}
	return columnNames[c]
}

// ParseColumn accepts a header name (case-insensitive) or a zero-based index.
func ParseColumn(s string) (Column, error) {
	s = strings.TrimSpace(s)
	for i, name := range columnNames {
		if strings.EqualFold(name, s) {
			return Column(i), nil
		}
	}
	if i, err := strconv.Atoi(s); err == nil {
		if c := Column(i); c.Valid() {
			return c, nil
		}
		return 0, fmt.Errorf("%w: sort column index %d out of range [0,%d)", ErrInvalidConfig, i, len(columnNames))
	}
	return 0, fmt.Errorf("%w: unknown sort column %q", ErrInvalidConfig, s)
}

// Cell is one rendered table value. Numeric cells keep their raw value so
// sorting does not depend on display rounding.
type Cell struct {
	Text        string
	Number      float64
	Numeric     bool
	Unavailable bool
}

func textCell(s string) Cell {
	return Cell{Text: s}
}

func numberCell(v float64, places int) Cell {
	return Cell{Text: strconv.FormatFloat(v, 'f', places, 64), Number: v, Numeric: true}
}

func intCell(v int) Cell {
	return Cell{Text: strconv.Itoa(v), Number: float64(v), Numeric: true}
}

func optionalCell(o Optional[float64], places int) Cell {
	v, ok := o.Get()
	if !ok {
		return Cell{Text: Unavailable, Unavailable: true}
	}
	return numberCell(v, places)
}

// Cell renders column c of the row.
func (m InstanceMetrics) Cell(c Column) Cell {
	switch c {
	case ColumnInstanceID:
		return textCell(m.ID)
	case ColumnGPUName:
		return textCell(m.HardwareClass)
	case ColumnGPUCount:
		if n, ok := m.GPUCount.Get(); ok {
			return intCell(n)
		}
		return Cell{Text: Unavailable, Unavailable: true}
	case ColumnHourlyCost:
		return optionalCell(m.HourlyCost, 4)
	case ColumnCostPerGPU:
		return optionalCell(m.CostPerGPU, 4)
	case ColumnHashRate:
		return numberCell(m.Sample.HashRate, 2)
	case ColumnHashPerGPU:
		return optionalCell(m.HashPerGPU, 2)
	case ColumnBlocks:
		return intCell(m.Sample.NormalBlocks)
	case ColumnRuntime:
		return numberCell(m.RuntimeHours, 2)
	case ColumnBlocksPerHour:
		return numberCell(m.BlocksPerHour, 2)
	case ColumnHashPerDollar:
		return optionalCell(m.HashPerDollar, 2)
	case ColumnCostPerBlock:
		return optionalCell(m.CostPerBlock, 4)
	case ColumnLabel:
		if l, ok := m.Label.Get(); ok {
			return textCell(l)
		}
		return Cell{Text: Unavailable, Unavailable: true}
	}
	return Cell{Text: Unavailable, Unavailable: true}
}

// Cells renders the full row in column order.
func (m InstanceMetrics) Cells() []Cell {
	cells := make([]Cell, len(columnNames))
	for i := range cells {
		cells[i] = m.Cell(Column(i))
	}
	return cells
}

// float coerces the cell for numeric sorting. Unavailable cells coerce to
// negative infinity.
func (c Cell) float() (float64, bool) {
	if c.Unavailable {
		return math.Inf(-1), true
	}
	if c.Numeric {
		return c.Number, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// sortText is the lexicographic key. Unavailable cells sort as "".
func (c Cell) sortText() string {
	if c.Unavailable {
		return ""
	}
	return c.Text
}

// SortOptions selects the sort column and direction.
type SortOptions struct {
	Column     Column
	Descending bool
}

// DefaultSortOptions sorts by cost per block, ascending.
func DefaultSortOptions() SortOptions {
	return SortOptions{Column: DefaultSortColumn}
}

// SortRows returns a sorted copy of rows. The column is sorted numerically
// when every value coerces to a number and lexicographically otherwise; the
// choice is made for the whole column. Unavailable values take the minimum
// key. Ties fall back to comparing the full rendered rows, and descending
// order is the exact reverse of ascending order.
func SortRows(rows []InstanceMetrics, opts SortOptions) ([]InstanceMetrics, error) {
	if !opts.Column.Valid() {
		return nil, fmt.Errorf("%w: sort column %d out of range", ErrInvalidConfig, int(opts.Column))
	}

	type keyed struct {
		row   InstanceMetrics
		cells []Cell
		num   float64
	}

	items := make([]keyed, len(rows))
	numeric := true
	for i, r := range rows {
		cells := r.Cells()
		v, ok := cells[opts.Column].float()
		if !ok {
			numeric = false
		}
		items[i] = keyed{row: r, cells: cells, num: v}
	}

	compare := func(a, b keyed) int {
		var c int
		if numeric {
			c = cmp.Compare(a.num, b.num)
		} else {
			c = strings.Compare(a.cells[opts.Column].sortText(), b.cells[opts.Column].sortText())
		}
		if c != 0 {
			return c
		}
		for i := range a.cells {
			if c := strings.Compare(a.cells[i].sortText(), b.cells[i].sortText()); c != 0 {
				return c
			}
		}
		return 0
	}

	if opts.Descending {
		slices.SortStableFunc(items, func(a, b keyed) int { return compare(b, a) })
	} else {
		slices.SortStableFunc(items, compare)
	}

	sorted := make([]InstanceMetrics, len(items))
	for i, it := range items {
		sorted[i] = it.row
	}
	return sorted, nil
}
