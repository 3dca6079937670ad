// Package frame is strata's host dataframe engine: a small in-memory
// columnar batch with per-cell null tracking, the evaluation target for
// internal/expr's compiled expressions and the in-memory representation
// internal/snapshot converts to/from Arrow records for Parquet I/O.
package frame

import (
	"fmt"
	"time"

	"github.com/malbeclabs/strata/internal/types"
)

// Kind is the in-memory storage kind of a Column. It has one kind per
// types.FieldType plus the untyped Null kind used for columns synthesized
// when a source lacks a declared field (§4.2 step 1).
type Kind int

const (
	KindNull Kind = iota
	KindI32
	KindI64
	KindF32
	KindF64
	KindStr
	KindBool
	KindDate     // days since Unix epoch, stored as int32
	KindDatetime // UTC, stored as time.Time
)

func KindFromFieldType(t types.FieldType) (Kind, error) {
	switch t {
	case types.FieldI32:
		return KindI32, nil
	case types.FieldI64:
		return KindI64, nil
	case types.FieldF32:
		return KindF32, nil
	case types.FieldF64:
		return KindF64, nil
	case types.FieldStr:
		return KindStr, nil
	case types.FieldBool:
		return KindBool, nil
	case types.FieldDate:
		return KindDate, nil
	case types.FieldDatetime:
		return KindDatetime, nil
	default:
		return KindNull, fmt.Errorf("frame: unknown field type %q", t)
	}
}

// Column is a single typed, nullable vector. Exactly one of the typed
// slices is populated, selected by Kind; Valid marks which positions hold
// a real value (false = null, value undefined).
type Column struct {
	Name  string
	Kind  Kind
	Valid []bool

	I32 []int32
	I64 []int64
	F32 []float32
	F64 []float64
	Str []string
	B   []bool
	// Date holds days-since-epoch as int32; Datetime holds UTC instants as
	// time.Time. Each has its own slice.
	Date     []int32
	Datetime []time.Time
}

// Len returns the column's row count.
func (c *Column) Len() int { return len(c.Valid) }

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool { return !c.Valid[i] }

// NewColumn allocates a column of the given kind and length, all-null.
func NewColumn(name string, kind Kind, n int) *Column {
	c := &Column{Name: name, Kind: kind, Valid: make([]bool, n)}
	switch kind {
	case KindI32:
		c.I32 = make([]int32, n)
	case KindI64:
		c.I64 = make([]int64, n)
	case KindF32:
		c.F32 = make([]float32, n)
	case KindF64:
		c.F64 = make([]float64, n)
	case KindStr:
		c.Str = make([]string, n)
	case KindBool:
		c.B = make([]bool, n)
	case KindDate:
		c.Date = make([]int32, n)
	case KindDatetime:
		c.Datetime = make([]time.Time, n)
	}
	return c
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	Columns []*Column
}

// NRows returns the frame's row count (0 if it has no columns).
func (f *Frame) NRows() int {
	if len(f.Columns) == 0 {
		return 0
	}
	return f.Columns[0].Len()
}

// NewEmpty builds a zero-row frame with one all-null-typed column per
// field, matching a declared types.Schema. This is the Go equivalent of
// the original's empty_lazyframe_with_schema (C3's scan_or_empty path).
func NewEmpty(schema types.Schema) (*Frame, error) {
	f := &Frame{}
	for _, field := range schema.Fields {
		kind, err := KindFromFieldType(field.Type)
		if err != nil {
			return nil, err
		}
		f.Columns = append(f.Columns, NewColumn(field.Name, kind, 0))
	}
	return f, nil
}

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnNames returns the frame's column names in order.
func (f *Frame) ColumnNames() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Name
	}
	return out
}

// WithColumn returns a new Frame with col appended or replacing an
// existing column of the same name, leaving f untouched.
func (f *Frame) WithColumn(col *Column) *Frame {
	out := &Frame{Columns: make([]*Column, 0, len(f.Columns)+1)}
	replaced := false
	for _, c := range f.Columns {
		if c.Name == col.Name {
			out.Columns = append(out.Columns, col)
			replaced = true
			continue
		}
		out.Columns = append(out.Columns, c)
	}
	if !replaced {
		out.Columns = append(out.Columns, col)
	}
	return out
}

// Select projects the frame down to the named columns, in the given
// order. Missing columns are an error (callers that want null-fill use
// internal/coerce.EnforceSchema instead).
func (f *Frame) Select(names []string) (*Frame, error) {
	out := &Frame{Columns: make([]*Column, 0, len(names))}
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, fmt.Errorf("frame: select: column %q not found", n)
		}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// Filter returns a new Frame keeping only rows where mask[i] is true and
// non-null; null mask entries are treated as false (never kept), matching
// the spec's "nulls in filter drop the row" rule (§8 scenario 3).
func (f *Frame) Filter(mask *Column) (*Frame, error) {
	if mask.Kind != KindBool {
		return nil, fmt.Errorf("frame: filter mask must be bool, got kind %d", mask.Kind)
	}
	keep := make([]int, 0, mask.Len())
	for i := 0; i < mask.Len(); i++ {
		if mask.Valid[i] && mask.B[i] {
			keep = append(keep, i)
		}
	}
	return f.takeIndices(keep), nil
}

func (f *Frame) takeIndices(idx []int) *Frame {
	out := &Frame{Columns: make([]*Column, len(f.Columns))}
	for ci, c := range f.Columns {
		nc := NewColumn(c.Name, c.Kind, len(idx))
		for outPos, srcPos := range idx {
			nc.Valid[outPos] = c.Valid[srcPos]
			if !c.Valid[srcPos] {
				continue
			}
			switch c.Kind {
			case KindI32:
				nc.I32[outPos] = c.I32[srcPos]
			case KindI64:
				nc.I64[outPos] = c.I64[srcPos]
			case KindF32:
				nc.F32[outPos] = c.F32[srcPos]
			case KindF64:
				nc.F64[outPos] = c.F64[srcPos]
			case KindStr:
				nc.Str[outPos] = c.Str[srcPos]
			case KindBool:
				nc.B[outPos] = c.B[srcPos]
			case KindDate:
				nc.Date[outPos] = c.Date[srcPos]
			case KindDatetime:
				nc.Datetime[outPos] = c.Datetime[srcPos]
			}
		}
		out.Columns[ci] = nc
	}
	return out
}

// TakeIndices is the exported form of takeIndices, used by internal/dedup
// to materialize anti-join survivors.
func (f *Frame) TakeIndices(idx []int) *Frame { return f.takeIndices(idx) }

// Concat stacks frames with identical column names/kinds row-wise.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return &Frame{}, nil
	}
	base := frames[0]
	out := &Frame{Columns: make([]*Column, len(base.Columns))}
	for i, c := range base.Columns {
		out.Columns[i] = NewColumn(c.Name, c.Kind, 0)
	}
	for _, f := range frames {
		if len(f.Columns) != len(base.Columns) {
			return nil, fmt.Errorf("frame: concat: column count mismatch")
		}
		for i, c := range f.Columns {
			if c.Name != out.Columns[i].Name || c.Kind != out.Columns[i].Kind {
				return nil, fmt.Errorf("frame: concat: column %q shape mismatch", c.Name)
			}
			appendColumn(out.Columns[i], c)
		}
	}
	return out, nil
}

func appendColumn(dst, src *Column) {
	dst.Valid = append(dst.Valid, src.Valid...)
	switch dst.Kind {
	case KindI32:
		dst.I32 = append(dst.I32, src.I32...)
	case KindI64:
		dst.I64 = append(dst.I64, src.I64...)
	case KindF32:
		dst.F32 = append(dst.F32, src.F32...)
	case KindF64:
		dst.F64 = append(dst.F64, src.F64...)
	case KindStr:
		dst.Str = append(dst.Str, src.Str...)
	case KindBool:
		dst.B = append(dst.B, src.B...)
	case KindDate:
		dst.Date = append(dst.Date, src.Date...)
	case KindDatetime:
		dst.Datetime = append(dst.Datetime, src.Datetime...)
	}
}
