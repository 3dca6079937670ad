package frame

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowSchema converts the frame's column kinds into an arrow.Schema, used
// at the Parquet/Arrow-IPC write boundary.
func (f *Frame) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(f.Columns))
	for i, c := range f.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowTypeOf(c.Kind), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowTypeOf(k Kind) arrow.DataType {
	switch k {
	case KindI32:
		return arrow.PrimitiveTypes.Int32
	case KindI64:
		return arrow.PrimitiveTypes.Int64
	case KindF32:
		return arrow.PrimitiveTypes.Float32
	case KindF64:
		return arrow.PrimitiveTypes.Float64
	case KindStr:
		return arrow.BinaryTypes.String
	case KindBool:
		return arrow.FixedWidthTypes.Boolean
	case KindDate:
		return arrow.FixedWidthTypes.Date32
	case KindDatetime:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.Null
	}
}

// ToArrowRecord builds an arrow.Record from the frame using the given
// allocator. The caller owns the returned record and must Release it.
func (f *Frame) ToArrowRecord(mem memory.Allocator) arrow.Record {
	schema := f.ArrowSchema()
	cols := make([]arrow.Array, len(f.Columns))
	for i, c := range f.Columns {
		cols[i] = buildArrowArray(mem, c)
	}
	rec := array.NewRecord(schema, cols, int64(f.NRows()))
	for _, a := range cols {
		a.Release()
	}
	return rec
}

func buildArrowArray(mem memory.Allocator, c *Column) arrow.Array {
	switch c.Kind {
	case KindI32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		for i, v := range c.I32 {
			if c.Valid[i] {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case KindI64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for i, v := range c.I64 {
			if c.Valid[i] {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case KindF32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		for i, v := range c.F32 {
			if c.Valid[i] {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case KindF64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for i, v := range c.F64 {
			if c.Valid[i] {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case KindStr:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for i, v := range c.Str {
			if c.Valid[i] {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case KindBool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for i, v := range c.B {
			if c.Valid[i] {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case KindDate:
		b := array.NewDate32Builder(mem)
		defer b.Release()
		for i, v := range c.Date {
			if c.Valid[i] {
				b.Append(arrow.Date32(v))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case KindDatetime:
		b := array.NewTimestampBuilder(mem, arrow.FixedWidthTypes.Timestamp_us.(*arrow.TimestampType))
		defer b.Release()
		for i, v := range c.Datetime {
			if c.Valid[i] {
				b.Append(arrow.Timestamp(v.UnixMicro()))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	default:
		b := array.NewNullBuilder(mem)
		defer b.Release()
		for range c.Valid {
			b.AppendNull()
		}
		return b.NewArray()
	}
}

// FromArrowRecord converts an arrow.Record back into a Frame, the inverse
// of ToArrowRecord used when reading Parquet snapshots or Arrow-IPC files.
func FromArrowRecord(rec arrow.Record) (*Frame, error) {
	f := &Frame{Columns: make([]*Column, rec.NumCols())}
	for i := 0; i < int(rec.NumCols()); i++ {
		field := rec.Schema().Field(i)
		arr := rec.Column(i)
		col, err := columnFromArrowArray(field.Name, arr)
		if err != nil {
			return nil, fmt.Errorf("frame: column %q: %w", field.Name, err)
		}
		f.Columns[i] = col
	}
	return f, nil
}

func columnFromArrowArray(name string, arr arrow.Array) (*Column, error) {
	n := arr.Len()
	switch a := arr.(type) {
	case *array.Int32:
		c := NewColumn(name, KindI32, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				c.Valid[i] = true
				c.I32[i] = a.Value(i)
			}
		}
		return c, nil
	case *array.Int64:
		c := NewColumn(name, KindI64, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				c.Valid[i] = true
				c.I64[i] = a.Value(i)
			}
		}
		return c, nil
	case *array.Float32:
		c := NewColumn(name, KindF32, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				c.Valid[i] = true
				c.F32[i] = a.Value(i)
			}
		}
		return c, nil
	case *array.Float64:
		c := NewColumn(name, KindF64, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				c.Valid[i] = true
				c.F64[i] = a.Value(i)
			}
		}
		return c, nil
	case *array.String:
		c := NewColumn(name, KindStr, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				c.Valid[i] = true
				c.Str[i] = a.Value(i)
			}
		}
		return c, nil
	case *array.Boolean:
		c := NewColumn(name, KindBool, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				c.Valid[i] = true
				c.B[i] = a.Value(i)
			}
		}
		return c, nil
	case *array.Date32:
		c := NewColumn(name, KindDate, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				c.Valid[i] = true
				c.Date[i] = int32(a.Value(i))
			}
		}
		return c, nil
	case *array.Timestamp:
		c := NewColumn(name, KindDatetime, n)
		for i := 0; i < n; i++ {
			if !a.IsNull(i) {
				c.Valid[i] = true
				c.Datetime[i] = time.UnixMicro(int64(a.Value(i))).UTC()
			}
		}
		return c, nil
	default:
		c := NewColumn(name, KindNull, n)
		return c, nil
	}
}
