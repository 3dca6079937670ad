package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expr is a compiled columnar expression node, the evaluation target that
// internal/expr's IR compiler produces. Eval must not mutate f.
type Expr interface {
	Eval(f *Frame) (*Column, error)
}

// ColExpr references an existing column by name.
type ColExpr struct{ Name string }

func (e ColExpr) Eval(f *Frame) (*Column, error) {
	c, ok := f.Column(e.Name)
	if !ok {
		return nil, fmt.Errorf("frame: column %q not found", e.Name)
	}
	return c, nil
}

// LitExpr broadcasts a single scalar across every row.
type LitExpr struct {
	Kind Kind
	Null bool
	I64  int64
	F64  float64
	Str  string
	Bool bool
}

func (e LitExpr) Eval(f *Frame) (*Column, error) {
	n := f.NRows()
	kind := e.Kind
	c := NewColumn("", kind, n)
	if e.Null {
		return c, nil
	}
	for i := 0; i < n; i++ {
		c.Valid[i] = true
		switch kind {
		case KindI64:
			c.I64[i] = e.I64
		case KindF64:
			c.F64[i] = e.F64
		case KindStr:
			c.Str[i] = e.Str
		case KindBool:
			c.B[i] = e.Bool
		}
	}
	return c, nil
}

// BinOp is an arithmetic or comparison binary operator.
type BinOp string

const (
	OpAdd BinOp = "+"
	OpSub BinOp = "-"
	OpMul BinOp = "*"
	OpDiv BinOp = "/"
	OpEQ  BinOp = "=="
	OpNE  BinOp = "!="
	OpGT  BinOp = ">"
	OpGE  BinOp = ">="
	OpLT  BinOp = "<"
	OpLE  BinOp = "<="
)

// BinaryExpr applies a binary op over two operand expressions, promoting
// both operands to float64 for evaluation. Null compared/combined with
// anything yields null (§4.1). Only numeric and bool values, and strings
// that parse as numbers, are promoted; any other value (a non-numeric
// string, a date, a datetime) also yields null, so such values are never
// compared with each other.
type BinaryExpr struct {
	Op          BinOp
	Left, Right Expr
}

func (e BinaryExpr) Eval(f *Frame) (*Column, error) {
	l, err := e.Left.Eval(f)
	if err != nil {
		return nil, err
	}
	r, err := e.Right.Eval(f)
	if err != nil {
		return nil, err
	}
	n := f.NRows()
	isCompare := e.Op == OpEQ || e.Op == OpNE || e.Op == OpGT || e.Op == OpGE || e.Op == OpLT || e.Op == OpLE
	kind := KindF64
	if isCompare {
		kind = KindBool
	}
	out := NewColumn("", kind, n)
	for i := 0; i < n; i++ {
		lv, lok := asFloat(l, i)
		rv, rok := asFloat(r, i)
		if !lok || !rok {
			continue // leaves Valid[i] = false
		}
		out.Valid[i] = true
		switch e.Op {
		case OpAdd:
			out.F64[i] = lv + rv
		case OpSub:
			out.F64[i] = lv - rv
		case OpMul:
			out.F64[i] = lv * rv
		case OpDiv:
			out.F64[i] = lv / rv // +/-Inf or NaN on zero divisor, per engine rules not pipeline error
		case OpEQ:
			out.B[i] = lv == rv
		case OpNE:
			out.B[i] = lv != rv
		case OpGT:
			out.B[i] = lv > rv
		case OpGE:
			out.B[i] = lv >= rv
		case OpLT:
			out.B[i] = lv < rv
		case OpLE:
			out.B[i] = lv <= rv
		}
	}
	return out, nil
}

func asFloat(c *Column, i int) (float64, bool) {
	if !c.Valid[i] {
		return 0, false
	}
	switch c.Kind {
	case KindI32:
		return float64(c.I32[i]), true
	case KindI64:
		return float64(c.I64[i]), true
	case KindF32:
		return float64(c.F32[i]), true
	case KindF64:
		return c.F64[i], true
	case KindBool:
		if c.B[i] {
			return 1, true
		}
		return 0, true
	case KindStr:
		v, err := strconv.ParseFloat(c.Str[i], 64)
		if err != nil {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

// CastExpr casts its operand to a target Kind.
type CastExpr struct {
	Operand Expr
	To      Kind
	// DateFmt is the strptime-like layout used when To == KindDate (via
	// string). Empty means the default YYYY-MM-DD (§4.1 to_date default).
	DateFmt string
}

func (e CastExpr) Eval(f *Frame) (*Column, error) {
	in, err := e.Operand.Eval(f)
	if err != nil {
		return nil, err
	}
	n := in.Len()
	out := NewColumn("", e.To, n)
	for i := 0; i < n; i++ {
		if !in.Valid[i] {
			continue
		}
		switch e.To {
		case KindStr:
			out.Valid[i] = true
			out.Str[i] = stringOf(in, i)
		case KindI64:
			v, ok := toInt64(in, i)
			out.Valid[i], out.I64[i] = ok, v
		case KindF64:
			v, ok := asFloat(in, i)
			out.Valid[i], out.F64[i] = ok, v
		case KindDate:
			s := stringOf(in, i)
			layout := e.DateFmt
			if layout == "" {
				layout = "2006-01-02"
			}
			t, err := time.Parse(strptimeToGoLayout(layout), s)
			if err != nil {
				continue // non-strict: invalid -> null, never a pipeline error
			}
			out.Valid[i] = true
			out.Date[i] = int32(t.UTC().Unix() / 86400)
		default:
			return nil, fmt.Errorf("frame: unsupported cast target kind %d", e.To)
		}
	}
	return out, nil
}

func stringOf(c *Column, i int) string {
	switch c.Kind {
	case KindI32:
		return strconv.FormatInt(int64(c.I32[i]), 10)
	case KindI64:
		return strconv.FormatInt(c.I64[i], 10)
	case KindF32:
		return strconv.FormatFloat(float64(c.F32[i]), 'g', -1, 32)
	case KindF64:
		return strconv.FormatFloat(c.F64[i], 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(c.B[i])
	case KindStr:
		return c.Str[i]
	case KindDate:
		return time.Unix(int64(c.Date[i])*86400, 0).UTC().Format("2006-01-02")
	case KindDatetime:
		return c.Datetime[i].Format(time.RFC3339)
	default:
		return ""
	}
}

func toInt64(c *Column, i int) (int64, bool) {
	switch c.Kind {
	case KindI32:
		return int64(c.I32[i]), true
	case KindI64:
		return c.I64[i], true
	case KindF32:
		return int64(c.F32[i]), true
	case KindF64:
		return int64(c.F64[i]), true
	case KindStr:
		v, err := strconv.ParseInt(strings.TrimSpace(c.Str[i]), 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

// strptimeToGoLayout maps the handful of strptime directives the spec's
// to_date(fmt) exposes onto Go's reference-time layout.
func strptimeToGoLayout(fmt string) string {
	r := strings.NewReplacer(
		"%Y", "2006", "%m", "01", "%d", "02",
		"%H", "15", "%M", "04", "%S", "05",
	)
	return r.Replace(fmt)
}

// ZfillExpr casts its operand to string and left-pads with '0' to Len
// characters.
type ZfillExpr struct {
	Operand Expr
	Len     int
}

func (e ZfillExpr) Eval(f *Frame) (*Column, error) {
	in, err := e.Operand.Eval(f)
	if err != nil {
		return nil, err
	}
	n := in.Len()
	out := NewColumn("", KindStr, n)
	for i := 0; i < n; i++ {
		if !in.Valid[i] {
			continue
		}
		out.Valid[i] = true
		s := stringOf(in, i)
		if len(s) < e.Len {
			s = strings.Repeat("0", e.Len-len(s)) + s
		}
		out.Str[i] = s
	}
	return out, nil
}

// WhenExpr is an if/then/else conditional. Else defaults to an all-null
// column of Then's kind when nil.
type WhenExpr struct {
	Pred, Then, Else Expr
}

func (e WhenExpr) Eval(f *Frame) (*Column, error) {
	p, err := e.Pred.Eval(f)
	if err != nil {
		return nil, err
	}
	t, err := e.Then.Eval(f)
	if err != nil {
		return nil, err
	}
	var el *Column
	if e.Else != nil {
		el, err = e.Else.Eval(f)
		if err != nil {
			return nil, err
		}
	} else {
		el = NewColumn("", t.Kind, f.NRows())
	}
	n := f.NRows()
	out := NewColumn("", t.Kind, n)
	for i := 0; i < n; i++ {
		if p.Valid[i] && p.B[i] {
			out.Valid[i] = t.Valid[i]
			copyCell(out, t, i)
		} else {
			out.Valid[i] = el.Valid[i]
			copyCell(out, el, i)
		}
	}
	return out, nil
}

func copyCell(dst, src *Column, i int) {
	if !dst.Valid[i] {
		return
	}
	switch dst.Kind {
	case KindI32:
		dst.I32[i] = src.I32[i]
	case KindI64:
		dst.I64[i] = src.I64[i]
	case KindF32:
		dst.F32[i] = src.F32[i]
	case KindF64:
		dst.F64[i] = src.F64[i]
	case KindStr:
		dst.Str[i] = src.Str[i]
	case KindBool:
		dst.B[i] = src.B[i]
	case KindDate:
		dst.Date[i] = src.Date[i]
	case KindDatetime:
		dst.Datetime[i] = src.Datetime[i]
	}
}

// IsNullExpr / IsNotNullExpr are the null-predicate leaf nodes.
type IsNullExpr struct{ Operand Expr }

func (e IsNullExpr) Eval(f *Frame) (*Column, error) {
	in, err := e.Operand.Eval(f)
	if err != nil {
		return nil, err
	}
	out := NewColumn("", KindBool, in.Len())
	for i := range out.Valid {
		out.Valid[i] = true
		out.B[i] = !in.Valid[i]
	}
	return out, nil
}

type IsNotNullExpr struct{ Operand Expr }

func (e IsNotNullExpr) Eval(f *Frame) (*Column, error) {
	in, err := e.Operand.Eval(f)
	if err != nil {
		return nil, err
	}
	out := NewColumn("", KindBool, in.Len())
	for i := range out.Valid {
		out.Valid[i] = true
		out.B[i] = in.Valid[i]
	}
	return out, nil
}

// StrLenExpr computes the character length of its operand cast to string;
// used by C2/C5 to detect the empty-string-as-null and parse-fail cases.
type StrLenExpr struct{ Operand Expr }

func (e StrLenExpr) Eval(f *Frame) (*Column, error) {
	in, err := e.Operand.Eval(f)
	if err != nil {
		return nil, err
	}
	out := NewColumn("", KindI64, in.Len())
	for i := 0; i < in.Len(); i++ {
		if !in.Valid[i] {
			continue
		}
		out.Valid[i] = true
		out.I64[i] = int64(len([]rune(stringOf(in, i))))
	}
	return out, nil
}

// NotExpr negates a boolean column; null stays null.
type NotExpr struct{ Operand Expr }

func (e NotExpr) Eval(f *Frame) (*Column, error) {
	in, err := e.Operand.Eval(f)
	if err != nil {
		return nil, err
	}
	out := NewColumn("", KindBool, in.Len())
	for i := 0; i < in.Len(); i++ {
		if !in.Valid[i] {
			continue
		}
		out.Valid[i] = true
		out.B[i] = !in.B[i]
	}
	return out, nil
}

// AndExpr / OrExpr combine boolean columns with SQL three-valued logic
// short-circuited per-row (AND: false dominates; OR: true dominates).
type AndExpr struct{ Operands []Expr }

func (e AndExpr) Eval(f *Frame) (*Column, error) {
	if len(e.Operands) == 0 {
		return LitExpr{Kind: KindBool, Bool: true}.Eval(f)
	}
	cols := make([]*Column, len(e.Operands))
	for i, op := range e.Operands {
		c, err := op.Eval(f)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	n := f.NRows()
	out := NewColumn("", KindBool, n)
	for i := 0; i < n; i++ {
		anyNull := false
		allTrue := true
		for _, c := range cols {
			if !c.Valid[i] {
				anyNull = true
				continue
			}
			if !c.B[i] {
				allTrue = false
			}
		}
		if !allTrue && !anyNull {
			out.Valid[i], out.B[i] = true, false
			continue
		}
		if !allTrue {
			// at least one known-false dominates even if others are null
			falseDominates := false
			for _, c := range cols {
				if c.Valid[i] && !c.B[i] {
					falseDominates = true
				}
			}
			if falseDominates {
				out.Valid[i], out.B[i] = true, false
				continue
			}
		}
		if anyNull {
			continue
		}
		out.Valid[i], out.B[i] = true, true
	}
	return out, nil
}

type OrExpr struct{ Operands []Expr }

func (e OrExpr) Eval(f *Frame) (*Column, error) {
	cols := make([]*Column, len(e.Operands))
	for i, op := range e.Operands {
		c, err := op.Eval(f)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	n := f.NRows()
	out := NewColumn("", KindBool, n)
	for i := 0; i < n; i++ {
		anyTrue := false
		anyNull := false
		for _, c := range cols {
			if !c.Valid[i] {
				anyNull = true
				continue
			}
			if c.B[i] {
				anyTrue = true
			}
		}
		if anyTrue {
			out.Valid[i], out.B[i] = true, true
			continue
		}
		if anyNull {
			continue
		}
		out.Valid[i], out.B[i] = true, false
	}
	return out, nil
}
