// Package coerce implements schema enforcement (C2): projecting a frame
// onto a declared target schema, substituting nulls for missing columns,
// treating empty strings as null for non-string targets, and casting.
// Grounded on the original's enforce_lazyframe_to_schema/
// coerce_expr_to_dtype.
package coerce

import (
	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/types"
)

// EnforceSchema projects src onto schema's field order, producing exactly
// one output column per field: missing input columns become null-typed,
// empty strings become null before casting non-string targets, and dates
// cast via string-then-parse (non-strict).
func EnforceSchema(src *frame.Frame, schema types.Schema) (*frame.Frame, error) {
	out := &frame.Frame{Columns: make([]*frame.Column, 0, len(schema.Fields))}
	for _, field := range schema.Fields {
		kind, err := frame.KindFromFieldType(field.Type)
		if err != nil {
			return nil, err
		}
		var base frame.Expr
		if _, ok := src.Column(field.Name); ok {
			base = frame.ColExpr{Name: field.Name}
		} else {
			base = frame.LitExpr{Kind: kind, Null: true}
		}

		var cleaned frame.Expr = base
		if kind != frame.KindStr {
			strLen := frame.StrLenExpr{Operand: frame.CastExpr{Operand: base, To: frame.KindStr}}
			isEmpty := frame.BinaryExpr{Op: frame.OpEQ, Left: strLen, Right: frame.LitExpr{Kind: frame.KindI64, I64: 0}}
			cleaned = frame.WhenExpr{
				Pred: isEmpty,
				Then: frame.LitExpr{Kind: kind, Null: true},
				Else: base,
			}
		}

		casted := frame.CastExpr{Operand: cleaned, To: kind}
		col, err := casted.Eval(src)
		if err != nil {
			return nil, err
		}
		col.Name = field.Name
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}
