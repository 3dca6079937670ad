// Package expr compiles the wire ExprIR (internal/types) into the
// evaluable internal/frame.Expr tree. It is a one-to-one node translation,
// grounded on the original compiler's build_expr dispatch.
package expr

import (
	"encoding/json"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/strataerr"
	"github.com/malbeclabs/strata/internal/types"
)

// Compile translates one ExprIR node into a frame.Expr. Column existence
// is checked lazily at Eval time so a reference to a not-yet-materialized
// column fails where the spec says it should (evaluation, not
// compilation); only structurally required children (e.g. a Call's
// `pred`/`then` arguments) are checked at compile time.
func Compile(e types.ExprIR) (frame.Expr, error) {
	switch n := e.(type) {
	case types.ExprCol:
		return frame.ColExpr{Name: n.Col}, nil
	case types.ExprLit:
		return compileLit(n.Lit)
	case types.ExprCall:
		return compileCall(n)
	default:
		return nil, strataerr.Newf(strataerr.InvalidRequest, "expr: unrecognized IR node %T", e)
	}
}

// CompileLiteralJSON compiles a raw JSON scalar (as used by DQ rule
// values) into a frame.Expr literal, using the same i64/f64 fit rule as
// ExprLit nodes.
func CompileLiteralJSON(raw json.RawMessage) (frame.Expr, error) {
	return compileLit(raw)
}

func compileLit(raw json.RawMessage) (frame.Expr, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, strataerr.Wrapf(strataerr.InvalidRequest, err, "expr: decoding literal")
	}
	switch val := v.(type) {
	case nil:
		return frame.LitExpr{Kind: frame.KindNull, Null: true}, nil
	case bool:
		return frame.LitExpr{Kind: frame.KindBool, Bool: val}, nil
	case string:
		return frame.LitExpr{Kind: frame.KindStr, Str: val}, nil
	case float64:
		// numbers distinguished by i64/f64 fit, per §4.1.
		if val == float64(int64(val)) {
			return frame.LitExpr{Kind: frame.KindI64, I64: int64(val)}, nil
		}
		return frame.LitExpr{Kind: frame.KindF64, F64: val}, nil
	default:
		return nil, strataerr.Newf(strataerr.InvalidRequest, "expr: unsupported literal shape %T", v)
	}
}

func compileCall(c types.ExprCall) (frame.Expr, error) {
	switch c.Fn {
	case "+", "-", "*", "/", "==", "!=", ">", ">=", "<", "<=":
		if len(c.Args) != 2 {
			return nil, strataerr.Newf(strataerr.MissingArgument, "expr: %q requires exactly 2 args, got %d", c.Fn, len(c.Args))
		}
		l, err := Compile(c.Args[0])
		if err != nil {
			return nil, err
		}
		r, err := Compile(c.Args[1])
		if err != nil {
			return nil, err
		}
		return frame.BinaryExpr{Op: frame.BinOp(c.Fn), Left: l, Right: r}, nil

	case "cast":
		if len(c.Args) != 1 {
			return nil, strataerr.Newf(strataerr.MissingArgument, "expr: cast requires exactly 1 arg, got %d", len(c.Args))
		}
		if c.To == nil {
			return nil, strataerr.New(strataerr.MissingArgument, "expr: cast requires `to`")
		}
		operand, err := Compile(c.Args[0])
		if err != nil {
			return nil, err
		}
		kind, err := castTargetKind(*c.To)
		if err != nil {
			return nil, err
		}
		return frame.CastExpr{Operand: operand, To: kind}, nil

	case "to_date":
		if len(c.Args) != 1 {
			return nil, strataerr.Newf(strataerr.MissingArgument, "expr: to_date requires exactly 1 arg, got %d", len(c.Args))
		}
		operand, err := Compile(c.Args[0])
		if err != nil {
			return nil, err
		}
		layout := "%Y-%m-%d"
		if c.Fmt != nil {
			layout = *c.Fmt
		}
		return frame.CastExpr{Operand: operand, To: frame.KindDate, DateFmt: layout}, nil

	case "zfill":
		if len(c.Args) != 1 {
			return nil, strataerr.Newf(strataerr.MissingArgument, "expr: zfill requires exactly 1 arg, got %d", len(c.Args))
		}
		if c.Len == nil {
			return nil, strataerr.New(strataerr.MissingArgument, "expr: zfill requires `len`")
		}
		operand, err := Compile(c.Args[0])
		if err != nil {
			return nil, err
		}
		return frame.ZfillExpr{Operand: operand, Len: *c.Len}, nil

	case "when":
		if c.Pred == nil || c.Then == nil {
			return nil, strataerr.New(strataerr.MissingArgument, "expr: when requires `pred` and `then`")
		}
		pred, err := Compile(c.Pred)
		if err != nil {
			return nil, err
		}
		then, err := Compile(c.Then)
		if err != nil {
			return nil, err
		}
		var els frame.Expr
		if c.Else != nil {
			els, err = Compile(c.Else)
			if err != nil {
				return nil, err
			}
		}
		return frame.WhenExpr{Pred: pred, Then: then, Else: els}, nil

	case "is_null":
		if len(c.Args) != 1 {
			return nil, strataerr.Newf(strataerr.MissingArgument, "expr: is_null requires exactly 1 arg, got %d", len(c.Args))
		}
		operand, err := Compile(c.Args[0])
		if err != nil {
			return nil, err
		}
		return frame.IsNullExpr{Operand: operand}, nil

	case "is_not_null":
		if len(c.Args) != 1 {
			return nil, strataerr.Newf(strataerr.MissingArgument, "expr: is_not_null requires exactly 1 arg, got %d", len(c.Args))
		}
		operand, err := Compile(c.Args[0])
		if err != nil {
			return nil, err
		}
		return frame.IsNotNullExpr{Operand: operand}, nil

	default:
		return nil, strataerr.Newf(strataerr.UnsupportedFunction, "expr: unsupported function %q", c.Fn)
	}
}

func castTargetKind(to string) (frame.Kind, error) {
	switch to {
	case "i64":
		return frame.KindI64, nil
	case "f64":
		return frame.KindF64, nil
	case "str", "utf8":
		return frame.KindStr, nil
	case "date", "date32":
		return frame.KindDate, nil
	default:
		return frame.KindNull, strataerr.Newf(strataerr.UnsupportedCast, "expr: unsupported cast target %q", to)
	}
}
