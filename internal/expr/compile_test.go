package expr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/types"
)

func strPtr(s string) *string { return &s }

func TestCompile_ColAndLit(t *testing.T) {
	t.Parallel()
	col, err := Compile(types.ExprCol{Col: "x"})
	require.NoError(t, err)
	require.Equal(t, frame.ColExpr{Name: "x"}, col)

	raw, _ := json.Marshal(42)
	lit, err := Compile(types.ExprLit{Lit: raw})
	require.NoError(t, err)
	require.Equal(t, frame.LitExpr{Kind: frame.KindI64, I64: 42}, lit)
}

func TestCompile_LiteralDistinguishesIntFromFloat(t *testing.T) {
	t.Parallel()
	rawFloat, _ := json.Marshal(4.5)
	got, err := Compile(types.ExprLit{Lit: rawFloat})
	require.NoError(t, err)
	require.Equal(t, frame.LitExpr{Kind: frame.KindF64, F64: 4.5}, got)
}

func TestCompile_Cast(t *testing.T) {
	t.Parallel()
	e := types.ExprCall{Fn: "cast", Args: []types.ExprIR{types.ExprCol{Col: "a"}}, To: strPtr("i64")}
	got, err := Compile(e)
	require.NoError(t, err)
	cast, ok := got.(frame.CastExpr)
	require.True(t, ok)
	require.Equal(t, frame.KindI64, cast.To)
}

func TestCompile_CastUnknownTargetErrors(t *testing.T) {
	t.Parallel()
	e := types.ExprCall{Fn: "cast", Args: []types.ExprIR{types.ExprCol{Col: "a"}}, To: strPtr("nope")}
	_, err := Compile(e)
	require.Error(t, err)
}

func TestCompile_UnsupportedFunctionErrors(t *testing.T) {
	t.Parallel()
	_, err := Compile(types.ExprCall{Fn: "frobnicate", Args: []types.ExprIR{types.ExprCol{Col: "a"}}})
	require.Error(t, err)
}

func TestCompile_WhenRequiresPredAndThen(t *testing.T) {
	t.Parallel()
	_, err := Compile(types.ExprCall{Fn: "when"})
	require.Error(t, err)

	e := types.ExprCall{
		Fn:   "when",
		Pred: types.ExprCall{Fn: "is_null", Args: []types.ExprIR{types.ExprCol{Col: "a"}}},
		Then: types.ExprLit{Lit: json.RawMessage("0")},
	}
	got, err := Compile(e)
	require.NoError(t, err)
	_, ok := got.(frame.WhenExpr)
	require.True(t, ok)
}

func TestCompile_BinaryOpRequiresTwoArgs(t *testing.T) {
	t.Parallel()
	_, err := Compile(types.ExprCall{Fn: ">", Args: []types.ExprIR{types.ExprCol{Col: "a"}}})
	require.Error(t, err)
}
