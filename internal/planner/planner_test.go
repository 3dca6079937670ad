package planner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/types"
)

func strSrcCol(name string, vals []string) *frame.Column {
	c := frame.NewColumn(name, frame.KindStr, len(vals))
	for i, v := range vals {
		c.Valid[i] = true
		c.Str[i] = v
	}
	return c
}

func strPtr(s string) *string { return &s }

func castTo(col, to string) types.ExprIR {
	return types.ExprCall{Fn: "cast", Args: []types.ExprIR{types.ExprCol{Col: col}}, To: strPtr(to)}
}

func TestValidateMapping_ExactSetMatch(t *testing.T) {
	t.Parallel()
	schema := types.Schema{Fields: []types.Field{{Name: "a", Type: types.FieldI64}, {Name: "b", Type: types.FieldStr}}}

	ok := types.Mapping{Transforms: types.MappingIR{Columns: []types.TargetColumn{
		{Target: "a", Expr: castTo("a", "i64")},
		{Target: "b", Expr: castTo("b", "str")},
	}}}
	require.NoError(t, ValidateMapping(ok, schema))

	missing := types.Mapping{Transforms: types.MappingIR{Columns: []types.TargetColumn{
		{Target: "a", Expr: castTo("a", "i64")},
	}}}
	require.Error(t, ValidateMapping(missing, schema))

	extra := types.Mapping{Transforms: types.MappingIR{Columns: []types.TargetColumn{
		{Target: "a", Expr: castTo("a", "i64")},
		{Target: "b", Expr: castTo("b", "str")},
		{Target: "c", Expr: castTo("b", "str")},
	}}}
	require.Error(t, ValidateMapping(extra, schema))
}

func TestBuild_ParseFailureViolatesFilter(t *testing.T) {
	t.Parallel()
	src := &frame.Frame{Columns: []*frame.Column{
		strSrcCol("raw_value", []string{"42", "not-a-number", ""}),
	}}
	schema := types.Schema{Fields: []types.Field{{Name: "value", Type: types.FieldI64}}}
	mapping := types.Mapping{Transforms: types.MappingIR{Columns: []types.TargetColumn{
		{Target: "value", Expr: castTo("raw_value", "i64")},
	}}}

	plan, err := Build(src, mapping, schema)
	require.NoError(t, err)

	require.True(t, plan.FilterMask.Valid[0] && plan.FilterMask.B[0])   // "42" parses fine
	require.True(t, plan.FilterMask.Valid[1] && !plan.FilterMask.B[1])  // "not-a-number" fails to parse -> filtered out
	require.True(t, plan.FilterMask.Valid[2] && plan.FilterMask.B[2])   // empty string -> null, not a parse failure

	summary := plan.DqSummary()
	require.Len(t, summary, 1)
	require.Equal(t, int64(1), summary[0].Violations)
	require.Equal(t, int64(3), summary[0].CheckedRows)
}

func TestBuild_DqIsNullViolatesWhenColumnIsNull(t *testing.T) {
	t.Parallel()
	src := &frame.Frame{Columns: []*frame.Column{
		strSrcCol("raw_value", []string{"42", ""}),
	}}
	schema := types.Schema{Fields: []types.Field{{Name: "value", Type: types.FieldI64}}}
	mapping := types.Mapping{
		Transforms: types.MappingIR{Columns: []types.TargetColumn{
			{Target: "value", Expr: castTo("raw_value", "i64")},
		}},
		DqRules: []types.DqRule{{Column: "value", Op: types.DqIsNotNull}},
	}

	plan, err := Build(src, mapping, schema)
	require.NoError(t, err)
	summary := plan.DqSummary()
	require.Len(t, summary, 1)
	require.Equal(t, int64(1), summary[0].Violations) // the empty-string row is null
}

func TestBuild_DqComparisonViolatesWhenConditionFalse(t *testing.T) {
	t.Parallel()
	src := &frame.Frame{Columns: []*frame.Column{
		strSrcCol("raw_value", []string{"10", "-5"}),
	}}
	schema := types.Schema{Fields: []types.Field{{Name: "value", Type: types.FieldI64}}}
	rawVal, _ := json.Marshal(0)
	mapping := types.Mapping{
		Transforms: types.MappingIR{Columns: []types.TargetColumn{
			{Target: "value", Expr: castTo("raw_value", "i64")},
		}},
		DqRules: []types.DqRule{{Column: "value", Op: types.DqGE, Value: rawVal}},
	}

	plan, err := Build(src, mapping, schema)
	require.NoError(t, err)
	summary := plan.DqSummary()
	require.Equal(t, int64(1), summary[0].Violations) // only -5 violates >= 0
}

func TestBuild_TargetColsFollowSchemaOrderNotMappingOrder(t *testing.T) {
	t.Parallel()
	src := &frame.Frame{Columns: []*frame.Column{
		strSrcCol("raw_a", []string{"1"}),
		strSrcCol("raw_b", []string{"2"}),
	}}
	schema := types.Schema{Fields: []types.Field{
		{Name: "a", Type: types.FieldI64},
		{Name: "b", Type: types.FieldI64},
	}}
	// Mapping declares b before a, the reverse of the schema's field order.
	mapping := types.Mapping{Transforms: types.MappingIR{Columns: []types.TargetColumn{
		{Target: "b", Expr: castTo("raw_b", "i64")},
		{Target: "a", Expr: castTo("raw_a", "i64")},
	}}}

	plan, err := Build(src, mapping, schema)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, plan.TargetCols)
}

func TestInvalidSamples_CappedAndProjectsSourceColumns(t *testing.T) {
	t.Parallel()
	vals := make([]string, 5)
	for i := range vals {
		vals[i] = "not-a-number"
	}
	src := &frame.Frame{Columns: []*frame.Column{strSrcCol("raw_value", vals)}}
	schema := types.Schema{Fields: []types.Field{{Name: "value", Type: types.FieldI64}}}
	mapping := types.Mapping{Transforms: types.MappingIR{Columns: []types.TargetColumn{
		{Target: "value", Expr: castTo("raw_value", "i64")},
	}}}

	plan, err := Build(src, mapping, schema)
	require.NoError(t, err)
	samples, err := plan.InvalidSamples()
	require.NoError(t, err)
	require.Len(t, samples, 5)
	for _, s := range samples {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(s.SourceValues, &decoded))
		require.Contains(t, decoded, "raw_value")
	}
}
