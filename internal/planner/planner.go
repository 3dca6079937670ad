// Package planner builds the mapping/DQ plan (C5): from a staged Bronze
// frame, a mapping, and a target schema, it produces the target-projected
// frame, the row-validity filter, and per-rule DQ violation accounting in
// one pass. Grounded 1:1 on the original's build_enhanced_plan/
// build_dq_violation_expr/aggregate_dq_summary/collect_invalid_samples
// (etl.rs).
package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/malbeclabs/strata/internal/expr"
	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/strataerr"
	"github.com/malbeclabs/strata/internal/types"
)

// MaxSamples bounds the number of invalid-row samples returned (P8).
const MaxSamples = 1000

// Violation is one (code, boolean-mask) pair contributing to dq_summary.
type Violation struct {
	Code string
	Mask *frame.Column
}

// Plan is the fused output of one planning pass.
type Plan struct {
	WithTargets *frame.Frame
	FilterMask  *frame.Column
	TargetCols  []string
	SourceCols  []string
	Violations  []Violation
}

// ValidateMapping checks the set of mapping target names exactly equals
// the set of declared schema field names (§4.5 pre-condition, §8 P1).
func ValidateMapping(mapping types.Mapping, schema types.Schema) error {
	want := make(map[string]bool, len(schema.Fields))
	for _, f := range schema.Fields {
		want[f.Name] = true
	}
	got := make(map[string]bool, len(mapping.Transforms.Columns))
	for _, c := range mapping.Transforms.Columns {
		got[c.Target] = true
	}
	var missing, extra []string
	for name := range want {
		if !got[name] {
			missing = append(missing, name)
		}
	}
	for name := range got {
		if !want[name] {
			extra = append(extra, name)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return strataerr.Newf(strataerr.MappingSchemaMismatch,
			"mapping columns do not match target schema: missing=%v extra=%v", missing, extra)
	}
	return nil
}

// Build constructs the fused plan over src per the target schema and
// mapping.
func Build(src *frame.Frame, mapping types.Mapping, schema types.Schema) (*Plan, error) {
	if err := ValidateMapping(mapping, schema); err != nil {
		return nil, err
	}

	withTargets := &frame.Frame{Columns: append([]*frame.Column{}, src.Columns...)}
	targetCols := make([]string, 0, len(schema.Fields))
	var parseFails []Violation

	// Walk the target schema's declared field order, not the mapping's
	// declaration order, so the output frame's column order matches the
	// schema exactly (P1). ValidateMapping already guarantees the two
	// column sets are equal.
	byTarget := make(map[string]types.TargetColumn, len(mapping.Transforms.Columns))
	for _, tc := range mapping.Transforms.Columns {
		byTarget[tc.Target] = tc
	}

	for _, f := range schema.Fields {
		tc := byTarget[f.Name]
		targetCols = append(targetCols, tc.Target)
		kind, err := frame.KindFromFieldType(f.Type)
		if err != nil {
			return nil, strataerr.Wrapf(strataerr.UnknownTargetType, err, "planner: target %q", tc.Target)
		}

		raw, err := expr.Compile(tc.Expr)
		if err != nil {
			return nil, err
		}
		strLen := frame.StrLenExpr{Operand: frame.CastExpr{Operand: raw, To: frame.KindStr}}
		isEmpty := frame.BinaryExpr{Op: frame.OpEQ, Left: strLen, Right: frame.LitExpr{Kind: frame.KindI64, I64: 0}}
		cleaned := frame.WhenExpr{
			Pred: isEmpty,
			Then: frame.LitExpr{Kind: kind, Null: true},
			Else: raw,
		}
		casted := frame.CastExpr{Operand: cleaned, To: kind}

		col, err := casted.Eval(withTargets)
		if err != nil {
			return nil, fmt.Errorf("planner: evaluating target %q: %w", tc.Target, err)
		}
		col.Name = tc.Target
		withTargets = withTargets.WithColumn(col)

		if kind != frame.KindStr {
			contentSrc := raw
			if c, ok := raw.(frame.CastExpr); ok {
				contentSrc = c.Operand
			}
			hadContentExpr := frame.BinaryExpr{
				Op:    frame.OpGT,
				Left:  frame.StrLenExpr{Operand: frame.CastExpr{Operand: contentSrc, To: frame.KindStr}},
				Right: frame.LitExpr{Kind: frame.KindI64, I64: 0},
			}
			targetIsNull := frame.IsNullExpr{Operand: frame.ColExpr{Name: tc.Target}}
			mask, err := frame.AndExpr{Operands: []frame.Expr{hadContentExpr, targetIsNull}}.Eval(withTargets)
			if err != nil {
				return nil, err
			}
			for i := range mask.Valid {
				if !mask.Valid[i] {
					mask.Valid[i], mask.B[i] = true, false
				}
			}
			parseFails = append(parseFails, Violation{Code: "PARSE_FAIL_" + tc.Target, Mask: mask})
		}
	}

	userFilters := make([]frame.Expr, 0, len(mapping.Transforms.Filters))
	for _, fexpr := range mapping.Transforms.Filters {
		ce, err := expr.Compile(fexpr)
		if err != nil {
			return nil, err
		}
		userFilters = append(userFilters, ce)
	}
	noParseFail := make([]frame.Expr, 0, len(parseFails))
	for _, v := range parseFails {
		noParseFail = append(noParseFail, notMask{v.Mask})
	}
	filterOperands := append(append([]frame.Expr{}, userFilters...), noParseFail...)
	filterExpr := frame.AndExpr{Operands: filterOperands}
	filterMask, err := filterExpr.Eval(withTargets)
	if err != nil {
		return nil, err
	}

	dqViolations, err := buildDqViolations(withTargets, mapping.DqRules)
	if err != nil {
		return nil, err
	}

	return &Plan{
		WithTargets: withTargets,
		FilterMask:  filterMask,
		TargetCols:  targetCols,
		SourceCols:  src.ColumnNames(),
		Violations:  append(dqViolations, parseFails...),
	}, nil
}

// notMask wraps an already-evaluated mask column as a frame.Expr so it can
// be composed with AndExpr without re-evaluating.
type notMask struct{ mask *frame.Column }

func (n notMask) Eval(f *frame.Frame) (*frame.Column, error) {
	out := frame.NewColumn("", frame.KindBool, n.mask.Len())
	for i := 0; i < n.mask.Len(); i++ {
		if !n.mask.Valid[i] {
			continue
		}
		out.Valid[i] = true
		out.B[i] = !n.mask.B[i]
	}
	return out, nil
}

func buildDqViolations(withTargets *frame.Frame, rules []types.DqRule) ([]Violation, error) {
	out := make([]Violation, 0, len(rules))
	for _, rule := range rules {
		if _, ok := withTargets.Column(rule.Column); !ok {
			return nil, strataerr.Newf(strataerr.InvalidRequest, "planner: dq rule references unknown column %q", rule.Column)
		}
		colExpr := frame.ColExpr{Name: rule.Column}
		var violExpr frame.Expr
		switch rule.Op {
		case types.DqIsNotNull, types.DqIsNull:
			// Both ops share the same fixed violation semantics (§9 open
			// question, resolved as stated): violation iff the column IS
			// NULL.
			violExpr = frame.IsNullExpr{Operand: colExpr}
		case types.DqGT, types.DqGE, types.DqLT, types.DqLE, types.DqEQ, types.DqNE:
			lit, err := expr.CompileLiteralJSON(rule.Value)
			if err != nil {
				return nil, err
			}
			cond := frame.BinaryExpr{Op: frame.BinOp(rule.Op), Left: colExpr, Right: lit}
			violExpr = frame.NotExpr{Operand: cond}
		default:
			return nil, strataerr.Newf(strataerr.InvalidRequest, "planner: unknown dq op %q", rule.Op)
		}
		mask, err := violExpr.Eval(withTargets)
		if err != nil {
			return nil, err
		}
		out = append(out, Violation{Code: rule.Code(), Mask: mask})
	}
	return out, nil
}

// DqSummary sums each violation's true count across with_targets, per
// §4.5/P7. Every DQ rule is reported; a PARSE_FAIL_ entry is reported only
// when at least one row failed to parse.
func (p *Plan) DqSummary() []types.DqSummaryItem {
	checked := int64(p.WithTargets.NRows())
	items := make([]types.DqSummaryItem, 0, len(p.Violations))
	for _, v := range p.Violations {
		var n int64
		for i := 0; i < v.Mask.Len(); i++ {
			if v.Mask.Valid[i] && v.Mask.B[i] {
				n++
			}
		}
		if n == 0 && strings.HasPrefix(v.Code, "PARSE_FAIL_") {
			continue
		}
		items = append(items, types.DqSummaryItem{RuleCode: v.Code, Violations: n, CheckedRows: checked})
	}
	return items
}

// InvalidSamples returns up to MaxSamples rows where the filter is false
// or any violation is true, projected to source columns and JSON
// serialized (§4.5, P8).
func (p *Plan) InvalidSamples() ([]types.ErrorSample, error) {
	n := p.WithTargets.NRows()
	sourceFrame, err := p.WithTargets.Select(p.SourceCols)
	if err != nil {
		return nil, err
	}
	var samples []types.ErrorSample
	for row := 0; row < n && len(samples) < MaxSamples; row++ {
		invalid := !p.FilterMask.Valid[row] || !p.FilterMask.B[row]
		if !invalid {
			for _, v := range p.Violations {
				if v.Mask.Valid[row] && v.Mask.B[row] {
					invalid = true
					break
				}
			}
		}
		if !invalid {
			continue
		}
		values := rowToJSON(sourceFrame, row)
		rowNo := int64(row)
		samples = append(samples, types.ErrorSample{
			ReasonCode:   "INVALID",
			Message:      "row failed filter or data-quality check",
			RowNo:        &rowNo,
			SourceValues: values,
		})
	}
	return samples, nil
}

func rowToJSON(f *frame.Frame, row int) json.RawMessage {
	m := make(map[string]any, len(f.Columns))
	for _, c := range f.Columns {
		if c.IsNull(row) {
			m[c.Name] = nil
			continue
		}
		switch c.Kind {
		case frame.KindI32:
			m[c.Name] = c.I32[row]
		case frame.KindI64:
			m[c.Name] = c.I64[row]
		case frame.KindF32:
			m[c.Name] = c.F32[row]
		case frame.KindF64:
			m[c.Name] = c.F64[row]
		case frame.KindStr:
			m[c.Name] = c.Str[row]
		case frame.KindBool:
			m[c.Name] = c.B[row]
		case frame.KindDate:
			m[c.Name] = c.Date[row]
		case frame.KindDatetime:
			m[c.Name] = c.Datetime[row]
		}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}
