package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/strataerr"
	"github.com/malbeclabs/strata/internal/types"
)

// InferSchema samples a CSV source and guesses a Schema from it. Each
// column is widened across its first limit rows: i64 unless a value
// fails to parse as an integer, then f64, then bool, then date, falling
// back to str. A column is marked nullable the moment any sampled cell
// is empty. Parquet sources are out of scope (§4.6 note on the original's
// schema-inference-is-csv-only behaviour).
func InferSchema(ctx context.Context, path string, src types.SourceConfig, limit int) (types.Schema, error) {
	if src.Kind != "" && src.Kind != "csv" {
		return types.Schema{}, strataerr.New(strataerr.NotImplemented, "pipeline: schema inference is only implemented for csv sources")
	}

	raw, err := readCSVAsRawFrame(ctx, path, src)
	if err != nil {
		return types.Schema{}, err
	}

	n := raw.NRows()
	if limit > 0 && limit < n {
		n = limit
	}

	fields := make([]types.Field, 0, len(raw.Columns))
	for _, col := range raw.Columns {
		ft, nullable := inferColumnType(col, n)
		fields = append(fields, types.Field{Name: col.Name, Type: ft, Nullable: nullable})
	}
	return types.Schema{Fields: fields}, nil
}

func inferColumnType(col *frame.Column, n int) (types.FieldType, bool) {
	guess := types.FieldI64
	nullable := false
	any := false

	for i := 0; i < n; i++ {
		if !col.Valid[i] || col.Str[i] == "" {
			nullable = true
			continue
		}
		v := col.Str[i]
		any = true
		guess = widen(guess, v)
	}
	if !any {
		return types.FieldStr, true
	}
	return guess, nullable
}

// widen narrows the type lattice i64 -> f64 -> bool -> date -> str down
// to whatever v still fits, never moving back toward i64.
func widen(current types.FieldType, v string) types.FieldType {
	switch current {
	case types.FieldI64:
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			return types.FieldI64
		}
		return widen(types.FieldF64, v)
	case types.FieldF64:
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return types.FieldF64
		}
		return widen(types.FieldBool, v)
	case types.FieldBool:
		switch strings.ToLower(v) {
		case "true", "false":
			return types.FieldBool
		}
		return widen(types.FieldDate, v)
	case types.FieldDate:
		if _, err := time.Parse("2006-01-02", v); err == nil {
			return types.FieldDate
		}
		return types.FieldStr
	default:
		return types.FieldStr
	}
}
