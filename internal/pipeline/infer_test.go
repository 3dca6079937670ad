package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/strata/internal/types"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestInferSchema_WidensAcrossMixedNumericColumn(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, "id,amount,flag,when\n1,10,true,2024-01-01\n2,10.5,false,2024-01-02\n")
	schema, err := InferSchema(context.Background(), path, types.SourceConfig{Kind: "csv", HasHeader: true}, 0)
	require.NoError(t, err)

	byName := map[string]types.Field{}
	for _, f := range schema.Fields {
		byName[f.Name] = f
	}
	require.Equal(t, types.FieldI64, byName["id"].Type)
	require.Equal(t, types.FieldF64, byName["amount"].Type) // widened by the second row
	require.Equal(t, types.FieldBool, byName["flag"].Type)
	require.Equal(t, types.FieldDate, byName["when"].Type)
}

func TestInferSchema_EmptyCellMarksNullable(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, "a\n1\n\"\"\n3\n")
	schema, err := InferSchema(context.Background(), path, types.SourceConfig{Kind: "csv", HasHeader: true}, 0)
	require.NoError(t, err)
	require.Len(t, schema.Fields, 1)
	require.True(t, schema.Fields[0].Nullable)
	require.Equal(t, types.FieldI64, schema.Fields[0].Type)
}

func TestInferSchema_LimitOnlySamplesFirstNRows(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, "a\n1\n2\nnot-a-number\n")
	schema, err := InferSchema(context.Background(), path, types.SourceConfig{Kind: "csv", HasHeader: true}, 2)
	require.NoError(t, err)
	require.Equal(t, types.FieldI64, schema.Fields[0].Type) // the 3rd row is outside the sample
}

func TestInferSchema_ParquetSourceIsNotImplemented(t *testing.T) {
	t.Parallel()
	_, err := InferSchema(context.Background(), "whatever.parquet", types.SourceConfig{Kind: "parquet"}, 0)
	require.Error(t, err)
}
