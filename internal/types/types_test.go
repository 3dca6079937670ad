package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataset_RoundTripsEachLayer(t *testing.T) {
	t.Parallel()
	cases := []Dataset{
		{Layer: LayerBronze, URI: "file:///tmp/x.csv", Source: SourceConfig{Kind: "csv", HasHeader: true}, Inner: InnerDataset{Name: "b"}},
		{Layer: LayerSilver, Inner: InnerDataset{Name: "s", PrimaryKey: []string{"id"}}},
		{Layer: LayerGold, Inner: InnerDataset{Name: "g"}},
	}
	for _, want := range cases {
		data, err := json.Marshal(want)
		require.NoError(t, err)

		var got Dataset
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, want.Layer, got.Layer)
		require.Equal(t, want.Inner.Name, got.Inner.Name)
		if want.Layer == LayerBronze {
			require.Equal(t, want.URI, got.URI)
			require.Equal(t, want.Source, got.Source)
		}
	}
}

func TestDataset_UnmarshalRejectsUnknownShape(t *testing.T) {
	t.Parallel()
	var d Dataset
	err := json.Unmarshal([]byte(`{"platinum":{}}`), &d)
	require.Error(t, err)
}

func TestDataset_MarshalErrorsWithNoLayer(t *testing.T) {
	t.Parallel()
	_, err := json.Marshal(Dataset{})
	require.Error(t, err)
}

func TestTargetColumn_UnmarshalsNestedExprIR(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"target":"id","expr":{"fn":"cast","args":[{"col":"raw_id"}],"to":"i64"}}`)
	var tc TargetColumn
	require.NoError(t, json.Unmarshal(raw, &tc))
	require.Equal(t, "id", tc.Target)

	call, ok := tc.Expr.(ExprCall)
	require.True(t, ok)
	require.Equal(t, "cast", call.Fn)
	require.Len(t, call.Args, 1)
	col, ok := call.Args[0].(ExprCol)
	require.True(t, ok)
	require.Equal(t, "raw_id", col.Col)
}

func TestMappingIR_UnmarshalsFilters(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"columns":[],"filters":[{"fn":"is_not_null","args":[{"col":"a"}]}]}`)
	var m MappingIR
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Len(t, m.Filters, 1)
	_, ok := m.Filters[0].(ExprCall)
	require.True(t, ok)
}

func TestSchema_FieldNames(t *testing.T) {
	t.Parallel()
	s := Schema{Fields: []Field{{Name: "a"}, {Name: "b"}}}
	require.Equal(t, []string{"a", "b"}, s.FieldNames())
}

func TestDqRule_Code(t *testing.T) {
	t.Parallel()
	r := DqRule{Column: "price", Op: DqGT}
	require.Equal(t, "DQ_price_>", r.Code())
}
