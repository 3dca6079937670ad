package realestate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/strata/internal/frame"
)

func bronzeFrame(t *testing.T, rows []map[string]string) *frame.Frame {
	t.Helper()
	names := append(append([]string{}, bronzeColumns...), lineageColumns...)
	f := &frame.Frame{}
	for _, name := range names {
		c := frame.NewColumn(name, frame.KindStr, len(rows))
		for i, row := range rows {
			v, ok := row[name]
			if !ok {
				continue
			}
			c.Valid[i] = true
			c.Str[i] = v
		}
		f.Columns = append(f.Columns, c)
	}
	return f
}

func baseRow() map[string]string {
	return map[string]string{
		"id_mutation":               "2024-1",
		"date_mutation":             "2024-03-15",
		"nature_mutation":           "vente",
		"valeur_fonciere":           "150000,50",
		"adresse_numero":            "12",
		"adresse_nom_voie":          "rue de la paix",
		"code_postal":               "750",
		"nom_commune":               "paris",
		"code_commune":              "75101",
		"code_departement":          "75",
		"id_parcelle":               "75101000AB0001",
		"type_local":                "appartement",
		"surface_reelle_bati":       "45.5",
		"nombre_pieces_principales": "2",
		"longitude":                 "2.3522",
		"latitude":                  "48.8566",
	}
}

func TestValidate_HappyPath(t *testing.T) {
	t.Parallel()

	bronze := bronzeFrame(t, []map[string]string{baseRow()})
	silver, rejects, stats, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.RowsValid)
	require.Equal(t, int64(0), stats.RowsDropped)
	require.Equal(t, 1, silver.NRows())
	require.Equal(t, 0, rejects.NRows())

	postal, ok := silver.Column("code_postal")
	require.True(t, ok)
	require.Equal(t, "00750", postal.Str[0]) // zfill(5)

	nature, ok := silver.Column("nature_mutation")
	require.True(t, ok)
	require.Equal(t, "VENTE", nature.Str[0]) // uppercased

	cents, ok := silver.Column("valeur_fonciere_cents")
	require.True(t, ok)
	require.Equal(t, int64(15000050), cents.I64[0])

	year, ok := silver.Column("year_mutation")
	require.True(t, ok)
	require.Equal(t, int32(2024), year.I32[0])

	geohash6, ok := silver.Column("geohash6")
	require.True(t, ok)
	require.Len(t, geohash6.Str[0], 6)

	prixM2, ok := silver.Column("prix_m2")
	require.True(t, ok)
	require.True(t, prixM2.Valid[0])
	require.InDelta(t, 150000.50/45.5, prixM2.F64[0], 0.001)
}

func TestValidate_RequiredFieldMissing(t *testing.T) {
	t.Parallel()
	row := baseRow()
	delete(row, "id_mutation")
	row["id_mutation"] = ""

	bronze := bronzeFrame(t, []map[string]string{row})
	silver, rejects, stats, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	require.Equal(t, 0, silver.NRows())
	require.Equal(t, 1, rejects.NRows())
	require.Equal(t, int64(1), stats.ByCode[codeSchemaMissing])

	code, _ := rejects.Column("error_code")
	require.Equal(t, codeSchemaMissing, code.Str[0])

	stage, ok := rejects.Column("validation_stage")
	require.True(t, ok)
	require.Equal(t, "silver", stage.Str[0])

	natureMutation, ok := rejects.Column("nature_mutation")
	require.True(t, ok, "rejects frame must carry every bronze column, not just id_mutation")
	require.Equal(t, row["nature_mutation"], natureMutation.Str[0])
}

func TestValidate_DateOutOfBounds(t *testing.T) {
	t.Parallel()
	row := baseRow()
	row["date_mutation"] = "1950-01-01"

	bronze := bronzeFrame(t, []map[string]string{row})
	_, rejects, stats, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ByCode[codeDateInvalid])
	require.Equal(t, 1, rejects.NRows())
}

func TestValidate_DateUnparseable(t *testing.T) {
	t.Parallel()
	row := baseRow()
	row["date_mutation"] = "not-a-date"

	bronze := bronzeFrame(t, []map[string]string{row})
	_, _, stats, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ByCode[codeDateInvalid])
}

func TestValidate_NegativeValue(t *testing.T) {
	t.Parallel()
	row := baseRow()
	row["valeur_fonciere"] = "-100"

	bronze := bronzeFrame(t, []map[string]string{row})
	_, _, stats, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ByCode[codeValueNegative])
}

func TestValidate_CoordinateOnlyOneSet(t *testing.T) {
	t.Parallel()
	row := baseRow()
	delete(row, "latitude")

	bronze := bronzeFrame(t, []map[string]string{row})
	_, _, stats, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ByCode[codeCoordOOB])
}

func TestValidate_CoordinateOutOfBoundingBox(t *testing.T) {
	t.Parallel()
	row := baseRow()
	row["longitude"] = "139.6917" // Tokyo
	row["latitude"] = "35.6895"

	bronze := bronzeFrame(t, []map[string]string{row})
	_, _, stats, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ByCode[codeCoordOOB])
}

func TestValidate_NoCoordinatesIsValid(t *testing.T) {
	t.Parallel()
	row := baseRow()
	delete(row, "longitude")
	delete(row, "latitude")

	bronze := bronzeFrame(t, []map[string]string{row})
	silver, _, stats, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.RowsValid)
	geohash6, _ := silver.Column("geohash6")
	require.Equal(t, "", geohash6.Str[0])
}

func TestValidate_DuplicateContentHashWithinRun(t *testing.T) {
	t.Parallel()
	rowA := baseRow()
	rowB := baseRow()
	rowB["id_mutation"] = "2024-1" // identical canonical identity fields

	bronze := bronzeFrame(t, []map[string]string{rowA, rowB})
	silver, rejects, stats, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.RowsValid)
	require.Equal(t, int64(0), stats.RowsDropped)
	require.Equal(t, 1, silver.NRows())
	require.Equal(t, 0, rejects.NRows()) // duplicates are silently dropped, not rejected
}

func TestParseDecimalCents(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want int64
	}{
		{"150000,50", 15000050},
		{"150000.5", 15000050},
		{"0", 0},
		{"12", 1200},
		{"12.3", 1230},
	}
	for _, tc := range cases {
		got, err := parseDecimalCents(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseDecimalCents_TooManyFractionDigits(t *testing.T) {
	t.Parallel()
	_, err := parseDecimalCents("12.345")
	require.Error(t, err)
}

func TestZfill(t *testing.T) {
	t.Parallel()
	require.Equal(t, "00750", zfill("750", 5))
	require.Equal(t, "12345", zfill("12345", 5))
	require.Equal(t, "123456", zfill("123456", 5))
	require.Equal(t, "", zfill("", 5))
}
