package realestate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIngest_LandsDeclaredColumnsAndLineage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "dvf.csv")
	csv := "id_mutation,date_mutation,valeur_fonciere,longitude,latitude\n" +
		"2024-1,2024-03-15,150000,2.35,48.85\n" +
		"2024-2,2024-03-16,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	f, stats, err := Ingest(context.Background(), path, "2024-06-01", "dvf.csv")
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.RowsRead)
	require.Equal(t, 2, f.NRows())

	idCol, ok := f.Column("id_mutation")
	require.True(t, ok)
	require.Equal(t, "2024-1", idCol.Str[0])
	require.Equal(t, "2024-2", idCol.Str[1])

	valeur, ok := f.Column("valeur_fonciere")
	require.True(t, ok)
	require.Equal(t, "150000", valeur.Str[0])
	require.Equal(t, "", valeur.Str[1]) // missing -> empty string, not dropped

	ingestDate, ok := f.Column("ingest_date")
	require.True(t, ok)
	require.Equal(t, "2024-06-01", ingestDate.Str[0])

	sourceFile, ok := f.Column("source_file")
	require.True(t, ok)
	require.Equal(t, "dvf.csv", sourceFile.Str[0])

	rowNumber, ok := f.Column("row_number")
	require.True(t, ok)
	require.Equal(t, "1", rowNumber.Str[0])
	require.Equal(t, "2", rowNumber.Str[1])

	// a column the source CSV omitted entirely is still present, all-empty.
	nomCommune, ok := f.Column("nom_commune")
	require.True(t, ok)
	require.Equal(t, "", nomCommune.Str[0])
}

func TestIngest_EmptyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))

	f, stats, err := Ingest(context.Background(), path, "2024-06-01", "empty.csv")
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.RowsRead)
	require.Equal(t, 0, f.NRows())
}
