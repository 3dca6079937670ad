// Package realestate is the validation specialization (C7): a stricter,
// single-pass typed validator for French real-estate transaction records
// (the "DVF" declared-sale dataset), producing a typed Silver frame with
// derived columns and a deterministic content-hash dedup key, plus a
// parallel Rejects frame. Grounded 1:1 on
// rust_local_pipeline/crates/{ingest,validate,curate}/src/lib.rs.
package realestate

import "github.com/malbeclabs/strata/internal/frame"

// bronzeColumns is the raw, all-nullable-string Bronze column set read
// from the source CSV (mirrors the DVF "valeurs foncieres" export shape).
var bronzeColumns = []string{
	"id_mutation",
	"date_mutation",
	"nature_mutation",
	"valeur_fonciere",
	"adresse_numero",
	"adresse_nom_voie",
	"code_postal",
	"nom_commune",
	"code_commune",
	"code_departement",
	"id_parcelle",
	"type_local",
	"surface_reelle_bati",
	"nombre_pieces_principales",
	"longitude",
	"latitude",
}

// lineageColumns are appended by Ingest and carried through Bronze.
var lineageColumns = []string{"ingest_date", "source_file", "row_number"}

// requiredFields are checked for presence before any other validation
// (§4.7 step 1); absence rejects SCHEMA_MISSING.
var requiredFields = []string{"id_mutation", "date_mutation", "valeur_fonciere"}

// textNormalizeFields are uppercased and trimmed (§4.7 step 5).
var textNormalizeFields = []string{"nature_mutation", "adresse_nom_voie", "nom_commune", "type_local"}

// silverField names a Silver column and its storage kind, in output order.
type silverField struct {
	Name string
	Kind frame.Kind
}

// silverFields is the fixed Silver schema.
var silverFields = []silverField{
	{"id_mutation", frame.KindStr},
	{"date_mutation", frame.KindDate},
	{"nature_mutation", frame.KindStr},
	{"valeur_fonciere_cents", frame.KindI64},
	{"adresse_numero", frame.KindStr},
	{"adresse_nom_voie", frame.KindStr},
	{"code_postal", frame.KindStr},
	{"nom_commune", frame.KindStr},
	{"code_commune", frame.KindStr},
	{"code_departement", frame.KindStr},
	{"id_parcelle", frame.KindStr},
	{"type_local", frame.KindStr},
	{"surface_reelle_bati", frame.KindF64},
	{"nombre_pieces_principales", frame.KindI32},
	{"longitude", frame.KindF64},
	{"latitude", frame.KindF64},
	{"mutation_key", frame.KindStr}, // hex-encoded sha256, 64 chars
	{"year_mutation", frame.KindI32},
	{"month_start", frame.KindDate},
	{"geohash6", frame.KindStr},
	{"prix_m2", frame.KindF64},
}

// rejectBronzeColumns is every Bronze column (domain fields plus lineage),
// each re-expressed as a nullable string in the Rejects schema, per §4.7's
// "all Bronze columns re-expressed as strings" closing rule.
var rejectBronzeColumns = append(append([]string{}, bronzeColumns...), lineageColumns...)

// rejectFieldNames is the Rejects schema's full column order: every Bronze
// column as a string, then the three fixed error columns.
var rejectFieldNames = append(append([]string{}, rejectBronzeColumns...), "error_code", "error_detail", "validation_stage")

// validationStage is the constant stage label stamped on every reject row.
const validationStage = "silver"

// BoundingBox is the declared valid (lon, lat) region; values outside it
// reject COORD_OOB (§4.7 step 4). Approximates mainland France + Corsica.
type BoundingBox struct {
	MinLon, MaxLon, MinLat, MaxLat float64
}

// DefaultBoundingBox covers mainland France and Corsica.
var DefaultBoundingBox = BoundingBox{MinLon: -5.5, MaxLon: 9.7, MinLat: 41.0, MaxLat: 51.5}

func (b BoundingBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// SilverColumnNames returns the Silver schema's column names, in the
// fixed order silverBuilder.build emits them. Used by cmd/strata-cli and
// tests that need to describe the Silver shape without depending on
// builders.go's internals.
func SilverColumnNames() []string {
	names := make([]string, len(silverFields))
	for i, f := range silverFields {
		names[i] = f.Name
	}
	return names
}
