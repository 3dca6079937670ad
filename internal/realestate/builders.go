package realestate

import "github.com/malbeclabs/strata/internal/frame"

// silverBuilder accumulates validated rows into plain Go slices before a
// single final materialization into a *frame.Frame.
type silverBuilder struct {
	idMutation     []string
	dateMutation   []int32
	natureMutation []string
	valeurCents    []int64
	adresseNumero  []string
	adresseNomVoie []string
	codePostal     []string
	nomCommune     []string
	codeCommune    []string
	codeDept       []string
	idParcelle     []string
	typeLocal      []string
	surfaceBati    []float64
	surfaceValid   []bool
	nbPieces       []int32
	nbPiecesValid  []bool
	longitude      []float64
	latitude       []float64
	coordValid     []bool
	mutationKey    []string
	yearMutation   []int32
	monthStart     []int32
	geohash6       []string
	prixM2         []float64
	prixM2Valid    []bool
}

func newSilverBuilder() *silverBuilder { return &silverBuilder{} }

func (b *silverBuilder) append(r silverRecord) {
	b.idMutation = append(b.idMutation, r.idMutation)
	b.dateMutation = append(b.dateMutation, r.dateMutation)
	b.natureMutation = append(b.natureMutation, r.natureMutation)
	b.valeurCents = append(b.valeurCents, r.valeurCents)
	b.adresseNumero = append(b.adresseNumero, r.adresseNumero)
	b.adresseNomVoie = append(b.adresseNomVoie, r.adresseNomVoie)
	b.codePostal = append(b.codePostal, r.codePostal)
	b.nomCommune = append(b.nomCommune, r.nomCommune)
	b.codeCommune = append(b.codeCommune, r.codeCommune)
	b.codeDept = append(b.codeDept, r.codeDept)
	b.idParcelle = append(b.idParcelle, r.idParcelle)
	b.typeLocal = append(b.typeLocal, r.typeLocal)
	b.surfaceBati = append(b.surfaceBati, r.surfaceBati)
	b.surfaceValid = append(b.surfaceValid, r.hasSurface)
	b.nbPieces = append(b.nbPieces, r.nbPieces)
	b.nbPiecesValid = append(b.nbPiecesValid, r.hasNbPieces)
	b.longitude = append(b.longitude, r.longitude)
	b.latitude = append(b.latitude, r.latitude)
	b.coordValid = append(b.coordValid, r.hasCoord)
	b.mutationKey = append(b.mutationKey, r.mutationKey)
	b.yearMutation = append(b.yearMutation, r.yearMutation)
	b.monthStart = append(b.monthStart, r.monthStart)
	b.geohash6 = append(b.geohash6, r.geohash6)
	b.prixM2 = append(b.prixM2, r.prixM2)
	b.prixM2Valid = append(b.prixM2Valid, r.hasPrixM2)
}

func allTrue(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

func (b *silverBuilder) build() *frame.Frame {
	n := len(b.idMutation)
	strCol := func(name string, vals []string) *frame.Column {
		c := frame.NewColumn(name, frame.KindStr, n)
		c.Valid = allTrue(n)
		c.Str = vals
		return c
	}
	i32Col := func(name string, vals []int32, valid []bool) *frame.Column {
		c := frame.NewColumn(name, frame.KindI32, n)
		if valid == nil {
			valid = allTrue(n)
		}
		c.Valid = valid
		c.I32 = vals
		return c
	}
	i64Col := func(name string, vals []int64) *frame.Column {
		c := frame.NewColumn(name, frame.KindI64, n)
		c.Valid = allTrue(n)
		c.I64 = vals
		return c
	}
	f64Col := func(name string, vals []float64, valid []bool) *frame.Column {
		c := frame.NewColumn(name, frame.KindF64, n)
		c.Valid = valid
		c.F64 = vals
		return c
	}
	dateCol := func(name string, vals []int32, valid []bool) *frame.Column {
		c := frame.NewColumn(name, frame.KindDate, n)
		if valid == nil {
			valid = allTrue(n)
		}
		c.Valid = valid
		c.Date = vals
		return c
	}

	return &frame.Frame{Columns: []*frame.Column{
		strCol("id_mutation", b.idMutation),
		dateCol("date_mutation", b.dateMutation, nil),
		strCol("nature_mutation", b.natureMutation),
		i64Col("valeur_fonciere_cents", b.valeurCents),
		strCol("adresse_numero", b.adresseNumero),
		strCol("adresse_nom_voie", b.adresseNomVoie),
		strCol("code_postal", b.codePostal),
		strCol("nom_commune", b.nomCommune),
		strCol("code_commune", b.codeCommune),
		strCol("code_departement", b.codeDept),
		strCol("id_parcelle", b.idParcelle),
		strCol("type_local", b.typeLocal),
		f64Col("surface_reelle_bati", b.surfaceBati, b.surfaceValid),
		i32Col("nombre_pieces_principales", b.nbPieces, b.nbPiecesValid),
		f64Col("longitude", b.longitude, b.coordValid),
		f64Col("latitude", b.latitude, b.coordValid),
		strCol("mutation_key", b.mutationKey),
		i32Col("year_mutation", b.yearMutation, nil),
		dateCol("month_start", b.monthStart, nil),
		strCol("geohash6", b.geohash6),
		f64Col("prix_m2", b.prixM2, b.prixM2Valid),
	}}
}

// rejectBuilder accumulates rejected rows: every Bronze column re-expressed
// as a string, plus the reason code/detail and the fixed stage label.
type rejectBuilder struct {
	bronzeCols map[string][]string
	code       []string
	detail     []string
}

func newRejectBuilder() *rejectBuilder {
	cols := make(map[string][]string, len(rejectBronzeColumns))
	for _, name := range rejectBronzeColumns {
		cols[name] = nil
	}
	return &rejectBuilder{bronzeCols: cols}
}

func (b *rejectBuilder) append(row map[string]string, code, detail string) {
	for _, name := range rejectBronzeColumns {
		b.bronzeCols[name] = append(b.bronzeCols[name], row[name])
	}
	b.code = append(b.code, code)
	b.detail = append(b.detail, detail)
}

func (b *rejectBuilder) build() *frame.Frame {
	n := len(b.code)
	f := &frame.Frame{Columns: make([]*frame.Column, 0, len(rejectFieldNames))}
	for _, name := range rejectBronzeColumns {
		c := frame.NewColumn(name, frame.KindStr, n)
		c.Valid = allTrue(n)
		c.Str = b.bronzeCols[name]
		f.Columns = append(f.Columns, c)
	}
	strCol := func(name string, vals []string) *frame.Column {
		c := frame.NewColumn(name, frame.KindStr, n)
		c.Valid = allTrue(n)
		c.Str = vals
		return c
	}
	stage := make([]string, n)
	for i := range stage {
		stage[i] = validationStage
	}
	f.Columns = append(f.Columns,
		strCol("error_code", b.code),
		strCol("error_detail", b.detail),
		strCol("validation_stage", stage),
	)
	return f
}
