// Package types holds the wire and domain shapes shared across strata's
// core packages: schemas, datasets, mappings, the expression IR, and run
// reports.
package types

import (
	"encoding/json"
	"fmt"
)

// FieldType is a logical column type. It is intentionally smaller than the
// host columnar engine's native type system; internal/frame maps each
// type onto a column Kind and, at the Parquet boundary, an arrow type.
type FieldType string

const (
	FieldI32      FieldType = "i32"
	FieldI64      FieldType = "i64"
	FieldF32      FieldType = "f32"
	FieldF64      FieldType = "f64"
	FieldStr      FieldType = "str"
	FieldBool     FieldType = "bool"
	FieldDate     FieldType = "date"
	FieldDatetime FieldType = "datetime"
)

// Field is one column of a Schema.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Nullable bool      `json:"nullable"`
}

// Schema is an ordered field list; order defines output column order.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns the schema's field names in declaration order.
func (s Schema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SourceConfig describes how a Bronze source should be read.
type SourceConfig struct {
	Kind      string `json:"kind"` // "csv" | "parquet"
	Delimiter string `json:"delimiter,omitempty"`
	HasHeader bool   `json:"has_header,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
}

// DefaultCSVSourceConfig mirrors the original source's Csv variant defaults.
func DefaultCSVSourceConfig() SourceConfig {
	return SourceConfig{Kind: "csv", Delimiter: ",", HasHeader: true, Encoding: "utf-8"}
}

// InnerDataset is the shared shape of Silver/Gold datasets and of the
// Bronze descriptor nested inside a Bronze dataset.
type InnerDataset struct {
	Name       string   `json:"name"`
	PrimaryKey []string `json:"primary_key"`
	Schema     Schema   `json:"schema"`
}

// DatasetLayer identifies which medallion layer a Dataset occupies.
type DatasetLayer string

const (
	LayerBronze DatasetLayer = "bronze"
	LayerSilver DatasetLayer = "silver"
	LayerGold   DatasetLayer = "gold"
)

// Dataset is the tagged Bronze/Silver/Gold variant from the data model.
type Dataset struct {
	Layer  DatasetLayer `json:"layer"`
	URI    string       `json:"uri,omitempty"`    // Bronze only
	Source SourceConfig `json:"source,omitempty"` // Bronze only
	Inner  InnerDataset `json:"inner"`
}

func (d Dataset) Name() string         { return d.Inner.Name }
func (d Dataset) PrimaryKey() []string { return d.Inner.PrimaryKey }
func (d Dataset) SchemaOf() Schema     { return d.Inner.Schema }
func (d Dataset) IsBronze() bool       { return d.Layer == LayerBronze }
func (d Dataset) IsSilver() bool       { return d.Layer == LayerSilver }
func (d Dataset) IsGold() bool         { return d.Layer == LayerGold }

// datasetWire mirrors the tagged-enum wire shape: one of "bronze", "silver",
// "gold" keys carries the payload, matching the original's Bronze{..}/
// Silver(inner)/Gold(inner) enum variants translated to JSON object tags.
type datasetWire struct {
	Bronze *struct {
		URI    string       `json:"uri"`
		Source SourceConfig `json:"source"`
		Inner  InnerDataset `json:"inner"`
	} `json:"bronze,omitempty"`
	Silver *InnerDataset `json:"silver,omitempty"`
	Gold   *InnerDataset `json:"gold,omitempty"`
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	var w datasetWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Bronze != nil:
		d.Layer = LayerBronze
		d.URI = w.Bronze.URI
		d.Source = w.Bronze.Source
		d.Inner = w.Bronze.Inner
	case w.Silver != nil:
		d.Layer = LayerSilver
		d.Inner = *w.Silver
	case w.Gold != nil:
		d.Layer = LayerGold
		d.Inner = *w.Gold
	default:
		return fmt.Errorf("types: dataset matches no known shape (want bronze/silver/gold)")
	}
	return nil
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	switch d.Layer {
	case LayerBronze:
		return json.Marshal(struct {
			Bronze struct {
				URI    string       `json:"uri"`
				Source SourceConfig `json:"source"`
				Inner  InnerDataset `json:"inner"`
			} `json:"bronze"`
		}{Bronze: struct {
			URI    string       `json:"uri"`
			Source SourceConfig `json:"source"`
			Inner  InnerDataset `json:"inner"`
		}{URI: d.URI, Source: d.Source, Inner: d.Inner}})
	case LayerSilver:
		return json.Marshal(struct {
			Silver InnerDataset `json:"silver"`
		}{Silver: d.Inner})
	case LayerGold:
		return json.Marshal(struct {
			Gold InnerDataset `json:"gold"`
		}{Gold: d.Inner})
	default:
		return nil, fmt.Errorf("types: dataset has no layer set")
	}
}

// DqOp is a data-quality rule operator.
type DqOp string

const (
	DqGT         DqOp = ">"
	DqGE         DqOp = ">="
	DqLT         DqOp = "<"
	DqLE         DqOp = "<="
	DqEQ         DqOp = "=="
	DqNE         DqOp = "!="
	DqIsNull     DqOp = "is_null"
	DqIsNotNull  DqOp = "is_not_null"
)

// DqRule is a declarative column predicate checked for violations, not
// enforced.
type DqRule struct {
	Column string          `json:"column"`
	Op     DqOp            `json:"op"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// Code returns the DQ_{column}_{op} identifier used in summaries/samples.
func (r DqRule) Code() string {
	return fmt.Sprintf("DQ_%s_%s", r.Column, r.Op)
}

// TargetColumn maps one output column to an expression over the source.
type TargetColumn struct {
	Target string `json:"target"`
	Expr   ExprIR `json:"expr"`
}

func (t *TargetColumn) UnmarshalJSON(data []byte) error {
	var wire struct {
		Target string          `json:"target"`
		Expr   json.RawMessage `json:"expr"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	expr, err := UnmarshalExprIR(wire.Expr)
	if err != nil {
		return fmt.Errorf("types: target column %q: %w", wire.Target, err)
	}
	t.Target = wire.Target
	t.Expr = expr
	return nil
}

// MappingIR is the transforms half of a Mapping.
type MappingIR struct {
	Columns []TargetColumn `json:"columns"`
	Filters []ExprIR       `json:"filters"`
}

func (m *MappingIR) UnmarshalJSON(data []byte) error {
	var wire struct {
		Columns []TargetColumn    `json:"columns"`
		Filters []json.RawMessage `json:"filters"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Columns = wire.Columns
	m.Filters = nil
	for _, raw := range wire.Filters {
		e, err := UnmarshalExprIR(raw)
		if err != nil {
			return fmt.Errorf("types: mapping filter: %w", err)
		}
		m.Filters = append(m.Filters, e)
	}
	return nil
}

// Mapping is the full user-supplied mapping: transforms plus DQ rules.
type Mapping struct {
	Transforms MappingIR `json:"transforms"`
	DqRules    []DqRule  `json:"dq_rules"`
}

// ProjectConfig names the namespace and warehouse a run writes into.
type ProjectConfig struct {
	Namespace    string `json:"namespace"`
	WarehouseURI string `json:"warehouse_uri"`
}

// RunRequest is the /run request body.
type RunRequest struct {
	Project  ProjectConfig `json:"project"`
	Source   Dataset       `json:"source"`
	Dest     Dataset       `json:"dest"`
	Mapping  Mapping       `json:"mapping"`
}

// DqSummaryItem is one row of a RunResponse's dq_summary.
type DqSummaryItem struct {
	RuleCode    string `json:"rule_code"`
	Violations  int64  `json:"violations"`
	CheckedRows int64  `json:"checked_rows"`
}

// ErrorSample describes one invalid row surfaced back to the caller.
type ErrorSample struct {
	ReasonCode   string          `json:"reason_code"`
	Message      string          `json:"message"`
	RowNo        *int64          `json:"row_no,omitempty"`
	SourceValues json.RawMessage `json:"source_values"`
}

// RunReport is the /run response body.
type RunReport struct {
	Snapshot     string          `json:"snapshot"`
	OriRows      int64           `json:"ori_rows"`
	DestRows     int64           `json:"dest_rows"`
	RejectedRows int64           `json:"rejected_rows"`
	ErrorSamples []ErrorSample   `json:"error_samples"`
	DqSummary    []DqSummaryItem `json:"dq_summary"`
	Logs         []string        `json:"logs"`
}

// InferSchemaRequest is the /infer_schema request body.
type InferSchemaRequest struct {
	URI          string       `json:"uri"`
	SourceConfig SourceConfig `json:"source_config"`
	Limit        int          `json:"limit"`
}

// InferSchemaResponse is the /infer_schema response body.
type InferSchemaResponse struct {
	Schema Schema `json:"schema"`
}
