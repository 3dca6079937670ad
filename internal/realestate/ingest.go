package realestate

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/strataerr"
)

// IngestStats reports row counts for a single Ingest call.
type IngestStats struct {
	RowsRead    int64
	ColumnsRead int
}

// Ingest reads a raw DVF CSV export and lands it as a Bronze frame: every
// declared bronzeColumn as a string (missing values kept as empty string,
// matching C2's later null handling), plus the three lineageColumns.
// Grounded on rust_local_pipeline/crates/ingest/src/lib.rs's
// read_csv_to_bronze.
func Ingest(ctx context.Context, csvPath, ingestDate, sourceFile string) (*frame.Frame, IngestStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, IngestStats{}, err
	}
	raw, err := os.ReadFile(csvPath)
	if err != nil {
		return nil, IngestStats{}, strataerr.Wrapf(strataerr.IoError, err, "realestate: reading %s", csvPath)
	}
	raw = bytes.ToValidUTF8(raw, []byte("�"))

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return emptyBronzeFrame(), IngestStats{}, nil
		}
		return nil, IngestStats{}, strataerr.Wrapf(strataerr.IoError, err, "realestate: reading header of %s", csvPath)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}

	cols := make(map[string][]string, len(bronzeColumns)+len(lineageColumns))
	allNames := append(append([]string{}, bronzeColumns...), lineageColumns...)
	for _, name := range allNames {
		cols[name] = nil
	}

	var rowNum int64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, IngestStats{}, strataerr.Wrapf(strataerr.IoError, err, "realestate: parsing row %d of %s", rowNum, csvPath)
		}
		rowNum++
		for _, name := range bronzeColumns {
			v := ""
			if i, ok := idx[name]; ok && i < len(rec) {
				v = rec[i]
			}
			cols[name] = append(cols[name], v)
		}
		cols["ingest_date"] = append(cols["ingest_date"], ingestDate)
		cols["source_file"] = append(cols["source_file"], sourceFile)
		cols["row_number"] = append(cols["row_number"], strconv.FormatInt(rowNum, 10))
	}

	f := &frame.Frame{}
	for _, name := range allNames {
		vals := cols[name]
		c := frame.NewColumn(name, frame.KindStr, len(vals))
		for i, v := range vals {
			c.Valid[i] = true
			c.Str[i] = v
		}
		f.Columns = append(f.Columns, c)
	}
	return f, IngestStats{RowsRead: rowNum, ColumnsRead: len(header)}, nil
}

func emptyBronzeFrame() *frame.Frame {
	names := append(append([]string{}, bronzeColumns...), lineageColumns...)
	f := &frame.Frame{}
	for _, n := range names {
		f.Columns = append(f.Columns, frame.NewColumn(n, frame.KindStr, 0))
	}
	return f
}
