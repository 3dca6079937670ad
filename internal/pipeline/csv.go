package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/strataerr"
	"github.com/malbeclabs/strata/internal/types"
)

// readCSVAsRawFrame reads a CSV file into an all-string frame (empty
// cells preserved as empty string, not yet null — coerce.EnforceSchema
// applies the empty-string-as-null rule). Encoding is read as UTF-8 with
// lossy replacement of invalid sequences, matching the original's
// "utf-8 lossy fallback" (§4.6 step 3).
func readCSVAsRawFrame(ctx context.Context, path string, src types.SourceConfig) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, strataerr.Wrapf(strataerr.IoError, err, "pipeline: opening %s", path)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, strataerr.Wrapf(strataerr.IoError, err, "pipeline: reading %s", path)
	}
	raw = bytes.ToValidUTF8(raw, []byte("�"))

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	if src.Delimiter != "" {
		d := []rune(src.Delimiter)
		r.Comma = d[0]
	}

	var header []string
	var rows [][]string
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, strataerr.Wrapf(strataerr.IoError, err, "pipeline: reading csv %s", path)
		}
		if first && src.HasHeader {
			header = rec
			first = false
			continue
		}
		first = false
		if header == nil {
			header = syntheticHeader(len(rec))
		}
		rows = append(rows, rec)
	}

	out := &frame.Frame{Columns: make([]*frame.Column, len(header))}
	for ci, name := range header {
		col := frame.NewColumn(name, frame.KindStr, len(rows))
		for ri, row := range rows {
			if ci >= len(row) {
				continue
			}
			col.Valid[ri] = true
			col.Str[ri] = row[ci]
		}
		out.Columns[ci] = col
	}
	return out, nil
}

func syntheticHeader(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "column_" + string(rune('0'+i))
	}
	return out
}
