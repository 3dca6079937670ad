// Package dedup implements the keys index and anti-join deduplication
// (C4): the synthesized _pk_hash encoding for composite primary keys,
// stable in-batch dedup, and anti-joining a candidate batch against
// whatever existing keys can be resolved for a table root. Grounded on
// the original's pk_hash_expr/append_unique_against_existing (etl.rs) and
// on the length-prefixing principle of malbeclabs-lake's
// dataset/pk.go NaturalKey.ToSurrogate.
package dedup

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/snapshot"
)

// PkHashColumn is the name of the synthesized composite-key column. It is
// never persisted in the main table; it is dropped before the snapshot
// write.
const PkHashColumn = "_pk_hash"

// nullToken is the literal string substituted for a null PK column value
// before hashing, so null is never confused with an empty string.
const nullToken = "<NULL>"

// DedupKeyColumn returns the name of the column the anti-join should key
// on: the PK column itself when there is exactly one, else PkHashColumn.
func DedupKeyColumn(primaryKey []string) string {
	if len(primaryKey) == 1 {
		return primaryKey[0]
	}
	return PkHashColumn
}

// ComputePkHash adds a _pk_hash column computed from the named PK columns
// using the length-prefixed, null-safe encoding: for each column value v
// (null -> "<NULL>"), concatenate len(v) ":" v "|" in declared order.
func ComputePkHash(f *frame.Frame, primaryKey []string) (*frame.Column, error) {
	n := f.NRows()
	out := frame.NewColumn(PkHashColumn, frame.KindStr, n)
	cols := make([]*frame.Column, len(primaryKey))
	for i, name := range primaryKey {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("dedup: primary key column %q not found", name)
		}
		cols[i] = c
	}
	for row := 0; row < n; row++ {
		var b []byte
		for _, c := range cols {
			var s string
			if c.IsNull(row) {
				s = nullToken
			} else {
				s = cellToString(c, row)
			}
			b = append(b, strconv.Itoa(len([]rune(s)))...)
			b = append(b, ':')
			b = append(b, s...)
			b = append(b, '|')
		}
		out.Valid[row] = true
		out.Str[row] = string(b)
	}
	return out, nil
}

func cellToString(c *frame.Column, i int) string {
	switch c.Kind {
	case frame.KindI32:
		return strconv.FormatInt(int64(c.I32[i]), 10)
	case frame.KindI64:
		return strconv.FormatInt(c.I64[i], 10)
	case frame.KindF32:
		return strconv.FormatFloat(float64(c.F32[i]), 'g', -1, 32)
	case frame.KindF64:
		return strconv.FormatFloat(c.F64[i], 'g', -1, 64)
	case frame.KindBool:
		return strconv.FormatBool(c.B[i])
	case frame.KindStr:
		return c.Str[i]
	case frame.KindDate:
		return strconv.FormatInt(int64(c.Date[i]), 10)
	case frame.KindDatetime:
		return c.Datetime[i].String()
	default:
		return ""
	}
}

// SingleColumnKeyAsString casts column name to string for use as a dedup
// key, matching §4.4's single-PK-column policy.
func SingleColumnKeyAsString(f *frame.Frame, name string) (*frame.Column, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("dedup: column %q not found", name)
	}
	out := frame.NewColumn(name, frame.KindStr, c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		out.Valid[i] = true
		out.Str[i] = cellToString(c, i)
	}
	return out, nil
}

// DropNullPK returns the rows of f where every column in primaryKey is
// non-null, matching §4.4's "rows with any null PK column are dropped
// pre-dedup" and P6.
func DropNullPK(f *frame.Frame, primaryKey []string) (*frame.Frame, error) {
	if len(primaryKey) == 0 {
		return f, nil
	}
	cols := make([]*frame.Column, len(primaryKey))
	for i, name := range primaryKey {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("dedup: primary key column %q not found", name)
		}
		cols[i] = c
	}
	var keep []int
	for row := 0; row < f.NRows(); row++ {
		ok := true
		for _, c := range cols {
			if c.IsNull(row) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, row)
		}
	}
	return f.TakeIndices(keep), nil
}

// UniqueStable keeps the first occurrence of each distinct value tuple of
// keyCols, preserving input row order, matching the original's
// unique_stable(keep="first").
func UniqueStable(f *frame.Frame, keyCols []string) (*frame.Frame, error) {
	cols := make([]*frame.Column, len(keyCols))
	for i, name := range keyCols {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("dedup: key column %q not found", name)
		}
		cols[i] = c
	}
	seen := make(map[string]struct{})
	var keep []int
	for row := 0; row < f.NRows(); row++ {
		key := rowKey(cols, row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, row)
	}
	return f.TakeIndices(keep), nil
}

func rowKey(cols []*frame.Column, row int) string {
	var b []byte
	for _, c := range cols {
		if c.IsNull(row) {
			b = append(b, "\x00N\x01"...)
			continue
		}
		s := cellToString(c, row)
		b = append(b, strconv.Itoa(len(s))...)
		b = append(b, ':')
		b = append(b, s...)
		b = append(b, '\x02')
	}
	return string(b)
}

// ExistingKeys resolves the "already-committed keys" frame for a table
// root per §4.4's three-tier resolution order: keys_index, then main
// table (rehashing if the dedup key is _pk_hash), then no prior data.
// The returned frame has exactly one string column named by
// DedupKeyColumn(primaryKey), or is nil if there is no prior data.
func ExistingKeys(ctx context.Context, tableRoot string, primaryKey []string) (*frame.Frame, error) {
	keyCol := DedupKeyColumn(primaryKey)
	keysIndexRoot := filepath.Join(tableRoot, "keys_index")

	if ok, _ := snapshot.HasAnyParquet(filepath.Join(keysIndexRoot, "data")); ok {
		f, err := snapshot.Scan(ctx, keysIndexRoot)
		if err != nil {
			return nil, err
		}
		return projectKeyAsString(f, primaryKey, keyCol)
	}

	if ok, _ := snapshot.HasAnyParquet(filepath.Join(tableRoot, "data")); ok {
		f, err := snapshot.Scan(ctx, tableRoot)
		if err != nil {
			return nil, err
		}
		return projectKeyAsString(f, primaryKey, keyCol)
	}

	return nil, nil
}

func projectKeyAsString(f *frame.Frame, primaryKey []string, keyCol string) (*frame.Frame, error) {
	if keyCol == PkHashColumn {
		if existing, ok := f.Column(PkHashColumn); ok {
			out := frame.NewColumn(PkHashColumn, frame.KindStr, existing.Len())
			copy(out.Valid, existing.Valid)
			copy(out.Str, existing.Str)
			return &frame.Frame{Columns: []*frame.Column{out}}, nil
		}
		col, err := ComputePkHash(f, primaryKey)
		if err != nil {
			return nil, err
		}
		return &frame.Frame{Columns: []*frame.Column{col}}, nil
	}
	col, err := SingleColumnKeyAsString(f, keyCol)
	if err != nil {
		return nil, err
	}
	return &frame.Frame{Columns: []*frame.Column{col}}, nil
}

// AntiJoin returns the rows of candidate whose key (in candidate's
// keyCol column, already cast to string) does not appear in existing's
// single key column. existing may be nil, meaning every candidate row is
// new.
func AntiJoin(candidate *frame.Frame, keyCol string, existing *frame.Frame) (*frame.Frame, error) {
	if existing == nil || existing.NRows() == 0 {
		return candidate, nil
	}
	keys, ok := candidate.Column(keyCol)
	if !ok {
		return nil, fmt.Errorf("dedup: candidate missing key column %q", keyCol)
	}
	existingKeys, ok := existing.Column(existing.Columns[0].Name)
	if !ok {
		return nil, fmt.Errorf("dedup: existing keys frame malformed")
	}
	seen := make(map[string]struct{}, existingKeys.Len())
	for i := 0; i < existingKeys.Len(); i++ {
		if existingKeys.IsNull(i) {
			continue
		}
		seen[existingKeys.Str[i]] = struct{}{}
	}
	var keep []int
	for i := 0; i < keys.Len(); i++ {
		if keys.IsNull(i) {
			continue
		}
		if _, found := seen[keys.Str[i]]; !found {
			keep = append(keep, i)
		}
	}
	return candidate.TakeIndices(keep), nil
}
