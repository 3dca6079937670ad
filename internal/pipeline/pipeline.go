// Package pipeline is the orchestrator (C6): it drives one Bronze→Silver
// or Silver→Gold request end to end — resolving roots, building the
// source frame, running the planner, deduplicating against prior
// snapshots, and writing the result. Grounded 1:1 on the original's
// run_pipeline_sync (etl.rs).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/malbeclabs/strata/internal/catalog"
	"github.com/malbeclabs/strata/internal/coerce"
	"github.com/malbeclabs/strata/internal/dedup"
	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/metrics"
	"github.com/malbeclabs/strata/internal/planner"
	"github.com/malbeclabs/strata/internal/snapshot"
	"github.com/malbeclabs/strata/internal/strataerr"
	"github.com/malbeclabs/strata/internal/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Orchestrator runs pipeline requests. Catalog is optional; when non-nil
// and the destination is Gold, a view is registered over the written
// snapshot (§4.6's "optional side effect").
type Orchestrator struct {
	Logger  *slog.Logger
	Writer  *snapshot.Writer
	Catalog *catalog.Client
}

// New builds an Orchestrator with the given logger and a real-clock
// snapshot writer.
func New(logger *slog.Logger, cat *catalog.Client) *Orchestrator {
	return &Orchestrator{Logger: logger, Writer: snapshot.NewWriter(), Catalog: cat}
}

// Run executes one request end to end.
func (o *Orchestrator) Run(ctx context.Context, req types.RunRequest) (*types.RunReport, error) {
	destLayer := string(req.Dest.Layer)
	timer := prometheus.NewTimer(metrics.PipelineRunDuration.WithLabelValues(destLayer))
	report, err := o.run(ctx, req)
	timer.ObserveDuration()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PipelineRunsTotal.WithLabelValues(destLayer, status).Inc()
	if report != nil {
		metrics.RowsIngestedTotal.WithLabelValues(req.Source.Name()).Add(float64(report.OriRows))
		metrics.RowsWrittenTotal.WithLabelValues(req.Dest.Name()).Add(float64(report.DestRows))
		metrics.RowsRejectedTotal.WithLabelValues(req.Dest.Name()).Add(float64(report.RejectedRows))
		for _, item := range report.DqSummary {
			metrics.DqViolationsTotal.WithLabelValues(req.Dest.Name(), item.RuleCode).Add(float64(item.Violations))
		}
	}
	return report, err
}

// run holds the actual orchestration logic; Run wraps it with metrics.
func (o *Orchestrator) run(ctx context.Context, req types.RunRequest) (*types.RunReport, error) {
	if err := planner.ValidateMapping(req.Mapping, req.Dest.SchemaOf()); err != nil {
		return nil, err
	}

	oriRoot, err := snapshot.TableRoot(req.Project.WarehouseURI, req.Project.Namespace, req.Source.Name())
	if err != nil {
		return nil, err
	}
	destRoot, err := snapshot.TableRoot(req.Project.WarehouseURI, req.Project.Namespace, req.Dest.Name())
	if err != nil {
		return nil, err
	}

	src, oriRows, logs, err := o.buildSourceFrame(ctx, req.Source, oriRoot)
	if err != nil {
		return nil, err
	}

	plan, err := planner.Build(src, req.Mapping, req.Dest.SchemaOf())
	if err != nil {
		return nil, err
	}

	destValid, err := plan.WithTargets.Filter(plan.FilterMask)
	if err != nil {
		return nil, err
	}

	const dedupKeyCol = "_dedup_key"
	pk := req.Dest.PrimaryKey()
	if len(pk) > 0 {
		destValid, err = dedup.DropNullPK(destValid, pk)
		if err != nil {
			return nil, err
		}
		var keyCol *frame.Column
		if len(pk) == 1 {
			keyCol, err = dedup.SingleColumnKeyAsString(destValid, pk[0])
		} else {
			keyCol, err = dedup.ComputePkHash(destValid, pk)
		}
		if err != nil {
			return nil, err
		}
		keyCol.Name = dedupKeyCol
		destValid = destValid.WithColumn(keyCol)
		destValid, err = destValid.Select(append(append([]string{}, plan.TargetCols...), dedupKeyCol))
		if err != nil {
			return nil, err
		}
		destValid, err = dedup.UniqueStable(destValid, []string{dedupKeyCol})
		if err != nil {
			return nil, err
		}
		existing, err := dedup.ExistingKeys(ctx, destRoot, pk)
		if err != nil {
			return nil, err
		}
		beforeAntiJoin := destValid.NRows()
		destValid, err = dedup.AntiJoin(destValid, dedupKeyCol, existing)
		if err != nil {
			return nil, err
		}
		metrics.DedupDroppedTotal.WithLabelValues(req.Dest.Name()).Add(float64(beforeAntiJoin - destValid.NRows()))
	} else {
		destValid, err = destValid.Select(plan.TargetCols)
		if err != nil {
			return nil, err
		}
	}

	dqSummary := plan.DqSummary()
	samples, err := plan.InvalidSamples()
	if err != nil {
		return nil, err
	}
	rejectedRows := int64(plan.WithTargets.NRows()) - int64(func() int {
		n := 0
		for i := 0; i < plan.FilterMask.Len(); i++ {
			if plan.FilterMask.Valid[i] && plan.FilterMask.B[i] {
				n++
			}
		}
		return n
	}())

	destRows := int64(destValid.NRows())
	if destRows == 0 {
		return &types.RunReport{
			Snapshot:     "",
			OriRows:      oriRows,
			DestRows:     0,
			RejectedRows: rejectedRows,
			ErrorSamples: samples,
			DqSummary:    dqSummary,
			Logs:         append(logs, "no new rows"),
		}, nil
	}

	finalCols := append([]string{}, plan.TargetCols...)
	finalFrame, err := destValid.Select(finalCols)
	if err != nil {
		return nil, err
	}

	_, snapshotID, err := o.Writer.Write(ctx, finalFrame, destRoot)
	if err != nil {
		return nil, err
	}

	if len(pk) > 0 {
		pkProjection, err := buildPkIndexFrame(destValid, pk)
		if err != nil {
			return nil, err
		}
		pkProjection, err = dedup.UniqueStable(pkProjection, pk)
		if err != nil {
			return nil, err
		}
		if _, _, err := o.Writer.Write(ctx, pkProjection, filepath.Join(destRoot, "keys_index")); err != nil {
			return nil, err
		}
	}

	if req.Dest.IsGold() && o.Catalog != nil {
		if err := o.Catalog.RegisterGoldView(ctx, req.Project.Namespace, req.Dest.Name(), destRoot); err != nil {
			metrics.CatalogOperationTotal.WithLabelValues("error").Inc()
			o.Logger.Warn("catalog view registration failed", "error", err)
		} else {
			metrics.CatalogOperationTotal.WithLabelValues("ok").Inc()
		}
	}

	return &types.RunReport{
		Snapshot:     snapshotID,
		OriRows:      oriRows,
		DestRows:     destRows,
		RejectedRows: rejectedRows,
		ErrorSamples: samples,
		DqSummary:    dqSummary,
		Logs:         logs,
	}, nil
}

// buildPkIndexFrame projects f to its primary-key columns, each cast to
// string, for persisting as a keys_index snapshot (§4.4's "project the
// written frame to PK columns (all cast to string)").
func buildPkIndexFrame(f *frame.Frame, pk []string) (*frame.Frame, error) {
	out := &frame.Frame{Columns: make([]*frame.Column, len(pk))}
	for i, name := range pk {
		col, err := dedup.SingleColumnKeyAsString(f, name)
		if err != nil {
			return nil, err
		}
		out.Columns[i] = col
	}
	return out, nil
}

// buildSourceFrame implements §4.6 step 3's three-way dispatch.
func (o *Orchestrator) buildSourceFrame(ctx context.Context, source types.Dataset, oriRoot string) (*frame.Frame, int64, []string, error) {
	switch source.Layer {
	case types.LayerBronze:
		if source.Source.Kind != "csv" {
			return nil, 0, nil, strataerr.New(strataerr.NotImplemented, "pipeline: only csv Bronze sources are supported")
		}
		path, err := snapshot.LocalPathFromURI(source.URI)
		if err != nil {
			return nil, 0, nil, err
		}
		if _, err := os.Stat(path); err != nil {
			return nil, 0, nil, strataerr.Wrapf(strataerr.IoError, err, "pipeline: bronze source %s", path)
		}
		raw, err := readCSVAsRawFrame(ctx, path, source.Source)
		if err != nil {
			return nil, 0, nil, err
		}
		oriRows := int64(raw.NRows())
		typed, err := coerce.EnforceSchema(raw, source.SchemaOf())
		if err != nil {
			return nil, 0, nil, err
		}
		if _, _, err := o.Writer.Write(ctx, typed, oriRoot); err != nil {
			return nil, 0, nil, err
		}
		staged, err := snapshot.Scan(ctx, oriRoot)
		if err != nil {
			return nil, 0, nil, err
		}
		return staged, oriRows, []string{fmt.Sprintf("staged %d bronze rows", oriRows)}, nil

	case types.LayerSilver:
		f, err := snapshot.ScanOrEmpty(ctx, oriRoot, source.SchemaOf())
		if err != nil {
			return nil, 0, nil, err
		}
		return f, int64(f.NRows()), nil, nil

	case types.LayerGold:
		return nil, 0, nil, strataerr.New(strataerr.NotImplemented, "pipeline: gold-as-source is not supported")

	default:
		return nil, 0, nil, strataerr.Newf(strataerr.InvalidRequest, "pipeline: unknown source layer %q", source.Layer)
	}
}
