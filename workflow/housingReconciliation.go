package workflow

import (
	"context"
	"iter"
	"slices"

	"bitbucket.org/mmdatafocus/housing_backend/config"
	"bitbucket.org/mmdatafocus/housing_backend/models"
	"bitbucket.org/mmdatafocus/housing_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	PhaseSourceRecords  = "source"
	PhaseMissingRecords = "missing"
)

var tracer = otel.Tracer("bitbucket.org/mmdatafocus/housing_backend/workflow")

type ReconcileReport struct {
	Processed int64
	Created   int
	Updated   int
	Untouched int
	Skipped   int
	Events    int
	Conflicts int
}

// Reconciler merges a yearly snapshot into the housing table.
type Reconciler struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Feed      SourceFeed
	Persister *BulkPersister
	Notifier  ConflictNotifier
	BatchSize int
	PageSize  int
	DryRun    bool
	Progress  ProgressFunc
}

func NewReconciler(db *gorm.DB, logger *logrus.Logger, feed SourceFeed, persister *BulkPersister) *Reconciler {
	return &Reconciler{
		DB:        db,
		Logger:    logger,
		Feed:      feed,
		Persister: persister,
		BatchSize: 1000,
		PageSize:  500,
	}
}

type reconcileItem struct {
	before *models.Housing
	now    *models.SourceHousing
}

// Run reconciles every snapshot line, then every housing of the same source that the snapshot no
// longer lists. The first failing batch stops the run; batches committed before it stay committed.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	total, err := r.Feed.Count(ctx)
	if err != nil {
		return report, newJobError(ErrorKindSource, "count source records", r.Feed.DataFileYear(), err)
	}

	var processed int64
	for batch, err := range Batch(r.Feed.StreamNewRecords(ctx), r.BatchSize) {
		if err != nil {
			return report, newJobError(ErrorKindSource, "stream source records", r.Feed.DataFileYear(), err)
		}
		items := make([]reconcileItem, 0, len(batch))
		for i := range batch {
			before, err := models.FindHousing(ctx, r.DB, batch[i].Key())
			if err != nil {
				return report, newJobError(ErrorKindSource, "find housing", keyString(batch[i].Key()), err)
			}
			if before != nil && slices.Contains(before.DataFileYears, r.Feed.DataFileYear()) {
				// Already reconciled with this data file by a previous run.
				report.Skipped++
				continue
			}
			items = append(items, reconcileItem{before: before, now: &batch[i]})
		}
		if err := r.processBatch(ctx, PhaseSourceRecords, items, &report); err != nil {
			return report, err
		}
		processed += int64(len(batch))
		r.Progress.report(PhaseSourceRecords, processed, total)
	}

	candidates, err := models.CountHousings(ctx, r.DB, missingFilter(r.Feed.DataFileYear()))
	if err != nil {
		return report, newJobError(ErrorKindSource, "count housings", r.Feed.DataFileYear(), err)
	}
	var scanned int64
	missing := r.streamMissing(ctx, &report, &scanned)
	for batch, err := range Batch(missing, r.BatchSize) {
		if err != nil {
			return report, err
		}
		if err := r.processBatch(ctx, PhaseMissingRecords, batch, &report); err != nil {
			return report, err
		}
		r.Progress.report(PhaseMissingRecords, scanned, candidates)
	}
	r.Progress.report(PhaseMissingRecords, scanned, candidates)

	return report, nil
}

// missingFilter selects the housings tagged by any data file of the same source.
func missingFilter(dataFileYear string) models.HousingFilter {
	return models.HousingFilter{DataFileYearPrefix: sourceName(dataFileYear) + "-"}
}

// streamMissing yields housings tagged by an earlier data file of the same source but absent from
// the current one. Housings already closed as exited vacancy are skipped so that re-runs are no-ops.
// scanned counts every housing read, whether or not it is yielded.
func (r *Reconciler) streamMissing(ctx context.Context, report *ReconcileReport, scanned *int64) iter.Seq2[reconcileItem, error] {
	year := r.Feed.DataFileYear()
	return func(yield func(reconcileItem, error) bool) {
		for housing, err := range models.StreamHousings(ctx, r.DB, missingFilter(year), r.PageSize) {
			if err != nil {
				yield(reconcileItem{}, newJobError(ErrorKindSource, "stream housings", year, err))
				return
			}
			*scanned++
			if slices.Contains(housing.DataFileYears, year) || isExitedVacancy(&housing) {
				report.Skipped++
				continue
			}
			now, err := r.Feed.FindOne(ctx, housing.Key())
			if err != nil {
				yield(reconcileItem{}, newJobError(ErrorKindSource, "find source record", keyString(housing.Key()), err))
				return
			}
			if now != nil {
				// Listed in the snapshot: handled by the source phase.
				report.Skipped++
				continue
			}
			h := housing
			if !yield(reconcileItem{before: &h}, nil) {
				return
			}
		}
	}
}

func (r *Reconciler) processBatch(ctx context.Context, phase string, items []reconcileItem, report *ReconcileReport) error {
	if len(items) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "reconcile.batch", trace.WithAttributes(
		attribute.String("phase", phase),
		attribute.Int("size", len(items)),
	))
	defer span.End()

	decisions := make([]Decision, 0, len(items))
	for _, item := range items {
		var modifications []models.Modification
		if item.before != nil {
			var err error
			modifications, err = Collect(models.StreamModifications(ctx, r.DB, item.before.ID, r.PageSize))
			if err != nil {
				return newJobError(ErrorKindSource, "stream modifications", item.before.ID, err)
			}
		}
		d := Decide(item.before, item.now, modifications)
		switch {
		case d.Housing == nil:
			report.Untouched++
		case item.before == nil:
			report.Created++
		default:
			report.Updated++
		}
		for _, e := range d.Events {
			report.Events++
			if e.Conflict {
				report.Conflicts++
			}
		}
		decisions = append(decisions, d)
	}
	report.Processed += int64(len(items))

	if r.DryRun {
		return nil
	}

	result, err := r.Persister.Persist(ctx, decisions)
	if err != nil {
		span.RecordError(err)
		config.LogError(r.Logger, "housingReconciliation.go", "processBatch", "Persisting batch", logFields(ctx, phase), err)
		return err
	}

	if r.Notifier != nil && len(result.Conflicts) > 0 {
		if err := r.Notifier.NotifyConflicts(ctx, result.Conflicts, result.ConflictLinks); err != nil {
			// Conflict events are already committed; reviewers still find them in the report.
			config.LogError(r.Logger, "housingReconciliation.go", "processBatch", "Notifying conflicts", logFields(ctx, phase), err)
		}
	}

	r.Logger.WithFields(logFields(ctx, phase)).WithFields(logrus.Fields{
		"housings":  result.Housings,
		"events":    result.Events,
		"conflicts": len(result.Conflicts),
	}).Info("reconciliation batch committed")
	return nil
}

func isExitedVacancy(h *models.Housing) bool {
	return h.Status == models.HousingStatusCompleted &&
		h.SubStatus != nil && *h.SubStatus == models.SubStatusExitedVacancy
}

func keyString(k models.NaturalKey) string {
	return k.GeoCode + "/" + k.LocalId
}

func logFields(ctx context.Context, phase string) logrus.Fields {
	fields := logrus.Fields{"phase": phase}
	if runId, ok := utils.GetRunIdFromContext(ctx); ok {
		fields["run_id"] = runId
	}
	if job, ok := utils.GetJobNameFromContext(ctx); ok {
		fields["job"] = job
	}
	return fields
}
