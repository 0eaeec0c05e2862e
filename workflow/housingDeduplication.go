package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/housing_backend/config"
	"bitbucket.org/mmdatafocus/housing_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const PhaseDeduplication = "dedupe"

type DedupeReport struct {
	Groups     int
	Processed  int64
	Removed    int
	Normalized int
}

// Deduplicator collapses housings whose local id carries a disambiguator into one canonical housing.
type Deduplicator struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Filter   models.HousingFilter
	PageSize int
	DryRun   bool
	Progress ProgressFunc
}

func NewDeduplicator(db *gorm.DB, logger *logrus.Logger) *Deduplicator {
	return &Deduplicator{
		DB:       db,
		Logger:   logger,
		PageSize: 500,
	}
}

// Run merges one group at a time. A failing group rolls back alone and stops the run; groups merged
// before it stay merged.
func (d *Deduplicator) Run(ctx context.Context) (DedupeReport, error) {
	var report DedupeReport

	filter := d.Filter
	filter.DecoratedOnly = true
	total, err := models.CountHousings(ctx, d.DB, filter)
	if err != nil {
		return report, newJobError(ErrorKindSource, "count decorated housings", "", err)
	}

	for group, err := range StreamDuplicateGroups(ctx, d.DB, filter, d.PageSize) {
		if err != nil {
			return report, newJobError(ErrorKindSource, "stream duplicate groups", "", err)
		}
		if err := d.mergeGroup(ctx, group, &report); err != nil {
			return report, err
		}
		report.Processed += int64(len(group.Housings))
		if group.HasCanonical {
			// The canonical housing is not part of the decorated count.
			report.Processed--
		}
		d.Progress.report(PhaseDeduplication, report.Processed, total)
	}
	return report, nil
}

func (d *Deduplicator) mergeGroup(ctx context.Context, group DuplicateGroup, report *DedupeReport) error {
	ctx, span := tracer.Start(ctx, "dedupe.group", trace.WithAttributes(
		attribute.String("geo_code", group.Base.GeoCode),
		attribute.String("local_id", group.Base.LocalId),
		attribute.Int("size", len(group.Housings)),
	))
	defer span.End()

	merged := MergeHousings(group.Housings)
	duplicates := group.Housings[1:]

	report.Groups++
	report.Removed += len(duplicates)
	if models.IsDecoratedLocalId(merged.LocalId) {
		report.Normalized++
	}
	if d.DryRun {
		return nil
	}

	if err := ReplaceDuplicates(ctx, d.DB, merged, duplicates); err != nil {
		span.RecordError(err)
		err = newJobError(ErrorKindTransaction, "replace duplicates", keyString(group.Base), err)
		config.LogError(d.Logger, "housingDeduplication.go", "mergeGroup", "Replacing duplicates", logFields(ctx, PhaseDeduplication), err)
		return err
	}

	d.Logger.WithFields(logFields(ctx, PhaseDeduplication)).WithFields(logrus.Fields{
		"geo_code":   group.Base.GeoCode,
		"local_id":   group.Base.LocalId,
		"canonical":  merged.ID,
		"duplicates": len(duplicates),
	}).Info("duplicate group merged")
	return nil
}
