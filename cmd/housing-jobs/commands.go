package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/housing_backend/config"
	"bitbucket.org/mmdatafocus/housing_backend/models"
	"bitbucket.org/mmdatafocus/housing_backend/utils"
	"bitbucket.org/mmdatafocus/housing_backend/workflow"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

const (
	jobImportSource    = "import-source"
	jobReconcile       = "reconcile"
	jobDedupe          = "dedupe"
	jobConflictsExport = "conflicts-export"
)

func importSourceCommand() *cli.Command {
	return &cli.Command{
		Name:  jobImportSource,
		Usage: "stage a yearly snapshot (gs://bucket/object or local JSONL file)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Required: true, Usage: "snapshot location"},
			&cli.StringFlag{Name: "data-file-year", EnvVars: []string{"HOUSING_DATA_FILE_YEAR"}, Usage: "data file tag, e.g. lovac-2024"},
			&cli.IntFlag{Name: "batch-size", Value: config.ReconcileBatchSize(), Usage: "lines per transaction"},
		},
		Action: func(c *cli.Context) error {
			ctx, db, release, err := startJob(c.Context, jobImportSource)
			if err != nil {
				return err
			}
			defer release()

			importer := workflow.NewSourceImporter(db, config.GetLogger(), strings.TrimSpace(c.String("data-file-year")))
			importer.BatchSize = c.Int("batch-size")
			importer.Progress = printProgress
			report, err := importer.ImportLocation(ctx, c.String("source"))
			if err != nil {
				return err
			}
			logReport(ctx, jobImportSource, logrus.Fields{"lines": report.Lines, "imported": report.Imported})
			return nil
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  jobReconcile,
		Usage: "merge a staged snapshot into the housing records",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data-file-year", Value: config.DataFileYear(), Usage: "data file tag, e.g. lovac-2024"},
			&cli.IntFlag{Name: "batch-size", Value: config.ReconcileBatchSize(), Usage: "decisions per transaction"},
			&cli.BoolFlag{Name: "dry-run", Usage: "decide and count without writing"},
		},
		Action: func(c *cli.Context) error {
			year := strings.TrimSpace(c.String("data-file-year"))
			if year == "" {
				return &workflow.JobError{Kind: workflow.ErrorKindConfiguration, Op: "reconcile", Err: fmt.Errorf("data file year is required")}
			}

			ctx, db, release, err := startJob(c.Context, jobReconcile)
			if err != nil {
				return err
			}
			defer release()

			actor, err := workflow.ResolveSystemActor(ctx, db, config.SystemAccountEmail())
			if err != nil {
				return err
			}

			logger := config.GetLogger()
			persister := workflow.NewBulkPersister(db, logger, actor)
			persister.Scope = year
			reconciler := workflow.NewReconciler(db, logger, workflow.NewDBSourceFeed(db, year), persister)
			reconciler.BatchSize = c.Int("batch-size")
			reconciler.DryRun = c.Bool("dry-run")
			reconciler.Progress = printProgress
			if topic := config.ConflictsTopic(); topic != "" {
				reconciler.Notifier = workflow.NewPubSubConflictNotifier(topic)
			}

			report, err := reconciler.Run(ctx)
			if err != nil {
				return err
			}
			logReport(ctx, jobReconcile, logrus.Fields{
				"data_file_year": year,
				"dry_run":        reconciler.DryRun,
				"processed":      report.Processed,
				"created":        report.Created,
				"updated":        report.Updated,
				"untouched":      report.Untouched,
				"skipped":        report.Skipped,
				"events":         report.Events,
				"conflicts":      report.Conflicts,
			})
			return nil
		},
	}
}

func dedupeCommand() *cli.Command {
	return &cli.Command{
		Name:  jobDedupe,
		Usage: "merge housings whose local id carries a disambiguator",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "geo-code", Usage: "restrict to these geo codes"},
			&cli.IntFlag{Name: "page-size", Value: config.DedupePageSize(), Usage: "housings read per page"},
			&cli.BoolFlag{Name: "dry-run", Usage: "group and merge without writing"},
		},
		Action: func(c *cli.Context) error {
			ctx, db, release, err := startJob(c.Context, jobDedupe)
			if err != nil {
				return err
			}
			defer release()

			deduplicator := workflow.NewDeduplicator(db, config.GetLogger())
			deduplicator.Filter = models.HousingFilter{GeoCodes: c.StringSlice("geo-code")}
			deduplicator.PageSize = c.Int("page-size")
			deduplicator.DryRun = c.Bool("dry-run")
			deduplicator.Progress = printProgress

			report, err := deduplicator.Run(ctx)
			if err != nil {
				return err
			}
			logReport(ctx, jobDedupe, logrus.Fields{
				"dry_run":    deduplicator.DryRun,
				"groups":     report.Groups,
				"processed":  report.Processed,
				"removed":    report.Removed,
				"normalized": report.Normalized,
			})
			return nil
		},
	}
}

func conflictsExportCommand() *cli.Command {
	return &cli.Command{
		Name:  jobConflictsExport,
		Usage: "export conflict events to an XLSX file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "since", Required: true, Usage: "first day to export (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "local path or gs://bucket/object"},
		},
		Action: func(c *cli.Context) error {
			since, err := time.Parse(time.DateOnly, strings.TrimSpace(c.String("since")))
			if err != nil {
				return &workflow.JobError{Kind: workflow.ErrorKindConfiguration, Op: "parse --since", Key: c.String("since"), Err: err}
			}

			ctx, db, release, err := startJob(c.Context, jobConflictsExport)
			if err != nil {
				return err
			}
			defer release()

			count, err := workflow.ExportConflicts(ctx, db, since, c.String("out"))
			if err != nil {
				return err
			}
			logReport(ctx, jobConflictsExport, logrus.Fields{"since": since.Format(time.DateOnly), "out": c.String("out"), "conflicts": count})
			return nil
		},
	}
}

// startJob connects the stores, migrates the schema and takes the run lock of the job.
func startJob(parent context.Context, jobName string) (context.Context, *gorm.DB, func(), error) {
	ctx := utils.NewJobContext(parent, jobName)

	if err := config.ConnectDatabaseWithRetry(); err != nil {
		return nil, nil, nil, &workflow.JobError{Kind: workflow.ErrorKindConfiguration, Op: "connect database", Err: err}
	}
	db := config.GetDB()
	if err := models.MigrateTables(db); err != nil {
		return nil, nil, nil, &workflow.JobError{Kind: workflow.ErrorKindConfiguration, Op: "migrate tables", Err: err}
	}

	if err := config.ConnectRedisWithRetry(ctx); err != nil {
		return nil, nil, nil, &workflow.JobError{Kind: workflow.ErrorKindConfiguration, Op: "connect redis", Err: err}
	}
	var locker workflow.Locker
	if client := config.GetRedisLock(); client != nil {
		locker = workflow.RedisLocker{Client: client}
	}
	release, err := workflow.AcquireJobLock(ctx, locker, jobName, config.JobLockTTL())
	if err != nil {
		return nil, nil, nil, err
	}

	runId, _ := utils.GetRunIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{"job": jobName, "run_id": runId}).Info("job started")
	return ctx, db, release, nil
}

func printProgress(phase string, processed int64, total int64) {
	if total > 0 {
		fmt.Printf("[%s] %d/%d\n", phase, processed, total)
		return
	}
	fmt.Printf("[%s] %d\n", phase, processed)
}

func logReport(ctx context.Context, jobName string, fields logrus.Fields) {
	runId, _ := utils.GetRunIdFromContext(ctx)
	config.GetLogger().WithFields(fields).WithFields(logrus.Fields{"job": jobName, "run_id": runId}).Info("job finished")
}
