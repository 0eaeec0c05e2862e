package workflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"

	"bitbucket.org/mmdatafocus/housing_backend/config"
	"bitbucket.org/mmdatafocus/housing_backend/models"
	"bitbucket.org/mmdatafocus/housing_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const PhaseSourceImport = "import"

// maxSnapshotLine bounds one JSON line of a snapshot file.
const maxSnapshotLine = 4 << 20

type ImportReport struct {
	Lines    int64
	Imported int64
}

// SourceImporter stages a newline-delimited JSON snapshot into source_housings.
type SourceImporter struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Validate     *validator.Validate
	DataFileYear string
	BatchSize    int
	Progress     ProgressFunc
}

func NewSourceImporter(db *gorm.DB, logger *logrus.Logger, dataFileYear string) *SourceImporter {
	return &SourceImporter{
		DB:           db,
		Logger:       logger,
		Validate:     validator.New(),
		DataFileYear: dataFileYear,
		BatchSize:    1000,
	}
}

// ImportLocation imports the snapshot stored at a "gs://bucket/object" location or a local path.
func (i *SourceImporter) ImportLocation(ctx context.Context, location string) (ImportReport, error) {
	rc, err := utils.OpenObject(ctx, location)
	if err != nil {
		return ImportReport{}, newJobError(ErrorKindSource, "open snapshot", location, err)
	}
	defer rc.Close()
	return i.Import(ctx, rc)
}

// Import validates every line and upserts the snapshot in batches, one transaction per batch.
// The first invalid line stops the import; batches written before it stay written.
func (i *SourceImporter) Import(ctx context.Context, r io.Reader) (ImportReport, error) {
	var report ImportReport
	for batch, err := range Batch(i.decode(r, &report), i.BatchSize) {
		if err != nil {
			return report, err
		}
		err := i.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return models.UpsertSourceHousings(tx, batch)
		})
		if err != nil {
			err = newJobError(ErrorKindTransaction, "stage snapshot batch", fmt.Sprintf("line %d", report.Lines), err)
			config.LogError(i.Logger, "sourceImport.go", "Import", "Staging snapshot batch", logFields(ctx, PhaseSourceImport), err)
			return report, err
		}
		report.Imported += int64(len(batch))
		i.Progress.report(PhaseSourceImport, report.Imported, 0)
	}

	i.Logger.WithFields(logFields(ctx, PhaseSourceImport)).WithFields(logrus.Fields{
		"data_file_year": i.DataFileYear,
		"lines":          report.Lines,
		"imported":       report.Imported,
	}).Info("snapshot imported")
	return report, nil
}

func (i *SourceImporter) decode(r io.Reader, report *ImportReport) iter.Seq2[models.SourceHousing, error] {
	return func(yield func(models.SourceHousing, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSnapshotLine)
		for scanner.Scan() {
			report.Lines++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			source, err := i.parseLine(line)
			if err != nil {
				yield(models.SourceHousing{}, newJobError(ErrorKindSource, "parse snapshot", fmt.Sprintf("line %d", report.Lines), err))
				return
			}
			if !yield(source, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(models.SourceHousing{}, newJobError(ErrorKindSource, "read snapshot", fmt.Sprintf("line %d", report.Lines+1), err))
		}
	}
}

func (i *SourceImporter) parseLine(line []byte) (models.SourceHousing, error) {
	var source models.SourceHousing
	if err := utils.UnmarshalFromJSON(line, &source); err != nil {
		return source, err
	}
	if source.DataFileYear == "" {
		source.DataFileYear = i.DataFileYear
	}
	if i.DataFileYear != "" && source.DataFileYear != i.DataFileYear {
		return source, fmt.Errorf("data file year %q, expected %q", source.DataFileYear, i.DataFileYear)
	}
	if err := i.Validate.Struct(source); err != nil {
		return source, fmt.Errorf("invalid snapshot: %s", utils.DescribeValidationErrors(err))
	}
	if owner := source.Owner.Data(); hasOwner(owner) {
		if err := i.Validate.Struct(owner); err != nil {
			return source, fmt.Errorf("invalid owner: %s", utils.DescribeValidationErrors(err))
		}
	}
	for _, co := range source.CoOwners {
		if err := i.Validate.Struct(co); err != nil {
			return source, fmt.Errorf("invalid co-owner: %s", utils.DescribeValidationErrors(err))
		}
	}
	return source, nil
}

func hasOwner(o models.SourceOwner) bool {
	return o.IdPersonne != "" || o.FullName != "" || o.BirthDate != nil || o.Kind != nil || len(o.RawAddress) > 0
}
