package workflow

import (
	"context"
	"iter"

	"bitbucket.org/mmdatafocus/housing_backend/models"
	"gorm.io/gorm"
)

// SourceFeed is one yearly external snapshot.
type SourceFeed interface {
	DataFileYear() string
	// StreamNewRecords yields every snapshot line in natural key order.
	StreamNewRecords(ctx context.Context) iter.Seq2[models.SourceHousing, error]
	// FindOne returns nil when the natural key is absent from the snapshot.
	FindOne(ctx context.Context, key models.NaturalKey) (*models.SourceHousing, error)
	Count(ctx context.Context) (int64, error)
}

// DBSourceFeed reads a snapshot staged in source_housings.
type DBSourceFeed struct {
	DB       *gorm.DB
	Year     string
	PageSize int
}

func NewDBSourceFeed(db *gorm.DB, dataFileYear string) *DBSourceFeed {
	return &DBSourceFeed{DB: db, Year: dataFileYear, PageSize: 1000}
}

func (f *DBSourceFeed) DataFileYear() string {
	return f.Year
}

func (f *DBSourceFeed) StreamNewRecords(ctx context.Context) iter.Seq2[models.SourceHousing, error] {
	return models.StreamSourceHousings(ctx, f.DB, f.Year, f.PageSize)
}

func (f *DBSourceFeed) FindOne(ctx context.Context, key models.NaturalKey) (*models.SourceHousing, error) {
	return models.FindSourceHousing(ctx, f.DB, f.Year, key)
}

func (f *DBSourceFeed) Count(ctx context.Context) (int64, error) {
	return models.CountSourceHousings(ctx, f.DB, f.Year)
}
