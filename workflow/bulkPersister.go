package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/housing_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ResolveSystemActor loads the account stamped on every event written by a job run.
// The caller resolves it once and hands it to the persister for the whole run.
func ResolveSystemActor(ctx context.Context, db *gorm.DB, email string) (*models.User, error) {
	if email == "" {
		return nil, newJobError(ErrorKindConfiguration, "resolve system actor", "", fmt.Errorf("%w: SYSTEM_ACCOUNT_EMAIL is empty", ErrSystemActorNotFound))
	}
	user, err := models.FindUserByEmail(ctx, db, email)
	if err != nil {
		return nil, newJobError(ErrorKindConfiguration, "resolve system actor", email, err)
	}
	if user == nil {
		return nil, newJobError(ErrorKindConfiguration, "resolve system actor", email, ErrSystemActorNotFound)
	}
	return user, nil
}

// eventNamespace seeds scoped event ids.
var eventNamespace = uuid.MustParse("8c1f4b2e-6d3a-4f9b-a0e7-3b5c2d9e7f14")

type BulkPersister struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Actor  *models.User
	Now    func() time.Time
	// Scope makes event ids deterministic per housing and event name, so that a re-run over the
	// same data file does not record the same event twice. Empty gives random ids.
	Scope string
}

func NewBulkPersister(db *gorm.DB, logger *logrus.Logger, actor *models.User) *BulkPersister {
	return &BulkPersister{
		DB:     db,
		Logger: logger,
		Actor:  actor,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

type PersistResult struct {
	Housings      int
	Events        int
	Conflicts     []models.Event
	// ConflictLinks holds the housing link of each conflict event, index aligned.
	ConflictLinks []models.HousingEvent
}

// Persist writes a batch of decisions in one transaction: housings first, then the events that
// reference them. Nothing of the batch is kept if any write fails.
func (p *BulkPersister) Persist(ctx context.Context, decisions []Decision) (PersistResult, error) {
	var result PersistResult
	if p.Actor == nil {
		return result, newJobError(ErrorKindConfiguration, "persist batch", "", ErrSystemActorNotFound)
	}

	housings := make([]models.Housing, 0, len(decisions))
	for _, d := range decisions {
		if d.Housing != nil {
			housings = append(housings, *d.Housing)
		}
	}
	events, links, err := p.stamp(decisions)
	if err != nil {
		return result, newJobError(ErrorKindTransaction, "persist batch", "", err)
	}

	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.UpsertHousings(tx, housings); err != nil {
			return fmt.Errorf("upsert housings: %w", err)
		}
		if err := models.InsertEvents(tx, events, links); err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
		return nil
	})
	if err != nil {
		return result, newJobError(ErrorKindTransaction, "persist batch", batchKey(decisions), err)
	}

	result.Housings = len(housings)
	result.Events = len(events)
	for i, e := range events {
		if e.Conflict {
			result.Conflicts = append(result.Conflicts, e)
			result.ConflictLinks = append(result.ConflictLinks, links[i])
		}
	}
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{
			"housings":  result.Housings,
			"events":    result.Events,
			"conflicts": len(result.Conflicts),
		}).Debug("batch persisted")
	}
	return result, nil
}

func (p *BulkPersister) stamp(decisions []Decision) ([]models.Event, []models.HousingEvent, error) {
	now := p.Now()
	var events []models.Event
	var links []models.HousingEvent
	for _, d := range decisions {
		for _, draft := range d.Events {
			oldSnapshot, err := models.Snapshot(draft.Old)
			if err != nil {
				return nil, nil, err
			}
			newSnapshot, err := models.Snapshot(draft.New)
			if err != nil {
				return nil, nil, err
			}
			id := p.eventId(draft)
			events = append(events, models.Event{
				ID:        id,
				Name:      draft.Name,
				Kind:      draft.Kind,
				Category:  draft.Category,
				Section:   draft.Section,
				Old:       oldSnapshot,
				New:       newSnapshot,
				Conflict:  draft.Conflict,
				CreatedBy: p.Actor.ID,
				CreatedAt: now,
			})
			links = append(links, models.HousingEvent{
				EventId:        id,
				HousingGeoCode: draft.HousingGeoCode,
				HousingId:      draft.HousingId,
			})
		}
	}
	return events, links, nil
}

func (p *BulkPersister) eventId(draft EventDraft) string {
	if p.Scope == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(eventNamespace, []byte(p.Scope+"|"+draft.HousingId+"|"+draft.Name)).String()
}

// batchKey names a batch by the natural keys it spans, for error reports.
func batchKey(decisions []Decision) string {
	var first, last *models.Housing
	for i := range decisions {
		if decisions[i].Housing == nil {
			continue
		}
		if first == nil {
			first = decisions[i].Housing
		}
		last = decisions[i].Housing
	}
	if first == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s..%s/%s", first.GeoCode, first.LocalId, last.GeoCode, last.LocalId)
}
