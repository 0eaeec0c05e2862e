package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/housing_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestResolveSystemActor(t *testing.T) {
	db := newTestDB(t)
	actor := seedActor(t, db)
	ctx := context.Background()

	got, err := ResolveSystemActor(ctx, db, " SYSTEM@housing.test ")
	require.NoError(t, err)
	assert.Equal(t, actor.ID, got.ID)

	_, err = ResolveSystemActor(ctx, db, "nobody@housing.test")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorKindConfiguration))
	assert.ErrorIs(t, err, ErrSystemActorNotFound)

	_, err = ResolveSystemActor(ctx, db, "")
	assert.ErrorIs(t, err, ErrSystemActorNotFound)
}

func TestBulkPersister_WritesHousingsThenEvents(t *testing.T) {
	db := newTestDB(t)
	actor := seedActor(t, db)
	persister := NewBulkPersister(db, newTestLogger(), actor)
	persister.Now = fixedNow

	now := withOwner(newSource("lovac-2024", "75056", "123456789012"), "P1", "Jane Doe")
	created := Decide(nil, &now, nil)
	before := newHousing("75056", "999999999999", models.HousingStatusInProgress)
	require.NoError(t, models.UpsertHousings(db, []models.Housing{before}))
	review := Decide(&before, nil, nil)

	result, err := persister.Persist(context.Background(), []Decision{created, review})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Housings)
	assert.Equal(t, 2, result.Events)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, before.ID, result.ConflictLinks[0].HousingId)

	stored, err := models.FindHousing(context.Background(), db, now.Key())
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.Owner)
	assert.Equal(t, "Jane Doe", stored.Owner.FullName)

	var events []models.Event
	require.NoError(t, db.Order("name").Find(&events).Error)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, actor.ID, e.CreatedBy)
		assert.True(t, e.CreatedAt.Equal(fixedNow()))
	}
	var links int64
	require.NoError(t, db.Model(&models.HousingEvent{}).Count(&links).Error)
	assert.EqualValues(t, 2, links)
}

func TestBulkPersister_RollsBackHousingsWhenEventsFail(t *testing.T) {
	db := newTestDB(t)
	actor := seedActor(t, db)
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_events", func(tx *gorm.DB) {
		if tx.Statement.Table == "events" {
			_ = tx.AddError(errors.New("events unavailable"))
		}
	}))
	persister := NewBulkPersister(db, newTestLogger(), actor)

	now := newSource("lovac-2024", "75056", "123456789012")
	_, err := persister.Persist(context.Background(), []Decision{Decide(nil, &now, nil)})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorKindTransaction))

	var count int64
	require.NoError(t, db.Model(&models.Housing{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBulkPersister_RequiresActor(t *testing.T) {
	db := newTestDB(t)
	persister := NewBulkPersister(db, newTestLogger(), nil)

	_, err := persister.Persist(context.Background(), nil)
	assert.True(t, IsKind(err, ErrorKindConfiguration))
	assert.ErrorIs(t, err, ErrSystemActorNotFound)
}

func TestBulkPersister_KeepsOperatorOwnerColumns(t *testing.T) {
	db := newTestDB(t)
	actor := seedActor(t, db)
	ctx := context.Background()

	idPersonne := "P1"
	owner := models.Owner{
		ID:         models.OwnerIdFor(idPersonne),
		IdPersonne: &idPersonne,
		FullName:   "Jane Doe",
		Email:      strPtr("jane@example.org"),
	}
	stored := newHousing("75056", "123456789012", models.HousingStatusWaiting)
	stored.Owner = &owner
	require.NoError(t, models.UpsertHousings(db, []models.Housing{stored}))

	now := withOwner(newSource("lovac-2024", "75056", "123456789012"), idPersonne, "Jane Doe-Martin")
	_, err := NewBulkPersister(db, newTestLogger(), actor).Persist(ctx, []Decision{Decide(&stored, &now, nil)})
	require.NoError(t, err)

	var got models.Owner
	require.NoError(t, db.First(&got, "id = ?", owner.ID).Error)
	assert.Equal(t, "Jane Doe-Martin", got.FullName)
	require.NotNil(t, got.Email)
	assert.Equal(t, "jane@example.org", *got.Email)
}

func TestBulkPersister_LinksOwnerStoredUnderAnotherId(t *testing.T) {
	db := newTestDB(t)
	actor := seedActor(t, db)
	ctx := context.Background()

	idPersonne := "P1"
	existing := models.Owner{
		ID:         "11111111-1111-1111-1111-111111111111",
		IdPersonne: &idPersonne,
		FullName:   "Jane Doe",
		Email:      strPtr("jane@example.org"),
	}
	require.NoError(t, db.Create(&existing).Error)

	now := withOwner(newSource("lovac-2024", "75056", "123456789012"), idPersonne, "Jane Doe")
	_, err := NewBulkPersister(db, newTestLogger(), actor).Persist(ctx, []Decision{Decide(nil, &now, nil)})
	require.NoError(t, err)

	housing, err := models.FindHousing(ctx, db, now.Key())
	require.NoError(t, err)
	require.NotNil(t, housing.Owner)
	assert.Equal(t, existing.ID, housing.Owner.ID)

	var owners int64
	require.NoError(t, db.Model(&models.Owner{}).Count(&owners).Error)
	assert.EqualValues(t, 1, owners)
}
