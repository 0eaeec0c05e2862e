package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/housing_backend/models"
	"bitbucket.org/mmdatafocus/housing_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic      string
	msg        ConflictMessage
	attributes map[string]string
}

func TestPubSubConflictNotifier(t *testing.T) {
	var got []published
	notifier := &PubSubConflictNotifier{
		Topic: "housing-conflicts",
		Publish: func(_ context.Context, topic string, obj any, attributes map[string]string) (string, error) {
			got = append(got, published{topic: topic, msg: obj.(ConflictMessage), attributes: attributes})
			return "id", nil
		},
	}
	ctx := utils.NewJobContext(context.Background(), "reconcile")
	runId, _ := utils.GetRunIdFromContext(ctx)

	events := []models.Event{{ID: "e1", Name: EventNameOwnershipConflict, Category: models.EventCategoryOwnership, CreatedAt: fixedNow()}}
	links := []models.HousingEvent{{EventId: "e1", HousingGeoCode: testGeoCode, HousingId: "h1"}}
	require.NoError(t, notifier.NotifyConflicts(ctx, events, links))

	require.Len(t, got, 1)
	assert.Equal(t, "housing-conflicts", got[0].topic)
	assert.Equal(t, ConflictMessage{
		EventId:        "e1",
		Name:           EventNameOwnershipConflict,
		Category:       "Ownership",
		HousingGeoCode: testGeoCode,
		HousingId:      "h1",
		RunId:          runId,
		CreatedAt:      fixedNow(),
	}, got[0].msg)
	assert.Equal(t, map[string]string{"category": "Ownership", "geo_code": testGeoCode}, got[0].attributes)
}

func TestPubSubConflictNotifier_PropagatesPublishErrors(t *testing.T) {
	notifier := &PubSubConflictNotifier{
		Topic: "housing-conflicts",
		Publish: func(context.Context, string, any, map[string]string) (string, error) {
			return "", errors.New("unavailable")
		},
	}
	err := notifier.NotifyConflicts(context.Background(), []models.Event{{ID: "e1"}}, nil)
	assert.Error(t, err)
}
