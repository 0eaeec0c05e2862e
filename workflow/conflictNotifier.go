package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/housing_backend/config"
	"bitbucket.org/mmdatafocus/housing_backend/models"
	"bitbucket.org/mmdatafocus/housing_backend/utils"
)

// ConflictNotifier tells reviewers about conflict events once they are committed.
type ConflictNotifier interface {
	NotifyConflicts(ctx context.Context, events []models.Event, links []models.HousingEvent) error
}

type ConflictMessage struct {
	EventId        string    `json:"event_id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	HousingGeoCode string    `json:"housing_geo_code"`
	HousingId      string    `json:"housing_id"`
	RunId          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// PubSubConflictNotifier publishes one message per conflict event on a Pub/Sub topic.
type PubSubConflictNotifier struct {
	Topic   string
	// Publish defaults to config.PublishJSON.
	Publish func(ctx context.Context, topic string, obj any, attributes map[string]string) (string, error)
}

func NewPubSubConflictNotifier(topic string) *PubSubConflictNotifier {
	return &PubSubConflictNotifier{Topic: topic, Publish: config.PublishJSON}
}

func (n *PubSubConflictNotifier) NotifyConflicts(ctx context.Context, events []models.Event, links []models.HousingEvent) error {
	runId, _ := utils.GetRunIdFromContext(ctx)
	for i, e := range events {
		msg := ConflictMessage{
			EventId:   e.ID,
			Name:      e.Name,
			Category:  string(e.Category),
			RunId:     runId,
			CreatedAt: e.CreatedAt,
		}
		if i < len(links) {
			msg.HousingGeoCode = links[i].HousingGeoCode
			msg.HousingId = links[i].HousingId
		}
		attributes := map[string]string{"category": string(e.Category), "geo_code": msg.HousingGeoCode}
		if _, err := n.Publish(ctx, n.Topic, msg, attributes); err != nil {
			return err
		}
	}
	return nil
}
