package config

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newFakePubSub(t *testing.T, topics ...string) *pstest.Server {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	client, err := pubsub.NewClient(ctx, "housing-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	for _, name := range topics {
		_, err := client.CreateTopic(ctx, name)
		require.NoError(t, err)
	}

	pubsubClientMu.Lock()
	pubsubClient = client
	pubsubClientMu.Unlock()
	t.Cleanup(ClosePubSub)
	return srv
}

func TestPublishJSON_ReusesTopicPublisher(t *testing.T) {
	srv := newFakePubSub(t, "housing-conflicts")
	ctx := context.Background()

	for _, name := range []string{"first", "second"} {
		id, err := PublishJSON(ctx, "housing-conflicts", map[string]string{"name": name}, map[string]string{"kind": "conflict"})
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	}

	pubsubClientMu.Lock()
	assert.Len(t, pubsubTopics, 1)
	pubsubClientMu.Unlock()

	messages := srv.Messages()
	require.Len(t, messages, 2)
	assert.JSONEq(t, `{"name":"first"}`, string(messages[0].Data))
	assert.Equal(t, "conflict", messages[1].Attributes["kind"])

	ClosePubSub()
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	assert.Empty(t, pubsubTopics)
	assert.Nil(t, pubsubClient)
}

func TestPublishJSON_RequiresTopic(t *testing.T) {
	_, err := PublishJSON(context.Background(), "", struct{}{}, nil)
	assert.Error(t, err)
}
