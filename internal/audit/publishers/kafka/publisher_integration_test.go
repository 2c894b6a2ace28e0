//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"credentials/internal/audit"
	"credentials/internal/audit/publishers/kafka"
	"credentials/pkg/testutil/containers"
)

type PublisherSuite struct {
	suite.Suite
	broker *containers.RedpandaContainer
}

func TestPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T())
}

func (s *PublisherSuite) TestEventsArriveOnTopic() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "credential-events-" + time.Now().Format("150405.000")

	s.Require().NoError(kafka.EnsureTopic(ctx, s.broker.Brokers, topic, 1, 1))
	s.Require().NoError(kafka.EnsureTopic(ctx, s.broker.Brokers, topic, 1, 1), "second call is a no-op")

	pub, err := kafka.New(s.broker.Brokers, topic, audit.NewRecorder())
	s.Require().NoError(err)
	defer pub.Close()

	event := audit.Event{
		Action:         audit.ActionCredentialRevoked,
		Username:       "alice",
		CredentialID:   9,
		CredentialUUID: "9d7f3a52-5f0a-4c57-b8a5-6a0d4f1f2e31",
		Status:         "revoked",
	}
	s.Require().NoError(pub.Emit(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)

	var got audit.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event.CredentialUUID, got.CredentialUUID)
	s.Equal(audit.ActionCredentialRevoked, got.Action)
	s.Equal(event.CredentialUUID, string(records[0].Key))
}
