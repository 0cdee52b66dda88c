package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces versions to a topic keyed by entity so all versions
// of one record stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, versions []Version) error {
	records := make([]*kgo.Record, 0, len(versions))
	for _, v := range versions {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal version %d: %w", v.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(v.Entity + ":" + strconv.FormatInt(v.EntityID, 10)),
			Value: payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(v.EventID.String())},
				{Key: "operation", Value: []byte(v.Operation)},
			},
		})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce versions: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
