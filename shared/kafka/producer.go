package kafka

import (
	"encoding/json"
	"fmt"

	"incidentwatch/logging"
	"incidentwatch/types"

	"github.com/IBM/sarama"
)

const (
	DefaultIncidentsTopic    = "incidents"
	DefaultCoordinationTopic = "coordination"
)

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers           []string
	IncidentsTopic    string
	CoordinationTopic string
}

// Producer publishes incidents and coordination groups as JSON, keyed by id
// so updates to one incident land on one partition.
type Producer struct {
	producer          sarama.SyncProducer
	incidentsTopic    string
	coordinationTopic string
}

// NewProducer connects a synchronous producer to the brokers.
func NewProducer(config ProducerConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	sp, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducerWithSync(sp, config), nil
}

// NewProducerWithSync wraps an existing producer.
func NewProducerWithSync(sp sarama.SyncProducer, config ProducerConfig) *Producer {
	if config.IncidentsTopic == "" {
		config.IncidentsTopic = DefaultIncidentsTopic
	}
	if config.CoordinationTopic == "" {
		config.CoordinationTopic = DefaultCoordinationTopic
	}
	return &Producer{
		producer:          sp,
		incidentsTopic:    config.IncidentsTopic,
		coordinationTopic: config.CoordinationTopic,
	}
}

// PublishIncidents sends every incident and reports which ones failed.
func (p *Producer) PublishIncidents(incidents []*types.Incident) types.BatchWriteResult {
	items := make([]keyed, 0, len(incidents))
	for _, inc := range incidents {
		if inc != nil {
			items = append(items, keyed{id: inc.ID, value: inc})
		}
	}
	return p.publish(p.incidentsTopic, items)
}

// PublishGroups sends coordination groups.
func (p *Producer) PublishGroups(groups []types.CoordinationGroup) types.BatchWriteResult {
	items := make([]keyed, 0, len(groups))
	for _, g := range groups {
		items = append(items, keyed{id: g.ID, value: g})
	}
	return p.publish(p.coordinationTopic, items)
}

type keyed struct {
	id    string
	value any
}

func (p *Producer) publish(topic string, items []keyed) types.BatchWriteResult {
	var result types.BatchWriteResult
	for _, it := range items {
		data, err := json.Marshal(it.value)
		if err != nil {
			result.Failed = append(result.Failed, types.FailedWrite{ID: it.id, Error: err.Error()})
			continue
		}
		_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(it.id),
			Value: sarama.ByteEncoder(data),
		})
		if err != nil {
			result.Failed = append(result.Failed, types.FailedWrite{ID: it.id, Error: err.Error()})
			continue
		}
		result.Saved = append(result.Saved, it.id)
	}

	if len(result.Failed) > 0 {
		logging.Warn("publish partially failed", "topic", topic, "sent", len(result.Saved), "failed", len(result.Failed))
	} else if len(result.Saved) > 0 {
		logging.Debug("published", "topic", topic, "count", len(result.Saved))
	}
	return result
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
