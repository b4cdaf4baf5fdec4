package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-dispatch/internal/geo"
)

// LocationPing is the wire form of one driver position sample on the
// locations topic. Keyed by driver id so per-driver ordering holds within
// a partition.
type LocationPing struct {
	DriverID   string       `json:"driver_id"`
	Location   geo.Location `json:"location"`
	ReportedAt time.Time    `json:"reported_at"`
}

// KafkaProducer publishes location pings. The gateway uses it to get the
// high-volume ping stream off the request path; the locations consumer
// turns the stream into queue commands.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) PublishLocation(ctx context.Context, ping LocationPing) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(ping)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ping.DriverID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
