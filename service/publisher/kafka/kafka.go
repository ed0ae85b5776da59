// Package kafka publishes accepted uploads to a Kafka topic through
// librdkafka. It needs cgo.
package kafka

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"github.com/khaledhikmat/vs-mood/service/publisher"
	"golang.org/x/xerrors"
)

const flushTimeout = 10 * time.Second

type kafkaService struct {
	producer     *ck.Producer
	topic        string
	deliveryChan chan ck.Event

	sent   atomic.Int64
	acked  atomic.Int64
	failed atomic.Int64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(params config.PublisherParameters) (publisher.IService, error) {
	cfg := &ck.ConfigMap{
		"bootstrap.servers":  params.BootstrapServers,
		"security.protocol":  params.SecurityProtocol,
		"acks":               params.Acks,
		"enable.idempotence": true,
		"linger.ms":          5,
		"request.timeout.ms": 30000,
	}
	if params.SASLMechanism != "" {
		cfg.SetKey("sasl.mechanism", params.SASLMechanism)
		cfg.SetKey("sasl.username", params.SASLUsername)
		cfg.SetKey("sasl.password", params.SASLPassword)
	}

	p, err := ck.NewProducer(cfg)
	if err != nil {
		return nil, xerrors.Errorf("failed to create producer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc := &kafkaService{
		producer:     p,
		topic:        params.Topic,
		deliveryChan: make(chan ck.Event, 1000),
		cancel:       cancel,
	}

	svc.wg.Add(1)
	go svc.handleDeliveryReports(ctx)

	lgr.Logger.Info("kafka publisher initialized",
		slog.String("topic", params.Topic),
		slog.String("servers", params.BootstrapServers),
	)
	return svc, nil
}

func (svc *kafkaService) handleDeliveryReports(ctx context.Context) {
	defer svc.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-svc.deliveryChan:
			m, ok := e.(*ck.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				svc.failed.Add(1)
				lgr.Logger.Error("upload event delivery failed",
					slog.String("key", string(m.Key)),
					slog.Any("error", m.TopicPartition.Error),
				)
				continue
			}
			svc.acked.Add(1)
		}
	}
}

func (svc *kafkaService) Publish(ctx context.Context, rec model.UploadRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := publisher.Encode(rec)
	if err != nil {
		return xerrors.Errorf("failed to encode upload event: %w", err)
	}

	msg := &ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &svc.topic, Partition: ck.PartitionAny},
		Key:            []byte(rec.ID),
		Value:          value,
		Headers: []ck.Header{
			{Key: "mood", Value: []byte(rec.Mood)},
			{Key: "gender", Value: []byte(rec.Gender)},
		},
	}

	if err := svc.producer.Produce(msg, svc.deliveryChan); err != nil {
		svc.failed.Add(1)
		return xerrors.Errorf("failed to produce upload event: %w", err)
	}
	svc.sent.Add(1)
	return nil
}

func (svc *kafkaService) Close() error {
	remaining := svc.producer.Flush(int(flushTimeout.Milliseconds()))
	if remaining > 0 {
		lgr.Logger.Warn("upload events still queued after flush",
			slog.Int("remaining", remaining),
		)
	}

	svc.cancel()
	svc.wg.Wait()
	svc.producer.Close()

	lgr.Logger.Info("kafka publisher closed",
		slog.Int64("sent", svc.sent.Load()),
		slog.Int64("acked", svc.acked.Load()),
		slog.Int64("failed", svc.failed.Load()),
	)
	return nil
}
