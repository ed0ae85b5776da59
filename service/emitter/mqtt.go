package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"golang.org/x/xerrors"
)

const publishTimeout = 2 * time.Second

type message struct {
	Session   string `json:"session"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Mood      string `json:"mood"`
	Timestamp string `json:"timestamp"`
}

type mqttService struct {
	params  config.EmitterParameters
	session string
	client  mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// NewMQTT connects to params.Broker and publishes attribute changes on params.Topic.
func NewMQTT(ctx context.Context, params config.EmitterParameters, session string) (IService, error) {
	svc := &mqttService{params: params, session: session}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", params.Broker))
	opts.SetClientID(fmt.Sprintf("%s-%s", params.ClientID, session))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		svc.mu.Lock()
		svc.connected = true
		svc.mu.Unlock()
		lgr.Logger.Info("mqtt connection established",
			slog.String("broker", params.Broker),
			slog.String("topic", params.Topic),
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		svc.mu.Lock()
		svc.connected = false
		svc.mu.Unlock()
		lgr.Logger.Warn("mqtt connection lost, will auto-reconnect",
			slog.String("broker", params.Broker),
			slog.Any("error", err),
		)
	}

	svc.client = mqtt.NewClient(opts)

	token := svc.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, xerrors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, xerrors.Errorf("mqtt connection failed: %w", err)
	}
	return svc, nil
}

func (svc *mqttService) Publish(ctx context.Context, attrs model.ExtractedAttributes) error {
	payload, err := encode(svc.session, attrs)
	if err != nil {
		return err
	}

	token := svc.client.Publish(svc.params.Topic, svc.params.QoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		svc.count(false)
		return xerrors.New("mqtt publish timeout")
	}
	if err := token.Error(); err != nil {
		svc.count(false)
		return xerrors.Errorf("mqtt publish failed: %w", err)
	}
	svc.count(true)
	return nil
}

func (svc *mqttService) count(ok bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if ok {
		svc.published++
	} else {
		svc.errors++
	}
}

func (svc *mqttService) Close() error {
	svc.mu.RLock()
	published, errors := svc.published, svc.errors
	svc.mu.RUnlock()

	lgr.Logger.Info("mqtt emitter closing",
		slog.Uint64("published", published),
		slog.Uint64("errors", errors),
	)
	svc.client.Disconnect(250)
	return nil
}

func encode(session string, attrs model.ExtractedAttributes) ([]byte, error) {
	return json.Marshal(message{
		Session:   session,
		Age:       attrs.Age,
		Gender:    attrs.Gender,
		Mood:      attrs.Mood,
		Timestamp: attrs.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}
