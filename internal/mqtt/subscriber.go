// Package mqtt subscribes to the sensor-node topic and forwards reports to
// the ingestion service. ESP32 nodes that cannot hold an HTTP session push
// their events through the broker instead.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/errors"
	"github.com/condosec/condowatch/internal/ingest"
	"github.com/condosec/condowatch/internal/logger"
)

const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 5 * time.Second
	ingestTimeout    = 10 * time.Second
)

// Subscriber bridges one broker topic to the ingestion service.
type Subscriber struct {
	cfg     conf.MQTTSettings
	service *ingest.Service
	log     logger.Logger
	client  paho.Client
}

func NewSubscriber(cfg conf.MQTTSettings, service *ingest.Service, log logger.Logger) *Subscriber {
	return &Subscriber{cfg: cfg, service: service, log: log}
}

// Start connects and subscribes. Paho reconnects on its own afterwards and
// re-subscribes through the OnConnect hook.
func (s *Subscriber) Start() error {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(s.cfg.Topic, 1, s.handleMessage)
		if !token.WaitTimeout(subscribeTimeout) || token.Error() != nil {
			s.log.Error("mqtt subscribe failed",
				logger.String("topic", s.cfg.Topic),
				logger.Error(token.Error()))
			return
		}
		s.log.Info("mqtt subscribed", logger.String("topic", s.cfg.Topic))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.log.Warn("mqtt connection lost", logger.Error(err))
	})

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.New(fmt.Errorf("mqtt connect to %s timed out", s.cfg.Broker)).
			Category(errors.CategoryTransport).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("failed to connect to mqtt broker: %w", err)).
			Category(errors.CategoryTransport).
			Build()
	}
	return nil
}

// Stop disconnects, allowing in-flight work a short grace period.
func (s *Subscriber) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

func (s *Subscriber) handleMessage(_ paho.Client, msg paho.Message) {
	var req ingest.Request
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		s.log.Warn("mqtt payload is not a valid report",
			logger.String("topic", msg.Topic()),
			logger.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	resp, err := s.service.Ingest(ctx, req)
	if err != nil {
		s.log.Warn("mqtt report rejected",
			logger.String("node", req.Node),
			logger.Error(err))
		return
	}
	s.log.Debug("mqtt report ingested",
		logger.String("node", resp.Node),
		logger.String("event", resp.Event))
}
