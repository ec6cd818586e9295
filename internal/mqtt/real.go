package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mrcode/fpu-scheduler/internal/engine"
)

var connectTimeout = 10 * time.Second

// RealPublisher publishes to an actual MQTT broker
type RealPublisher struct {
	client paho.Client
	topic  string
}

// NewRealPublisher creates a publisher connected to the given broker
func NewRealPublisher(broker, clientID, topic string) (*RealPublisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(false)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{
		client: client,
		topic:  topic,
	}, nil
}

// PublishSchedule sends a batch to the broker
func (p *RealPublisher) PublishSchedule(batch engine.ExportBatch) error {
	payload, err := FormatSchedulePayload(batch)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1 (at-least-once), not retained
	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

// Close disconnects from the broker
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
