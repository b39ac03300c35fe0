package rabbitmq

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes messages on a fixed topic.
type IPublisher interface {
	PublishMessage(message interface{}) error
	Close()
}

// PublishClient is the part of mqtt.Client a Publisher needs.
type PublishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher sends messages to one MQTT topic. Strings and byte slices go out as they
// are; any other value is JSON encoded.
type Publisher struct {
	client   PublishClient
	topic    string
	retained bool
	verbose  bool
}

var _ IPublisher = (*Publisher)(nil)

func NewPublisher(client PublishClient, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Retain makes the broker keep the last message for late subscribers.
func (p *Publisher) Retain(on bool) *Publisher {
	p.retained = on
	return p
}

// Verbose logs every published payload.
func (p *Publisher) Verbose(on bool) *Publisher {
	p.verbose = on
	return p
}

func (p *Publisher) Topic() string { return p.topic }

func (p *Publisher) PublishMessage(message interface{}) error {
	return p.PublishMessageQos(qosFor(p.topic), p.retained, message)
}

func (p *Publisher) PublishMessageQos(qos byte, retained bool, message interface{}) error {
	payload, err := encode(message)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message on %s: %w", p.topic, token.Error())
	}

	if p.verbose {
		log.Printf("mqtt: published %d bytes to %s", len(payload), p.topic)
	}
	return nil
}

func encode(message interface{}) ([]byte, error) {
	switch m := message.(type) {
	case nil:
		return nil, fmt.Errorf("invalid message: nil")
	case string:
		return []byte(m), nil
	case []byte:
		return m, nil
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("invalid message format: %w", err)
		}
		return b, nil
	}
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("mqtt: publisher client disconnected")
	}
}
