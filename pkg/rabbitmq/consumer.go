package rabbitmq

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IConsumer subscribes to topics and hands every message of type T to a handler.
type IConsumer[T any] interface {
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler func(topic string, message mqtt.Message) error)
}

// SubscribeClient is the part of mqtt.Client a Consumer needs.
type SubscribeClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Consumer subscribes one handler to a set of topic filters.
type Consumer struct {
	client  SubscribeClient
	handler func(topic string, message mqtt.Message) error
	topics  []string
}

func NewConsumer(client SubscribeClient, handler func(topic string, message mqtt.Message) error, topics ...string) *Consumer {
	clean := make([]string, 0, len(topics))
	for _, t := range topics {
		if s := strings.TrimSpace(t); s != "" {
			clean = append(clean, s)
		}
	}
	return &Consumer{client: client, handler: handler, topics: clean}
}

func (c *Consumer) SetHandler(handler func(topic string, message mqtt.Message) error) {
	c.handler = handler
}

func (c *Consumer) Topics() []string { return append([]string(nil), c.topics...) }

// qosFor picks QoS 1 for the command tree (sim/command and sim/command/...), which must
// not be lost. Everything else, command results included, goes at QoS 0.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if t == "sim/command" || strings.HasPrefix(t, "sim/command/") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes every topic and blocks until ctx is cancelled, then
// unsubscribes. A failed subscription is returned right away.
func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	for _, topic := range c.topics {
		topic := topic
		token := c.client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				log.Printf("mqtt: no handler set for topic %s", topic)
				return
			}
			if err := c.handler(msg.Topic(), msg); err != nil {
				log.Printf("mqtt: error handling message on %s: %v", msg.Topic(), err)
			}
		})
		if token.Wait() && token.Error() != nil {
			return token.Error()
		}
		log.Printf("mqtt: subscribed to %s (qos %d)", topic, qosFor(topic))
	}

	<-ctx.Done()

	if len(c.topics) > 0 {
		c.client.Unsubscribe(c.topics...).Wait()
	}
	return nil
}
