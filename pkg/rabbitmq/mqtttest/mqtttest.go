// Package mqtttest provides an in-memory broker stand-in for code built on pkg/rabbitmq.
package mqtttest

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is an already completed mqtt.Token.
type Token struct{ Err error }

var _ mqtt.Token = Token{}

func (t Token) Wait() bool                     { return true }
func (t Token) WaitTimeout(time.Duration) bool { return true }
func (t Token) Error() error                   { return t.Err }

func (t Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Message is a plain mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	QoS       byte
	Retain    bool
	ID        uint16
	Dup       bool
}

var _ mqtt.Message = (*Message)(nil)

func NewMessage(topic string, payload []byte) *Message {
	return &Message{TopicName: topic, Body: payload}
}

func (m *Message) Duplicate() bool   { return m.Dup }
func (m *Message) Qos() byte         { return m.QoS }
func (m *Message) Retained() bool    { return m.Retain }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return m.ID }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              {}

// Published records one Publish call.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Client records publications and routes Deliver calls to matching subscriptions.
type Client struct {
	mu        sync.Mutex
	connected bool
	subs      map[string]subscription
	published []Published

	PublishErr   error
	SubscribeErr error
}

type subscription struct {
	qos byte
	cb  mqtt.MessageHandler
}

func NewClient() *Client {
	return &Client{connected: true, subs: make(map[string]subscription)}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return Token{Err: c.PublishErr}
	}
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = append([]byte(nil), p...)
	case string:
		body = []byte(p)
	}
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: body})
	return Token{}
}

func (c *Client) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return Token{Err: c.SubscribeErr}
	}
	c.subs[topic] = subscription{qos: qos, cb: cb}
	return Token{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	return Token{}
}

// Published returns a copy of everything published so far.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// SubscribedQoS reports the QoS of the subscription for filter.
func (c *Client) SubscribedQoS(filter string) (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.subs[filter]
	return s.qos, ok
}

// Deliver hands msg to every subscription whose filter matches its topic and reports
// how many handlers ran.
func (c *Client) Deliver(msg mqtt.Message) int {
	c.mu.Lock()
	var cbs []mqtt.MessageHandler
	for filter, s := range c.subs {
		if Match(filter, msg.Topic()) {
			cbs = append(cbs, s.cb)
		}
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(nil, msg)
	}
	return len(cbs)
}

// Match reports whether an MQTT topic filter (with + and # wildcards) matches topic.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}
