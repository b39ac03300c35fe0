package control

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
	"github.com/LeonardoBeccarini/farmsim/pkg/dedup"
	"github.com/LeonardoBeccarini/farmsim/pkg/rabbitmq"
)

// CommandHandler turns MQTT messages into commands. The command type comes from the
// payload or, when absent, from the last topic level (sim/command/add_tank_water).
// Commands carrying an id are applied at most once within the dedup TTL, which covers
// QoS 1 redelivery.
type CommandHandler struct {
	ctrl    *Controller
	dedup   *dedup.Deduper
	results rabbitmq.IPublisher
}

func NewCommandHandler(ctrl *Controller, d *dedup.Deduper) *CommandHandler {
	return &CommandHandler{ctrl: ctrl, dedup: d}
}

// PublishResults sends a CommandResult for every applied or rejected command.
func (h *CommandHandler) PublishResults(p rabbitmq.IPublisher) *CommandHandler {
	h.results = p
	return h
}

// Handle matches the pkg/rabbitmq consumer handler signature. Malformed payloads are
// logged and dropped so they never block the stream.
func (h *CommandHandler) Handle(topic string, msg mqtt.Message) error {
	cmd, err := decodeCommand(topic, msg.Payload())
	if err != nil {
		log.Printf("control: invalid command on %s: %v", topic, err)
		return nil
	}
	if h.dedup != nil && !h.dedup.ShouldProcess(cmd.ID) {
		log.Printf("control: duplicate command %s on %s dropped", cmd.ID, topic)
		return nil
	}

	res, _ := h.ctrl.Apply(cmd)
	if h.results != nil {
		if err := h.results.PublishMessage(res); err != nil {
			return fmt.Errorf("publish result %s: %w", res.ID, err)
		}
	}
	return nil
}

func decodeCommand(topic string, payload []byte) (messages.Command, error) {
	var cmd messages.Command
	if len(strings.TrimSpace(string(payload))) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return cmd, err
		}
	}
	if cmd.Type == "" {
		if i := strings.LastIndex(topic, "/"); i >= 0 && i < len(topic)-1 {
			cmd.Type = messages.CommandType(topic[i+1:])
		}
	}
	if cmd.Type == "" {
		return cmd, fmt.Errorf("missing command type")
	}
	return cmd, nil
}
