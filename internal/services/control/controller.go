package control

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
	"github.com/LeonardoBeccarini/farmsim/internal/simulation"
)

// Controller is the single entry point for external commands, whatever the transport.
type Controller struct {
	engine  *simulation.Engine
	history *simulation.History
	now     func() time.Time
}

func NewController(engine *simulation.Engine, history *simulation.History) *Controller {
	return &Controller{engine: engine, history: history, now: time.Now}
}

func (c *Controller) Engine() *simulation.Engine { return c.engine }

func (c *Controller) History() *simulation.History { return c.history }

// Snapshot is the live state, not the last refreshed one.
func (c *Controller) Snapshot() messages.Snapshot { return c.engine.Snapshot() }

func (c *Controller) Topology() []simulation.Link { return c.engine.Simulation().Topology() }

// Apply stamps the command with an id and a time if it has none, executes it and
// reports the outcome. A rejected command leaves the simulation untouched and its error
// wraps simulation.ErrUnknownCommand or simulation.ErrUnknownEntity.
func (c *Controller) Apply(cmd messages.Command) (messages.CommandResult, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = c.now().UTC()
	}

	res := messages.CommandResult{ID: cmd.ID, Success: true, Message: "ok"}
	if err := c.engine.Apply(cmd); err != nil {
		res.Success = false
		res.Message = err.Error()
		log.Printf("control: command %s %s rejected: %v", cmd.ID, cmd.Type, err)
		return res, err
	}
	log.Printf("control: command %s %s target=%d value=%g", cmd.ID, cmd.Type, cmd.Target, cmd.Value)
	return res, nil
}
