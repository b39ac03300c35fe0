package messages

import "time"

// CommandType identifies an external action on the simulation.
type CommandType string

const (
	CmdStart          CommandType = "start"
	CmdStop           CommandType = "stop"
	CmdAddTankWater   CommandType = "add_tank_water"
	CmdAddFarmWater   CommandType = "add_farm_water"
	CmdSetTemperature CommandType = "set_temperature"
	CmdSetBaseFlow    CommandType = "set_base_flow"
)

// Command is received over MQTT (sim/command/#), HTTP or gRPC.
// Target is the tank, farm or pipe index, ignored by start/stop/set_temperature.
type Command struct {
	ID        string      `json:"id,omitempty"`
	Type      CommandType `json:"type"`
	Target    int         `json:"target"`
	Value     float64     `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
}

// CommandResult answers a Command on every control surface (HTTP, gRPC, websocket, sim/command-result).
type CommandResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}
