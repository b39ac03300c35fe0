package simulation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

var ErrUnknownCommand = errors.New("unknown command")

type EngineConfig struct {
	TickInterval    time.Duration
	InitialDelay    time.Duration
	RefreshInterval time.Duration
	TickObservers   []func(TickReport)
}

// Engine ties the simulation to its clock and its stats refresher.
// Start and Stop drive both; external commands enter through Apply.
type Engine struct {
	runID     string
	sim       *Simulation
	clock     *Clock
	refresher *Refresher

	// lifecycle keeps the clock and the refresher in the same state when Start and
	// Stop arrive from different control surfaces.
	lifecycle sync.Mutex
}

func NewEngine(sim *Simulation, cfg EngineConfig, sinks ...Sink) *Engine {
	initial := cfg.InitialDelay
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	opts := []ClockOption{WithInitialDelay(initial)}
	for _, fn := range cfg.TickObservers {
		opts = append(opts, WithTickObserver(fn))
	}

	e := &Engine{
		runID: uuid.NewString(),
		sim:   sim,
		clock: NewClock(sim, cfg.TickInterval, opts...),
	}
	e.refresher = NewRefresher(e.Snapshot, cfg.RefreshInterval, sinks...)
	return e
}

func (e *Engine) RunID() string { return e.runID }

func (e *Engine) Running() bool { return e.clock.Running() }

func (e *Engine) Simulation() *Simulation { return e.sim }

// AddSink registers a sink for subsequent refreshes.
func (e *Engine) AddSink(s Sink) { e.refresher.AddSink(s) }

// Start runs the first tick immediately, then the periodic tick and stats refresh.
func (e *Engine) Start() bool {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if !e.clock.Start() {
		return false
	}
	e.refresher.Start()
	log.Printf("sim: engine started run=%s tick=%s", e.runID, e.clock.target)
	return true
}

// Stop halts ticking and refreshing, then publishes one last snapshot so every sink
// sees the stopped state.
func (e *Engine) Stop() bool {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if !e.clock.Stop() {
		return false
	}
	e.refresher.Stop()
	snap := e.refresher.RefreshNow(context.Background())
	log.Printf("sim: engine stopped run=%s ticks=%d", e.runID, snap.Tick)
	return true
}

// Snapshot is the current state of the run, not delivered to sinks.
func (e *Engine) Snapshot() messages.Snapshot {
	snap := e.sim.Snapshot()
	snap.RunID = e.runID
	snap.Running = e.clock.Running()
	snap.Timestamp = time.Now().UTC()
	return snap
}

// Refresh forces an immediate stats refresh to every sink.
func (e *Engine) Refresh(ctx context.Context) messages.Snapshot {
	return e.refresher.RefreshNow(ctx)
}

// Apply executes an external command. Quantities are clamped by the entities;
// only an unknown command type or entity index is an error.
func (e *Engine) Apply(cmd messages.Command) error {
	switch cmd.Type {
	case messages.CmdStart:
		e.Start()
		return nil
	case messages.CmdStop:
		e.Stop()
		return nil
	case messages.CmdAddTankWater:
		return e.sim.AddTankWater(cmd.Target, cmd.Value)
	case messages.CmdAddFarmWater:
		return e.sim.AddFarmWater(cmd.Target, cmd.Value)
	case messages.CmdSetTemperature:
		e.sim.SetTemperature(cmd.Value)
		return nil
	case messages.CmdSetBaseFlow:
		return e.sim.SetBaseFlow(cmd.Target, cmd.Value)
	default:
		return fmt.Errorf("%q: %w", cmd.Type, ErrUnknownCommand)
	}
}
