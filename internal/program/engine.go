package program

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// Transmitter is the interface the engine needs from the transmitter
// supervisor. It covers exactly the operations a program activation drives.
type Transmitter interface {
	Arm(ctx context.Context) error
	SetChannel(ctx context.Context, channel int, enabled bool, frequencyHz int64) error
	SetSource(ctx context.Context, mode transmitter.SourceMode) error
	SelectMessage(ctx context.Context, id int) error
	StartBroadcast(ctx context.Context) error
	StopBroadcast(ctx context.Context) error
	State() transmitter.DeviceState
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// maxActivationTime is the hard limit for a single program activation.
// Even a full 12-channel reconfiguration over a slow link should complete
// well within this window.
const maxActivationTime = 60 * time.Second

// Engine orchestrates program activation.
//
// It loads a program from the registry, arms the transmitter, applies the
// channel plan (enable listed channels at their frequencies, disable the
// rest), selects the audio source and stored message, starts the carrier,
// and logs the execution result.
//
// Thread Safety: Activate is safe for concurrent use, though the underlying
// transmitter serialises commands on the wire.
type Engine struct {
	registry *Registry
	tx       Transmitter
	hub      WSHub
	repo     Repository // For execution logging
	logger   Logger
}

// NewEngine creates a new program engine.
//
// Parameters:
//   - registry: Program registry for loading program definitions
//   - tx: Transmitter session the activation drives (may be nil at startup)
//   - hub: WebSocket hub for broadcasting activation events (may be nil)
//   - repo: Repository for persisting execution logs
//   - logger: Logger instance
func NewEngine(registry *Registry, tx Transmitter, hub WSHub, repo Repository, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		registry: registry,
		tx:       tx,
		hub:      hub,
		repo:     repo,
		logger:   logger,
	}
}

// Activate activates a program by ID.
//
// The activation sequence is: arm, configure every channel (listed channels
// enabled at their programmed frequency, unlisted channels disabled), select
// source and message, then start the carrier.
//
// Channel steps are non-fatal: a failed disable or a failed enable of one
// channel does not abort the activation as long as at least one listed
// channel was configured. Arm, source, message, and carrier start are fatal.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - programID: The program to activate
//   - triggeredBy: Where the trigger originated (api, mqtt, system)
//
// Returns the execution ID for tracking, or an error:
//   - ErrProgramNotFound if the program doesn't exist
//   - ErrProgramDisabled if the program is disabled
//   - ErrTransmitterUnavailable if no transmitter session is wired
func (e *Engine) Activate(ctx context.Context, programID, triggeredBy string) (string, error) { //nolint:gocognit,gocyclo // program activation: validates, drives the device step by step, records execution
	ctx, cancel := context.WithTimeout(ctx, maxActivationTime)
	defer cancel()

	prog, err := e.registry.Get(ctx, programID)
	if err != nil {
		return "", err
	}

	if !prog.Enabled {
		return "", ErrProgramDisabled
	}

	if e.tx == nil {
		return "", ErrTransmitterUnavailable
	}

	started := time.Now().UTC()
	exec := &Execution{
		ID:          GenerateID(),
		ProgramID:   programID,
		TriggeredBy: triggeredBy,
		StartedAt:   started,
		// arm + every channel + source + message + start
		StepsTotal: 1 + transmitter.ChannelCount + 2 + 1,
	}

	e.logger.Info("program activation started",
		"program_id", programID,
		"program_name", prog.Name,
		"execution_id", exec.ID,
		"channels", len(prog.Channels),
	)

	status, stepsFailed, actErr := e.runActivation(ctx, prog)
	exec.Status = status
	exec.StepsFailed = stepsFailed
	if actErr != nil {
		exec.Error = actErr.Error()
	}
	exec.FinishedAt = time.Now().UTC()

	if createErr := e.repo.CreateExecution(ctx, exec); createErr != nil {
		e.logger.Error("failed to record execution", "error", createErr)
		// The activation outcome stands even if logging fails.
	}

	e.logger.Info("program activation complete",
		"program_id", programID,
		"execution_id", exec.ID,
		"status", exec.Status,
		"steps_failed", stepsFailed,
		"duration_ms", exec.FinishedAt.Sub(started).Milliseconds(),
	)

	if e.hub != nil {
		e.hub.Broadcast("program.activated", map[string]any{
			"program_id":   programID,
			"program_slug": prog.Slug,
			"program_name": prog.Name,
			"execution_id": exec.ID,
			"status":       string(exec.Status),
		})
	}

	if actErr != nil {
		return exec.ID, fmt.Errorf("activating program %q: %w", prog.Slug, actErr)
	}
	return exec.ID, nil
}

// runActivation drives the transmitter through the activation sequence and
// returns the final status, the number of failed steps, and the first fatal
// error (nil for completed and partial outcomes).
func (e *Engine) runActivation(ctx context.Context, prog *Program) (ExecutionStatus, int, error) {
	failed := 0

	if err := e.tx.Arm(ctx); err != nil {
		return activationAbort(err), 1, fmt.Errorf("arming: %w", err)
	}

	// Build the full channel plan: listed channels enabled at their
	// frequency, everything else explicitly disabled.
	plan := make(map[int]int64, len(prog.Channels))
	for _, cs := range prog.Channels {
		plan[cs.Channel] = cs.FrequencyHz
	}

	listedOK := 0
	for ch := 1; ch <= transmitter.ChannelCount; ch++ {
		freq, listed := plan[ch]
		if !listed {
			freq = transmitter.DefaultFrequencyHz
		}

		if err := e.tx.SetChannel(ctx, ch, listed, freq); err != nil {
			failed++
			e.logger.Warn("channel step failed",
				"channel", ch,
				"enabled", listed,
				"error", err,
			)
			if ctx.Err() != nil {
				return StatusCancelled, failed, fmt.Errorf("channel %d: %w", ch, err)
			}
			continue
		}
		if listed {
			listedOK++
		}
	}

	// Nothing to broadcast on — treat as fatal rather than keying an
	// empty carrier.
	if listedOK == 0 {
		return StatusFailed, failed, errors.New("no channels configured")
	}

	if err := e.tx.SetSource(ctx, prog.Source); err != nil {
		failed++
		return activationAbort(err), failed, fmt.Errorf("selecting source: %w", err)
	}

	if prog.Source == transmitter.SourceBRAM {
		if err := e.tx.SelectMessage(ctx, prog.Message); err != nil {
			failed++
			return activationAbort(err), failed, fmt.Errorf("selecting message %d: %w", prog.Message, err)
		}
	}

	if err := e.tx.StartBroadcast(ctx); err != nil {
		failed++
		return activationAbort(err), failed, fmt.Errorf("starting broadcast: %w", err)
	}

	if failed > 0 {
		return StatusPartial, failed, nil
	}
	return StatusCompleted, failed, nil
}

// activationAbort maps a fatal step error to the execution status:
// context cancellation records cancelled, anything else failed.
func activationAbort(err error) ExecutionStatus {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StatusCancelled
	}
	return StatusFailed
}

// Stop stops the carrier. It does not touch channel configuration, so a
// subsequent Activate of the same program is a fast re-key.
func (e *Engine) Stop(ctx context.Context) error {
	if e.tx == nil {
		return ErrTransmitterUnavailable
	}

	if err := e.tx.StopBroadcast(ctx); err != nil {
		return fmt.Errorf("stopping broadcast: %w", err)
	}

	e.logger.Info("broadcast stopped via program engine")

	if e.hub != nil {
		e.hub.Broadcast("program.stopped", map[string]any{
			"broadcast": string(e.tx.State().Broadcast),
		})
	}
	return nil
}
