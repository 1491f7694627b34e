// Package program provides broadcast programs for Gray Logic Radio.
//
// A program is a named transmitter configuration — the channel plan
// (which of the 12 channels carry which frequencies), the audio source,
// and the stored message — activated as a single unit. Programs let an
// operator re-key the transmitter with one command instead of a dozen.
//
// # Key Types
//
//   - Program: Named channel plan with source and message selection
//   - ChannelSetting: One channel's target frequency within a program
//   - Execution: Audit record of a program activation
//   - Engine: Orchestrator that drives the transmitter supervisor
//   - Registry: Thread-safe in-memory cache wrapping Repository
//
// # Activation Pipeline
//
//  1. Load program (cached)
//  2. Arm the transmitter
//  3. Apply the channel plan: listed channels enabled at their
//     frequency, the rest explicitly disabled
//  4. Select audio source, and the stored message when the source
//     is block RAM
//  5. Start the carrier
//  6. Log the execution result, broadcast a WebSocket event
//
// Channel steps are non-fatal; arm, source, message, and carrier
// start abort the activation on failure.
//
// # Thread Safety
//
// Registry and Engine are safe for concurrent use from multiple goroutines.
// All public methods use appropriate synchronisation.
//
// # Usage
//
//	repo := program.NewSQLiteRepository(db)
//	registry := program.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	engine := program.NewEngine(registry, supervisor, hub, repo, log)
//	executionID, err := engine.Activate(ctx, programID, "api")
package program
