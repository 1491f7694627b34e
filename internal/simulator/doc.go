// Package simulator provides an in-process transmitter simulator for
// development and tests.
//
// It speaks the device control protocol over TCP (line commands in,
// line replies out) and maintains the same registers the hardware
// does: carrier state, per-channel enable and frequency, audio source
// select, stored message select and the hardware watchdog.
//
// # Watchdog contract
//
// The simulator enforces the one property the whole system depends
// on: while broadcasting, the device must receive WATCHDOG:RESET
// within the configured timeout or the carrier is forced off and the
// triggered flag latches. Re-enabling the carrier after a trip
// requires a fresh WATCHDOG:RESET first.
//
// # Usage
//
//	dev := simulator.New(cfg.Simulator, logger)
//	if err := dev.Start(); err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	// Point the transmitter client at dev.Addr().
//
// Fault injection hooks (SetMute, SetReplyDelay, FailCommand,
// DropConnections) exist for exercising client failure paths in
// integration tests.
package simulator
