package program

import "errors"

// Domain errors for the program package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, program.ErrProgramNotFound) {
//	    // handle not found case
//	}
var (
	// ErrProgramNotFound is returned when a program ID does not exist.
	ErrProgramNotFound = errors.New("program: not found")

	// ErrProgramExists is returned when creating a program with an ID or slug that already exists.
	ErrProgramExists = errors.New("program: already exists")

	// ErrProgramDisabled is returned when attempting to activate a disabled program.
	ErrProgramDisabled = errors.New("program: disabled")

	// ErrInvalidProgram is returned when program validation fails.
	ErrInvalidProgram = errors.New("program: invalid")

	// ErrInvalidChannels is returned when the channel list is invalid.
	ErrInvalidChannels = errors.New("program: invalid channels")

	// ErrInvalidName is returned when a program name is empty or too long.
	ErrInvalidName = errors.New("program: invalid name")

	// ErrInvalidSlug is returned when a slug format is invalid.
	ErrInvalidSlug = errors.New("program: invalid slug")

	// ErrExecutionNotFound is returned when an execution ID does not exist.
	ErrExecutionNotFound = errors.New("program: execution not found")

	// ErrTransmitterUnavailable is returned when no transmitter session is available.
	ErrTransmitterUnavailable = errors.New("program: transmitter unavailable")
)
