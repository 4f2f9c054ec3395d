package core

import "errors"

// ErrProtocolViolation is returned when a component is driven outside its
// contract, e.g. a producer changing data held under valid. It is fatal for
// the current run.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// ErrUnknownMaster is returned for a master index outside the configured range.
var ErrUnknownMaster = errors.New("unknown master")

// ErrUnknownSlave is returned for a slave index outside the configured range.
var ErrUnknownSlave = errors.New("unknown slave")

// ErrFaulted is returned by a fabric that previously hit a protocol violation
// and has not been reset since.
var ErrFaulted = errors.New("fabric faulted")
