package domain

import "errors"

// Fatal errors abort the run (spec §7). Each is wrapped with the offending
// ref/timestamp/message kind by the caller before it reaches the runner.
var (
	ErrInvalidMessageTag    = errors.New("invalid message tag")
	ErrPrimaryKeyConflict   = errors.New("primary key conflict")
	ErrExecutionExceeds     = errors.New("execution exceeds available shares")
	ErrReplaceMissingSource = errors.New("replace references missing source order")
	ErrVolumeLevelExplosion = errors.New("too many price levels on one side")
)
