package model

import "errors"

var (
	// ErrInsufficientData aborts a training job whose corpus cannot be split.
	ErrInsufficientData = errors.New("insufficient training data")
	// ErrPersistence aborts a training job that cannot write its artifact.
	ErrPersistence = errors.New("artifact persistence failed")
	// ErrArtifactLoad is absorbed by the registry, which switches to degrade mode.
	ErrArtifactLoad = errors.New("artifact load failed")
	// ErrInvalidRequest rejects a malformed scoring or analysis request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrModelRejected is returned when a fitted model misses the configured acceptance gate.
	ErrModelRejected = errors.New("model rejected by acceptance gate")
)

// ErrCollaboratorUnavailable marks a detection or sentiment call that could
// not be completed.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
