package service

import "errors"

// Service errors
var (
	ErrUnitNotFound        = errors.New("unit not found")
	ErrEnvironmentReadOnly = errors.New("environment cannot be changed by this host")
	ErrJournalUnavailable  = errors.New("journal is not enabled")
)
