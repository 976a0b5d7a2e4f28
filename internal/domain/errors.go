package domain

import "errors"

var (
	ErrInvalidEvent            = errors.New("invalid inbound event")
	ErrSessionNotFound         = errors.New("session not found")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrEmptyCompletion         = errors.New("empty completion")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrUndeliverable           = errors.New("identity is not a deliverable chat id")
)
