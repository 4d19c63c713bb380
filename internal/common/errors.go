// Package common — errors.go defines the sentinel errors shared by every
// feature of the bot. Handlers match on these with errors.Is and translate
// them into user-facing messages; anything that is not one of these is
// treated as a storage failure and shown as a generic error.
package common

import "errors"

// Membership errors (belenes, join requests)
var (
	// ErrBelenNotFound — no belén matches the given id or name
	ErrBelenNotFound = errors.New("belen not found")
	// ErrDuplicateName — a belén with that name already exists (case-insensitive)
	ErrDuplicateName = errors.New("a belen with that name already exists")
	// ErrAlreadyMember — the player already belongs to a belén
	ErrAlreadyMember = errors.New("player already belongs to a belen")
	// ErrNotMember — the player does not belong to any belén
	ErrNotMember = errors.New("player does not belong to a belen")
	// ErrRequestNotFound — no join request with that id
	ErrRequestNotFound = errors.New("join request not found")
	// ErrInvalidName — empty or blank name for a belén, item or task
	ErrInvalidName = errors.New("name must not be empty")
)

// Economy errors (coins, store)
var (
	// ErrItemNotFound — no store item matches the given id or name
	ErrItemNotFound = errors.New("store item not found")
	// ErrInsufficientCoins — the balance does not cover the requested amount.
	// Always wrapped with the required/available amounts.
	ErrInsufficientCoins = errors.New("insufficient coins")
	// ErrInvalidAmount — a quantity, price or reward that must be positive is not
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrPlayerNotFound — the player is not registered
	ErrPlayerNotFound = errors.New("player not found")
)

// Task errors
var (
	// ErrTaskNotFound — no task with that id
	ErrTaskNotFound = errors.New("task not found")
	// ErrSubmissionNotFound — no submission with that id
	ErrSubmissionNotFound = errors.New("task submission not found")
	// ErrDuplicatePending — the player already has a pending submission for the task
	ErrDuplicatePending = errors.New("a pending submission for this task already exists")
)

// Shared state-machine error: a join request or task submission is already
// in a terminal state and cannot be resolved again.
var ErrAlreadyProcessed = errors.New("already processed")

// ErrInvalidDecision — the resolution verb is neither accept nor reject
var ErrInvalidDecision = errors.New("invalid decision")

// Access control errors
var (
	// ErrForbidden — the caller lacks the required role for the operation
	ErrForbidden = errors.New("forbidden")
	// ErrWrongPassword — admin elevation password did not match
	ErrWrongPassword = errors.New("wrong password")
	// ErrTooManyAttempts — too many failed elevation attempts, wait an hour
	ErrTooManyAttempts = errors.New("too many attempts, wait one hour")
)
