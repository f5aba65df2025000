// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoDecision indicates that no routing decision has been recorded for a
// task, so feedback cannot be linked to one.
var ErrNoDecision = errors.New("no recorded decision for task")
