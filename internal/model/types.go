package model

import (
	"fmt"
	"strings"
)

// ActionKind selects which affirmation policy applies to a protected action.
type ActionKind string

const (
	KindDownload ActionKind = "download"
	KindUpload   ActionKind = "upload"
)

// Kinds lists every supported action kind in display order.
var Kinds = []ActionKind{KindDownload, KindUpload}

// ParseActionKind maps a user-supplied string to an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	switch ActionKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDownload:
		return KindDownload, nil
	case KindUpload:
		return KindUpload, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// GateState is the state of one affirmation gate.
type GateState int

const (
	StateIdle GateState = iota
	StateDialogOpen
)

func (s GateState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialogOpen:
		return "dialog_open"
	default:
		return fmt.Sprintf("GateState(%d)", int(s))
	}
}

// Outcome is the result of one dialog. It is produced once per gate
// invocation and never reused.
type Outcome struct {
	Affirmed bool `json:"affirmed"`
}

// Decision labels what a gate did with one request.
type Decision string

const (
	DecisionAffirmed   Decision = "affirmed"
	DecisionCancelled  Decision = "cancelled"
	DecisionFolded     Decision = "folded"
	DecisionSuperseded Decision = "superseded"
	DecisionError      Decision = "error"
)
