package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUserCancelled reports that the user declined or dismissed the dialog.
	ErrUserCancelled = errors.New("affirmation cancelled by user")

	// ErrHostUnavailable reports that a host capability the gate relies on
	// (command registry entry, notifier, clipboard) is absent.
	ErrHostUnavailable = errors.New("host capability unavailable")

	// ErrUnknownKind reports an action kind with no configured policy.
	ErrUnknownKind = errors.New("unknown action kind")
)

// ReplayError is returned when an affirmed action could not be replayed
// because the environment refused it (e.g. a blocked browser context).
type ReplayError struct {
	URL string
	Err error
}

func (e *ReplayError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("replay failed: %v", e.Err)
	}
	return fmt.Sprintf("replay of %s failed: %v", e.URL, e.Err)
}

func (e *ReplayError) Unwrap() error { return e.Err }

// UploadRefusedError is returned by guarded upload handlers when the user
// does not affirm, so the caller's own failure path engages.
type UploadRefusedError struct {
	Message string
}

func (e *UploadRefusedError) Error() string {
	if e.Message == "" {
		return "upload refused: data use policy not affirmed"
	}
	return e.Message
}

// Is lets errors.Is(err, ErrUserCancelled) match a refused upload.
func (e *UploadRefusedError) Is(target error) bool {
	return target == ErrUserCancelled
}
