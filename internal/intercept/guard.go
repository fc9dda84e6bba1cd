// Package intercept gates host commands and API calls behind an
// affirmation gate.
package intercept

import (
	"context"

	"github.com/ppiankov/affirmgate/internal/model"
)

// Requester asks the user to affirm an action. *gate.Gate satisfies it.
type Requester interface {
	Request(ctx context.Context, kind model.ActionKind) (bool, error)
}

// Func is a guarded operation.
type Func[A, R any] func(ctx context.Context, args A) (R, error)

// Guard wraps fn so it runs only after the user affirms kind. fn is called
// at most once per invocation, with the original args and a context marked
// as affirmed. When the user declines, Guard returns the zero value and a
// nil error: the action simply did not happen. A context already marked as
// affirmed passes straight through.
func Guard[A, R any](r Requester, kind model.ActionKind, fn Func[A, R]) Func[A, R] {
	return func(ctx context.Context, args A) (R, error) {
		var zero R
		if Affirmed(ctx) {
			return fn(ctx, args)
		}
		ok, err := r.Request(ctx, kind)
		if err != nil {
			return zero, err
		}
		if !ok {
			return zero, nil
		}
		return fn(WithAffirmed(ctx), args)
	}
}

// GuardUpload is Guard for uploads: a declined upload fails with
// *model.UploadRefusedError carrying message, so callers that report
// errors to the user show the refusal.
func GuardUpload[A, R any](r Requester, fn Func[A, R], message string) Func[A, R] {
	return func(ctx context.Context, args A) (R, error) {
		var zero R
		if Affirmed(ctx) {
			return fn(ctx, args)
		}
		ok, err := r.Request(ctx, model.KindUpload)
		if err != nil {
			return zero, err
		}
		if !ok {
			return zero, &model.UploadRefusedError{Message: message}
		}
		return fn(WithAffirmed(ctx), args)
	}
}
