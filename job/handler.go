package job

import "context"

// Handler is the contract producers implement for the dispatcher.
//
// The dispatcher calls Validate before Execute; a validation error is a
// terminal failure with zero retries regardless of MaxRetries. Execute runs
// under a deadline derived from the definition's Timeout (or the engine-wide
// default). OnSuccess, OnFailure, and OnRetry are notification callbacks;
// errors they produce are not observed — they must handle their own.
type Handler interface {
	// Validate inspects the payload before execution. A non-nil error
	// rejects the job terminally without consuming retry budget.
	Validate(ctx context.Context, payload []byte) error

	// Execute performs the work and returns an opaque result blob.
	Execute(ctx context.Context, payload []byte) ([]byte, error)

	// OnSuccess is invoked after the result is recorded.
	OnSuccess(ctx context.Context, output []byte)

	// OnFailure is invoked after a terminal failure is recorded.
	OnFailure(ctx context.Context, err error)

	// OnRetry is invoked when a failed attempt is scheduled for retry.
	// attempt is the 1-indexed number of the retry about to happen.
	OnRetry(ctx context.Context, attempt int)
}

// Funcs adapts plain functions to the Handler interface. Nil fields are
// treated as no-ops (ExecuteFunc excepted — it is required).
type Funcs struct {
	ValidateFunc  func(ctx context.Context, payload []byte) error
	ExecuteFunc   func(ctx context.Context, payload []byte) ([]byte, error)
	OnSuccessFunc func(ctx context.Context, output []byte)
	OnFailureFunc func(ctx context.Context, err error)
	OnRetryFunc   func(ctx context.Context, attempt int)
}

var _ Handler = (*Funcs)(nil)

// Validate implements Handler.
func (f *Funcs) Validate(ctx context.Context, payload []byte) error {
	if f.ValidateFunc == nil {
		return nil
	}
	return f.ValidateFunc(ctx, payload)
}

// Execute implements Handler.
func (f *Funcs) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	return f.ExecuteFunc(ctx, payload)
}

// OnSuccess implements Handler.
func (f *Funcs) OnSuccess(ctx context.Context, output []byte) {
	if f.OnSuccessFunc != nil {
		f.OnSuccessFunc(ctx, output)
	}
}

// OnFailure implements Handler.
func (f *Funcs) OnFailure(ctx context.Context, err error) {
	if f.OnFailureFunc != nil {
		f.OnFailureFunc(ctx, err)
	}
}

// OnRetry implements Handler.
func (f *Funcs) OnRetry(ctx context.Context, attempt int) {
	if f.OnRetryFunc != nil {
		f.OnRetryFunc(ctx, attempt)
	}
}
