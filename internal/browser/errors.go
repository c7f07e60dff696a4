package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lmaocloud/cloudbrowser/pkg/client"
)

// ItemError is the failure of one entry in a batch operation.
type ItemError struct {
	Name string
	Err  error
}

// BatchError reports a batch operation in which some entries failed.
type BatchError struct {
	Op        string
	Succeeded int
	Failed    []ItemError
}

func (e *BatchError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		names = append(names, f.Name)
	}
	return fmt.Sprintf("%s: %d of %d failed (%s)", e.Op, len(e.Failed), e.Succeeded+len(e.Failed), strings.Join(names, ", "))
}

// Unwrap returns the individual failures.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// invalid reports a client-side validation failure as a warning.
func (b *Browser) invalid(title, msg string) error {
	b.notify(LevelWarning, title, msg)
	return client.Validation(strings.ToLower(title), msg)
}

// fail reports an operation failure and returns err unchanged.
// Cancellation by the caller is not reported.
func (b *Browser) fail(title string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	b.log.Debug("operation failed", zap.String("op", title), zap.Error(err))
	b.notify(LevelError, title, Describe(err))
	return err
}

// Describe turns an error into a message for the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, client.ErrUnauthorized) {
		return "Your session has expired, please log in again"
	}
	var be *BatchError
	if errors.As(err, &be) && len(be.Failed) > 0 {
		return fmt.Sprintf("%d item(s) failed: %s", len(be.Failed), Describe(be.Failed[0].Err))
	}
	if e, ok := client.AsError(err); ok {
		if e.Message != "" {
			return e.Message
		}
		if e.Kind == client.KindNetwork {
			return "Request failed"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}
	return err.Error()
}
