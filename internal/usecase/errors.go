package usecase

import (
	"errors"
	"fmt"
)

// BusinessError is a rule violation reported to the caller. Kind is one of the Err* sentinels declared in usecase.go.
type BusinessError struct {
	Kind error
	Msg  string
}

func (e *BusinessError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *BusinessError) Unwrap() error { return e.Kind }

func businessf(kind error, format string, args ...any) error {
	return &BusinessError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsBusiness reports whether err is a rule violation rather than an infrastructure failure
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}
