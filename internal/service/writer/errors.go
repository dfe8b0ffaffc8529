package writer

import "errors"

// Kind classifies workflow errors so callers can pick a propagation policy.
type Kind string

const (
	// KindConfig: missing or invalid API key. Blocks generation before any call.
	KindConfig Kind = "config"
	// KindService: the generation service call failed.
	KindService Kind = "service"
	// KindInvalid: bad caller input (unknown model, out-of-range params, empty chapter list).
	KindInvalid Kind = "invalid"
	// KindNotFound: unknown session.
	KindNotFound Kind = "not_found"
	// KindBusy: another generation is already running on the session.
	KindBusy Kind = "busy"
	// KindCanceled: the caller's context ended between chapters.
	KindCanceled Kind = "canceled"
	// KindNotReady: nothing to compile yet.
	KindNotReady Kind = "not_ready"
)

// Error is the single error type returned by the writer service.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrConfig   = &Error{Kind: KindConfig, Message: "API Key を入力してください。"}
	ErrService  = &Error{Kind: KindService, Message: "generation service failed"}
	ErrInvalid  = &Error{Kind: KindInvalid, Message: "invalid argument"}
	ErrNotFound = &Error{Kind: KindNotFound, Message: "session not found"}
	ErrBusy     = &Error{Kind: KindBusy, Message: "generation already running"}
	ErrCanceled = &Error{Kind: KindCanceled, Message: "generation canceled"}
	ErrNotReady = &Error{Kind: KindNotReady, Message: "no chapter bodies generated yet"}
)

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
