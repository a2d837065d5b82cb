package render

import (
	"context"
	"errors"
	"strings"
)

// Status is the tag of a render outcome.
type Status int

const (
	// Rendered means an image was produced.
	Rendered Status = iota
	// Recoverable means the call failed but another attempt with different
	// text may succeed.
	Recoverable
	// Fatal means the font is broken for this class of error and further
	// attempts with it are pointless.
	Fatal
)

func (s Status) String() string {
	switch s {
	case Rendered:
		return "rendered"
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Code identifies the class of a render failure.
type Code string

// Fatal codes.
const (
	CodeDegenerateOutline Code = "degenerate_outline"
	CodeExecutionLimit    Code = "execution_limit"
	CodeMalformedGlyph    Code = "malformed_glyph"
	CodeInvalidArgument   Code = "invalid_argument"
	CodeTimeout           Code = "timeout"
	CodeUnreadableFont    Code = "unreadable_font"
)

// Recoverable codes.
const (
	CodeEmptyRaster Code = "empty_raster"
	CodeBackground  Code = "background"
	CodeUnknown     Code = "unknown"
	// CodeCanceled marks a call cut short by the caller's context.
	CodeCanceled Code = "canceled"
)

// Fatal reports whether c belongs to the renderer-fatal class.
func (c Code) Fatal() bool {
	switch c {
	case CodeDegenerateOutline, CodeExecutionLimit, CodeMalformedGlyph,
		CodeInvalidArgument, CodeTimeout, CodeUnreadableFont:
		return true
	}
	return false
}

// Error is a render failure carrying a structured code.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(code Code, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// fatalPhrases maps lower-cased message fragments of known crash classes to
// their codes. Used only for errors that carry no [Error].
var fatalPhrases = []struct {
	phrase string
	code   Code
}{
	{"execution context too long", CodeExecutionLimit},
	{"invalid outline", CodeDegenerateOutline},
	{"code overflow", CodeMalformedGlyph},
	{"invalid argument", CodeInvalidArgument},
}

// Classify maps err to a status and code. Structured [Error] values are
// trusted as-is. Other errors are matched against known message fragments,
// in which case byMessage is true so callers can log the fallback.
func Classify(err error) (status Status, code Code, byMessage bool) {
	if err == nil {
		return Rendered, "", false
	}
	var re *Error
	if errors.As(err, &re) {
		if re.Code.Fatal() {
			return Fatal, re.Code, false
		}
		return Recoverable, re.Code, false
	}
	if errors.Is(err, context.Canceled) {
		return Recoverable, CodeCanceled, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Fatal, CodeTimeout, false
	}

	msg := strings.ToLower(err.Error())
	for _, p := range fatalPhrases {
		if strings.Contains(msg, p.phrase) {
			return Fatal, p.code, true
		}
	}
	return Recoverable, CodeUnknown, false
}
