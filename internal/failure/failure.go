package failure

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	Provider Kind = iota
	MissingCredential
	CredentialRejected
	Parse
	Export
)

func (k Kind) String() string {
	switch k {
	case MissingCredential:
		return "missing_credential"
	case CredentialRejected:
		return "credential_rejected"
	case Parse:
		return "parse"
	case Export:
		return "export"
	default:
		return "provider"
	}
}

var (
	ErrMissingCredential = errors.New("no usable api key")
	ErrNoImage           = errors.New("response contained no image")
)

// Error carries the classified kind of a failure along with the operation
// that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// signatures that identify a rejected or unknown credential in provider
// error messages. Matched case-insensitively.
var credentialSignatures = []string{
	"requested entity was not found",
	"api_key",
	"api key not valid",
	"invalid api key",
	"invalid key",
	"incorrect api key",
	"unauthorized",
	"permission denied",
	"401",
	"403",
}

// Classify maps an error to its kind. Typed errors keep their kind; anything
// else is matched against known credential rejection messages.
func Classify(err error) Kind {
	if err == nil {
		return Provider
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	if errors.Is(err, ErrMissingCredential) {
		return MissingCredential
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range credentialSignatures {
		if strings.Contains(msg, sig) {
			return CredentialRejected
		}
	}
	return Provider
}

// Wrap classifies err and returns it as an *Error for op. Errors that are
// already typed pass through unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return New(Classify(err), op, err)
}

func Is(err error, kind Kind) bool {
	return err != nil && Classify(err) == kind
}

// Describe renders a one-line, user-facing message for err.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	switch Classify(err) {
	case MissingCredential:
		return "No API key is configured. Run setup or select a key to continue."
	case CredentialRejected:
		return "The API key was rejected. Select a different key and try again."
	case Parse:
		return fmt.Sprintf("The model returned a script that could not be read: %v", rootCause(err))
	case Export:
		return fmt.Sprintf("The slide deck could not be written: %v", rootCause(err))
	default:
		return fmt.Sprintf("Generation failed: %v", rootCause(err))
	}
}

func rootCause(err error) error {
	var typed *Error
	if errors.As(err, &typed) && typed.Err != nil {
		return typed.Err
	}
	return err
}
