package app

import "errors"

var (
	// ErrIntentNotAllowed is returned when an intent does not apply to the
	// current phase. The session is left unchanged.
	ErrIntentNotAllowed = errors.New("intent not allowed in current phase")
	// ErrBusy is returned while another collaborator call runs for the session.
	ErrBusy            = errors.New("session busy")
	ErrSessionNotFound = errors.New("session not found")
)

// Kind classifies failures that end up in Session.Error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindGeneration Kind = "generation"
	KindSync       Kind = "sync"
)

// User-facing messages.
const (
	MsgFieldsRequired    = "Please fill in every field."
	MsgSituationRequired = "Describe what happened before we begin."
	MsgUnknownMethod     = "Choose a sign-in method."
	MsgUnknownMode       = "Choose how to deepen the reflection."
	MsgUnknownOption     = "Pick one of the offered answers."
	MsgUnknownResult     = "That reflection could not be found."
	MsgAccountExists     = "An account with this email already exists."
	MsgProfileNotFound   = "Profile not found."
	MsgSocialSyncFailed  = "Universal Sync Failed. Try again."
	MsgConnectionLost    = "Connection interrupted. Please try again."
	MsgSyncFailed        = "Sync failed. Your progress is saved locally."
	MsgRefineFailed      = "Failed to deepen exploration."
	MsgPatternFailed     = "Pattern analysis failed."
	MsgAccountSaveFailed = "Could not save your profile. Please try again."
	MsgProfileLoadFailed = "Could not reach your profile. Please try again."
)

// Error is a failure the session absorbs: Message is shown to the user,
// Err keeps the cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func authError(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Message: msg, Err: err}
}

func generationError(msg string, err error) *Error {
	return &Error{Kind: KindGeneration, Message: msg, Err: err}
}

func syncError(msg string, err error) *Error {
	return &Error{Kind: KindSync, Message: msg, Err: err}
}

// KindOf returns the kind of a session error, or "" for anything else.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
