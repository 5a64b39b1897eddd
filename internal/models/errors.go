package models

import "errors"

// Kind classifies a domain error
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuthorization
	KindNotFound
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a typed, recoverable failure surfaced to callers
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation
var (
	ErrEmptyContent     = &Error{Kind: KindValidation, Msg: "message content is empty"}
	ErrContentTooLong   = &Error{Kind: KindValidation, Msg: "message content is too long"}
	ErrSelfPair         = &Error{Kind: KindValidation, Msg: "cannot pair with yourself"}
	ErrFutureDate       = &Error{Kind: KindValidation, Msg: "relationship date is in the future"}
	ErrUnlockDateInPast = &Error{Kind: KindValidation, Msg: "unlock date is in the past"}
	ErrMessageLocked    = &Error{Kind: KindValidation, Msg: "message is still locked"}
	ErrInvalidCode      = &Error{Kind: KindValidation, Msg: "partner code must be 6 characters"}
)

// Conflict
var (
	ErrAlreadyPaired        = &Error{Kind: KindConflict, Msg: "user is already in a partnership"}
	ErrPartnerAlreadyPaired = &Error{Kind: KindConflict, Msg: "partner is already in a partnership"}
	ErrAlreadyAccepted      = &Error{Kind: KindConflict, Msg: "partnership is already accepted"}
	ErrNoPartner            = &Error{Kind: KindConflict, Msg: "no accepted partnership with receiver"}
	ErrCodeTaken            = &Error{Kind: KindConflict, Msg: "pairing code already taken"}
)

// Authorization
var (
	ErrUnauthorized = &Error{Kind: KindAuthorization, Msg: "only the recipient can accept this request"}
	ErrNotMember    = &Error{Kind: KindAuthorization, Msg: "user is not a member of this partnership"}
	ErrNotReceiver  = &Error{Kind: KindAuthorization, Msg: "message is not addressed to this user"}
	ErrNotOwner     = &Error{Kind: KindAuthorization, Msg: "message does not belong to this user"}
)

// NotFound
var (
	ErrUserNotFound        = &Error{Kind: KindNotFound, Msg: "user not found"}
	ErrPartnershipNotFound = &Error{Kind: KindNotFound, Msg: "partnership not found"}
	ErrMessageNotFound     = &Error{Kind: KindNotFound, Msg: "message not found"}
)

// Unavailable wraps a transient store failure.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUnavailable, Msg: "store unavailable", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the short human readable message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
