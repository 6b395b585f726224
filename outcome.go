package authflow

import "fmt"

// OutcomeKind tags which variant an Outcome carries
type OutcomeKind int

const (
	// Failed means the store (or something else we own) broke; callers treat it as a 500
	Failed OutcomeKind = iota

	// Rejected means the user supplied bad input: wrong password, taken username, ...
	Rejected

	// Succeeded means the attempt produced an authenticated user
	Succeeded
)

func (k OutcomeKind) String() string {
	switch k {
	case Failed:
		return "failed"
	case Rejected:
		return "rejected"
	case Succeeded:
		return "succeeded"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Messages carried by Rejected outcomes
const (
	MsgUsernameTaken      = "This username is taken"
	MsgUsernameNotFound   = "Username not found"
	MsgPasswordIncorrect  = "Password incorrect"
	MsgMissingCredentials = "Missing credentials"
	MsgPasswordTooLong    = "Password is too long"
)

// Outcome is the result of one authentication attempt. Exactly one of Err,
// Message or User is meaningful, selected by Kind.
type Outcome struct {
	Kind    OutcomeKind
	Err     error
	Message string
	User    *User
}

// Failure wraps an infrastructure error
func Failure(err error) Outcome {
	return Outcome{Kind: Failed, Err: err}
}

// Rejection carries a message meant for the user
func Rejection(message string) Outcome {
	return Outcome{Kind: Rejected, Message: message}
}

// Success carries the authenticated user
func Success(user *User) Outcome {
	return Outcome{Kind: Succeeded, User: user}
}

func (o Outcome) Failed() bool    { return o.Kind == Failed }
func (o Outcome) Rejected() bool  { return o.Kind == Rejected }
func (o Outcome) Succeeded() bool { return o.Kind == Succeeded }

func (o Outcome) String() string {
	switch o.Kind {
	case Failed:
		return fmt.Sprintf("failed: %v", o.Err)
	case Rejected:
		return fmt.Sprintf("rejected: %s", o.Message)
	case Succeeded:
		if o.User == nil {
			return "succeeded: <nil user>"
		}
		return fmt.Sprintf("succeeded: %s", o.User.ID)
	}
	return o.Kind.String()
}
