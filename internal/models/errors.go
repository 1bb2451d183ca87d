package models

import "errors"

var ErrNotFound = errors.New("requested resource not found")
var ErrForbidden = errors.New("user does not have permission to access this resource")
var ErrConflict = errors.New("resource conflict, item already exists")
var ErrInvalidToken = errors.New("token not found or expired")
var ErrInvalidCredentials = errors.New("invalid credentials") // email or password provided does not match database record
var ErrAccountInactive = errors.New("account has been deactivated")
var ErrAccountUnverified = errors.New("email address has not been verified")
var ErrRunnerNotApproved = errors.New("runner account is not yet approved")

// ErrInvalidInput indicates malformed domain input, such as a negative
// distance or an unknown errand type passed to the pricing calculator.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidTransition indicates a status change that is not listed in the
// errand transition table, including an accept attempt that lost the race.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrReasonRequired indicates a cancellation submitted without a reason.
var ErrReasonRequired = errors.New("cancellation reason required")

var ErrNotRatable = errors.New("only completed errands can be rated")
var ErrAlreadyRated = errors.New("errand already rated")
var ErrNotPayable = errors.New("errand cannot be paid in its current state")
