package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrAutomationNotFound indicates an automation was not found by the given identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrContactNotFound indicates a contact was not found by the given identifier.
	ErrContactNotFound = errors.New("contact not found")

	// ErrEnrollmentNotFound indicates an enrollment was not found by the given identifier.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrDealNotFound indicates a deal was not found by the given identifier.
	ErrDealNotFound = errors.New("deal not found")

	// ErrTemplateNotFound indicates a message template was not found by the given identifier.
	ErrTemplateNotFound = errors.New("message template not found")

	// ErrDuplicateActiveEnrollment indicates an active enrollment already exists
	// for the (automation, contact) pair.
	ErrDuplicateActiveEnrollment = errors.New("active enrollment already exists for contact")
)

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound) ||
		errors.Is(err, ErrContactNotFound) ||
		errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrDealNotFound) ||
		errors.Is(err, ErrTemplateNotFound)
}
