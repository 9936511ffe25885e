package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced to services so store-level constraint violations
// can be mapped to domain errors. The partial unique indexes on
// (user_id, event_id) are the authoritative backstop for races that slip
// past the advisory application checks.
var (
	ErrDuplicateEnrollment  = errors.New("active enrollment already exists for user and event")
	ErrCapacityExceeded     = errors.New("event capacity exhausted")
	ErrDuplicateCertificate = errors.New("active certificate already exists for user and event")
	ErrDuplicateEmail       = errors.New("email already registered")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}
