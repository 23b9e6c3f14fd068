package uuidgen

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// EntityType represents the different entity types that receive generated ids
type EntityType string

const (
	EntityTypeConnection EntityType = "connection"
	EntityTypeReport     EntityType = "report"
	EntityTypeRequest    EntityType = "request"
)

// NewForEntity generates a UUID appropriate for the given entity type.
// Reports are stored and listed by time so they use UUIDv7; everything else is random.
func NewForEntity(entityType EntityType) (uuid.UUID, error) {
	switch entityType {
	case EntityTypeReport:
		return uuid.NewV7()
	default:
		return uuid.NewRandom()
	}
}

// MustNewForEntity is like NewForEntity but panics on error
func MustNewForEntity(entityType EntityType) uuid.UUID {
	id, err := NewForEntity(entityType)
	if err != nil {
		panic(fmt.Sprintf("failed to generate UUID for entity type %s: %v", entityType, err))
	}
	return id
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a ULID. Ids minted by one process sort in creation
// order even within the same millisecond, which history reads rely on as a
// tie-breaker.
func NewMessageID(now time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate message id: %w", err)
	}
	return id.String(), nil
}
