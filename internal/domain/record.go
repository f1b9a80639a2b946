// Package domain defines the records shared by the offline-first sync engine and
// the per-domain payloads it carries.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProvisionalPrefix marks ids generated on the device before the remote source
// has confirmed the record.
const ProvisionalPrefix = "local_"

// ErrInvalidInput is wrapped by every caller-input validation failure.
var ErrInvalidInput = errors.New("invalid input")

// Payload is implemented by the domain-specific part of a record.
type Payload interface {
	Validate() error
}

// Record is one syncable item of a collection.
type Record[P any] struct {
	ID        string    `json:"id"`
	Payload   P         `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Provisional reports whether the record has not been confirmed remotely yet.
func (r Record[P]) Provisional() bool {
	return IsProvisional(r.ID)
}

// IsProvisional reports whether id belongs to the local-provisional namespace.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// NewProvisionalID builds a provisional id from the wall-clock millisecond and a
// short random suffix so two adds in the same millisecond do not collide.
func NewProvisionalID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d-%s", ProvisionalPrefix, now.UnixMilli(), suffix)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
