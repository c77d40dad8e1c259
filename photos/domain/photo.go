package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PayloadKind selects how a deployment stores the image payload of a photo.
type PayloadKind string

const (
	// PayloadReference stores an opaque content locator (URI) in a TEXT column.
	PayloadReference PayloadKind = "reference"
	// PayloadBlob stores the encoded image bytes inline in a BLOB column.
	PayloadBlob PayloadKind = "blob"
)

// ParsePayloadKind converts a configuration value into a PayloadKind
func ParsePayloadKind(s string) (PayloadKind, error) {
	switch PayloadKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", PayloadReference:
		return PayloadReference, nil
	case PayloadBlob:
		return PayloadBlob, nil
	}
	return "", fmt.Errorf("unknown payload kind %q", s)
}

// UnmarshalText lets configuration loaders parse a PayloadKind
func (k *PayloadKind) UnmarshalText(text []byte) error {
	parsed, err := ParsePayloadKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Photo is a single catalog entry.
// A Photo with ID 0 has not been persisted yet; the store assigns the ID on insert.
// Reference holds a URI for PayloadReference deployments and raw image bytes for PayloadBlob.
type Photo struct {
	ID          int64
	Reference   string
	Title       string
	Description string
	CreatedAt   time.Time
}

// NewPhoto builds an unpersisted photo with its creation time set to now
func NewPhoto(reference, title, description string) *Photo {
	return &Photo{
		Reference:   reference,
		Title:       title,
		Description: description,
		CreatedAt:   Now(),
	}
}

// Now returns the current time at the resolution the store keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// IsPersisted reports whether the store has assigned an ID to the photo
func (p *Photo) IsPersisted() bool {
	return p != nil && p.ID != 0
}

// HasReference reports whether the payload is usable for the given kind.
// Blob payloads only need to be non-empty; references must contain more than whitespace.
func (p *Photo) HasReference(kind PayloadKind) bool {
	if kind == PayloadBlob {
		return len(p.Reference) > 0
	}
	return strings.TrimSpace(p.Reference) != ""
}

// Equal compares every field of two photos
func (p Photo) Equal(other Photo) bool {
	return p.ID == other.ID &&
		p.Reference == other.Reference &&
		p.Title == other.Title &&
		p.Description == other.Description &&
		p.CreatedAt.Equal(other.CreatedAt)
}

type PhotoRepository interface {
	// Insert persists a new photo and returns its assigned ID.
	// The ID and, when it was zero, CreatedAt are written back onto p.
	Insert(ctx context.Context, p *Photo) (int64, error)

	// Update rewrites the title and description of the photo with p.ID.
	// It returns 0 when no such photo exists.
	Update(ctx context.Context, p *Photo) (int64, error)

	Delete(ctx context.Context, id int64) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)

	// ListAll returns every photo, newest first, ties broken by higher ID first
	ListAll(ctx context.Context) ([]Photo, error)

	Get(ctx context.Context, id int64) (Photo, error)
	Count(ctx context.Context) (int64, error)
}
