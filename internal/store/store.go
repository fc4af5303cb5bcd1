// Package store defines domain records and persistence interfaces for the
// crawler service. Implementations live in other packages; this package must
// not import database drivers or concrete clients.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Listing is one freelance job offer discovered by a crawl.
type Listing struct {
	ID        int64
	Site      string
	Title     string
	Link      string
	Company   string
	Location  string
	Posted    string
	Query     string
	Processed bool
	FirstSeen time.Time
	LastSeen  time.Time
}

// UpsertResult reports whether an upsert inserted a new row or refreshed an
// existing one.
type UpsertResult struct {
	Inserted bool
}

// ListingFilter narrows ListListings results.
type ListingFilter struct {
	// Site filters by portal name when non-empty.
	Site string
	// Unprocessed restricts to listings not yet marked processed.
	Unprocessed bool
	// Limit caps the result size; zero means the store default.
	Limit int
	// Offset skips rows for paging.
	Offset int
}

// SiteCount is one row of the per-site aggregate.
type SiteCount struct {
	Site  string
	Total int64
	New   int64
}

// ListingRepository persists crawl results.
type ListingRepository interface {
	// UpsertListing inserts the listing or, when the link already exists,
	// refreshes last_seen and the mutable fields.
	UpsertListing(ctx context.Context, l Listing) (UpsertResult, error)
	// ListListings returns listings newest first.
	ListListings(ctx context.Context, f ListingFilter) ([]Listing, error)
	// GetListing loads one listing or returns ErrNotFound.
	GetListing(ctx context.Context, id int64) (Listing, error)
	// SetProcessed flips the processed flag; ErrNotFound when the id is unknown.
	SetProcessed(ctx context.Context, id int64, processed bool) error
	// Stats aggregates listing counts per site.
	Stats(ctx context.Context) ([]SiteCount, error)
}

// User is an account allowed to sign in.
type User struct {
	ID        int64
	Email     string
	CreatedAt time.Time
	LastLogin *time.Time
}

// UserRepository manages accounts.
type UserRepository interface {
	// GetUserByEmail loads a user or returns ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// EnsureUser inserts the user when missing and returns the stored record.
	EnsureUser(ctx context.Context, email string) (User, error)
	// TouchLastLogin records a successful sign-in.
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// AuthCode is a single-use login code mailed to a user.
type AuthCode struct {
	ID        int64
	Email     string
	Code      string
	ExpiresAt time.Time
	Used      bool
}

// AuthCodeRepository manages login codes.
type AuthCodeRepository interface {
	// SaveCode stores a freshly issued code.
	SaveCode(ctx context.Context, c AuthCode) error
	// ConsumeCode atomically marks a matching, unused, unexpired code as used.
	// It returns ErrNotFound when no such code exists.
	ConsumeCode(ctx context.Context, email, code string, now time.Time) error
	// PurgeExpired deletes codes past their expiry.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// SettingsRepository stores small key/value service settings.
type SettingsRepository interface {
	// GetSetting loads a value or returns ErrNotFound.
	GetSetting(ctx context.Context, key string) (string, error)
	// PutSetting inserts or replaces a value.
	PutSetting(ctx context.Context, key, value string) error
}
