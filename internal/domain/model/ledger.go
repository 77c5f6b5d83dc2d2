package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// LedgerEntry is one row of the append-only billing history: a monetary fact
// that happened, never current state. Entries are created once and never
// mutated or deleted. PeriodStart/PeriodEnd are set for invoice-driven
// renewals so history can show what period a payment covered.
type LedgerEntry struct {
	ID             string // ULID, time-ordered
	UserID         string
	SubscriptionID *string
	PaymentID      *string
	Amount         int64
	Currency       string
	Description    string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	CreatedAt      time.Time
}

// NewLedgerEntryID returns a fresh ULID. ULIDs sort by creation time, which
// keeps the ledger naturally reverse-paginatable on the primary key.
func NewLedgerEntryID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
