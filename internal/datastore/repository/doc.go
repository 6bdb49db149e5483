// Package repository provides repository interfaces and GORM implementations
// for the handscan schema.
//
// # Error Handling
//
// Repositories return sentinel errors (ErrAssetNotFound, ErrDuplicateKey, ...)
// instead of leaking GORM errors, so callers can branch with errors.Is.
//
// # Transactions
//
// Store groups the repositories over one *gorm.DB. Store.Transaction hands
// the callback a Store bound to the transaction; every repository call
// inside the callback must go through that Store.
//
// # Conditional transitions
//
// State changes on upload sessions and detections are written as
// conditional updates (WHERE status IN ...). Zero affected rows means another
// writer got there first and is reported as ErrStaleTransition.
package repository
