// Package assets owns the address-keyed asset cache: at most one load per
// address in flight, reference-counted handles, and pluggable loader backends.
package assets

import "errors"

var (
	// ErrLoadFailed wraps every backend failure returned by Cache.Acquire.
	ErrLoadFailed = errors.New("asset load failed")
	// ErrNotFound is returned by loaders that have nothing stored under an address.
	ErrNotFound = errors.New("asset not found")
)

// Status is the lifecycle state of a cache handle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Asset is the opaque result of a load. The cache never interprets Data.
type Asset struct {
	Address string
	Source  string
	Data    []byte
}

// Handle is a point-in-time view of one cache entry.
type Handle struct {
	Address  string `json:"address"`
	Status   Status `json:"status"`
	Refcount int    `json:"refcount"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error,omitempty"`
}
