package auctionerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidNotFound     = errors.New("bid not found")
	ErrNoBids          = errors.New("no bids found for auction")
)

// Bid rejection errors. The set is closed so callers branch on the
// error kind with errors.Is, never on message content.
var (
	ErrAuctionNotActive   = errors.New("auction is not active")
	ErrAuctionEnded       = errors.New("auction has ended")
	ErrSelfBidForbidden   = errors.New("you cannot bid on your own auction")
	ErrInvalidServiceType = errors.New("service type not requested by this auction")
	ErrBidTooLow          = errors.New("bid amount too low")
	ErrInvalidBid         = errors.New("invalid bid")
)

// Lifecycle and ownership errors
var (
	ErrNotOwner       = errors.New("not authorized to manage this auction")
	ErrStateConflict  = errors.New("operation not valid in current auction state")
	ErrSealedHidden   = errors.New("bids are sealed until the owner reveals them")
	ErrInvalidAuction = errors.New("invalid auction")
)

// Infrastructure errors
var (
	// ErrLockTimeout means the per-auction writer slot could not be
	// acquired in time. Transient; the caller may retry the whole call.
	ErrLockTimeout = errors.New("timed out waiting for auction writer")
	// ErrPersistence means the durable write failed. The bid was not
	// accepted and nothing was broadcast.
	ErrPersistence = errors.New("persistence failure")
)
