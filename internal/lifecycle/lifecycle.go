package lifecycle

import (
	"fmt"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/models"
)

// Event is a lifecycle transition trigger.
type Event string

const (
	// EventStart moves a DRAFT auction to ACTIVE (owner action).
	EventStart Event = "START"
	// EventEndBidding moves ACTIVE to EVALUATING, either automatically
	// once endAt passes or via an explicit owner close-early.
	EventEndBidding Event = "END_BIDDING"
	// EventResolve moves EVALUATING to CLOSED once winners are selected
	// (or auto-closed with no winner when there were no bids).
	EventResolve Event = "RESOLVE"
)

// Transition validates that event is a legal edge from the current
// status and returns the next status. It is pure: the caller persists
// the result. Illegal edges return ErrStateConflict.
func Transition(current models.AuctionStatus, event Event) (models.AuctionStatus, error) {
	switch {
	case current == models.StatusDraft && event == EventStart:
		return models.StatusActive, nil
	case current == models.StatusActive && event == EventEndBidding:
		return models.StatusEvaluating, nil
	case current == models.StatusEvaluating && event == EventResolve:
		return models.StatusClosed, nil
	}
	return current, fmt.Errorf("lifecycle: %s on %s: %w", event, current, auctionerrors.ErrStateConflict)
}

// CanAcceptBid reports whether the auction may accept a bid at the
// given instant. Bids are accepted only while ACTIVE and strictly
// before endAt; a bid arriving exactly at endAt is already too late.
func CanAcceptBid(auction *models.Auction, now time.Time) error {
	if auction.Status != models.StatusActive {
		return fmt.Errorf("lifecycle: status %s: %w", auction.Status, auctionerrors.ErrAuctionNotActive)
	}
	if !now.Before(auction.EndAt) {
		return fmt.Errorf("lifecycle: past end time %s: %w", auction.EndAt.UTC().Format(time.RFC3339), auctionerrors.ErrAuctionEnded)
	}
	return nil
}

// EffectiveStatus resolves the automatic ACTIVE -> EVALUATING edge: an
// ACTIVE auction whose end time has passed is treated as EVALUATING.
func EffectiveStatus(auction *models.Auction, now time.Time) models.AuctionStatus {
	if auction.Status == models.StatusActive && !now.Before(auction.EndAt) {
		return models.StatusEvaluating
	}
	return auction.Status
}
