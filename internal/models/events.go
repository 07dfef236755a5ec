package models

import "time"

// Wire event names pushed to auction watchers.
const (
	EventNewBid          = "NEW_BID"
	EventAuctionClosed   = "AUCTION_CLOSED"
	EventAuctionResolved = "AUCTION_RESOLVED"
)

// BidEventPayload is the bid summary embedded in a NEW_BID event.
type BidEventPayload struct {
	BidID     string  `json:"id"`
	BidderID  string  `json:"bidderId"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"createdAt"`
}

// NewBidEvent is broadcast to auction:<id> after a bid is durably recorded.
type NewBidEvent struct {
	Event     string          `json:"event"`
	AuctionID string          `json:"auctionId"`
	Bid       BidEventPayload `json:"bid"`
}

// AuctionClosedEvent is broadcast when an auction reaches CLOSED.
type AuctionClosedEvent struct {
	Event     string `json:"event"`
	AuctionID string `json:"auctionId"`
}

// AuctionResolvedEvent is broadcast when the owner selects winning bids.
type AuctionResolvedEvent struct {
	Event         string   `json:"event"`
	AuctionID     string   `json:"auctionId"`
	WinningBidIDs []string `json:"winningBidIds"`
}

// NewBidEventFrom builds the NEW_BID payload for an accepted bid.
func NewBidEventFrom(bid Bid) NewBidEvent {
	amount, _ := bid.Amount.Float64()
	return NewBidEvent{
		Event:     EventNewBid,
		AuctionID: bid.AuctionID,
		Bid: BidEventPayload{
			BidID:     bid.BidID,
			BidderID:  bid.BidderID,
			Amount:    amount,
			CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}
