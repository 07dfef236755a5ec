package helpers

import (
	"time"

	model "auction-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type CreateAuctionRequest struct {
	OwnerID          string              `json:"owner_id" binding:"required"`
	Type             model.AuctionType   `json:"type" binding:"required"`
	Sealed           bool                `json:"sealed"`
	ServicesRequired []model.ServiceType `json:"services_required"`
}

type StartAuctionRequest struct {
	ActorID string    `json:"actor_id" binding:"required"`
	EndAt   time.Time `json:"end_at" binding:"required"`
}

type PlaceBidRequest struct {
	BidderID    string            `json:"bidder_id" binding:"required"`
	Amount      decimal.Decimal   `json:"amount" binding:"required"`
	ServiceType model.ServiceType `json:"service_type"`
	Terms       string            `json:"terms"`
}

type ActorRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

type SelectWinnersRequest struct {
	OwnerID       string   `json:"owner_id" binding:"required"`
	WinningBidIDs []string `json:"winning_bid_ids" binding:"required"`
}

type BidResponse struct {
	BidID       string `json:"bid_id"`
	AuctionID   string `json:"auction_id"`
	BidderID    string `json:"bidder_id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	ServiceType string `json:"service_type,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type AuctionResponse struct {
	AuctionID        string   `json:"auction_id"`
	Type             string   `json:"type"`
	Status           string   `json:"status"`
	OwnerID          string   `json:"owner_id"`
	EndAt            string   `json:"end_at,omitempty"`
	Sealed           bool     `json:"sealed"`
	Revealed         bool     `json:"revealed"`
	ServicesRequired []string `json:"services_required,omitempty"`
	WinningBidIDs    []string `json:"winning_bid_ids,omitempty"`
}

// NewBidResponse converts a domain bid to its HTTP representation.
func NewBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:       bid.BidID,
		AuctionID:   bid.AuctionID,
		BidderID:    bid.BidderID,
		Type:        string(bid.Type),
		Amount:      bid.Amount.String(),
		ServiceType: string(bid.ServiceType),
		Status:      string(bid.Status),
		CreatedAt:   bid.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewAuctionResponse converts a domain auction to its HTTP representation.
func NewAuctionResponse(auction model.Auction) AuctionResponse {
	resp := AuctionResponse{
		AuctionID:     auction.AuctionID,
		Type:          string(auction.Type),
		Status:        string(auction.Status),
		OwnerID:       auction.OwnerID,
		Sealed:        auction.Sealed,
		Revealed:      auction.Revealed,
		WinningBidIDs: auction.WinningBidIDs,
	}
	if !auction.EndAt.IsZero() {
		resp.EndAt = auction.EndAt.UTC().Format(time.RFC3339)
	}
	for _, s := range auction.ServicesRequired {
		resp.ServicesRequired = append(resp.ServicesRequired, string(s))
	}
	return resp
}
