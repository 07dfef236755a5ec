package repository

import (
	"fmt"
	"sync"

	"auction-engine/internal/auctionerrors"
	model "auction-engine/internal/models"
)

// AuctionStore defines durable auction storage. Concrete technology is
// a deployment concern; the engine only needs these operations.
type AuctionStore interface {
	SaveAuction(auction model.Auction) error
	GetAuction(auctionID string) (model.Auction, error)
}

// BidStore defines durable bid storage. AppendBid must be durable
// before it returns: an accepted bid is never announced until recorded.
type BidStore interface {
	AppendBid(bid model.Bid) error
	GetBidsByAuction(auctionID string) ([]model.Bid, error)
	UpdateBidStatuses(auctionID string, winningBidIDs []string) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of both
// AuctionStore and BidStore.
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction
	bids     map[string][]model.Bid // key: auctionID -> accepted bids in order
}

// NewMemoryRepo creates a new in-memory repository instance.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
	}
}

// SaveAuction inserts or replaces an auction record.
func (r *MemoryRepo) SaveAuction(auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.AuctionID] = auction
	return nil
}

// GetAuction returns the auction with the given id.
func (r *MemoryRepo) GetAuction(auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// AppendBid records an accepted bid for its auction.
func (r *MemoryRepo) AppendBid(bid model.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[bid.AuctionID]; !ok {
		return fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}
	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)
	return nil
}

// GetBidsByAuction returns all recorded bids for an auction in
// acceptance order.
func (r *MemoryRepo) GetBidsByAuction(auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[auctionID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), bids...), nil
}

// UpdateBidStatuses marks the listed bids ACCEPTED and every other bid
// on the auction REJECTED. Bids already resolved are left untouched.
func (r *MemoryRepo) UpdateBidStatuses(auctionID string, winningBidIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	winners := make(map[string]bool, len(winningBidIDs))
	for _, id := range winningBidIDs {
		winners[id] = true
	}

	bids := r.bids[auctionID]
	for i := range bids {
		if bids[i].Status != model.BidStatusPending {
			continue
		}
		if winners[bids[i].BidID] {
			bids[i].Status = model.BidStatusAccepted
		} else {
			bids[i].Status = model.BidStatusRejected
		}
	}
	return nil
}
