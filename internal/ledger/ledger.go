package ledger

import (
	"fmt"
	"sync"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/models"
)

// Ledger is the per-auction append-only sequence of accepted bids plus
// the derived leading bid. Appends are serialized by an internal mutex
// so two simultaneous submissions can never both win the same slot.
type Ledger struct {
	mu        sync.RWMutex
	auctionID string
	sale      bool
	sealed    bool
	revealed  bool
	bids      []models.Bid
	leader    *models.Bid
}

// New creates an empty ledger for one auction.
func New(auction *models.Auction) *Ledger {
	return &Ledger{
		auctionID: auction.AuctionID,
		sale:      auction.Type == models.AuctionTypeSale,
		sealed:    auction.Sealed,
		revealed:  auction.Revealed,
	}
}

// TryAppend atomically validates and appends a bid. For a non-sealed
// SALE auction the amount must strictly exceed the current leader;
// ties on amount keep the earlier bid in front. Sealed auctions accept
// any positive amount and defer ranking until Reveal.
func (l *Ledger) TryAppend(bid models.Bid) (models.Bid, error) {
	if !bid.Amount.IsPositive() {
		return models.Bid{}, fmt.Errorf("ledger: non-positive amount %s: %w", bid.Amount, auctionerrors.ErrInvalidBid)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sale && !l.sealed {
		if l.leader != nil && bid.Amount.Cmp(l.leader.Amount) <= 0 {
			return models.Bid{}, fmt.Errorf("ledger: current leader is %s: %w", l.leader.Amount, auctionerrors.ErrBidTooLow)
		}
	}

	l.bids = append(l.bids, bid)
	if l.sale && !l.sealed {
		appended := l.bids[len(l.bids)-1]
		l.leader = &appended
	}
	return bid, nil
}

// Leader returns the current leading bid. Hidden while the ledger is
// sealed and unrevealed; ErrNoBids when nothing has been accepted yet.
func (l *Ledger) Leader() (models.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.sealed && !l.revealed {
		return models.Bid{}, fmt.Errorf("ledger: auction %s: %w", l.auctionID, auctionerrors.ErrSealedHidden)
	}
	if l.leader == nil {
		return models.Bid{}, fmt.Errorf("ledger: auction %s: %w", l.auctionID, auctionerrors.ErrNoBids)
	}
	return *l.leader, nil
}

// Reveal lifts sealed-bid suppression and computes the leader from the
// accepted sequence: highest amount, ties broken by earliest creation.
func (l *Ledger) Reveal() (models.Bid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.revealed = true
	for i := range l.bids {
		b := &l.bids[i]
		if l.leader == nil ||
			b.Amount.GreaterThan(l.leader.Amount) ||
			(b.Amount.Equal(l.leader.Amount) && b.CreatedAt.Before(l.leader.CreatedAt)) {
			l.leader = b
		}
	}
	if l.leader == nil {
		return models.Bid{}, fmt.Errorf("ledger: auction %s: %w", l.auctionID, auctionerrors.ErrNoBids)
	}
	return *l.leader, nil
}

// Remove undoes an append whose durable write failed, recomputing the
// leader from the remaining sequence. Only the auction's single writer
// may call this, so the bid removed is always the most recent append.
func (l *Ledger) Remove(bidID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.bids[:0]
	for i := range l.bids {
		if l.bids[i].BidID != bidID {
			kept = append(kept, l.bids[i])
		}
	}
	l.bids = kept

	l.leader = nil
	if l.sale && (!l.sealed || l.revealed) {
		for i := range l.bids {
			b := &l.bids[i]
			if l.leader == nil ||
				b.Amount.GreaterThan(l.leader.Amount) ||
				(b.Amount.Equal(l.leader.Amount) && b.CreatedAt.Before(l.leader.CreatedAt)) {
				l.leader = b
			}
		}
	}
}

// Bids returns a copy of the accepted sequence in acceptance order.
func (l *Ledger) Bids() []models.Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Bid(nil), l.bids...)
}

// Len returns the number of accepted bids.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.bids)
}
