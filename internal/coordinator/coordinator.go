package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/ledger"
	"auction-engine/internal/lifecycle"
	"auction-engine/internal/models"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/utils"

	"github.com/shopspring/decimal"
)

// DefaultLockTimeout bounds how long a caller waits for an auction's
// writer slot before giving up with ErrLockTimeout.
const DefaultLockTimeout = 5 * time.Second

// Broadcaster publishes an event to every subscriber of a topic.
// Publishing is fire-and-forget; it never fails the calling operation.
type Broadcaster interface {
	Publish(topic string, event any)
}

// CreateAuctionInput carries the fields needed to create a DRAFT auction.
type CreateAuctionInput struct {
	Type             models.AuctionType
	Sealed           bool
	ServicesRequired []models.ServiceType
}

// BidInput carries the caller-supplied fields of a bid submission.
type BidInput struct {
	Amount      decimal.Decimal
	ServiceType models.ServiceType
	Terms       string
}

// Coordinator composes the state machine, per-auction ledgers and the
// broadcast router behind one entry point. Every mutation of a given
// auction runs under that auction's writer slot, so unrelated auctions
// proceed fully in parallel while bids on one auction are totally
// ordered.
type Coordinator struct {
	auctions    repository.AuctionStore
	bids        repository.BidStore
	events      Broadcaster
	lockTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	writers map[string]chan struct{} // one-slot writer channel per auction
	ledgers map[string]*ledger.Ledger
}

// New creates a coordinator over the given stores and broadcaster.
func New(auctions repository.AuctionStore, bids repository.BidStore, events Broadcaster) *Coordinator {
	return &Coordinator{
		auctions:    auctions,
		bids:        bids,
		events:      events,
		lockTimeout: DefaultLockTimeout,
		now:         time.Now,
		writers:     make(map[string]chan struct{}),
		ledgers:     make(map[string]*ledger.Ledger),
	}
}

// SetLockTimeout overrides the writer-slot acquisition timeout.
func (c *Coordinator) SetLockTimeout(d time.Duration) {
	c.lockTimeout = d
}

// SetClock overrides the time source. Intended for tests.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// acquire claims the auction's writer slot, waiting at most the lock
// timeout. The returned release function must be called exactly once.
func (c *Coordinator) acquire(ctx context.Context, auctionID string) (func(), error) {
	c.mu.Lock()
	slot, ok := c.writers[auctionID]
	if !ok {
		slot = make(chan struct{}, 1)
		c.writers[auctionID] = slot
	}
	c.mu.Unlock()

	timer := time.NewTimer(c.lockTimeout)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("coordinator: auction %s: %w", auctionID, auctionerrors.ErrLockTimeout)
	case <-timer.C:
		return nil, fmt.Errorf("coordinator: auction %s: %w", auctionID, auctionerrors.ErrLockTimeout)
	}
}

// ledgerFor returns the auction's ledger, rebuilding it from the bid
// store when the coordinator has not seen the auction yet.
func (c *Coordinator) ledgerFor(auction *models.Auction) *ledger.Ledger {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.ledgers[auction.AuctionID]
	if !ok {
		l = ledger.New(auction)
		if recorded, err := c.bids.GetBidsByAuction(auction.AuctionID); err == nil {
			for _, b := range recorded {
				_, _ = l.TryAppend(b)
			}
		}
		c.ledgers[auction.AuctionID] = l
	}
	return l
}

// CreateAuction creates a DRAFT auction owned by ownerID.
func (c *Coordinator) CreateAuction(ownerID string, input CreateAuctionInput) (models.Auction, error) {
	if ownerID == "" {
		return models.Auction{}, fmt.Errorf("coordinator: missing owner id: %w", auctionerrors.ErrInvalidAuction)
	}
	switch input.Type {
	case models.AuctionTypeSale:
		if len(input.ServicesRequired) > 0 {
			return models.Auction{}, fmt.Errorf("coordinator: services on SALE auction: %w", auctionerrors.ErrInvalidAuction)
		}
	case models.AuctionTypeServices:
		if len(input.ServicesRequired) == 0 {
			return models.Auction{}, fmt.Errorf("coordinator: SERVICES auction needs requested services: %w", auctionerrors.ErrInvalidAuction)
		}
		for _, s := range input.ServicesRequired {
			if !models.ValidServiceType(s) {
				return models.Auction{}, fmt.Errorf("coordinator: unknown service %q: %w", s, auctionerrors.ErrInvalidAuction)
			}
		}
	default:
		return models.Auction{}, fmt.Errorf("coordinator: unknown auction type %q: %w", input.Type, auctionerrors.ErrInvalidAuction)
	}

	auction := models.Auction{
		AuctionID:        utils.GenerateID(),
		Type:             input.Type,
		Status:           models.StatusDraft,
		OwnerID:          ownerID,
		ServicesRequired: input.ServicesRequired,
		Sealed:           input.Sealed,
		CreatedAt:        c.now().UTC(),
	}
	if err := c.auctions.SaveAuction(auction); err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: save auction: %w", err)
	}
	return auction, nil
}

// StartAuction moves a DRAFT auction to ACTIVE with the given end time.
// Owner only; endAt must lie in the future.
func (c *Coordinator) StartAuction(ctx context.Context, auctionID, actorID string, endAt time.Time) (models.Auction, error) {
	release, err := c.acquire(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	defer release()

	auction, err := c.auctions.GetAuction(auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: %w", err)
	}
	if auction.OwnerID != actorID {
		return models.Auction{}, fmt.Errorf("coordinator: actor %s: %w", actorID, auctionerrors.ErrNotOwner)
	}
	if !endAt.After(c.now()) {
		return models.Auction{}, fmt.Errorf("coordinator: end time not in the future: %w", auctionerrors.ErrInvalidAuction)
	}

	next, err := lifecycle.Transition(auction.Status, lifecycle.EventStart)
	if err != nil {
		return models.Auction{}, err
	}
	auction.Status = next
	auction.EndAt = endAt.UTC()

	if err := c.auctions.SaveAuction(auction); err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: save auction: %w", err)
	}
	return auction, nil
}

// PlaceBid validates and durably records a bid, then announces it to
// the auction's watchers. The call is synchronous: it returns either
// the accepted bid or a definite rejection. Broadcast failures never
// roll an accepted bid back.
func (c *Coordinator) PlaceBid(ctx context.Context, auctionID, bidderID string, input BidInput) (models.Bid, error) {
	if auctionID == "" || bidderID == "" {
		return models.Bid{}, fmt.Errorf("coordinator: missing auctionID or bidderID: %w", auctionerrors.ErrInvalidBid)
	}
	if !input.Amount.IsPositive() {
		return models.Bid{}, fmt.Errorf("coordinator: non-positive amount: %w", auctionerrors.ErrInvalidBid)
	}

	release, err := c.acquire(ctx, auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	defer release()

	auction, err := c.auctions.GetAuction(auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("coordinator: %w", err)
	}

	now := c.now()
	if err := lifecycle.CanAcceptBid(&auction, now); err != nil {
		return models.Bid{}, err
	}
	if bidderID == auction.OwnerID {
		return models.Bid{}, fmt.Errorf("coordinator: bidder %s owns the auction: %w", bidderID, auctionerrors.ErrSelfBidForbidden)
	}

	bidType := models.BidTypeSalePrice
	if auction.Type == models.AuctionTypeServices {
		bidType = models.BidTypeServiceOffer
		if !models.ValidServiceType(input.ServiceType) || !auction.RequiresService(input.ServiceType) {
			return models.Bid{}, fmt.Errorf("coordinator: service %q: %w", input.ServiceType, auctionerrors.ErrInvalidServiceType)
		}
	} else if input.ServiceType != "" {
		return models.Bid{}, fmt.Errorf("coordinator: service type on SALE bid: %w", auctionerrors.ErrInvalidBid)
	}

	bid := models.Bid{
		BidID:       utils.GenerateID(),
		AuctionID:   auctionID,
		BidderID:    bidderID,
		Type:        bidType,
		Amount:      input.Amount,
		ServiceType: input.ServiceType,
		Terms:       input.Terms,
		Status:      models.BidStatusPending,
		CreatedAt:   now.UTC(),
	}

	l := c.ledgerFor(&auction)
	accepted, err := l.TryAppend(bid)
	if err != nil {
		return models.Bid{}, err
	}

	if err := c.bids.AppendBid(accepted); err != nil {
		l.Remove(accepted.BidID)
		return models.Bid{}, fmt.Errorf("coordinator: record bid %s: %w: %v", accepted.BidID, auctionerrors.ErrPersistence, err)
	}

	c.events.Publish(realtime.TopicForAuction(auctionID), models.NewBidEventFrom(accepted))
	return accepted, nil
}

// CloseAuction ends an auction. An ACTIVE auction passes through
// EVALUATING on its way to CLOSED; any still-pending bids are rejected
// since no winners were selected. Owner only.
func (c *Coordinator) CloseAuction(ctx context.Context, auctionID, actorID string) (models.Auction, error) {
	release, err := c.acquire(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	defer release()

	auction, err := c.auctions.GetAuction(auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: %w", err)
	}
	if auction.OwnerID != actorID {
		return models.Auction{}, fmt.Errorf("coordinator: actor %s: %w", actorID, auctionerrors.ErrNotOwner)
	}

	auction.Status = lifecycle.EffectiveStatus(&auction, c.now())
	if auction.Status == models.StatusActive {
		next, err := lifecycle.Transition(auction.Status, lifecycle.EventEndBidding)
		if err != nil {
			return models.Auction{}, err
		}
		auction.Status = next
	}

	next, err := lifecycle.Transition(auction.Status, lifecycle.EventResolve)
	if err != nil {
		return models.Auction{}, err
	}
	auction.Status = next

	if err := c.bids.UpdateBidStatuses(auctionID, nil); err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: reject pending bids: %w: %v", auctionerrors.ErrPersistence, err)
	}
	if err := c.auctions.SaveAuction(auction); err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: save auction: %w: %v", auctionerrors.ErrPersistence, err)
	}

	c.events.Publish(realtime.TopicForAuction(auctionID), models.AuctionClosedEvent{
		Event:     models.EventAuctionClosed,
		AuctionID: auctionID,
	})
	return auction, nil
}

// SelectWinners marks exactly the given bids ACCEPTED and every other
// bid REJECTED, then closes the auction. Valid only while EVALUATING;
// a second call fails with ErrStateConflict because the auction has
// already reached CLOSED.
func (c *Coordinator) SelectWinners(ctx context.Context, auctionID, ownerID string, winningBidIDs []string) (models.Auction, error) {
	if len(winningBidIDs) == 0 {
		return models.Auction{}, fmt.Errorf("coordinator: no winning bids given: %w", auctionerrors.ErrInvalidBid)
	}

	release, err := c.acquire(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	defer release()

	auction, err := c.auctions.GetAuction(auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: %w", err)
	}
	if auction.OwnerID != ownerID {
		return models.Auction{}, fmt.Errorf("coordinator: actor %s: %w", ownerID, auctionerrors.ErrNotOwner)
	}

	auction.Status = lifecycle.EffectiveStatus(&auction, c.now())
	if auction.Status != models.StatusEvaluating {
		return models.Auction{}, fmt.Errorf("coordinator: status %s: %w", auction.Status, auctionerrors.ErrStateConflict)
	}

	recorded, err := c.bids.GetBidsByAuction(auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: %w", err)
	}
	known := make(map[string]bool, len(recorded))
	for _, b := range recorded {
		known[b.BidID] = true
	}
	for _, id := range winningBidIDs {
		if !known[id] {
			return models.Auction{}, fmt.Errorf("coordinator: winning bid %s: %w", id, auctionerrors.ErrBidNotFound)
		}
	}

	if err := c.bids.UpdateBidStatuses(auctionID, winningBidIDs); err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: update bid statuses: %w: %v", auctionerrors.ErrPersistence, err)
	}

	next, err := lifecycle.Transition(auction.Status, lifecycle.EventResolve)
	if err != nil {
		return models.Auction{}, err
	}
	auction.Status = next
	auction.WinningBidIDs = append([]string(nil), winningBidIDs...)

	if err := c.auctions.SaveAuction(auction); err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: save auction: %w: %v", auctionerrors.ErrPersistence, err)
	}

	c.events.Publish(realtime.TopicForAuction(auctionID), models.AuctionResolvedEvent{
		Event:         models.EventAuctionResolved,
		AuctionID:     auctionID,
		WinningBidIDs: auction.WinningBidIDs,
	})
	return auction, nil
}

// RevealBids lifts sealed-bid suppression once bidding is over. Owner
// only; the auction must have left ACTIVE, so no late bid can slip in
// after the reveal.
func (c *Coordinator) RevealBids(ctx context.Context, auctionID, ownerID string) (models.Bid, error) {
	release, err := c.acquire(ctx, auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	defer release()

	auction, err := c.auctions.GetAuction(auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("coordinator: %w", err)
	}
	if auction.OwnerID != ownerID {
		return models.Bid{}, fmt.Errorf("coordinator: actor %s: %w", ownerID, auctionerrors.ErrNotOwner)
	}
	if !auction.Sealed {
		return models.Bid{}, fmt.Errorf("coordinator: auction is not sealed: %w", auctionerrors.ErrStateConflict)
	}
	if lifecycle.EffectiveStatus(&auction, c.now()) == models.StatusActive {
		return models.Bid{}, fmt.Errorf("coordinator: bidding still open: %w", auctionerrors.ErrStateConflict)
	}

	leader, err := c.ledgerFor(&auction).Reveal()
	if err != nil {
		return models.Bid{}, err
	}

	auction.Revealed = true
	if err := c.auctions.SaveAuction(auction); err != nil {
		return models.Bid{}, fmt.Errorf("coordinator: save auction: %w: %v", auctionerrors.ErrPersistence, err)
	}
	return leader, nil
}

// LeadingBid returns the current leading bid. Hidden for sealed
// auctions until the owner reveals.
func (c *Coordinator) LeadingBid(auctionID string) (models.Bid, error) {
	auction, err := c.auctions.GetAuction(auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("coordinator: %w", err)
	}
	return c.ledgerFor(&auction).Leader()
}

// BidsForAuction returns all recorded bids for an auction.
func (c *Coordinator) BidsForAuction(auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("coordinator: empty auction ID: %w", auctionerrors.ErrInvalidBid)
	}
	if _, err := c.auctions.GetAuction(auctionID); err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	bids, err := c.bids.GetBidsByAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("coordinator: get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetAuction returns the auction with its effective lifecycle status.
// An auction whose bidding window expired without a single bid is closed
// on the spot, so it never lingers in EVALUATING with nothing to judge.
func (c *Coordinator) GetAuction(auctionID string) (models.Auction, error) {
	auction, err := c.auctions.GetAuction(auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("coordinator: %w", err)
	}
	auction.Status = lifecycle.EffectiveStatus(&auction, c.now())
	if auction.Status == models.StatusEvaluating {
		if closed, ok := c.autoCloseUnbid(auctionID); ok {
			return closed, nil
		}
	}
	return auction, nil
}

// autoCloseUnbid closes an EVALUATING auction that received no bids.
// The state is re-checked under the writer slot; any contention or
// store failure makes it a no-op and the caller falls back to the
// effective status it already computed.
func (c *Coordinator) autoCloseUnbid(auctionID string) (models.Auction, bool) {
	release, err := c.acquire(context.Background(), auctionID)
	if err != nil {
		return models.Auction{}, false
	}
	defer release()

	auction, err := c.auctions.GetAuction(auctionID)
	if err != nil {
		return models.Auction{}, false
	}
	if lifecycle.EffectiveStatus(&auction, c.now()) != models.StatusEvaluating {
		return models.Auction{}, false
	}

	recorded, err := c.bids.GetBidsByAuction(auctionID)
	if err != nil && !errors.Is(err, auctionerrors.ErrNoBids) {
		return models.Auction{}, false
	}
	if len(recorded) > 0 {
		return models.Auction{}, false
	}

	next, err := lifecycle.Transition(models.StatusEvaluating, lifecycle.EventResolve)
	if err != nil {
		return models.Auction{}, false
	}
	auction.Status = next
	if err := c.auctions.SaveAuction(auction); err != nil {
		return models.Auction{}, false
	}

	c.events.Publish(realtime.TopicForAuction(auctionID), models.AuctionClosedEvent{
		Event:     models.EventAuctionClosed,
		AuctionID: auctionID,
	})
	return auction, true
}
