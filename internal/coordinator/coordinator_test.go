package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeBroadcaster records published events instead of delivering them.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	topic string
	event any
}

func (f *fakeBroadcaster) Publish(topic string, event any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{topic: topic, event: event})
}

func (f *fakeBroadcaster) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.events...)
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// testClock is a controllable time source for deterministic boundary tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeBroadcaster, *testClock) {
	t.Helper()
	repo := repository.NewMemoryRepo()
	events := &fakeBroadcaster{}
	clock := newTestClock(testStart)

	coord := New(repo, repo, events)
	coord.SetClock(clock.Now)
	return coord, events, clock
}

// startedSale creates and starts a SALE auction owned by owner1 ending
// ten seconds after the test start.
func startedSale(t *testing.T, coord *Coordinator, sealed bool) models.Auction {
	t.Helper()
	auction, err := coord.CreateAuction("owner1", CreateAuctionInput{Type: models.AuctionTypeSale, Sealed: sealed})
	require.NoError(t, err)

	auction, err = coord.StartAuction(context.Background(), auction.AuctionID, "owner1", testStart.Add(10*time.Second))
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, auction.Status)
	return auction
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Tests CreateAuction validation
func TestCoordinator_CreateAuction(t *testing.T) {
	tests := []struct {
		name        string
		ownerID     string
		input       CreateAuctionInput
		expectError error
	}{
		{
			name:    "valid_sale",
			ownerID: "owner1",
			input:   CreateAuctionInput{Type: models.AuctionTypeSale},
		},
		{
			name:    "valid_sealed_sale",
			ownerID: "owner1",
			input:   CreateAuctionInput{Type: models.AuctionTypeSale, Sealed: true},
		},
		{
			name:    "valid_services",
			ownerID: "owner1",
			input: CreateAuctionInput{
				Type:             models.AuctionTypeServices,
				ServicesRequired: []models.ServiceType{models.ServiceTransport, models.ServiceEscrow},
			},
		},
		{
			name:        "missing_owner",
			ownerID:     "",
			input:       CreateAuctionInput{Type: models.AuctionTypeSale},
			expectError: auctionerrors.ErrInvalidAuction,
		},
		{
			name:        "sale_with_services",
			ownerID:     "owner1",
			input:       CreateAuctionInput{Type: models.AuctionTypeSale, ServicesRequired: []models.ServiceType{models.ServiceEscrow}},
			expectError: auctionerrors.ErrInvalidAuction,
		},
		{
			name:        "services_without_services",
			ownerID:     "owner1",
			input:       CreateAuctionInput{Type: models.AuctionTypeServices},
			expectError: auctionerrors.ErrInvalidAuction,
		},
		{
			name:    "services_with_unknown_service",
			ownerID: "owner1",
			input: CreateAuctionInput{
				Type:             models.AuctionTypeServices,
				ServicesRequired: []models.ServiceType{"CATERING"},
			},
			expectError: auctionerrors.ErrInvalidAuction,
		},
		{
			name:        "unknown_type",
			ownerID:     "owner1",
			input:       CreateAuctionInput{Type: "RAFFLE"},
			expectError: auctionerrors.ErrInvalidAuction,
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			coord, _, _ := newTestCoordinator(t)

			auction, err := coord.CreateAuction(tc.ownerID, tc.input)

			if tc.expectError != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.expectError), "expected error: %v, got: %v", tc.expectError, err)
			} else {
				require.NoError(t, err)
				require.NotEmpty(t, auction.AuctionID)
				require.Equal(t, models.StatusDraft, auction.Status)
				require.Equal(t, tc.ownerID, auction.OwnerID)
			}
		})
	}
}

// Tests StartAuction
func TestCoordinator_StartAuction(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	auction, err := coord.CreateAuction("owner1", CreateAuctionInput{Type: models.AuctionTypeSale})
	require.NoError(t, err)

	t.Run("non_owner_rejected", func(t *testing.T) {
		_, err := coord.StartAuction(context.Background(), auction.AuctionID, "intruder", testStart.Add(time.Hour))
		require.True(t, errors.Is(err, auctionerrors.ErrNotOwner))
	})

	t.Run("end_time_must_be_future", func(t *testing.T) {
		_, err := coord.StartAuction(context.Background(), auction.AuctionID, "owner1", testStart.Add(-time.Second))
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidAuction))

		_, err = coord.StartAuction(context.Background(), auction.AuctionID, "owner1", testStart)
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidAuction))
	})

	t.Run("start_then_double_start_conflicts", func(t *testing.T) {
		started, err := coord.StartAuction(context.Background(), auction.AuctionID, "owner1", testStart.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, models.StatusActive, started.Status)

		_, err = coord.StartAuction(context.Background(), auction.AuctionID, "owner1", testStart.Add(2*time.Hour))
		require.True(t, errors.Is(err, auctionerrors.ErrStateConflict))
	})

	t.Run("missing_auction", func(t *testing.T) {
		_, err := coord.StartAuction(context.Background(), "missing", "owner1", testStart.Add(time.Hour))
		require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotFound))
	})
}

// Tests the full SALE bidding scenario from the engine's contract:
// U2 bids 5000, U3's 4000 is too low, U3's 6000 takes the lead.
func TestCoordinator_PlaceBid_SaleScenario(t *testing.T) {
	coord, events, clock := newTestCoordinator(t)
	auction := startedSale(t, coord, false)
	ctx := context.Background()

	clock.Set(testStart.Add(time.Second))
	bid1, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("5000")})
	require.NoError(t, err)
	require.Equal(t, models.BidTypeSalePrice, bid1.Type)

	leader, err := coord.LeadingBid(auction.AuctionID)
	require.NoError(t, err)
	require.True(t, leader.Amount.Equal(amount("5000")))

	clock.Set(testStart.Add(2 * time.Second))
	_, err = coord.PlaceBid(ctx, auction.AuctionID, "user3", BidInput{Amount: amount("4000")})
	require.True(t, errors.Is(err, auctionerrors.ErrBidTooLow))

	bid3, err := coord.PlaceBid(ctx, auction.AuctionID, "user3", BidInput{Amount: amount("6000")})
	require.NoError(t, err)

	leader, err = coord.LeadingBid(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, bid3.BidID, leader.BidID)
	require.True(t, leader.Amount.Equal(amount("6000")))

	// exactly one NEW_BID per accepted bid, on the auction's topic, in order
	published := events.published()
	require.Len(t, published, 2)
	for _, p := range published {
		require.Equal(t, realtime.TopicForAuction(auction.AuctionID), p.topic)
		evt, ok := p.event.(models.NewBidEvent)
		require.True(t, ok)
		require.Equal(t, models.EventNewBid, evt.Event)
	}
	require.Equal(t, bid1.BidID, published[0].event.(models.NewBidEvent).Bid.BidID)
	require.Equal(t, bid3.BidID, published[1].event.(models.NewBidEvent).Bid.BidID)
}

// Tests PlaceBid rejections
func TestCoordinator_PlaceBid_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("missing_ids", func(t *testing.T) {
		coord, _, _ := newTestCoordinator(t)
		_, err := coord.PlaceBid(ctx, "", "user1", BidInput{Amount: amount("10")})
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidBid))

		_, err = coord.PlaceBid(ctx, "a1", "", BidInput{Amount: amount("10")})
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidBid))
	})

	t.Run("non_positive_amount", func(t *testing.T) {
		coord, _, _ := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		_, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: decimal.Zero})
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidBid))

		_, err = coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("-5")})
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidBid))
	})

	t.Run("auction_not_found", func(t *testing.T) {
		coord, _, _ := newTestCoordinator(t)
		_, err := coord.PlaceBid(ctx, "missing", "user2", BidInput{Amount: amount("10")})
		require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotFound))
	})

	t.Run("draft_auction_not_active", func(t *testing.T) {
		coord, _, _ := newTestCoordinator(t)
		auction, err := coord.CreateAuction("owner1", CreateAuctionInput{Type: models.AuctionTypeSale})
		require.NoError(t, err)

		_, err = coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("10")})
		require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotActive))
	})

	t.Run("self_bid_forbidden_regardless_of_amount", func(t *testing.T) {
		coord, events, _ := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		for _, amt := range []string{"1", "999999.99"} {
			_, err := coord.PlaceBid(ctx, auction.AuctionID, "owner1", BidInput{Amount: amount(amt)})
			require.True(t, errors.Is(err, auctionerrors.ErrSelfBidForbidden))
		}
		require.Zero(t, events.count())
	})

	t.Run("service_type_on_sale_bid", func(t *testing.T) {
		coord, _, _ := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		_, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{
			Amount:      amount("10"),
			ServiceType: models.ServiceEscrow,
		})
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidBid))
	})
}

// Boundary: a bid at exactly endAt is rejected, one millisecond before
// it is accepted.
func TestCoordinator_PlaceBid_EndAtBoundary(t *testing.T) {
	ctx := context.Background()
	endAt := testStart.Add(10 * time.Second)

	t.Run("at_end_rejected", func(t *testing.T) {
		coord, events, clock := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		clock.Set(endAt)
		_, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("100")})
		require.True(t, errors.Is(err, auctionerrors.ErrAuctionEnded))
		require.Zero(t, events.count())
	})

	t.Run("one_ms_before_end_accepted", func(t *testing.T) {
		coord, _, clock := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		clock.Set(endAt.Add(-time.Millisecond))
		_, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("100")})
		require.NoError(t, err)
	})
}

// Tests SERVICES auctions: offers need a requested service type and are
// not ranked against each other.
func TestCoordinator_PlaceBid_ServicesAuction(t *testing.T) {
	ctx := context.Background()
	coord, _, clock := newTestCoordinator(t)

	auction, err := coord.CreateAuction("owner1", CreateAuctionInput{
		Type:             models.AuctionTypeServices,
		ServicesRequired: []models.ServiceType{models.ServiceTransport, models.ServiceMechanic},
	})
	require.NoError(t, err)
	auction, err = coord.StartAuction(ctx, auction.AuctionID, "owner1", testStart.Add(time.Hour))
	require.NoError(t, err)

	clock.Set(testStart.Add(time.Second))

	t.Run("missing_service_type", func(t *testing.T) {
		_, err := coord.PlaceBid(ctx, auction.AuctionID, "provider1", BidInput{Amount: amount("300")})
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidServiceType))
	})

	t.Run("service_not_requested", func(t *testing.T) {
		_, err := coord.PlaceBid(ctx, auction.AuctionID, "provider1", BidInput{
			Amount:      amount("300"),
			ServiceType: models.ServiceEscrow,
		})
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidServiceType))
	})

	t.Run("offers_are_not_ranked", func(t *testing.T) {
		first, err := coord.PlaceBid(ctx, auction.AuctionID, "provider1", BidInput{
			Amount:      amount("300"),
			ServiceType: models.ServiceTransport,
		})
		require.NoError(t, err)
		require.Equal(t, models.BidTypeServiceOffer, first.Type)

		// a cheaper competing offer is still accepted
		_, err = coord.PlaceBid(ctx, auction.AuctionID, "provider2", BidInput{
			Amount:      amount("250"),
			ServiceType: models.ServiceTransport,
		})
		require.NoError(t, err)

		bids, err := coord.BidsForAuction(auction.AuctionID)
		require.NoError(t, err)
		require.Len(t, bids, 2)
	})
}

// A failed durable write surfaces as a persistence error, publishes
// nothing, and leaves the amount biddable again.
func TestCoordinator_PlaceBid_PersistenceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := repository.NewMemoryRepo()
	mockBids := repository.NewMockBidStore(ctrl)
	events := &fakeBroadcaster{}
	clock := newTestClock(testStart)

	coord := New(repo, mockBids, events)
	coord.SetClock(clock.Now)

	auction := startedSale(t, coord, false)
	clock.Set(testStart.Add(time.Second))

	mockBids.EXPECT().GetBidsByAuction(auction.AuctionID).Return(nil, auctionerrors.ErrNoBids).AnyTimes()
	mockBids.EXPECT().AppendBid(gomock.Any()).Return(errors.New("disk full"))

	_, err := coord.PlaceBid(context.Background(), auction.AuctionID, "user2", BidInput{Amount: amount("5000")})
	require.Error(t, err)
	require.True(t, errors.Is(err, auctionerrors.ErrPersistence))
	require.Zero(t, events.count(), "a bid must never be announced before it is recorded")

	// the ledger rolled back: the same amount succeeds once the store recovers
	mockBids.EXPECT().AppendBid(gomock.Any()).Return(nil)
	_, err = coord.PlaceBid(context.Background(), auction.AuctionID, "user2", BidInput{Amount: amount("5000")})
	require.NoError(t, err)
	require.Equal(t, 1, events.count())
}

// Once CLOSED, every subsequent PlaceBid is rejected the same way.
func TestCoordinator_ClosedAuctionRejectsBidsIdempotently(t *testing.T) {
	ctx := context.Background()
	coord, _, clock := newTestCoordinator(t)
	auction := startedSale(t, coord, false)

	clock.Set(testStart.Add(time.Second))
	_, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("100")})
	require.NoError(t, err)

	_, err = coord.CloseAuction(ctx, auction.AuctionID, "owner1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("200")})
		require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotActive), "attempt %d", i)
	}
}

// A bidding window that expires with zero bids closes the auction on
// the next read instead of parking it in EVALUATING.
func TestCoordinator_AutoCloseUnbidAuction(t *testing.T) {
	ctx := context.Background()

	t.Run("zero_bids_closes_on_read", func(t *testing.T) {
		coord, events, clock := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		clock.Set(testStart.Add(time.Minute))

		got, err := coord.GetAuction(auction.AuctionID)
		require.NoError(t, err)
		require.Equal(t, models.StatusClosed, got.Status)

		published := events.published()
		require.Len(t, published, 1)
		evt, ok := published[0].event.(models.AuctionClosedEvent)
		require.True(t, ok)
		require.Equal(t, models.EventAuctionClosed, evt.Event)
		require.Equal(t, auction.AuctionID, evt.AuctionID)

		// the close is persisted, not recomputed per read
		got, err = coord.GetAuction(auction.AuctionID)
		require.NoError(t, err)
		require.Equal(t, models.StatusClosed, got.Status)
		require.Equal(t, 1, events.count())

		_, err = coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("100")})
		require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotActive))
	})

	t.Run("auction_with_bids_stays_evaluating", func(t *testing.T) {
		coord, _, clock := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		clock.Set(testStart.Add(time.Second))
		_, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("100")})
		require.NoError(t, err)

		clock.Set(testStart.Add(time.Minute))

		got, err := coord.GetAuction(auction.AuctionID)
		require.NoError(t, err)
		require.Equal(t, models.StatusEvaluating, got.Status)
	})
}

// Tests CloseAuction
func TestCoordinator_CloseAuction(t *testing.T) {
	ctx := context.Background()

	t.Run("non_owner_rejected", func(t *testing.T) {
		coord, _, _ := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		_, err := coord.CloseAuction(ctx, auction.AuctionID, "intruder")
		require.True(t, errors.Is(err, auctionerrors.ErrNotOwner))
	})

	t.Run("close_early_from_active", func(t *testing.T) {
		coord, events, _ := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		closed, err := coord.CloseAuction(ctx, auction.AuctionID, "owner1")
		require.NoError(t, err)
		require.Equal(t, models.StatusClosed, closed.Status)

		published := events.published()
		require.Len(t, published, 1)
		evt, ok := published[0].event.(models.AuctionClosedEvent)
		require.True(t, ok)
		require.Equal(t, models.EventAuctionClosed, evt.Event)
		require.Equal(t, auction.AuctionID, evt.AuctionID)
	})

	t.Run("close_rejects_pending_bids", func(t *testing.T) {
		coord, _, clock := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		clock.Set(testStart.Add(time.Second))
		_, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("100")})
		require.NoError(t, err)

		_, err = coord.CloseAuction(ctx, auction.AuctionID, "owner1")
		require.NoError(t, err)

		bids, err := coord.BidsForAuction(auction.AuctionID)
		require.NoError(t, err)
		require.Equal(t, models.BidStatusRejected, bids[0].Status)
	})

	t.Run("second_close_conflicts", func(t *testing.T) {
		coord, _, _ := newTestCoordinator(t)
		auction := startedSale(t, coord, false)

		_, err := coord.CloseAuction(ctx, auction.AuctionID, "owner1")
		require.NoError(t, err)

		_, err = coord.CloseAuction(ctx, auction.AuctionID, "owner1")
		require.True(t, errors.Is(err, auctionerrors.ErrStateConflict))
	})

	t.Run("draft_cannot_close", func(t *testing.T) {
		coord, _, _ := newTestCoordinator(t)
		auction, err := coord.CreateAuction("owner1", CreateAuctionInput{Type: models.AuctionTypeSale})
		require.NoError(t, err)

		_, err = coord.CloseAuction(ctx, auction.AuctionID, "owner1")
		require.True(t, errors.Is(err, auctionerrors.ErrStateConflict))
	})
}

// SelectWinners marks exactly the chosen set ACCEPTED and the
// complement REJECTED; a second call conflicts.
func TestCoordinator_SelectWinners(t *testing.T) {
	ctx := context.Background()
	coord, events, clock := newTestCoordinator(t)
	auction := startedSale(t, coord, false)

	clock.Set(testStart.Add(time.Second))
	var bidIDs []string
	for i, amt := range []string{"100", "200", "300"} {
		bid, err := coord.PlaceBid(ctx, auction.AuctionID, fmt.Sprintf("user%d", i+2), BidInput{Amount: amount(amt)})
		require.NoError(t, err)
		bidIDs = append(bidIDs, bid.BidID)
	}

	// bidding window elapses; the auction is now evaluating
	clock.Set(testStart.Add(time.Minute))

	t.Run("non_owner_rejected", func(t *testing.T) {
		_, err := coord.SelectWinners(ctx, auction.AuctionID, "intruder", []string{bidIDs[2]})
		require.True(t, errors.Is(err, auctionerrors.ErrNotOwner))
	})

	t.Run("unknown_winning_bid", func(t *testing.T) {
		_, err := coord.SelectWinners(ctx, auction.AuctionID, "owner1", []string{"ghost"})
		require.True(t, errors.Is(err, auctionerrors.ErrBidNotFound))
	})

	t.Run("empty_selection", func(t *testing.T) {
		_, err := coord.SelectWinners(ctx, auction.AuctionID, "owner1", nil)
		require.True(t, errors.Is(err, auctionerrors.ErrInvalidBid))
	})

	t.Run("exact_partition_and_close", func(t *testing.T) {
		resolved, err := coord.SelectWinners(ctx, auction.AuctionID, "owner1", []string{bidIDs[2]})
		require.NoError(t, err)
		require.Equal(t, models.StatusClosed, resolved.Status)
		require.Equal(t, []string{bidIDs[2]}, resolved.WinningBidIDs)

		bids, err := coord.BidsForAuction(auction.AuctionID)
		require.NoError(t, err)
		for _, b := range bids {
			if b.BidID == bidIDs[2] {
				require.Equal(t, models.BidStatusAccepted, b.Status)
			} else {
				require.Equal(t, models.BidStatusRejected, b.Status)
			}
		}

		published := events.published()
		last := published[len(published)-1]
		evt, ok := last.event.(models.AuctionResolvedEvent)
		require.True(t, ok)
		require.Equal(t, models.EventAuctionResolved, evt.Event)
		require.Equal(t, []string{bidIDs[2]}, evt.WinningBidIDs)
	})

	t.Run("second_call_conflicts", func(t *testing.T) {
		_, err := coord.SelectWinners(ctx, auction.AuctionID, "owner1", []string{bidIDs[1]})
		require.True(t, errors.Is(err, auctionerrors.ErrStateConflict))
	})
}

// Sealed auctions hide the leader until the owner reveals after bidding
// closes.
func TestCoordinator_SealedRevealFlow(t *testing.T) {
	ctx := context.Background()
	coord, _, clock := newTestCoordinator(t)
	auction := startedSale(t, coord, true)

	clock.Set(testStart.Add(time.Second))
	_, err := coord.PlaceBid(ctx, auction.AuctionID, "user2", BidInput{Amount: amount("5000")})
	require.NoError(t, err)
	// sealed: a lower later bid is still accepted
	_, err = coord.PlaceBid(ctx, auction.AuctionID, "user3", BidInput{Amount: amount("4000")})
	require.NoError(t, err)

	_, err = coord.LeadingBid(auction.AuctionID)
	require.True(t, errors.Is(err, auctionerrors.ErrSealedHidden))

	t.Run("reveal_while_active_conflicts", func(t *testing.T) {
		_, err := coord.RevealBids(ctx, auction.AuctionID, "owner1")
		require.True(t, errors.Is(err, auctionerrors.ErrStateConflict))
	})

	// bidding window elapses
	clock.Set(testStart.Add(time.Minute))

	t.Run("non_owner_cannot_reveal", func(t *testing.T) {
		_, err := coord.RevealBids(ctx, auction.AuctionID, "user2")
		require.True(t, errors.Is(err, auctionerrors.ErrNotOwner))
	})

	t.Run("owner_reveal_exposes_leader", func(t *testing.T) {
		leader, err := coord.RevealBids(ctx, auction.AuctionID, "owner1")
		require.NoError(t, err)
		require.True(t, leader.Amount.Equal(amount("5000")))

		leader, err = coord.LeadingBid(auction.AuctionID)
		require.NoError(t, err)
		require.True(t, leader.Amount.Equal(amount("5000")))
	})

	t.Run("reveal_on_open_auction_conflicts", func(t *testing.T) {
		open, err := coord.CreateAuction("owner1", CreateAuctionInput{Type: models.AuctionTypeSale})
		require.NoError(t, err)
		open, err = coord.StartAuction(ctx, open.AuctionID, "owner1", clock.Now().Add(10*time.Second))
		require.NoError(t, err)

		clock.Set(clock.Now().Add(time.Minute))
		_, err = coord.RevealBids(ctx, open.AuctionID, "owner1")
		require.True(t, errors.Is(err, auctionerrors.ErrStateConflict))
	})
}

// Writer-slot acquisition times out instead of blocking forever.
func TestCoordinator_LockTimeout(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	coord.SetLockTimeout(20 * time.Millisecond)

	release, err := coord.acquire(context.Background(), "a1")
	require.NoError(t, err)

	_, err = coord.acquire(context.Background(), "a1")
	require.True(t, errors.Is(err, auctionerrors.ErrLockTimeout))

	// other auctions are unaffected by a held slot
	release2, err := coord.acquire(context.Background(), "a2")
	require.NoError(t, err)
	release2()

	release()
	release3, err := coord.acquire(context.Background(), "a1")
	require.NoError(t, err)
	release3()
}

// 100 concurrent strictly-increasing bids: the final leader is the
// maximum submitted amount and every accepted bid was announced.
func TestCoordinator_ConcurrentBids_NoLostUpdate(t *testing.T) {
	ctx := context.Background()
	coord, events, clock := newTestCoordinator(t)
	auction := startedSale(t, coord, false)
	clock.Set(testStart.Add(time.Second))

	const bidders = 100
	var wg sync.WaitGroup
	var accepted int64
	var mu sync.Mutex

	wg.Add(bidders)
	for i := 1; i <= bidders; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := coord.PlaceBid(ctx, auction.AuctionID, fmt.Sprintf("user%d", i), BidInput{
				Amount: decimal.NewFromInt(int64(i * 100)),
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	leader, err := coord.LeadingBid(auction.AuctionID)
	require.NoError(t, err)
	require.True(t, leader.Amount.Equal(decimal.NewFromInt(bidders*100)),
		"leader must be the maximum submitted amount, got %s", leader.Amount)

	bids, err := coord.BidsForAuction(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, int(accepted), len(bids), "every accepted bid is durably recorded")
	require.Equal(t, int(accepted), events.count(), "every accepted bid is announced exactly once")
}
