package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionType distinguishes the two marketplace flows: selling an item
// to the highest bidder (SALE) or collecting service offers (SERVICES).
type AuctionType string

const (
	AuctionTypeSale     AuctionType = "SALE"
	AuctionTypeServices AuctionType = "SERVICES"
)

// AuctionStatus is the auction lifecycle state. Status only ever
// advances DRAFT -> ACTIVE -> EVALUATING -> CLOSED.
type AuctionStatus string

const (
	StatusDraft      AuctionStatus = "DRAFT"
	StatusActive     AuctionStatus = "ACTIVE"
	StatusEvaluating AuctionStatus = "EVALUATING"
	StatusClosed     AuctionStatus = "CLOSED"
)

// ServiceType is the closed set of services a SERVICES auction may request.
type ServiceType string

const (
	ServiceFinancing ServiceType = "FINANCING"
	ServiceTransport ServiceType = "TRANSPORT"
	ServiceInsurance ServiceType = "INSURANCE"
	ServiceEscrow    ServiceType = "ESCROW"
	ServiceMechanic  ServiceType = "MECHANIC"
	ServiceStorage   ServiceType = "STORAGE"
)

// ValidServiceType reports whether s is a member of the closed service set.
func ValidServiceType(s ServiceType) bool {
	switch s {
	case ServiceFinancing, ServiceTransport, ServiceInsurance,
		ServiceEscrow, ServiceMechanic, ServiceStorage:
		return true
	}
	return false
}

// BidType mirrors the type of the auction the bid targets.
type BidType string

const (
	BidTypeSalePrice    BidType = "SALE_PRICE"
	BidTypeServiceOffer BidType = "SERVICE_OFFER"
)

// BidStatus tracks evaluation outcome. A bid stays PENDING until the
// owner resolves the auction; once ACCEPTED or REJECTED it is immutable.
type BidStatus string

const (
	BidStatusPending  BidStatus = "PENDING"
	BidStatusAccepted BidStatus = "ACCEPTED"
	BidStatusRejected BidStatus = "REJECTED"
)

// Auction represents a single auction and its lifecycle state.
type Auction struct {
	AuctionID        string        `json:"auction_id"`
	Type             AuctionType   `json:"type"`
	Status           AuctionStatus `json:"status"`
	OwnerID          string        `json:"owner_id"`
	EndAt            time.Time     `json:"end_at"`
	ServicesRequired []ServiceType `json:"services_required,omitempty"`
	Sealed           bool          `json:"sealed"`
	Revealed         bool          `json:"revealed"`
	WinningBidIDs    []string      `json:"winning_bid_ids,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// RequiresService reports whether the auction asked for the given service.
func (a *Auction) RequiresService(s ServiceType) bool {
	for _, req := range a.ServicesRequired {
		if req == s {
			return true
		}
	}
	return false
}

// Bid represents a user's bid on an auction. Amounts are fixed-point
// decimals, never floats, so comparisons at price boundaries are exact.
type Bid struct {
	BidID       string          `json:"bid_id"`
	AuctionID   string          `json:"auction_id"`
	BidderID    string          `json:"bidder_id"`
	Type        BidType         `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	ServiceType ServiceType     `json:"service_type,omitempty"`
	Terms       string          `json:"terms,omitempty"`
	Status      BidStatus       `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}
