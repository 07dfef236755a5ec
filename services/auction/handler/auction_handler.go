package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/coordinator"
	model "auction-engine/internal/models"
	"auction-engine/services/auction/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	CreateAuction(ownerID string, input coordinator.CreateAuctionInput) (model.Auction, error)
	StartAuction(ctx context.Context, auctionID, actorID string, endAt time.Time) (model.Auction, error)
	PlaceBid(ctx context.Context, auctionID, bidderID string, input coordinator.BidInput) (model.Bid, error)
	CloseAuction(ctx context.Context, auctionID, actorID string) (model.Auction, error)
	SelectWinners(ctx context.Context, auctionID, ownerID string, winningBidIDs []string) (model.Auction, error)
	RevealBids(ctx context.Context, auctionID, ownerID string) (model.Bid, error)
	LeadingBid(auctionID string) (model.Bid, error)
	BidsForAuction(auctionID string) ([]model.Bid, error)
	GetAuction(auctionID string) (model.Auction, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(req.OwnerID, coordinator.CreateAuctionInput{
		Type:             req.Type,
		Sealed:           req.Sealed,
		ServicesRequired: req.ServicesRequired,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateAuctionHandler: failed to create auction", map[string]any{
			"owner_id": req.OwnerID,
			"type":     req.Type,
			"error":    err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(auction), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"owner_id":   auction.OwnerID,
		"type":       auction.Type,
	})
}

// StartAuctionHandler handles POST /auctions/:auction_id/start
func (h *AuctionHandler) StartAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.StartAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "StartAuctionHandler", err)
		return
	}

	auction, err := h.service.StartAuction(c.Request.Context(), auctionID, req.ActorID, req.EndAt)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("StartAuctionHandler: failed to start auction", map[string]any{
			"auction_id": auctionID,
			"actor_id":   req.ActorID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction started successfully")
	helpers.LogSuccess("StartAuctionHandler", "auction started successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"end_at":     auction.EndAt,
	})
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), auctionID, req.BidderID, coordinator.BidInput{
		Amount:      req.Amount,
		ServiceType: req.ServiceType,
		Terms:       req.Terms,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("PlaceBidHandler: failed to place bid", map[string]any{
			"auction_id": auctionID,
			"bidder_id":  req.BidderID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
	})
}

// CloseAuctionHandler handles POST /auctions/:auction_id/close
func (h *AuctionHandler) CloseAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CloseAuctionHandler", err)
		return
	}

	auction, err := h.service.CloseAuction(c.Request.Context(), auctionID, req.ActorID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CloseAuctionHandler: failed to close auction", map[string]any{
			"auction_id": auctionID,
			"actor_id":   req.ActorID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction closed successfully")
	helpers.LogSuccess("CloseAuctionHandler", "auction closed successfully", map[string]any{
		"auction_id": auction.AuctionID,
	})
}

// SelectWinnersHandler handles POST /auctions/:auction_id/winners
func (h *AuctionHandler) SelectWinnersHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.SelectWinnersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "SelectWinnersHandler", err)
		return
	}

	auction, err := h.service.SelectWinners(c.Request.Context(), auctionID, req.OwnerID, req.WinningBidIDs)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("SelectWinnersHandler: failed to select winners", map[string]any{
			"auction_id": auctionID,
			"owner_id":   req.OwnerID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "winners selected successfully")
	helpers.LogSuccess("SelectWinnersHandler", "winners selected successfully", map[string]any{
		"auction_id":      auction.AuctionID,
		"winning_bid_ids": auction.WinningBidIDs,
	})
}

// RevealBidsHandler handles POST /auctions/:auction_id/reveal
func (h *AuctionHandler) RevealBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RevealBidsHandler", err)
		return
	}

	leader, err := h.service.RevealBids(c.Request.Context(), auctionID, req.ActorID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		if errors.Is(err, auctionerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no bids to reveal")
			utils.Info("RevealBidsHandler: no bids to reveal", map[string]any{"auction_id": auctionID})
			return
		}
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("RevealBidsHandler: failed to reveal bids", map[string]any{
			"auction_id": auctionID,
			"actor_id":   req.ActorID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(leader), "bids revealed successfully")
	helpers.LogSuccess("RevealBidsHandler", "bids revealed successfully", map[string]any{
		"auction_id": auctionID,
		"leader_id":  leader.BidID,
	})
}

// GetBidsHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) GetBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.BidsForAuction(auctionID)
	if err != nil && !errors.Is(err, auctionerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, helpers.NewBidResponse(bid))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// GetLeadingBidHandler handles GET /auctions/:auction_id/leading
func (h *AuctionHandler) GetLeadingBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.LeadingBid(auctionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no leading bid found")
			utils.Info("GetLeadingBidHandler: no leading bid found", map[string]any{"auction_id": auctionID})
			return
		}
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetLeadingBidHandler: leading bid error", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "leading bid retrieved successfully")
	helpers.LogSuccess("GetLeadingBidHandler", "leading bid retrieved successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"amount":     bid.Amount.String(),
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction retrieved successfully")
}
