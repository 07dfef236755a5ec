package server

import (
	"context"

	"auction-engine/internal/realtime"
	handler "auction-engine/services/auction/handler"

	"github.com/gin-gonic/gin"
)

// Options tunes the router's middleware stack.
type Options struct {
	// APIRateRPS and APIRateBurst bound per-client request rates on the
	// REST surface. Zero disables the middleware.
	APIRateRPS   float64
	APIRateBurst int
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(service handler.AuctionServiceInterface, router *realtime.Router, opts Options) *gin.Engine {
	engine := gin.New() // New router without default middleware for full control over middleware and logging

	engine.Use(gin.Recovery())          // recover from panics
	engine.Use(RequestLoggerMiddleware) // custom request logging
	if opts.APIRateRPS > 0 {
		store := NewClientLimiterStore(opts.APIRateRPS, opts.APIRateBurst)
		store.StartJanitor(context.Background())
		engine.Use(RateLimitMiddleware(store))
	}

	auctionHandler := handler.NewAuctionHandler(service)
	watchHandler := NewWatchHandler(router)

	auctions := engine.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.POST("/:auction_id/start", auctionHandler.StartAuctionHandler)
		auctions.POST("/:auction_id/bids", auctionHandler.PlaceBidHandler)
		auctions.POST("/:auction_id/close", auctionHandler.CloseAuctionHandler)
		auctions.POST("/:auction_id/winners", auctionHandler.SelectWinnersHandler)
		auctions.POST("/:auction_id/reveal", auctionHandler.RevealBidsHandler)
		auctions.GET("/:auction_id/bids", auctionHandler.GetBidsHandler)
		auctions.GET("/:auction_id/leading", auctionHandler.GetLeadingBidHandler)
	}

	engine.GET("/ws/auctions/:auction_id", watchHandler.HandleWatch)

	return engine
}
