package market

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"kabonia/marketplace/marketplace-backend/internal/auth"
	"kabonia/marketplace/marketplace-backend/pkg/apperrors"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires authenticated market endpoints
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	market := rg.Group("/market")
	{
		market.POST("/listings", h.CreateListing)
		market.GET("/listings", h.GetListings)
		market.GET("/listings/:id", h.GetListing)
		market.POST("/listings/:id/purchase", h.Purchase)
		market.DELETE("/listings/:id", h.CancelListing)
		market.GET("/transactions", h.TransactionHistory)
	}
}

// RegisterPublicRoutes wires endpoints that do not require authentication
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/market/summary", h.Summary)
}

func (h *Handler) CreateListing(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.service.CreateListing(c.Request.Context(), req, userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, listing)
}

func (h *Handler) GetListings(c *gin.Context) {
	var filter ListingFilter

	filter.TokenID = c.Query("token_id")
	if v := c.Query("seller_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.SellerID = &id
		}
	}
	if v := c.Query("min_price"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinPrice = &p
		}
	}
	if v := c.Query("max_price"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MaxPrice = &p
		}
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	listings, err := h.service.GetListings(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(listings), "data": listings})
}

func (h *Handler) GetListing(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	listing, err := h.service.GetListing(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listing)
}

func (h *Handler) Purchase(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.ExecutePurchase(c.Request.Context(), id, userID, req.Amount)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) CancelListing(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	listing, err := h.service.CancelListing(c.Request.Context(), id, userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listing)
}

func (h *Handler) TransactionHistory(c *gin.Context) {
	var filter TransactionFilter

	if v := c.Query("user_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.UserID = &id
		}
	}
	if v := c.Query("project_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.ProjectID = &id
		}
	}
	filter.TokenID = c.Query("token_id")
	filter.Type = TransactionType(c.Query("type"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	txs, err := h.service.GetTransactionHistory(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(txs), "data": txs})
}

func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.service.GetMarketSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}
