package wallet

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kabonia/marketplace/marketplace-backend/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	wallet := rg.Group("/wallet")
	{
		wallet.GET("/tokens", h.Tokens)
		wallet.GET("/tokens/:tokenId/balance", h.Balance)
	}
}

func (h *Handler) Tokens(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	holdings, err := h.service.GetUserTokens(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(holdings), "data": holdings})
}

func (h *Handler) Balance(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	tokenID := c.Param("tokenId")
	balance, err := h.service.Balance(c.Request.Context(), tokenID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_id": tokenID, "balance": balance})
}
