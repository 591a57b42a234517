package tokens

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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	tokens := rg.Group("/tokens")
	{
		tokens.GET("", h.List)
		tokens.GET("/:tokenId", h.Get)
		tokens.POST("/mint", h.Mint)
		tokens.POST("/:tokenId/transfer", h.Transfer)
	}
}

func (h *Handler) List(c *gin.Context) {
	var filter TokenFilter
	if v := c.Query("project_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.ProjectID = &id
		}
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	tokens, err := h.service.ListTokens(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(tokens), "data": tokens})
}

func (h *Handler) Get(c *gin.Context) {
	token, err := h.service.GetToken(c.Request.Context(), c.Param("tokenId"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, token)
}

func (h *Handler) Mint(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		ProjectID uuid.UUID `json:"project_id" binding:"required"`
		Amount    float64   `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.MintCredits(c.Request.Context(), req.ProjectID, req.Amount, userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) Transfer(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		ReceiverID uuid.UUID `json:"receiver_id" binding:"required"`
		Amount     float64   `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.service.Transfer(c.Request.Context(), c.Param("tokenId"), userID, req.ReceiverID, req.Amount)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tx)
}
