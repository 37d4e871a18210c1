package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lexibot/internal/app"
	"lexibot/internal/transport/http/response"
)

type PredictHandler struct {
	chatService *app.ChatService
}

type PredictRequest struct {
	CaseFacts string `json:"case_facts" binding:"required"`
}

func NewPredictHandler(chatService *app.ChatService) *PredictHandler {
	return &PredictHandler{chatService: chatService}
}

// Predict labels the likely outcome of raw case facts without touching any
// session. The label is Favorable, Unfavorable, Neutral or Unknown.
func (h *PredictHandler) Predict(c *gin.Context) {
	if _, ok := getUserIDFromContext(c); !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	prediction := h.chatService.PredictOutcome(c.Request.Context(), req.CaseFacts)
	response.OK(c, gin.H{
		"label":      prediction.Label,
		"confidence": prediction.Confidence,
	})
}
