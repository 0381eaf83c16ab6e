package handlers

import (
	"net/http"
	"strconv"

	"whoami/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	gameService  *services.GameService
	shareService *services.ShareService
}

func NewGameHandler(gameService *services.GameService, shareService *services.ShareService) *GameHandler {
	return &GameHandler{
		gameService:  gameService,
		shareService: shareService,
	}
}

func (h *GameHandler) StartGame(c *gin.Context) {
	var req services.StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.StartGame(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, game)
}

func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	var req services.SubmitGuessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.gameService.SubmitGuess(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type forfeitRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

func (h *GameHandler) Forfeit(c *gin.Context) {
	var req forfeitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.gameService.Forfeit(c.Request.Context(), req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) GetSession(c *gin.Context) {
	view, err := h.gameService.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *GameHandler) GetLeaderboard(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	var playerScore *int
	if raw := c.Query("playerScore"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "playerScore must be an integer"})
			return
		}
		playerScore = &n
	}

	board, err := h.gameService.GetLeaderboard(c.Request.Context(), limit, playerScore, c.Query("scope"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, board)
}

func (h *GameHandler) GetShareCard(c *gin.Context) {
	card, err := h.shareService.Card(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (h *GameHandler) GetShareQRCode(c *gin.Context) {
	png, err := h.shareService.QRCode(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *GameHandler) VerifyShare(c *gin.Context) {
	data, err := h.shareService.Verify(c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"text": h.shareService.Text(*data),
	})
}
