package handlers

import (
	"net/http"

	"whoami/services"

	"github.com/gin-gonic/gin"
)

type UniverseHandler struct {
	characterService *services.CharacterService
}

func NewUniverseHandler(characterService *services.CharacterService) *UniverseHandler {
	return &UniverseHandler{characterService: characterService}
}

// ListUniverses returns every playable universe with its pool size.
func (h *UniverseHandler) ListUniverses(c *gin.Context) {
	stats, err := h.characterService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"universes": stats})
}
