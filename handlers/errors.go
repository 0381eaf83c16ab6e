package handlers

import (
	"errors"
	"log"
	"net/http"

	"whoami/services"

	"github.com/gin-gonic/gin"
)

// respondError writes err as {"error": ...} with the status its kind maps to.
// Unexpected failures are logged and reported generically.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrEmptyPool):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrRoundInProgress), errors.Is(err, services.ErrRoundNotActive):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
