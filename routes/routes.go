package routes

import (
	"log"
	"net/http"

	"whoami/handlers"
	"whoami/services"
	"whoami/universes"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func SetupRoutes(
	router *gin.Engine,
	gameHandler *handlers.GameHandler,
	universeHandler *handlers.UniverseHandler,
	hub *services.Hub,
	registry *universes.Registry,
) {
	api := router.Group("/api")
	{
		games := api.Group("/game")
		{
			games.POST("/start", gameHandler.StartGame)
			games.POST("/answer", gameHandler.SubmitAnswer)
			games.POST("/forfeit", gameHandler.Forfeit)
			games.GET("/session/:sessionId", gameHandler.GetSession)
			games.GET("/leaderboard", gameHandler.GetLeaderboard)
			games.GET("/share/:sessionId", gameHandler.GetShareCard)
			games.GET("/share/:sessionId/qr.png", gameHandler.GetShareQRCode)
		}

		api.GET("/share/:token", gameHandler.VerifyShare)
		api.GET("/universes", universeHandler.ListUniverses)
	}

	// Live leaderboard feed, one stream per scope.
	router.GET("/ws/leaderboard/:scope", func(c *gin.Context) {
		u, ok := registry.Resolve(c.Param("scope"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown scope"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for scope %s: %v", u.ID, err)
			return
		}

		hub.Subscribe(conn, u.ID)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
