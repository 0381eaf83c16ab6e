package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"whoami/config"
	"whoami/data"
	"whoami/game"
	"whoami/handlers"
	"whoami/middleware"
	"whoami/models"
	"whoami/repository"
	"whoami/routes"
	"whoami/services"
	"whoami/sessions"
	"whoami/universes"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const sweepInterval = time.Minute

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
}

func newSeedCmd(cfg *config.Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load characters into the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.CharacterStore == config.StoreMemory {
				return errors.New("seeding the memory store has no lasting effect, use --store postgres")
			}
			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()

			return seed(cmd.Context(), st.characterService, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "characters JSON file (defaults to the bundled catalogue)")

	return cmd
}

// stores holds the persistence layer chosen by the configuration.
type stores struct {
	characters       repository.CharacterRepository
	leaderboard      repository.LeaderboardRepository
	sessions         sessions.Store
	memorySessions   *sessions.MemoryStore
	registry         *universes.Registry
	characterService *services.CharacterService
	close            func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{registry: universes.NewRegistry(cfg.DefaultScope), close: func() {}}
	retry := services.RetryPolicy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryDelay}

	var closers []func()
	st.close = func() {
		for _, c := range closers {
			c()
		}
	}

	switch cfg.CharacterStore {
	case config.StorePostgres:
		db, err := config.InitDB(cfg)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { sqlDB.Close() })
		}
		if err := db.AutoMigrate(&models.Character{}, &models.LeaderboardEntry{}); err != nil {
			st.close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		st.characters = repository.NewGormCharacterRepository(db)
		st.leaderboard = repository.NewGormLeaderboardRepository(db)
	default:
		st.characters = repository.NewMemoryCharacterRepository()
		st.leaderboard = repository.NewMemoryLeaderboardRepository()
	}

	switch cfg.SessionStore {
	case config.StoreRedis:
		client := config.InitRedis(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			st.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		st.sessions = sessions.NewRedisStore(client, cfg.SessionTTL)
	default:
		st.memorySessions = sessions.NewMemoryStore(cfg.SessionTTL)
		st.sessions = st.memorySessions
	}

	st.characterService = services.NewCharacterService(st.characters, st.registry, retry)
	return st, nil
}

func seed(ctx context.Context, characters *services.CharacterService, file string) error {
	var (
		reqs []services.CreateCharacterRequest
		err  error
	)
	if file == "" {
		reqs, err = data.Characters()
	} else {
		reqs, err = data.LoadFile(file)
	}
	if err != nil {
		return err
	}

	_, err = characters.Import(ctx, reqs)
	return err
}

func serve(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	if cfg.SeedOnStart {
		if err := seed(ctx, st.characterService, ""); err != nil {
			return fmt.Errorf("failed to seed characters: %w", err)
		}
	}

	policy, err := game.PolicyByName(cfg.ScoringPolicy)
	if err != nil {
		return err
	}
	retry := services.RetryPolicy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryDelay}

	leaderboardService := services.NewLeaderboardService(st.leaderboard, retry)
	gameService := services.NewGameService(st.characters, st.sessions, leaderboardService, st.registry, services.GameConfig{
		Rules:              cfg.Rules(),
		Leveling:           cfg.Leveling(),
		Policy:             policy,
		Matcher:            game.NewMatcher(cfg.Tolerance()),
		ExclusionWindow:    cfg.ExclusionWindow,
		CharInterval:       game.DefaultCharInterval,
		RevealAnswerOnMiss: cfg.RevealAnswerOnMiss,
		MaxPlayerNameLen:   services.DefaultGameConfig().MaxPlayerNameLen,
	})
	shareService := services.NewShareService(gameService, st.registry, cfg.ShareSecret, cfg.BaseURL)

	hub := services.NewHub(gameService)
	gameService.WithNotifier(hub)
	go hub.Run(ctx)

	go sweepSessions(ctx, gameService, st.memorySessions)

	router := gin.Default()
	router.Use(middleware.CORS(cfg.CORSOrigins...))
	routes.SetupRoutes(
		router,
		handlers.NewGameHandler(gameService, shareService),
		handlers.NewUniverseHandler(st.characterService),
		hub,
		st.registry,
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (store=%s, sessions=%s, scoring=%s)",
			srv.Addr, cfg.CharacterStore, cfg.SessionStore, policy.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweepSessions closes rounds whose clock ran out while nobody was watching,
// then drops idle sessions from the memory store when one is in use.
func sweepSessions(ctx context.Context, games *services.GameService, memory *sessions.MemoryStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := games.ExpireRounds(ctx)
			if err != nil {
				log.Printf("Failed to expire abandoned rounds: %v", err)
			} else if n > 0 {
				log.Printf("Closed %d abandoned rounds", n)
			}
			if memory == nil {
				continue
			}
			if n := memory.Sweep(); n > 0 {
				log.Printf("Expired %d idle sessions", n)
			}
		}
	}
}
