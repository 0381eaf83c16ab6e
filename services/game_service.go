package services

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"whoami/game"
	"whoami/models"
	"whoami/repository"
	"whoami/sessions"
	"whoami/universes"

	"github.com/google/uuid"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100

	// a session stuck in loading this long is treated as abandoned
	staleLoading = 10 * time.Second
	// client-reported time further than this from the server clock is logged
	timeSpentDrift = 2.0
)

// GameConfig tunes the orchestrator.
type GameConfig struct {
	Rules              game.Rules
	Leveling           game.Leveling
	Policy             game.ScoringPolicy
	Matcher            *game.Matcher
	ExclusionWindow    int
	CharInterval       time.Duration
	RevealAnswerOnMiss bool
	MaxPlayerNameLen   int
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		Rules:              game.DefaultRules,
		Leveling:           game.DefaultLeveling,
		Policy:             game.TimePolicy{},
		Matcher:            game.NewMatcher(game.DefaultTolerance),
		ExclusionWindow:    25,
		CharInterval:       game.DefaultCharInterval,
		RevealAnswerOnMiss: true,
		MaxPlayerNameLen:   32,
	}
}

// LeaderboardNotifier is told whenever a scope's standings change.
type LeaderboardNotifier interface {
	LeaderboardChanged(scope string)
}

// GameService owns the session lifecycle: it picks characters, judges
// guesses and hands finished rounds to the leaderboard.
type GameService struct {
	characters  repository.CharacterRepository
	sessions    sessions.Store
	leaderboard *LeaderboardService
	universes   *universes.Registry
	cfg         GameConfig
	retry       RetryPolicy
	notifier    LeaderboardNotifier
	now         func() time.Time
}

func NewGameService(
	characters repository.CharacterRepository,
	store sessions.Store,
	leaderboard *LeaderboardService,
	registry *universes.Registry,
	cfg GameConfig,
) *GameService {
	if cfg.Policy == nil {
		cfg.Policy = game.TimePolicy{}
	}
	if cfg.Matcher == nil {
		cfg.Matcher = game.NewMatcher(game.DefaultTolerance)
	}
	return &GameService{
		characters:  characters,
		sessions:    store,
		leaderboard: leaderboard,
		universes:   registry,
		cfg:         cfg,
		retry:       leaderboard.retry,
		now:         time.Now,
	}
}

// WithNotifier sets the receiver of leaderboard change events.
func (s *GameService) WithNotifier(n LeaderboardNotifier) *GameService {
	s.notifier = n
	return s
}

type StartGameRequest struct {
	PlayerName          string   `json:"playerName"`
	ExcludeCharacterIDs []string `json:"excludeCharacterIds"`
	Difficulty          *int     `json:"difficulty"`
	Scope               string   `json:"scope"`
	SessionID           string   `json:"sessionId"`
}

type StartGameResponse struct {
	SessionID     string                 `json:"sessionId"`
	Round         int                    `json:"round"`
	Scope         string                 `json:"scope"`
	Character     models.PublicCharacter `json:"character"`
	HintSchedule  []game.HintReveal      `json:"hintSchedule"`
	RoundDuration float64                `json:"roundDuration"`
	MaxStrikes    int                    `json:"maxStrikes"`
	Progression   game.Progression       `json:"progression"`
}

type SubmitGuessRequest struct {
	SessionID   string  `json:"sessionId"`
	CharacterID string  `json:"characterId"`
	Guess       string  `json:"guess"`
	TimeSpent   float64 `json:"timeSpent"`
	PlayerName  string  `json:"playerName"`
}

type GuessResult struct {
	Correct          bool             `json:"correct"`
	Answer           string           `json:"answer,omitempty"`
	Score            int              `json:"score"`
	ScoreBreakdown   game.Score       `json:"scoreBreakdown"`
	Streak           int              `json:"streak"`
	TotalScore       int              `json:"totalScore"`
	StrikesLeft      int              `json:"strikesLeft"`
	Status           game.RoundStatus `json:"status"`
	LossReason       game.LossReason  `json:"lossReason,omitempty"`
	RemainingSeconds float64          `json:"remainingSeconds"`
	LevelUp          bool             `json:"levelUp"`
	Progression      game.Progression `json:"progression"`
	GameOver         bool             `json:"gameOver"`
}

type ForfeitResult struct {
	Answer     string           `json:"answer"`
	Status     game.RoundStatus `json:"status"`
	LossReason game.LossReason  `json:"lossReason"`
	Streak     int              `json:"streak"`
	TotalScore int              `json:"totalScore"`
	GameOver   bool             `json:"gameOver"`
}

type RoundView struct {
	Number           int              `json:"number"`
	Status           game.RoundStatus `json:"status"`
	CharacterID      string           `json:"characterId,omitempty"`
	StrikesLeft      int              `json:"strikesLeft"`
	RemainingSeconds float64          `json:"remainingSeconds"`
	LossReason       game.LossReason  `json:"lossReason,omitempty"`
}

type SessionView struct {
	SessionID        string           `json:"sessionId"`
	PlayerName       string           `json:"playerName"`
	Scope            string           `json:"scope"`
	Round            RoundView        `json:"round"`
	Progression      game.Progression `json:"progression"`
	AchievementLabel string           `json:"achievementLabel,omitempty"`
	TotalScore       int              `json:"totalScore"`
	Streak           int              `json:"streak"`
	MaxStreak        int              `json:"maxStreak"`
	GamesPlayed      int              `json:"gamesPlayed"`
	GamesWon         int              `json:"gamesWon"`
	GameOver         bool             `json:"gameOver"`
}

type LeaderboardRow struct {
	Rank          int       `json:"rank"`
	PlayerName    string    `json:"playerName"`
	Score         int       `json:"score"`
	GamesPlayed   int       `json:"gamesPlayed"`
	GamesWon      int       `json:"gamesWon"`
	CurrentStreak int       `json:"currentStreak"`
	MaxStreak     int       `json:"maxStreak"`
	CreatedAt     time.Time `json:"createdAt"`
}

type LeaderboardResponse struct {
	Scope            string           `json:"scope"`
	Entries          []LeaderboardRow `json:"entries"`
	PlayerPercentile *int             `json:"playerPercentile,omitempty"`
	TotalPlayers     *int64           `json:"totalPlayers,omitempty"`
}

// StartGame begins the next round of a session, creating the session and its
// leaderboard entry when there is none to continue.
func (s *GameService) StartGame(ctx context.Context, req *StartGameRequest) (*StartGameResponse, error) {
	playerName, err := s.validatePlayerName(req.PlayerName)
	if err != nil {
		return nil, err
	}
	if req.Difficulty != nil && (*req.Difficulty < 1 || *req.Difficulty > s.cfg.Leveling.MaxDifficulty) {
		return nil, validationError("difficulty must be between 1 and %d", s.cfg.Leveling.MaxDifficulty)
	}
	universe, err := s.resolveScope(req.Scope)
	if err != nil {
		return nil, err
	}

	sess, err := s.continueSession(ctx, req, universe)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		if sess, err = s.newSession(ctx, playerName, universe.ID, req.Difficulty); err != nil {
			return nil, err
		}
	}

	sess, err = s.updateSession(ctx, sess.ID, func(ss *sessions.Session) error {
		now := s.now()
		if ss.GameOver {
			return ErrRoundNotActive
		}
		if ss.Round.Status == game.StatusLoading && now.Sub(ss.LastActivity) > staleLoading {
			ss.Round.Abort()
		}
		if ss.Round.Status == game.StatusPlaying || ss.Round.Status == game.StatusLoading {
			return ErrRoundInProgress
		}
		if err := ss.Round.Begin(); err != nil {
			return err
		}
		ss.LastActivity = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	difficulty := sess.Progression.Difficulty
	character, err := withRetry(ctx, s.retry, "pick character", func() (*models.Character, error) {
		return s.characters.FindRandom(ctx, repository.CharacterFilter{
			Collection: sess.Scope,
			ExcludeIDs: sess.Exclusions(req.ExcludeCharacterIDs),
			Difficulty: &difficulty,
		})
	})
	if err != nil {
		log.Printf("No character for session %s (scope %s, difficulty %d): %v", sess.ID, sess.Scope, difficulty, err)
		if _, abortErr := s.updateSession(ctx, sess.ID, func(ss *sessions.Session) error {
			ss.Round.Abort()
			return nil
		}); abortErr != nil {
			log.Printf("Failed to reset round of session %s: %v", sess.ID, abortErr)
		}
		return nil, translate(err, "character")
	}

	schedule := game.RevealSchedule(character.Hints, s.cfg.Rules.Duration, s.cfg.Rules.ReadingSlack, s.cfg.CharInterval)
	sess, err = s.updateSession(ctx, sess.ID, func(ss *sessions.Session) error {
		now := s.now()
		if err := ss.Round.Start(character.ID, schedule, now); err != nil {
			return ErrRoundInProgress
		}
		ss.RememberCharacter(character.ID, s.cfg.ExclusionWindow)
		ss.LastActivity = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Session %s round %d started: character %s (difficulty %d)", sess.ID, sess.Round.Number, character.ID, character.Difficulty)

	return &StartGameResponse{
		SessionID:     sess.ID,
		Round:         sess.Round.Number,
		Scope:         sess.Scope,
		Character:     character.Public(),
		HintSchedule:  schedule,
		RoundDuration: s.cfg.Rules.Duration.Seconds(),
		MaxStrikes:    s.cfg.Rules.MaxStrikes,
		Progression:   sess.Progression,
	}, nil
}

// continueSession loads the session named in req if it can host another
// round. It returns nil when a fresh session should be created instead.
func (s *GameService) continueSession(ctx context.Context, req *StartGameRequest, universe universes.Universe) (*sessions.Session, error) {
	if req.SessionID == "" {
		return nil, nil
	}
	if err := validateSessionID(req.SessionID); err != nil {
		return nil, err
	}

	sess, err := s.getSession(ctx, req.SessionID)
	if errors.Is(err, ErrNotFound) {
		log.Printf("Session %s not found, starting a new one", req.SessionID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if sess.Round.Status == game.StatusPlaying {
		if sess.Round.Clock(s.cfg.Rules, s.now()).Remaining > 0 {
			return nil, ErrRoundInProgress
		}
		if _, err := s.endRound(ctx, sess.ID, false); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := s.settle(ctx, sess); err != nil {
		return nil, err
	}
	if sess.GameOver {
		return nil, nil
	}
	if req.Scope != "" && sess.Scope != universe.ID {
		log.Printf("Session %s is in scope %s, starting a new one for %s", sess.ID, sess.Scope, universe.ID)
		return nil, nil
	}
	return sess, nil
}

func (s *GameService) newSession(ctx context.Context, playerName, scope string, difficulty *int) (*sessions.Session, error) {
	start := 1
	if difficulty != nil {
		start = *difficulty
	}

	now := s.now()
	sess := &sessions.Session{
		ID:           uuid.NewString(),
		PlayerName:   playerName,
		Scope:        scope,
		CreatedAt:    now,
		Round:        game.Round{Status: game.StatusIdle},
		Progression:  game.NewProgression(start, s.cfg.Leveling),
		LastActivity: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, translate(err, "game session")
	}
	if _, err := s.leaderboard.Create(ctx, sess.ID, playerName, scope); err != nil {
		return nil, err
	}

	log.Printf("Player %q started session %s in scope %s", playerName, sess.ID, scope)
	return sess, nil
}

type guessOutcome struct {
	correct  bool
	clock    game.RoundClock
	elapsed  time.Duration
	levelUp  bool
	terminal bool
}

// SubmitGuess judges a guess against the character in play. Elapsed time is
// measured by the server; req.TimeSpent is only compared for logging.
func (s *GameService) SubmitGuess(ctx context.Context, req *SubmitGuessRequest) (*GuessResult, error) {
	if err := validateSessionID(req.SessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.CharacterID) == "" {
		return nil, validationError("characterId is required")
	}
	if strings.TrimSpace(req.Guess) == "" {
		return nil, validationError("guess is required")
	}

	character, err := s.findCharacter(ctx, req.CharacterID)
	if err != nil {
		return nil, err
	}

	var out guessOutcome
	sess, err := s.updateSession(ctx, req.SessionID, func(ss *sessions.Session) error {
		out = guessOutcome{}
		if ss.GameOver || ss.Round.Status != game.StatusPlaying {
			return ErrRoundNotActive
		}
		if ss.Round.CharacterID != character.ID {
			return validationError("character %s is not in play", character.ID)
		}

		now := s.now()
		out.correct = s.cfg.Matcher.IsMatch(req.Guess, character.Name)
		clock, err := ss.Round.Guess(s.cfg.Rules, out.correct, now)
		if err != nil {
			return ErrRoundNotActive
		}
		out.clock = clock
		out.elapsed = now.Sub(ss.Round.StartedAt)

		switch ss.Round.Status {
		case game.StatusWon:
			out.levelUp = ss.Progression.Win(s.cfg.Leveling)
			out.terminal = true
		case game.StatusLost:
			ss.Progression.Loss()
			ss.GameOver = true
			out.terminal = true
		}
		ss.LastActivity = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.checkClientClock(sess, req, out.elapsed)

	result := &GuessResult{
		Correct:          sess.Round.Status == game.StatusWon,
		ScoreBreakdown:   game.Zero(),
		StrikesLeft:      sess.Round.StrikesLeft(s.cfg.Rules),
		Status:           sess.Round.Status,
		LossReason:       sess.Round.LossReason,
		RemainingSeconds: math.Max(0, out.clock.Remaining),
		LevelUp:          out.levelUp,
		Progression:      sess.Progression,
		GameOver:         sess.GameOver,
	}
	if out.terminal || s.cfg.RevealAnswerOnMiss {
		result.Answer = character.Name
	}

	if !out.terminal {
		entry, err := s.leaderboard.FindBySessionID(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		result.Streak = entry.CurrentStreak
		result.TotalScore = entry.Score
		return result, nil
	}

	entry, score, err := s.record(ctx, sess)
	if err != nil {
		return nil, err
	}
	result.Score = score.Total
	result.ScoreBreakdown = score
	result.Streak = entry.CurrentStreak
	result.TotalScore = entry.Score

	log.Printf("Session %s round %d %s (%s): +%d points, streak %d",
		sess.ID, sess.Round.Number, sess.Round.Status, s.cfg.Policy.Name(), score.Total, entry.CurrentStreak)
	return result, nil
}

// Forfeit ends the round in play as lost, which also ends the session.
func (s *GameService) Forfeit(ctx context.Context, sessionID string) (*ForfeitResult, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	return s.endRound(ctx, sessionID, true)
}

// endRound closes a playing round. With forfeit unset it only closes rounds
// whose clock has run out.
func (s *GameService) endRound(ctx context.Context, sessionID string, forfeit bool) (*ForfeitResult, error) {
	sess, err := s.updateSession(ctx, sessionID, func(ss *sessions.Session) error {
		now := s.now()
		if forfeit {
			if err := ss.Round.Forfeit(s.cfg.Rules, now); err != nil {
				return ErrRoundNotActive
			}
		} else if !ss.Round.Expire(s.cfg.Rules, now) {
			return ErrRoundNotActive
		}
		ss.Progression.Loss()
		ss.GameOver = true
		ss.LastActivity = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry, _, err := s.record(ctx, sess)
	if err != nil {
		return nil, err
	}

	result := &ForfeitResult{
		Status:     sess.Round.Status,
		LossReason: sess.Round.LossReason,
		Streak:     entry.CurrentStreak,
		TotalScore: entry.Score,
		GameOver:   sess.GameOver,
	}
	if character, err := s.findCharacter(ctx, sess.Round.CharacterID); err == nil {
		result.Answer = character.Name
	} else {
		log.Printf("Failed to load answer for session %s: %v", sess.ID, err)
	}

	log.Printf("Session %s round %d lost (%s)", sess.ID, sess.Round.Number, sess.Round.LossReason)
	return result, nil
}

// ExpireRounds closes every playing round whose clock has run out and records
// it as a loss, so abandoned rounds still break the player's streak. It
// returns how many rounds it closed.
func (s *GameService) ExpireRounds(ctx context.Context) (int, error) {
	now := s.now()
	var expired []string
	err := s.sessions.Scan(ctx, func(sess *sessions.Session) error {
		if sess.Round.Status == game.StatusPlaying && sess.Round.Clock(s.cfg.Rules, now).Remaining <= 0 {
			expired = append(expired, sess.ID)
		}
		return nil
	})
	if err != nil {
		return 0, translate(err, "game session")
	}

	n := 0
	for _, id := range expired {
		_, err := s.endRound(ctx, id, false)
		switch {
		case err == nil:
			n++
		case errors.Is(err, ErrRoundNotActive), errors.Is(err, ErrNotFound):
			// closed by a guess or forfeit in the meantime
		default:
			log.Printf("Failed to expire round of session %s: %v", id, err)
		}
	}
	return n, nil
}

// GetSession returns a snapshot of the session and its standings.
func (s *GameService) GetSession(ctx context.Context, sessionID string) (*SessionView, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	view := &SessionView{
		SessionID:   sess.ID,
		PlayerName:  sess.PlayerName,
		Scope:       sess.Scope,
		Progression: sess.Progression,
		GameOver:    sess.GameOver,
		Round: RoundView{
			Number:      sess.Round.Number,
			Status:      sess.Round.Status,
			CharacterID: sess.Round.CharacterID,
			StrikesLeft: sess.Round.StrikesLeft(s.cfg.Rules),
			LossReason:  sess.Round.LossReason,
		},
	}
	if sess.Round.Status == game.StatusPlaying {
		view.Round.RemainingSeconds = math.Max(0, sess.Round.Clock(s.cfg.Rules, s.now()).Remaining)
	}
	if u, ok := s.universes.Resolve(sess.Scope); ok {
		view.AchievementLabel = u.AchievementLabel(sess.Progression.HighestLevelCleared)
	}

	entry, err := s.leaderboard.FindBySessionID(ctx, sess.ID)
	switch {
	case err == nil:
		view.TotalScore = entry.Score
		view.Streak = entry.CurrentStreak
		view.MaxStreak = entry.MaxStreak
		view.GamesPlayed = entry.GamesPlayed
		view.GamesWon = entry.GamesWon
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return view, nil
}

// GetLeaderboard lists the top entries of a scope. When playerScore is given
// the response also places it among every recorded score of the scope.
func (s *GameService) GetLeaderboard(ctx context.Context, limit int, playerScore *int, scope string) (*LeaderboardResponse, error) {
	universe, err := s.resolveScope(scope)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = min(limit, MaxLeaderboardLimit)

	entries, err := s.leaderboard.TopN(ctx, limit, universe.ID)
	if err != nil {
		return nil, err
	}

	resp := &LeaderboardResponse{Scope: universe.ID, Entries: make([]LeaderboardRow, 0, len(entries))}
	for i, e := range entries {
		resp.Entries = append(resp.Entries, LeaderboardRow{
			Rank:          i + 1,
			PlayerName:    e.PlayerName,
			Score:         e.Score,
			GamesPlayed:   e.GamesPlayed,
			GamesWon:      e.GamesWon,
			CurrentStreak: e.CurrentStreak,
			MaxStreak:     e.MaxStreak,
			CreatedAt:     e.CreatedAt,
		})
	}

	if playerScore != nil {
		p, err := s.leaderboard.Percentile(ctx, *playerScore, universe.ID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			resp.PlayerPercentile = &p.Percentile
			resp.TotalPlayers = &p.TotalPlayers
		}
	}
	return resp, nil
}

// record hands the session's finished round to the leaderboard. It is safe to
// call more than once for the same round.
func (s *GameService) record(ctx context.Context, sess *sessions.Session) (*models.LeaderboardEntry, game.Score, error) {
	won := sess.Round.Status == game.StatusWon
	clock := sess.Round.Clock(s.cfg.Rules, sess.Round.EndedAt)

	score := game.Zero()
	entry, _, applied, err := s.leaderboard.RecordGame(ctx, sess.ID, sess.Round.Number, won, func(streak int) int {
		score = s.cfg.Policy.Score(clock, streak)
		return score.Total
	})
	if err != nil {
		log.Printf("Session %s round %d ended but the leaderboard update failed: %v", sess.ID, sess.Round.Number, err)
		return nil, game.Zero(), err
	}
	if !applied {
		score = game.Zero()
	}
	if applied && s.notifier != nil {
		s.notifier.LeaderboardChanged(sess.Scope)
	}
	return entry, score, nil
}

// settle records a finished round whose leaderboard update did not go
// through earlier.
func (s *GameService) settle(ctx context.Context, sess *sessions.Session) error {
	if !sess.Round.Status.Terminal() {
		return nil
	}
	_, _, err := s.record(ctx, sess)
	return err
}

func (s *GameService) getSession(ctx context.Context, id string) (*sessions.Session, error) {
	sess, err := withRetry(ctx, s.retry, "get session", func() (*sessions.Session, error) {
		return s.sessions.Get(ctx, id)
	})
	return sess, translate(err, "game session")
}

func (s *GameService) updateSession(ctx context.Context, id string, fn func(*sessions.Session) error) (*sessions.Session, error) {
	sess, err := withRetry(ctx, s.retry, "update session", func() (*sessions.Session, error) {
		return s.sessions.Update(ctx, id, fn)
	})
	return sess, translate(err, "game session")
}

func (s *GameService) findCharacter(ctx context.Context, id string) (*models.Character, error) {
	c, err := withRetry(ctx, s.retry, "find character", func() (*models.Character, error) {
		return s.characters.FindByID(ctx, id)
	})
	return c, translate(err, "character")
}

func (s *GameService) resolveScope(scope string) (universes.Universe, error) {
	u, ok := s.universes.Resolve(scope)
	if !ok {
		return universes.Universe{}, validationError("unknown scope %q", scope)
	}
	return u, nil
}

func (s *GameService) validatePlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationError("playerName is required")
	}
	if utf8.RuneCountInString(name) > s.cfg.MaxPlayerNameLen {
		return "", validationError("playerName must be at most %d characters", s.cfg.MaxPlayerNameLen)
	}
	return name, nil
}

func (s *GameService) checkClientClock(sess *sessions.Session, req *SubmitGuessRequest, elapsed time.Duration) {
	observed := elapsed.Seconds()
	if req.TimeSpent > 0 && math.Abs(req.TimeSpent-observed) > timeSpentDrift {
		log.Printf("Session %s: client reported %.1fs, server observed %.1fs", sess.ID, req.TimeSpent, observed)
	}
	if req.PlayerName != "" && !strings.EqualFold(strings.TrimSpace(req.PlayerName), sess.PlayerName) {
		log.Printf("Session %s: guess submitted as %q but session belongs to %q", sess.ID, req.PlayerName, sess.PlayerName)
	}
}

func validateSessionID(id string) error {
	if id == "" {
		return validationError("sessionId is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return validationError("malformed sessionId")
	}
	return nil
}
