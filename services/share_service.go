package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whoami/universes"

	"github.com/golang-jwt/jwt/v5"
	"github.com/skip2/go-qrcode"
)

const (
	shareTokenTTL = 30 * 24 * time.Hour
	shareIssuer   = "whoami"
	qrSize        = 256
)

// ShareData is the summary a player can publish after a session.
type ShareData struct {
	SessionID           string `json:"sessionId"`
	PlayerName          string `json:"playerName"`
	Scope               string `json:"scope"`
	TotalScore          int    `json:"totalScore"`
	MaxStreak           int    `json:"maxStreak"`
	Rounds              int    `json:"rounds"`
	Difficulty          int    `json:"difficulty"`
	HighestLevelCleared int    `json:"highestLevelCleared"`
	AllLevelsCleared    bool   `json:"allLevelsCleared"`
	AchievementLabel    string `json:"achievementLabel,omitempty"`
}

type ShareCard struct {
	Data  ShareData `json:"data"`
	Text  string    `json:"text"`
	Token string    `json:"token"`
	URL   string    `json:"url"`
}

type shareClaims struct {
	ShareData
	jwt.RegisteredClaims
}

// ShareService builds signed, verifiable share cards for sessions.
type ShareService struct {
	games     *GameService
	universes *universes.Registry
	secret    []byte
	baseURL   string
	now       func() time.Time
}

func NewShareService(games *GameService, registry *universes.Registry, secret, baseURL string) *ShareService {
	return &ShareService{
		games:     games,
		universes: registry,
		secret:    []byte(secret),
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
	}
}

// Card builds the share card of a session.
func (s *ShareService) Card(ctx context.Context, sessionID string) (*ShareCard, error) {
	view, err := s.games.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	data := ShareData{
		SessionID:           view.SessionID,
		PlayerName:          view.PlayerName,
		Scope:               view.Scope,
		TotalScore:          view.TotalScore,
		MaxStreak:           view.MaxStreak,
		Rounds:              view.Round.Number,
		Difficulty:          view.Progression.Difficulty,
		HighestLevelCleared: view.Progression.HighestLevelCleared,
		AllLevelsCleared:    view.Progression.AllLevelsCleared,
		AchievementLabel:    view.AchievementLabel,
	}

	token, err := s.Sign(data)
	if err != nil {
		return nil, err
	}
	return &ShareCard{
		Data:  data,
		Text:  s.Text(data),
		Token: token,
		URL:   s.URL(token),
	}, nil
}

// Text renders the share message. Players who cleared every level get the
// bragging variant.
func (s *ShareService) Text(d ShareData) string {
	u, ok := s.universes.Resolve(d.Scope)
	if !ok {
		u = s.universes.Default()
	}
	levels := len(u.AchievementLabels)

	var b strings.Builder
	if d.AllLevelsCleared {
		fmt.Fprintf(&b, "🏆 %s conquered %s 🏆\n\n", d.PlayerName, u.Title)
		fmt.Fprintf(&b, "💯 All %d levels cleared\n", levels)
		fmt.Fprintf(&b, "🔥 Best streak: %d\n", d.MaxStreak)
		fmt.Fprintf(&b, "⭐ Score: %d points\n", d.TotalScore)
		fmt.Fprintf(&b, "🎯 %d rounds\n\n", d.Rounds)
		b.WriteString("Can you beat me?")
		return b.String()
	}

	fmt.Fprintf(&b, "%s\n\n", u.Title)
	fmt.Fprintf(&b, "👤 %s\n", d.PlayerName)
	fmt.Fprintf(&b, "📊 Score: %d\n", d.TotalScore)
	fmt.Fprintf(&b, "🔥 Streak: %d\n", d.MaxStreak)
	fmt.Fprintf(&b, "🎯 Round %d\n", d.Rounds)
	fmt.Fprintf(&b, "⭐ Level %d/%d", d.HighestLevelCleared, levels)
	if d.AchievementLabel != "" {
		fmt.Fprintf(&b, " (%s)", d.AchievementLabel)
	}
	b.WriteString("\n\nPlay now!")
	return b.String()
}

func (s *ShareService) URL(token string) string {
	return s.baseURL + "/api/share/" + token
}

// Sign issues an HS256 token carrying d.
func (s *ShareService) Sign(d ShareData) (string, error) {
	now := s.now()
	claims := shareClaims{
		ShareData: d,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    shareIssuer,
			Subject:   d.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(shareTokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign share token: %v", err)
	}
	return token, nil
}

// Verify checks a share token and returns the data it carries.
func (s *ShareService) Verify(token string) (*ShareData, error) {
	claims := &shareClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(shareIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, validationError("share link expired")
		}
		return nil, validationError("invalid share token")
	}
	return &claims.ShareData, nil
}

// QRCode renders the share URL of a session as a PNG.
func (s *ShareService) QRCode(ctx context.Context, sessionID string) ([]byte, error) {
	card, err := s.Card(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(card.URL, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %v", err)
	}
	return png, nil
}
