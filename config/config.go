package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"whoami/game"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const EnvPrefix = "WHOAMI"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Port        int
	BindAddress string
	BaseURL     string
	CORSOrigins []string

	CharacterStore string
	SessionStore   string
	SessionTTL     time.Duration
	SeedOnStart    bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	ShareSecret  string
	DefaultScope string

	ScoringPolicy      string
	RoundDuration      time.Duration
	WrongGuessPenalty  time.Duration
	MaxStrikes         int
	ReadingSlack       time.Duration
	ExclusionWindow    int
	MaxDifficulty      int
	CorrectToLevelUp   int
	RevealAnswerOnMiss bool

	LongNameThreshold int
	LongDistance      int
	ShortDistance     int

	RetryAttempts int
	RetryDelay    time.Duration
}

// RegisterFlags declares every setting on fs with its default. Each flag can
// also be set through WHOAMI_<FLAG_NAME> or a config file, see Resolve.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: WHOAMI_PORT)")
	fs.StringVarP(&cfg.BindAddress, "bind", "b", "0.0.0.0", "address to bind to (env: WHOAMI_BIND)")
	fs.StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "public URL used in share links (env: WHOAMI_BASE_URL)")
	fs.StringSliceVar(&cfg.CORSOrigins, "cors-origins", []string{"*"}, "allowed browser origins (env: WHOAMI_CORS_ORIGINS)")

	fs.StringVar(&cfg.CharacterStore, "store", StoreMemory, "character and leaderboard store: memory or postgres (env: WHOAMI_STORE)")
	fs.StringVar(&cfg.SessionStore, "session-store", StoreMemory, "session store: memory or redis (env: WHOAMI_SESSION_STORE)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", 2*time.Hour, "time before idle sessions expire (env: WHOAMI_SESSION_TTL)")
	fs.BoolVar(&cfg.SeedOnStart, "seed", true, "load the bundled characters on startup (env: WHOAMI_SEED)")

	fs.StringVar(&cfg.DBHost, "db-host", "localhost", "postgres host (env: WHOAMI_DB_HOST)")
	fs.StringVar(&cfg.DBPort, "db-port", "5432", "postgres port (env: WHOAMI_DB_PORT)")
	fs.StringVar(&cfg.DBUser, "db-user", "whoami", "postgres user (env: WHOAMI_DB_USER)")
	fs.StringVar(&cfg.DBPassword, "db-password", "whoami", "postgres password (env: WHOAMI_DB_PASSWORD)")
	fs.StringVar(&cfg.DBName, "db-name", "whoami", "postgres database (env: WHOAMI_DB_NAME)")
	fs.StringVar(&cfg.DBSSLMode, "db-sslmode", "disable", "postgres sslmode (env: WHOAMI_DB_SSLMODE)")

	fs.StringVar(&cfg.RedisHost, "redis-host", "localhost", "redis host (env: WHOAMI_REDIS_HOST)")
	fs.StringVar(&cfg.RedisPort, "redis-port", "6379", "redis port (env: WHOAMI_REDIS_PORT)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "redis password (env: WHOAMI_REDIS_PASSWORD)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database number (env: WHOAMI_REDIS_DB)")

	fs.StringVar(&cfg.ShareSecret, "share-secret", "change-me-in-production", "HMAC key for share tokens (env: WHOAMI_SHARE_SECRET)")
	fs.StringVar(&cfg.DefaultScope, "default-scope", "nba", "universe used when a request names none (env: WHOAMI_DEFAULT_SCOPE)")

	fs.StringVar(&cfg.ScoringPolicy, "scoring-policy", "time", "scoring policy: time or hints (env: WHOAMI_SCORING_POLICY)")
	fs.DurationVar(&cfg.RoundDuration, "round-duration", game.DefaultRules.Duration, "length of a round (env: WHOAMI_ROUND_DURATION)")
	fs.DurationVar(&cfg.WrongGuessPenalty, "wrong-guess-penalty", game.DefaultRules.Penalty, "time lost per wrong guess (env: WHOAMI_WRONG_GUESS_PENALTY)")
	fs.IntVar(&cfg.MaxStrikes, "max-strikes", game.DefaultRules.MaxStrikes, "wrong guesses that lose a round (env: WHOAMI_MAX_STRIKES)")
	fs.DurationVar(&cfg.ReadingSlack, "reading-slack", game.DefaultRules.ReadingSlack, "time left after the last hint is shown (env: WHOAMI_READING_SLACK)")
	fs.IntVar(&cfg.ExclusionWindow, "exclusion-window", 25, "recently used characters kept out of selection (env: WHOAMI_EXCLUSION_WINDOW)")
	fs.IntVar(&cfg.MaxDifficulty, "max-difficulty", game.DefaultMaxDifficulty, "highest difficulty tier (env: WHOAMI_MAX_DIFFICULTY)")
	fs.IntVar(&cfg.CorrectToLevelUp, "correct-to-level-up", game.DefaultCorrectToLevelUp, "wins needed to clear a tier (env: WHOAMI_CORRECT_TO_LEVEL_UP)")
	fs.BoolVar(&cfg.RevealAnswerOnMiss, "reveal-answer-on-miss", true, "include the answer in every guess result, not only the one that ends the round (env: WHOAMI_REVEAL_ANSWER_ON_MISS)")

	fs.IntVar(&cfg.LongNameThreshold, "match-long-name", game.DefaultTolerance.LongNameThreshold, "name length above which the long edit distance applies (env: WHOAMI_MATCH_LONG_NAME)")
	fs.IntVar(&cfg.LongDistance, "match-long-distance", game.DefaultTolerance.LongDistance, "typos tolerated in long names (env: WHOAMI_MATCH_LONG_DISTANCE)")
	fs.IntVar(&cfg.ShortDistance, "match-short-distance", game.DefaultTolerance.ShortDistance, "typos tolerated in short names (env: WHOAMI_MATCH_SHORT_DISTANCE)")

	fs.IntVar(&cfg.RetryAttempts, "retry-attempts", 3, "attempts for failed store calls (env: WHOAMI_RETRY_ATTEMPTS)")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", 50*time.Millisecond, "initial delay between store retries (env: WHOAMI_RETRY_DELAY)")
}

// Resolve fills every flag not given on the command line from the
// environment, then from configFile if one is named.
func Resolve(fs *pflag.FlagSet, configFile string) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		_ = v.BindEnv(f.Name)
		if !v.IsSet(f.Name) {
			return
		}

		value := fmt.Sprintf("%v", v.Get(f.Name))
		if f.Value.Type() == "stringSlice" {
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		}
		if setErr := fs.Set(f.Name, value); setErr != nil {
			err = fmt.Errorf("invalid value for %s: %w", f.Name, setErr)
		}
	})
	return err
}

// LoadDotEnv loads the first .env file found among paths. Variables already
// set in the environment win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded .env from: %s", path)
			return
		}
	}
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.CharacterStore != StoreMemory && c.CharacterStore != StorePostgres {
		return fmt.Errorf("invalid store %q (must be memory or postgres)", c.CharacterStore)
	}
	if c.SessionStore != StoreMemory && c.SessionStore != StoreRedis {
		return fmt.Errorf("invalid session store %q (must be memory or redis)", c.SessionStore)
	}
	if _, err := game.PolicyByName(c.ScoringPolicy); err != nil {
		return err
	}
	if c.RoundDuration <= 0 {
		return errors.New("round duration must be positive")
	}
	if c.ReadingSlack < 0 || c.ReadingSlack >= c.RoundDuration {
		return errors.New("reading slack must be shorter than the round")
	}
	if c.MaxStrikes < 1 {
		return errors.New("max strikes must be at least 1")
	}
	if c.MaxDifficulty < 1 || c.CorrectToLevelUp < 1 {
		return errors.New("max difficulty and correct-to-level-up must be at least 1")
	}
	if c.ExclusionWindow < 1 {
		return errors.New("exclusion window must be at least 1")
	}
	if c.LongDistance < 0 || c.ShortDistance < 0 {
		return errors.New("match distances must not be negative")
	}
	if c.SessionTTL <= c.RoundDuration {
		return errors.New("session ttl must be longer than a round")
	}
	if c.ShareSecret == "" {
		return errors.New("share secret must not be empty")
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

func (c *Config) Rules() game.Rules {
	return game.Rules{
		Duration:     c.RoundDuration,
		Penalty:      c.WrongGuessPenalty,
		MaxStrikes:   c.MaxStrikes,
		ReadingSlack: c.ReadingSlack,
	}
}

func (c *Config) Leveling() game.Leveling {
	return game.Leveling{MaxDifficulty: c.MaxDifficulty, CorrectToLevelUp: c.CorrectToLevelUp}
}

func (c *Config) Tolerance() game.Tolerance {
	t := game.DefaultTolerance
	t.LongNameThreshold = c.LongNameThreshold
	t.LongDistance = c.LongDistance
	t.ShortDistance = c.ShortDistance
	return t
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
