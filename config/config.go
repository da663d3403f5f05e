package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment   string
	LogLevel      string
	Server        ServerConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	S3            S3Config
	Dedup         DedupConfig
	Extraction    ExtractionConfig
	Geocoding     GeocodingConfig
	Corroboration CorroborationConfig
	Feeds         FeedsConfig
	Schedule      ScheduleConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr             string
	Password         string
	DB               int
	Prefix           string
	ArticleRetention time.Duration
}

// KafkaConfig holds Kafka configuration. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers           []string
	InputTopic        string
	GroupID           string
	IncidentsTopic    string
	CoordinationTopic string
}

// S3Config holds archive configuration. An empty Bucket disables archiving.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Profile      string
	Endpoint     string
	UsePathStyle bool
}

// DedupConfig holds fingerprinting and deduplication configuration
type DedupConfig struct {
	SimilarityThreshold float64
	Horizon             time.Duration
	ShingleWidth        int
	SignatureLength     int
	Bands               int
	Rows                int
	MinTokens           int
}

// ExtractionConfig holds incident extraction configuration
type ExtractionConfig struct {
	ScoreFactor       float64
	LocationBonus     float64
	NoLocationPenalty float64
	MinConfidence     float64
	PersistThreshold  float64
	MaxPerArticle     int
	MergeWindow       time.Duration
	TablesPath        string // empty uses the embedded tables
	GazetteerPath     string // empty uses the embedded gazetteer
	DefaultLat        float64
	DefaultLon        float64
	DefaultAddress    string
}

// GeocodingConfig holds geocoder configuration
type GeocodingConfig struct {
	Concurrency   int
	RatePerSecond float64
	Timeout       time.Duration
	CacheTTL      time.Duration
	NegativeTTL   time.Duration
	CacheSize     int
}

// CorroborationConfig holds corroboration and coordination configuration
type CorroborationConfig struct {
	RadiusKm           float64
	Window             time.Duration
	AnalysisWindow     time.Duration
	Alpha              float64
	VerifiedThreshold  float64
	VerifiedMinSources int
	MediaMaxDistance   int
	MediaWindow        time.Duration
	CoordinationWindow time.Duration
	TextSimilarity     float64
	SuspicionFloor     float64
}

// FeedsConfig lists the RSS sources polled on refresh
type FeedsConfig struct {
	Presets []string
	Count   int
	Enrich  bool
}

// ScheduleConfig holds the refresh schedule. An empty expression disables it.
type ScheduleConfig struct {
	RefreshCron string
}

// Load reads configuration from the environment, after loading .env if
// present.
func Load() (Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 2*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:             getEnv("REDIS_ADDR", ""),
			Password:         getEnv("REDIS_PASSWORD", ""),
			DB:               getEnvAsInt("REDIS_DB", 0),
			Prefix:           getEnv("REDIS_PREFIX", "incidentwatch:"),
			ArticleRetention: getEnvAsDuration("REDIS_ARTICLE_RETENTION", 72*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:           getEnvAsSlice("KAFKA_BROKERS", nil),
			InputTopic:        getEnv("KAFKA_INPUT_TOPIC", "articles"),
			GroupID:           getEnv("KAFKA_GROUP_ID", "incidentwatch"),
			IncidentsTopic:    getEnv("KAFKA_INCIDENTS_TOPIC", "incidents"),
			CoordinationTopic: getEnv("KAFKA_COORDINATION_TOPIC", "coordination"),
		},
		S3: S3Config{
			Bucket:       strings.TrimSpace(getEnv("S3_BUCKET", "")),
			Prefix:       strings.Trim(getEnv("S3_PREFIX", "reports"), "/"),
			Region:       getEnv("S3_REGION", ""),
			Profile:      getEnv("S3_PROFILE", ""),
			Endpoint:     getEnv("S3_ENDPOINT", ""),
			UsePathStyle: getEnvAsBool("S3_USE_PATH_STYLE", false),
		},
		Dedup: DedupConfig{
			SimilarityThreshold: getEnvAsFloat("DEDUP_SIMILARITY_THRESHOLD", 0.8),
			Horizon:             getEnvAsDuration("DEDUP_HORIZON", 24*time.Hour),
			ShingleWidth:        getEnvAsInt("DEDUP_SHINGLE_WIDTH", 3),
			SignatureLength:     getEnvAsInt("DEDUP_SIGNATURE_LENGTH", 128),
			Bands:               getEnvAsInt("DEDUP_LSH_BANDS", 16),
			Rows:                getEnvAsInt("DEDUP_LSH_ROWS", 8),
			MinTokens:           getEnvAsInt("DEDUP_MIN_TOKENS", 5),
		},
		Extraction: ExtractionConfig{
			ScoreFactor:       getEnvAsFloat("EXTRACTION_SCORE_FACTOR", 4),
			LocationBonus:     getEnvAsFloat("EXTRACTION_LOCATION_BONUS", 20),
			NoLocationPenalty: getEnvAsFloat("EXTRACTION_NO_LOCATION_PENALTY", 10),
			MinConfidence:     getEnvAsFloat("EXTRACTION_MIN_CONFIDENCE", 30),
			PersistThreshold:  getEnvAsFloat("EXTRACTION_PERSIST_THRESHOLD", 40),
			MaxPerArticle:     getEnvAsInt("EXTRACTION_MAX_PER_ARTICLE", 3),
			MergeWindow:       getEnvAsDuration("EXTRACTION_MERGE_WINDOW", time.Hour),
			TablesPath:        getEnv("EXTRACTION_TABLES_PATH", ""),
			GazetteerPath:     getEnv("EXTRACTION_GAZETTEER_PATH", ""),
			DefaultLat:        getEnvAsFloat("EXTRACTION_DEFAULT_LAT", 35.6892),
			DefaultLon:        getEnvAsFloat("EXTRACTION_DEFAULT_LON", 51.3890),
			DefaultAddress:    getEnv("EXTRACTION_DEFAULT_ADDRESS", "Tehran, Iran"),
		},
		Geocoding: GeocodingConfig{
			Concurrency:   getEnvAsInt("GEOCODING_CONCURRENCY", 4),
			RatePerSecond: getEnvAsFloat("GEOCODING_RATE", 5),
			Timeout:       getEnvAsDuration("GEOCODING_TIMEOUT", 5*time.Second),
			CacheTTL:      getEnvAsDuration("GEOCODING_CACHE_TTL", 7*24*time.Hour),
			NegativeTTL:   getEnvAsDuration("GEOCODING_NEGATIVE_TTL", 6*time.Hour),
			CacheSize:     getEnvAsInt("GEOCODING_CACHE_SIZE", 10000),
		},
		Corroboration: CorroborationConfig{
			RadiusKm:           getEnvAsFloat("CORROBORATION_RADIUS_KM", 2),
			Window:             getEnvAsDuration("CORROBORATION_WINDOW", 3*time.Hour),
			AnalysisWindow:     getEnvAsDuration("CORROBORATION_ANALYSIS_WINDOW", 24*time.Hour),
			Alpha:              getEnvAsFloat("CORROBORATION_ALPHA", 0.15),
			VerifiedThreshold:  getEnvAsFloat("CORROBORATION_VERIFIED_THRESHOLD", 80),
			VerifiedMinSources: getEnvAsInt("CORROBORATION_VERIFIED_MIN_SOURCES", 2),
			MediaMaxDistance:   getEnvAsInt("CORROBORATION_MEDIA_MAX_DISTANCE", 6),
			MediaWindow:        getEnvAsDuration("CORROBORATION_MEDIA_WINDOW", 30*time.Minute),
			CoordinationWindow: getEnvAsDuration("CORROBORATION_COORDINATION_WINDOW", time.Hour),
			TextSimilarity:     getEnvAsFloat("CORROBORATION_TEXT_SIMILARITY", 0.8),
			SuspicionFloor:     getEnvAsFloat("CORROBORATION_SUSPICION_FLOOR", 50),
		},
		Feeds: FeedsConfig{
			Presets: getEnvAsSlice("FEEDS", []string{"bbcpersian", "radiofarda"}),
			Count:   getEnvAsInt("FEEDS_COUNT", 30),
			Enrich:  getEnvAsBool("FEEDS_ENRICH", false),
		},
		Schedule: ScheduleConfig{
			RefreshCron: getEnv("REFRESH_SCHEDULE", "@every 15m"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	d := c.Dedup
	if d.Bands <= 0 || d.Rows <= 0 || d.Bands*d.Rows != d.SignatureLength {
		errs = append(errs, fmt.Errorf("dedup: bands (%d) * rows (%d) must equal signature length (%d)", d.Bands, d.Rows, d.SignatureLength))
	}
	if d.SimilarityThreshold <= 0 || d.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("dedup: similarity threshold %v out of range (0,1]", d.SimilarityThreshold))
	}
	if d.ShingleWidth <= 0 || d.MinTokens < d.ShingleWidth {
		errs = append(errs, fmt.Errorf("dedup: min tokens (%d) must be at least the shingle width (%d)", d.MinTokens, d.ShingleWidth))
	}
	e := c.Extraction
	if e.MinConfidence < 0 || e.MinConfidence > e.PersistThreshold || e.PersistThreshold > 100 {
		errs = append(errs, fmt.Errorf("extraction: need 0 <= min confidence (%v) <= persist threshold (%v) <= 100", e.MinConfidence, e.PersistThreshold))
	}
	if e.MaxPerArticle <= 0 {
		errs = append(errs, errors.New("extraction: max per article must be positive"))
	}
	if a := c.Corroboration.Alpha; a <= 0 || a >= 1 {
		errs = append(errs, fmt.Errorf("corroboration: alpha %v out of range (0,1)", a))
	}
	if c.Corroboration.VerifiedMinSources < 1 {
		errs = append(errs, fmt.Errorf("corroboration: verified min sources %d must be at least 1", c.Corroboration.VerifiedMinSources))
	}
	if c.Corroboration.MediaMaxDistance < 0 || c.Corroboration.MediaMaxDistance > 64 {
		errs = append(errs, fmt.Errorf("corroboration: media distance %d out of range [0,64]", c.Corroboration.MediaMaxDistance))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server: invalid port %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
