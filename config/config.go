package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/phraser/location-server/internal/models"
)

// Config carries every tunable the service reads from the environment.
// Defaults match the deployed prototype configuration.
type Config struct {
	Port string

	// Place detection
	DetectionRadiusMeters int
	PlaceCategories       []string
	CustomLocations       []models.CustomLocation

	// Kakao place search
	KakaoAPIKey  string
	KakaoBaseURL string

	// Generation provider: "azure" (default) or "vertex"
	LLMProvider string

	AzureOpenAIEndpoint string
	AzureOpenAIKey      string

	VertexProjectID string
	VertexLocation  string
	VertexModel     string

	// Orchestration timing
	GenerationCooldown time.Duration
	GenerationDebounce time.Duration
	PhraseResendWindow time.Duration
	UpstreamTimeout    time.Duration
	ReaperInterval     time.Duration

	// Whether mode=append skips the shared generation cooldown.
	AppendBypassesCooldown bool

	// Optional redis-backed session store; in-memory when unset.
	RedisAddr string
}

// defaultCustomLocations mirrors the campus entries the prototype shipped
// with; overridden wholesale by CUSTOM_LOCATIONS_JSON.
var defaultCustomLocations = []models.CustomLocation{
	{
		Name:        "포항공과대학교 생활관 16동",
		Category:    "학교 > 기숙사",
		Address:     "경상북도 포항시 남구 청암로 77, 지곡동 포항공과대학교 기숙사16동",
		Coordinates: models.Coordinates{Latitude: 36.017140, Longitude: 129.322108},
	},
	{
		Name:        "포항공과대학교 생활관 13동",
		Category:    "학교 > 기숙사",
		Address:     "경상북도 포항시 남구 청암로 77, 지곡동 포항공과대학교 기숙사13동",
		Coordinates: models.Coordinates{Latitude: 36.016900, Longitude: 129.322720},
	},
	{
		Name:        "포항공과대학교 제2공학관",
		Category:    "학교 > 공학관",
		Address:     "경상북도 포항시 남구 청암로 77",
		Coordinates: models.Coordinates{Latitude: 36.012430, Longitude: 129.321970},
	},
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		DetectionRadiusMeters: getEnvInt("PLACE_DETECTION_RADIUS", 40),
		PlaceCategories:       []string{"MT1", "CS2", "FD6", "CE7", "HP8", "PM9"},
		CustomLocations:       defaultCustomLocations,

		KakaoAPIKey:  os.Getenv("KAKAO_API_KEY"),
		KakaoBaseURL: getEnv("KAKAO_BASE_URL", "https://dapi.kakao.com"),

		LLMProvider: getEnv("LLM_PROVIDER", "azure"),

		AzureOpenAIEndpoint: os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIKey:      os.Getenv("AZURE_OPENAI_KEY"),

		VertexProjectID: os.Getenv("VERTEX_PROJECT_ID"),
		VertexLocation:  getEnv("VERTEX_LOCATION", "us-central1"),
		VertexModel:     getEnv("VERTEX_MODEL", "gemini-1.5-flash"),

		GenerationCooldown: getEnvDuration("GENERATION_COOLDOWN", 5*time.Second),
		GenerationDebounce: getEnvDuration("GENERATION_DEBOUNCE", 2*time.Second),
		PhraseResendWindow: getEnvDuration("PHRASE_RESEND_WINDOW", 10*time.Second),
		UpstreamTimeout:    getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		ReaperInterval:     getEnvDuration("REAPER_INTERVAL", 4*time.Second),

		AppendBypassesCooldown: getEnvBool("APPEND_BYPASSES_COOLDOWN", false),

		RedisAddr: os.Getenv("REDIS_ADDR"),
	}

	if raw := os.Getenv("CUSTOM_LOCATIONS_JSON"); raw != "" {
		var locs []models.CustomLocation
		if err := json.Unmarshal([]byte(raw), &locs); err != nil {
			return nil, fmt.Errorf("parse CUSTOM_LOCATIONS_JSON: %w", err)
		}
		cfg.CustomLocations = locs
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DetectionRadiusMeters <= 0 {
		return errors.New("PLACE_DETECTION_RADIUS must be positive")
	}
	switch c.LLMProvider {
	case "azure":
		if c.AzureOpenAIEndpoint == "" || c.AzureOpenAIKey == "" {
			return errors.New("AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_KEY are required for LLM_PROVIDER=azure")
		}
	case "vertex":
		if c.VertexProjectID == "" {
			return errors.New("VERTEX_PROJECT_ID is required for LLM_PROVIDER=vertex")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.KakaoAPIKey == "" {
		return errors.New("KAKAO_API_KEY environment variable is not set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
