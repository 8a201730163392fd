package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr         string
	RequestTimeout   time.Duration
	LogLevel         string
	LogFormat        string
	UserAgent        string
	HTTPRateLimit    float64
	HTTPRateBurst    int
	YouTubeAPIKey    string
	YouTubeFallback  string
	YouTubeBaseURL   string
	YouTubeRPS       float64
	MaxVariants      int
	PerQueryResults  int
	CandidateCap     int
	DetailBatch      int
	Regions          []string
	DefaultLanguages []string
	Timezone         string
	TopTokens        int
	MaxConcurrent    int
	LexiconPath      string
	RedisURL         string
	SessionTTL       time.Duration
	SessionMax       int
	AssistantAPIKey  string
	AssistantBaseURL string
	AssistantModel   string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8095"),
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:        getEnv("USER_AGENT", "trendscout-research/1.0"),
		HTTPRateLimit:    getEnvFloat("HTTP_RATE_LIMIT_RPS", 20),
		HTTPRateBurst:    getEnvInt("HTTP_RATE_LIMIT_BURST", 40),
		YouTubeAPIKey:    strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY")),
		YouTubeFallback:  strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY_FALLBACK")),
		YouTubeBaseURL:   getEnv("YOUTUBE_BASE_URL", "https://www.googleapis.com/youtube/v3"),
		YouTubeRPS:       getEnvFloat("YOUTUBE_RPS", 5),
		MaxVariants:      getEnvInt("RESEARCH_MAX_VARIANTS", 10),
		PerQueryResults:  getEnvInt("RESEARCH_PER_QUERY_RESULTS", 15),
		CandidateCap:     getEnvInt("RESEARCH_CANDIDATE_CAP", 120),
		DetailBatch:      getEnvInt("RESEARCH_DETAIL_BATCH", 50),
		Regions:          getEnvCSV("RESEARCH_REGIONS", "US,ID,IN,GB,PH,JP,DE,BR", strings.ToUpper),
		DefaultLanguages: getEnvCSV("RESEARCH_DEFAULT_LANGUAGES", "en,id", strings.ToLower),
		Timezone:         getEnv("RESEARCH_TIMEZONE", "Asia/Jakarta"),
		TopTokens:        getEnvInt("RESEARCH_TOP_TOKENS", 12),
		MaxConcurrent:    getEnvInt("RESEARCH_MAX_CONCURRENT", 4),
		LexiconPath:      getEnv("LEXICON_PATH", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
		SessionMax:       getEnvInt("SESSION_MAX_ENTRIES", 1000),
		AssistantAPIKey:  strings.TrimSpace(os.Getenv("ASSISTANT_API_KEY")),
		AssistantBaseURL: getEnv("ASSISTANT_BASE_URL", ""),
		AssistantModel:   getEnv("ASSISTANT_MODEL", "gpt-4.1-mini"),
	}
}

// Location resolves the summary timezone. An unknown zone name falls back
// to UTC rather than failing startup.
func (c Config) Location() (*time.Location, error) {
	location, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return time.UTC, err
	}
	return location, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvCSV(key, fallback string, normalize func(string) string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if normalize != nil {
			value = normalize(value)
		}
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
