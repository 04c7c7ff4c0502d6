package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	ServerAddr   string
	DownloadRoot string
	LogLevel     string

	// External tool paths
	YtdlpPath  string
	FFmpegPath string

	// Reaper settings
	ReaperInterval time.Duration
	RetentionAge   time.Duration

	// Metadata cache
	RedisAddr    string
	InfoCacheTTL time.Duration
}

func Load() *Config {
	root := getEnvOrDefault("DOWNLOAD_ROOT", defaultDownloadRoot())

	return &Config{
		ServerAddr:     getEnvOrDefault("SERVER_ADDR", ":8080"),
		DownloadRoot:   root,
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		YtdlpPath:      getEnvOrDefault("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:     getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		ReaperInterval: getDurationOrDefault("REAPER_INTERVAL", 30*time.Minute),
		RetentionAge:   getDurationOrDefault("RETENTION_AGE", 2*time.Hour),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		InfoCacheTTL:   getDurationOrDefault("INFO_CACHE_TTL", 15*time.Minute),
	}
}

// CommonHeaders are forwarded to the fetch tool on every request.
// Some extractors refuse requests without a browser-like user agent.
func CommonHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Referer":         "https://www.google.com/",
	}
}

func defaultDownloadRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(wd, "downloads")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
