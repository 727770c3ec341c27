package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides overrides cfg fields with environment variables that are
// set. It runs after the config file and before explicit flags.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
			}
		}
	}
	setInt := func(dst *int, key string) {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
			*dst = n
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if s := strings.TrimSpace(os.Getenv(key)); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				*dst = d
			}
		}
	}
	setBool := func(dst *bool, key string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}

	setString(&cfg.CacheDir, "CACHE_DIR")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	if n, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("CACHE_MAX_BYTES")), 10, 64); err == nil {
		cfg.CacheMaxBytes = n
	}
	setInt(&cfg.CacheMaxEntries, "CACHE_MAX_ENTRIES")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.StorePath, "STORE_PATH")

	setString(&cfg.UserAgent, "USER_AGENT")
	setDuration(&cfg.FetchTimeout, "FETCH_TIMEOUT")
	setInt(&cfg.FetchAttempts, "FETCH_ATTEMPTS")
	setInt(&cfg.FetchMaxConcurrent, "FETCH_MAX_CONCURRENT")
	setBool(&cfg.RenderBrowser, "RENDER_BROWSER")

	setInt(&cfg.PDFPageCap, "PDF_PAGE_CAP")
	setBool(&cfg.OCR, "OCR")
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY", "OPENAI_API_KEY")

	setInt(&cfg.CalorieTarget, "CALORIE_TARGET")
	setBool(&cfg.PrioritizeProtein, "PRIORITIZE_PROTEIN")
	setString(&cfg.Flags, "DIET_FLAGS")

	if f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("RADIUS_MILES")), 64); err == nil {
		cfg.RadiusMiles = f
	}
	setInt(&cfg.DiscoveryLimit, "DISCOVERY_LIMIT")
	setInt(&cfg.NearbyConcurrency, "NEARBY_CONCURRENCY")
	setString(&cfg.NominatimURL, "NOMINATIM_URL")
	setString(&cfg.OverpassURL, "OVERPASS_URL")
	setString(&cfg.FoodFactsURL, "OPENFOODFACTS_URL")

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.ListenAddr = ":" + port
	}
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setBool(&cfg.Verbose, "VERBOSE")
}
