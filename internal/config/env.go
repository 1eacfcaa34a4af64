package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// EnvPrefix 預設的環境變數前綴
const EnvPrefix = "PERFCACHE"

// FromEnv 讀取 .env（若存在）與 <prefix>_* 環境變數。未設定的變數保留目前的值。
//
//	PERFCACHE_ENGINE, PERFCACHE_MAX_SIZE, PERFCACHE_DEFAULT_TTL,
//	PERFCACHE_CLEANUP_INTERVAL, PERFCACHE_HISTORY_LIMIT,
//	PERFCACHE_ENABLE_PREFETCH, PERFCACHE_PREFETCH_THRESHOLD,
//	PERFCACHE_AUTO_CLEAR_THRESHOLD_PERCENT, PERFCACHE_WARMUP_KEYS,
//	PERFCACHE_SERIALIZATION, PERFCACHE_ENABLE_COMPRESSION
func FromEnv(prefix string, files ...string) Option {
	return func(c *Config) error {
		if prefix == "" {
			prefix = EnvPrefix
		}
		if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		} else if err != nil {
			c.Logger.Debug("no .env file loaded", zap.Error(err))
		}

		key := func(name string) string { return prefix + "_" + name }

		c.Engine = getEnv(key("ENGINE"), c.Engine)
		c.MaxSize = getIntEnv(key("MAX_SIZE"), c.MaxSize)
		c.DefaultExpiration = getDurationEnv(key("DEFAULT_TTL"), c.DefaultExpiration)
		c.CleanupInterval = getDurationEnv(key("CLEANUP_INTERVAL"), c.CleanupInterval)
		c.MonitorConfig.HistoryLimit = getIntEnv(key("HISTORY_LIMIT"), c.MonitorConfig.HistoryLimit)

		b := &c.CacheBehaviorConfig
		b.EnablePrefetch = getBoolEnv(key("ENABLE_PREFETCH"), b.EnablePrefetch)
		b.PrefetchThreshold = uint64(getIntEnv(key("PREFETCH_THRESHOLD"), int(b.PrefetchThreshold)))
		b.AutoClearThresholdPercent = getFloatEnv(key("AUTO_CLEAR_THRESHOLD_PERCENT"), b.AutoClearThresholdPercent)
		if keys := getEnv(key("WARMUP_KEYS"), ""); keys != "" {
			b.WarmupKeys = splitList(keys)
		}

		c.Settings.EnableCompression = getBoolEnv(key("ENABLE_COMPRESSION"), c.Settings.EnableCompression)

		if s := getEnv(key("SERIALIZATION"), ""); s != "" {
			return WithSerialization(s)(c)
		}
		return nil
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
