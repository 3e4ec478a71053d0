package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "RepCore"
	// SendRateLimitKey controls the default outbound sends per second.
	SendRateLimitKey = "SEND_RATE_LIMIT"
	// SendRateLimitRedisEnabledKey toggles Redis-backed send rate limiting.
	SendRateLimitRedisEnabledKey = "SEND_RATE_LIMIT_REDIS_ENABLED"
	// SendRateLimitRedisAddrKey defines the Redis address for rate limiting.
	SendRateLimitRedisAddrKey = "SEND_RATE_LIMIT_REDIS_ADDR"
	// SendRateLimitRedisPasswordKey defines the Redis password for rate limiting.
	SendRateLimitRedisPasswordKey = "SEND_RATE_LIMIT_REDIS_PASSWORD"
	// SendRateLimitRedisDBKey defines the Redis DB index for rate limiting.
	SendRateLimitRedisDBKey = "SEND_RATE_LIMIT_REDIS_DB"
	// SendRateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	SendRateLimitRedisPrefixKey = "SEND_RATE_LIMIT_REDIS_PREFIX"
	// SilentOAuthTimeoutSecondsKey bounds the silent OAuth attempt in seconds.
	SilentOAuthTimeoutSecondsKey = "SILENT_OAUTH_TIMEOUT_SECONDS"
	// DefaultSendRateLimit is the fallback sends per second (0 means unlimited).
	DefaultSendRateLimit = 0
	// DefaultSendRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultSendRateLimitRedisPrefix = "repcore:rl"
	// DefaultSilentOAuthTimeoutSeconds is the fallback silent OAuth wait.
	DefaultSilentOAuthTimeoutSeconds = 5
)
