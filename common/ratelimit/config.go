package ratelimit

// OperationTier classifies git endpoints by cost for rate limiting
type OperationTier string

const (
	// TierRead covers local-only reads: status, branch listing, commit history
	TierRead OperationTier = "read"
	// TierMutate covers local mutations: commit, branch create/delete, discard, merge
	TierMutate OperationTier = "mutate"
	// TierNetwork covers operations that talk to the remote: connect, push, pull, fetch, import
	TierNetwork OperationTier = "network"
)

// TierConfig defines rate limits for each operation tier
type TierConfig struct {
	Tier          OperationTier
	Limit         int64  // Requests allowed per window
	WindowSeconds int    // Time window in seconds
	Description   string // Human-readable description
}

// Default tier configurations
var DefaultTierConfigs = map[OperationTier]TierConfig{
	TierRead: {
		Tier:          TierRead,
		Limit:         300,
		WindowSeconds: 60,
		Description:   "Local reads (status, branches, history) - 300 requests/minute",
	},
	TierMutate: {
		Tier:          TierMutate,
		Limit:         60,
		WindowSeconds: 60,
		Description:   "Local mutations (commit, branch ops, merge) - 60 requests/minute",
	},
	TierNetwork: {
		Tier:          TierNetwork,
		Limit:         20,
		WindowSeconds: 60,
		Description:   "Remote operations (push, pull, fetch, connect) - 20 requests/minute",
	},
}

// GlobalConfig contains global service-wide limits
type GlobalConfig struct {
	Limit         int64 // Total requests per window (all users)
	WindowSeconds int   // Time window
}

// Default global configuration
var DefaultGlobalConfig = GlobalConfig{
	Limit:         1000,
	WindowSeconds: 60,
}

// GetLimitForTier returns the rate limit for a given tier
func GetLimitForTier(tier OperationTier) int64 {
	if config, exists := DefaultTierConfigs[tier]; exists {
		return config.Limit
	}
	// Fallback to most restrictive tier
	return DefaultTierConfigs[TierNetwork].Limit
}

// GetWindowForTier returns the time window for a given tier
func GetWindowForTier(tier OperationTier) int {
	if config, exists := DefaultTierConfigs[tier]; exists {
		return config.WindowSeconds
	}
	return DefaultTierConfigs[TierNetwork].WindowSeconds
}

// GetAllTiers returns all configured tiers for documentation/API responses
func GetAllTiers() []TierConfig {
	return []TierConfig{
		DefaultTierConfigs[TierRead],
		DefaultTierConfigs[TierMutate],
		DefaultTierConfigs[TierNetwork],
	}
}
