package controller

import (
	"math"

	"forged/internal/profile"
)

// attnStateFactor is the per-token attention-state element count:
// 2 (K and V) x layers x hidden dim for the appliance model family.
// Multiplied by the dtype width it gives bytes per cached token.
const attnStateFactor = 2 * 32 * 4096

// BytesPerToken returns the KV-cache cost of one context token for a dtype.
// Shrinking the dtype is the main lever for expanding concurrency on the
// memory-constrained SKUs.
func BytesPerToken(d profile.KVCacheDtype) int64 {
	switch d {
	case profile.DtypeFP32:
		return 4 * attnStateFactor
	case profile.DtypeFP16:
		return 2 * attnStateFactor
	case profile.DtypeFP8:
		return 1 * attnStateFactor
	default:
		// Unknown dtypes are caught by profile validation; price them as
		// fp32 so a bad value can only over-reserve, never over-admit.
		return 4 * attnStateFactor
	}
}

// EstimateKVBytes prices a request. Tokens are rounded up to the paged
// attention block size before pricing, matching how the runtime actually
// allocates. The multiplication saturates at MaxInt64: an estimate that
// large can never fit any budget, and wrapping negative would sail past the
// too-large check and corrupt the reservation ledger.
func EstimateKVBytes(contextTokens int, d profile.KVCacheDtype, tokensPerBlock int) int64 {
	if contextTokens <= 0 {
		return 0
	}
	if tokensPerBlock <= 0 {
		tokensPerBlock = 1
	}
	per := BytesPerToken(d)
	maxTokens := math.MaxInt64 / per
	if int64(contextTokens) >= maxTokens {
		return math.MaxInt64
	}
	blocks := (int64(contextTokens) + int64(tokensPerBlock) - 1) / int64(tokensPerBlock)
	tokens := blocks * int64(tokensPerBlock)
	if tokens > maxTokens {
		return math.MaxInt64
	}
	return tokens * per
}

// Headroom is usable budget minus current reservations. Pure function of
// the profile and the registry's reserved total; no side effects.
func Headroom(p profile.Profile, reg *Registry) int64 {
	return p.UsableBytes() - reg.ReservedTotal()
}
