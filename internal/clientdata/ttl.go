package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Short-lived data (changes continuously during market hours)
	TTLCurrentPrice = 10 * time.Minute // Current price cache for batch operations

	// Daily series only move once per trading day
	TTLDailyCloses = time.Hour // Daily close history used for RSI alerts

	// Static-ish company info from the Yahoo full payload
	TTLYahooInfo = 24 * time.Hour // Company name, sector, industry
)
