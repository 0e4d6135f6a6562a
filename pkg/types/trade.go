package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Trade is a single execution reported by the trades API.
type Trade struct {
	ID        string    `json:"id"`
	TokenID   string    `json:"token_id"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Side      string    `json:"side"` // "buy", "sell", or "" when upstream omits it
	Timestamp time.Time `json:"timestamp"`
	Maker     string    `json:"maker,omitempty"`
	Taker     string    `json:"taker,omitempty"`
}

// UnmarshalJSON tolerates the trades API's field aliases (asset, asset_id,
// token_id), string-encoded numbers, and second/millisecond/ISO timestamps.
// Side is lowercased on ingest.
func (t *Trade) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		Asset     string          `json:"asset"`
		AssetID   string          `json:"asset_id"`
		TokenID   string          `json:"token_id"`
		Price     flexFloat       `json:"price"`
		Size      flexFloat       `json:"size"`
		Side      string          `json:"side"`
		Timestamp json.RawMessage `json:"timestamp"`
		Maker     string          `json:"maker"`
		Taker     string          `json:"taker"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.ID = raw.ID
	t.TokenID = firstNonEmpty(raw.Asset, raw.AssetID, raw.TokenID)
	t.Price = float64(raw.Price)
	t.Size = float64(raw.Size)
	t.Side = strings.ToLower(raw.Side)
	t.Maker = raw.Maker
	t.Taker = raw.Taker
	if ts := parseFlexTime(raw.Timestamp); ts != nil {
		t.Timestamp = *ts
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Valid is the ingest predicate: price in (0,1], size positive, timestamp
// present and at most one hour in the future, side empty or buy/sell.
func (t *Trade) Valid(now time.Time) bool {
	if t.Price <= 0 || t.Price > 1 {
		return false
	}
	if t.Size <= 0 {
		return false
	}
	if t.Timestamp.IsZero() || t.Timestamp.After(now.Add(time.Hour)) {
		return false
	}
	switch t.Side {
	case "", "buy", "sell":
		return true
	}
	return false
}

// FallbackTradeID derives a deterministic id for trades the upstream
// delivers without one: a SHA-256 prefix over the identifying fields.
func FallbackTradeID(tokenID string, price, size float64, side string, ts time.Time) string {
	msg := fmt.Sprintf("%s|%s|%s|%s|%d",
		tokenID,
		strconv.FormatFloat(price, 'f', -1, 64),
		strconv.FormatFloat(size, 'f', -1, 64),
		side,
		ts.UTC().Unix(),
	)
	sum := sha256.Sum256([]byte(msg))
	return hex.EncodeToString(sum[:])[:16]
}

// EnsureID fills in the fallback id when the upstream omitted one.
func (t *Trade) EnsureID() {
	if t.ID == "" {
		t.ID = FallbackTradeID(t.TokenID, t.Price, t.Size, t.Side, t.Timestamp)
	}
}
