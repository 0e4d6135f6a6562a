package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// AlertKind discriminates the alert families analyzers emit.
type AlertKind string

const (
	AlertVolumeSpike AlertKind = "volume_spike"
	AlertSpread      AlertKind = "spread_alert"
	AlertMMPullback  AlertKind = "mm_pullback"
	AlertArbitrage   AlertKind = "arbitrage"
)

// Severity of an alert, decided at creation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is a typed signal emitted by an analyzer. Exactly one of MarketID
// and RelatedMarketIDs is populated: single-market kinds set MarketID,
// cross-market kinds set the ordered RelatedMarketIDs list.
type Alert struct {
	ID               int64      `json:"id"`
	Kind             AlertKind  `json:"kind"`
	Severity         Severity   `json:"severity"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	MarketID         string     `json:"market_id,omitempty"`
	RelatedMarketIDs []string   `json:"related_market_ids,omitempty"`
	DedupKey         string     `json:"dedup_key"`
	Data             AlertData  `json:"data"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	DismissedAt      *time.Time `json:"dismissed_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// AlertData is the tagged union carried in the alert's data column. Each
// analyzer produces one variant; readers discriminate on Tag.
type AlertData interface {
	Tag() string
}

// VolumeSpikeData reports a volume anomaly. SpikeType is "volume_spike" for
// the standard hourly condition or "flash_spike" for the 15-minute one.
type VolumeSpikeData struct {
	TokenID       string  `json:"token_id"`
	Outcome       string  `json:"outcome,omitempty"`
	SpikeType     string  `json:"spike_type"`
	Ratio         float64 `json:"ratio"`
	RecentVolume  float64 `json:"recent_volume"`
	HourlyAverage float64 `json:"hourly_average"`
	BaselineCount int     `json:"baseline_trade_count"`
}

func (d *VolumeSpikeData) Tag() string { return "volume_spike" }

// SpreadAlertData reports a wide spread on the newest snapshot.
type SpreadAlertData struct {
	TokenID   string  `json:"token_id"`
	Outcome   string  `json:"outcome,omitempty"`
	SpreadPct float64 `json:"spread_pct"`
	BestBid   float64 `json:"best_bid"`
	BestAsk   float64 `json:"best_ask"`
}

func (d *SpreadAlertData) Tag() string { return "spread_alert" }

// MMPullbackData reports a liquidity withdrawal: the worst depth drop across
// the 1% and 5% levels over the comparison window.
type MMPullbackData struct {
	TokenID     string  `json:"token_id"`
	DepthLevel  string  `json:"depth_level"` // "1%" or "5%"
	DropPct     float64 `json:"drop_pct"`
	OldDepth    float64 `json:"old_depth"`
	NewDepth    float64 `json:"new_depth"`
	WindowHours float64 `json:"window_hours"`
}

func (d *MMPullbackData) Tag() string { return "mm_pullback" }

// ArbLeg is one priced leg of an arbitrage strategy. Source records where
// the price came from ("orderbook" or "cached"); AssumedYesOutcome is set
// when no outcome named Yes existed and the first outcome was used.
type ArbLeg struct {
	MarketID          string  `json:"market_id"`
	TokenID           string  `json:"token_id,omitempty"`
	Outcome           string  `json:"outcome,omitempty"`
	Side              string  `json:"side"` // "buy" or "sell"
	Price             float64 `json:"price"`
	Liquidity         float64 `json:"liquidity"`
	Source            string  `json:"source"`
	AssumedYesOutcome bool    `json:"assumed_yes_outcome,omitempty"`
}

// IntraMarketArbData reports mispricing within one binary market: both
// outcomes purchasable for less than a dollar.
type IntraMarketArbData struct {
	Legs      []ArbLeg `json:"legs"`
	TotalCost float64  `json:"total_cost"`
	Profit    float64  `json:"profit"`
	Source    string   `json:"source"` // "orderbook" or "cached"
}

func (d *IntraMarketArbData) Tag() string { return "intra_market" }

// Cross-market strategy relationship types. The read API serves
// opportunities by filtering on these tags.
const (
	ArbMutuallyExclusive = "mutually_exclusive"
	ArbConditional       = "conditional"
	ArbTimeSequence      = "time_sequence"
	ArbSubset            = "subset"
)

// CrossMarketArbData reports mispricing across related markets. Type is one
// of the relationship kinds above; Strategy names the trade plan.
type CrossMarketArbData struct {
	Type         string   `json:"type"`
	Strategy     string   `json:"strategy"`
	GroupID      string   `json:"group_id,omitempty"`
	Legs         []ArbLeg `json:"legs"`
	Total        float64  `json:"total"`
	Profit       float64  `json:"profit"`
	MinLiquidity float64  `json:"min_liquidity"`
}

func (d *CrossMarketArbData) Tag() string { return d.Type }

// CrossMarketTags lists the data tags the opportunities endpoint scans for.
func CrossMarketTags() []string {
	return []string{ArbMutuallyExclusive, ArbConditional, ArbTimeSequence, ArbSubset}
}

type alertDataEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalAlertData serializes a variant into the single data column.
func MarshalAlertData(d AlertData) ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	inner, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal alert data: %w", err)
	}
	return json.Marshal(alertDataEnvelope{Type: d.Tag(), Data: inner})
}

// UnmarshalAlertData decodes a data column back into its variant.
func UnmarshalAlertData(raw []byte) (AlertData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env alertDataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal alert envelope: %w", err)
	}

	var d AlertData
	switch env.Type {
	case "volume_spike":
		d = &VolumeSpikeData{}
	case "spread_alert":
		d = &SpreadAlertData{}
	case "mm_pullback":
		d = &MMPullbackData{}
	case "intra_market":
		d = &IntraMarketArbData{}
	case ArbMutuallyExclusive, ArbConditional, ArbTimeSequence, ArbSubset:
		d = &CrossMarketArbData{}
	default:
		return nil, fmt.Errorf("unknown alert data type %q", env.Type)
	}
	if err := json.Unmarshal(env.Data, d); err != nil {
		return nil, fmt.Errorf("unmarshal alert data %q: %w", env.Type, err)
	}
	return d, nil
}

// SingleMarketDedupKey is the dedup key for per-token analyzers.
func SingleMarketDedupKey(marketID, tokenID string) string {
	return marketID + ":" + tokenID
}

// SortedMarketsDedupKey is the intra-market arbitrage dedup key: the sorted
// related market ids joined.
func SortedMarketsDedupKey(marketIDs []string) string {
	sorted := append([]string(nil), marketIDs...)
	sort.Strings(sorted)
	return strings.Join(sorted, ":")
}

// Cross-market dedup key builders. A legacy "exclusive-<group>" key without
// a side suffix suppresses both split variants for that group.
func ExclusiveSellDedupKey(groupID string) string { return "exclusive-sell-" + groupID }
func ExclusiveBuyDedupKey(groupID string) string  { return "exclusive-buy-" + groupID }
func LegacyExclusiveDedupKey(groupID string) string {
	return "exclusive-" + groupID
}
func ConditionalDedupKey(parentID, childID string) string {
	return "conditional-" + parentID + "-" + childID
}
func TimeSequenceDedupKey(earlierID, laterID string) string {
	return "time-" + earlierID + "-" + laterID
}
func SubsetDedupKey(generalID, specificID string) string {
	return "subset-" + generalID + "-" + specificID
}
