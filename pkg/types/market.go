package types

import (
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// MinTokenIDLength filters out placeholder token ids some upstream records carry.
const MinTokenIDLength = 10

// Outcome is one side of a market: a name, the token id that joins into
// order books and trades, and the upstream's cached price for it.
type Outcome struct {
	Name    string  `json:"name"`
	TokenID string  `json:"token_id"`
	Price   float64 `json:"price"`
}

// Market represents a market from the metadata API, normalized for storage.
type Market struct {
	ID              string     `json:"id"`
	Question        string     `json:"question"`
	Category        string     `json:"category"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Active          bool       `json:"active"`
	Closed          bool       `json:"closed"`
	AcceptingOrders bool       `json:"accepting_orders"`
	EnableOrderBook bool       `json:"enable_order_book"`
	Volume          float64    `json:"volume"`
	Liquidity       float64    `json:"liquidity"`
	Outcomes        []Outcome  `json:"outcomes"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// rawMarket tolerates the metadata API's loose encoding: numbers and booleans
// may arrive as strings, outcomes either as a structured "tokens" array or as
// parallel arrays that are themselves JSON-encoded strings.
type rawMarket struct {
	ID              json.RawMessage `json:"id"`
	Question        string          `json:"question"`
	Category        string          `json:"category"`
	Active          flexBool        `json:"active"`
	Closed          flexBool        `json:"closed"`
	AcceptingOrders flexBool        `json:"acceptingOrders"`
	EnableOrderBook flexBool        `json:"enableOrderBook"`
	Volume          flexFloat       `json:"volume"`
	Liquidity       flexFloat       `json:"liquidity"`
	EndDate         json.RawMessage `json:"end_date"`
	EndDateAlt      json.RawMessage `json:"endDate"`
	ResolutionDate  json.RawMessage `json:"resolutionDate"`
	Tokens          []rawToken      `json:"tokens"`
	ClobTokenIDs    json.RawMessage `json:"clobTokenIds"`
	Outcomes        json.RawMessage `json:"outcomes"`
	OutcomePrices   json.RawMessage `json:"outcomePrices"`
}

type rawToken struct {
	TokenID string    `json:"token_id"`
	Outcome string    `json:"outcome"`
	Price   flexFloat `json:"price"`
}

// UnmarshalJSON normalizes an upstream market record. Outcome derivation
// prefers the explicit tokens array, falling back to the parallel
// clobTokenIds/outcomes arrays. Token ids shorter than MinTokenIDLength are
// dropped.
func (m *Market) UnmarshalJSON(data []byte) error {
	var raw rawMarket
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.ID = rawString(raw.ID)
	m.Question = raw.Question
	m.Category = raw.Category
	m.Active = bool(raw.Active)
	m.Closed = bool(raw.Closed)
	m.AcceptingOrders = bool(raw.AcceptingOrders)
	m.EnableOrderBook = bool(raw.EnableOrderBook)
	m.Volume = float64(raw.Volume)
	m.Liquidity = float64(raw.Liquidity)

	for _, candidate := range []json.RawMessage{raw.EndDate, raw.EndDateAlt, raw.ResolutionDate} {
		if ts := parseFlexTime(candidate); ts != nil {
			m.EndDate = ts
			break
		}
	}

	if len(raw.Tokens) > 0 {
		m.Outcomes = outcomesFromTokens(raw.Tokens)
	} else {
		m.Outcomes = outcomesFromParallel(raw.ClobTokenIDs, raw.Outcomes, raw.OutcomePrices)
	}

	return nil
}

func outcomesFromTokens(tokens []rawToken) []Outcome {
	outcomes := make([]Outcome, 0, len(tokens))
	for _, t := range tokens {
		if len(t.TokenID) < MinTokenIDLength {
			continue
		}
		outcomes = append(outcomes, Outcome{
			Name:    t.Outcome,
			TokenID: t.TokenID,
			Price:   float64(t.Price),
		})
	}
	return outcomes
}

func outcomesFromParallel(tokenIDs, names, prices json.RawMessage) []Outcome {
	ids := decodeStringArray(tokenIDs)
	labels := decodeStringArray(names)
	priceStrs := decodeStringArray(prices)
	if len(ids) == 0 {
		return nil
	}

	outcomes := make([]Outcome, 0, len(ids))
	for i, id := range ids {
		if len(id) < MinTokenIDLength {
			continue
		}
		o := Outcome{TokenID: id}
		if i < len(labels) {
			o.Name = labels[i]
		}
		if i < len(priceStrs) {
			if p, err := strconv.ParseFloat(priceStrs[i], 64); err == nil {
				o.Price = p
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// decodeStringArray accepts either a JSON array of strings or a string
// containing a JSON-encoded array, which is how the metadata API often
// delivers clobTokenIds and outcomes.
func decodeStringArray(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var direct []string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	var nested []string
	if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
		return nil
	}
	return nested
}

// IsBinary reports whether the market has exactly two outcomes with valid
// token ids.
func (m *Market) IsBinary() bool {
	return len(m.Outcomes) == 2
}

// HasValidTokens reports whether at least one outcome survived token-id
// filtering.
func (m *Market) HasValidTokens() bool {
	return len(m.Outcomes) > 0
}

// Tradeable computes the stored order-book-enabled flag: valid tokens,
// upstream enable flag, upstream accepting-orders flag, and not closed.
func (m *Market) Tradeable() bool {
	return m.HasValidTokens() && m.EnableOrderBook && m.AcceptingOrders && !m.Closed
}

// YesOutcome returns the outcome literally named "Yes" (case-insensitive),
// falling back to the first outcome. assumed is true on fallback.
func (m *Market) YesOutcome() (outcome *Outcome, assumed bool) {
	for i := range m.Outcomes {
		if strings.EqualFold(m.Outcomes[i].Name, "Yes") {
			return &m.Outcomes[i], false
		}
	}
	if len(m.Outcomes) > 0 {
		return &m.Outcomes[0], true
	}
	return nil, false
}

// OutcomeByToken returns the outcome holding the given token id.
func (m *Market) OutcomeByToken(tokenID string) *Outcome {
	for i := range m.Outcomes {
		if m.Outcomes[i].TokenID == tokenID {
			return &m.Outcomes[i]
		}
	}
	return nil
}

// flexBool accepts JSON booleans and their string forms.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

// flexFloat accepts JSON numbers and string-encoded numbers.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

// parseFlexTime accepts ISO-8601 strings, Unix seconds, and Unix
// milliseconds. Numeric values above 1e12 are milliseconds.
func parseFlexTime(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return timeFromEpoch(num)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	if s == "" {
		return nil
	}
	if num, err := strconv.ParseFloat(s, 64); err == nil {
		return timeFromEpoch(num)
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}

func timeFromEpoch(v float64) *time.Time {
	if v <= 0 {
		return nil
	}
	var ts time.Time
	if v > 1e12 {
		ts = time.UnixMilli(int64(v)).UTC()
	} else {
		ts = time.Unix(int64(v), 0).UTC()
	}
	return &ts
}
