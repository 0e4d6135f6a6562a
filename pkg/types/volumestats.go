package types

import "time"

// PeriodType is the aggregation window for volume stats.
type PeriodType string

const (
	PeriodHour PeriodType = "hour"
	PeriodDay  PeriodType = "day"
	PeriodWeek PeriodType = "week"
)

// VolumeStats is a pre-aggregated trade window per (token, period_type,
// period_start); that triple is unique.
type VolumeStats struct {
	ID           int64      `json:"id"`
	TokenID      string     `json:"token_id"`
	PeriodStart  time.Time  `json:"period_start"`
	PeriodType   PeriodType `json:"period_type"`
	TotalVolume  float64    `json:"total_volume"`
	TradeCount   int        `json:"trade_count"`
	AvgTradeSize float64    `json:"avg_trade_size"`
	OpenPrice    float64    `json:"open_price"`
	HighPrice    float64    `json:"high_price"`
	LowPrice     float64    `json:"low_price"`
	ClosePrice   float64    `json:"close_price"`
	BuyVolume    float64    `json:"buy_volume"`
	SellVolume   float64    `json:"sell_volume"`
}
