package types

// PriceLevelView is one row of a depth snapshot: a price and the
// aggregate resting size/order count at that price.
type PriceLevelView struct {
	Price         string `json:"price"`
	PriceScaled   int32  `json:"price_scaled"`
	TotalQuantity string `json:"total_quantity"`
	OrderCount    int    `json:"order_count"`
}

// TokenDepth is the bid/ask ladder (top N) for one token within a
// market, plus the latest trade price for that token.
type TokenDepth struct {
	Bids             []PriceLevelView `json:"bids"`
	Asks             []PriceLevelView `json:"asks"`
	LatestTradePrice string           `json:"latest_trade_price"`
}

// DepthSnapshot is the per-market depth message the match engine
// appends to depth_stream after every match.
type DepthSnapshot struct {
	EventID   int64                 `json:"event_id"`
	MarketID  int16                 `json:"market_id"`
	Depths    map[string]TokenDepth `json:"depths"` // token_id -> depth
	Timestamp int64                 `json:"timestamp"`
	UpdateID  uint64                `json:"update_id"`
}

// CacheTokenPriceInfo is the per-token slice of the price cache hash.
type CacheTokenPriceInfo struct {
	BestBid          string `json:"best_bid"`
	BestAsk          string `json:"best_ask"`
	LatestTradePrice string `json:"latest_trade_price"`
}

// CacheMarketPriceInfo is written to the "price" cache hash, field
// "event_id::market_id".
type CacheMarketPriceInfo struct {
	UpdateID  uint64                         `json:"update_id"`
	Timestamp int64                          `json:"timestamp"`
	Prices    map[string]CacheTokenPriceInfo `json:"prices"` // token_id -> info
}

// CacheEventVolume is written to the "volume" cache hash, field event_id.
type CacheEventVolume struct {
	EventID       int64               `json:"event_id"`
	TotalVolume   string              `json:"total_volume"`
	MarketVolumes []CacheMarketVolume `json:"market_volumes"`
}

type CacheMarketVolume struct {
	MarketID int16  `json:"market_id"`
	Volume   string `json:"volume"`
}

// UserEventKind tags the case carried by a UserEvent.
type UserEventKind string

const (
	UserOrderSubmittedKind UserEventKind = "OrderSubmitted"
	UserOrderTradedKind    UserEventKind = "OrderTraded"
	UserOrderCancelledKind UserEventKind = "OrderCancelled"
	UserOrderRejectedKind  UserEventKind = "OrderRejected"
)

// UserEvent is a per-user derived event appended to user_event_stream.
// TrackingKey groups events for per-connection update_id dedup (see
// internal/userfeed).
type UserEvent struct {
	Kind        UserEventKind `json:"kind"`
	PrivyID     string        `json:"privy_id"`
	EventID     int64         `json:"event_id"`
	TrackingKey string        `json:"tracking_key"`
	UpdateID    uint64        `json:"update_id"`

	Submitted *OrderSubmitted `json:"submitted,omitempty"`
	Traded    *OrderTraded    `json:"traded,omitempty"`
	Cancelled *OrderCancelled `json:"cancelled,omitempty"`
	Rejected  *OrderRejected  `json:"rejected,omitempty"`
}
