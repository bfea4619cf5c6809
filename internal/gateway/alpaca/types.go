package alpaca

// Alpaca 的 REST 接口把绝大多数数字字段编码为字符串，
// 这里保留原始字符串，换算集中在 convert 包。

type accountPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Cash   string `json:"cash"`
	Equity string `json:"equity"`
}

type positionPayload struct {
	Symbol         string `json:"symbol"`
	AssetClass     string `json:"asset_class"` // "us_equity" | "us_option"
	Qty            string `json:"qty"`
	Side           string `json:"side"`
	CurrentPrice   string `json:"current_price"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	MarketValue    string `json:"market_value"`
	UnrealizedPLPC string `json:"unrealized_plpc"` // ratio, 0.5 = +50%
}

type orderPayload struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	LimitPrice    string `json:"limit_price,omitempty"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type orderResponse struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	LimitPrice    string `json:"limit_price"`
	Status        string `json:"status"`
	SubmittedAt   string `json:"submitted_at"`
}
