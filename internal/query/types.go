package query

// Read-model types returned by the HTTP API. Prices and notionals are in
// native units; display formatting belongs to the frontend.

// OrderView is one resting order with its derived economics.
type OrderView struct {
	OrderID        uint64 `json:"order_id"`
	ClientID       uint64 `json:"client_id"`
	Side           string `json:"side"`
	SizeLots       int64  `json:"size_lots"`
	PriceLots      int64  `json:"price_lots"`
	PriceNative    int64  `json:"price_native"`
	NotionalNative int64  `json:"notional_native"`
}

// AccountView is one open-orders account with its lifecycle status.
type AccountView struct {
	Key             string      `json:"key"`
	AccountNum      uint32      `json:"account_num"`
	Market          string      `json:"market"`
	Pass            bool        `json:"pass"`
	Status          string      `json:"status"`
	BidsBaseLots    int64       `json:"bids_base_lots"`
	AsksBaseLots    int64       `json:"asks_base_lots"`
	BaseFreeNative  int64       `json:"base_free_native"`
	QuoteFreeNative int64       `json:"quote_free_native"`
	Orders          []OrderView `json:"orders"`
}

// MarketTotals aggregates resting size and notional for one book.
type MarketTotals struct {
	SizeLots       int64 `json:"size_lots"`
	NotionalNative int64 `json:"notional_native"`
}

// Summary is the full classified view of an owner's accounts on a proposal.
type Summary struct {
	Owner     string        `json:"owner"`
	Proposal  string        `json:"proposal"`
	AsOfSlot  int64         `json:"as_of_slot"`
	Pass      MarketTotals  `json:"pass"`
	Fail      MarketTotals  `json:"fail"`
	Combined  MarketTotals  `json:"combined"`
	Accounts  []AccountView `json:"accounts"`
	Open      int           `json:"open"`
	Unsettled int           `json:"unsettled"`
	Uncranked int           `json:"uncranked"`
	Closable  int           `json:"closable"`
}

// ExecutionSummary is one audit-log entry.
type ExecutionSummary struct {
	ExecutionID  string `json:"execution_id"`
	PlanID       string `json:"plan_id"`
	Intent       string `json:"intent"`
	Proposal     string `json:"proposal"`
	State        string `json:"state"`
	Requests     int    `json:"requests"`
	Confirmed    int    `json:"confirmed"`
	Error        string `json:"error,omitempty"`
	StartedAtUs  int64  `json:"started_at_us"`
	FinishedAtUs int64  `json:"finished_at_us"`
}
