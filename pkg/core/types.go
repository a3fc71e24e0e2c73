package core

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// Direction is the side of an order, trade or position.
type Direction string

// Direction constants. DirectionZero only appears on flat positions.
const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
	DirectionZero Direction = "zero"
)

// OrderType defines how an order is executed.
type OrderType string

// Order type constants accepted by the buy and sell endpoints.
const (
	OrderTypeLimit        OrderType = "limit"
	OrderTypeMarket       OrderType = "market"
	OrderTypeStopLimit    OrderType = "stop_limit"
	OrderTypeStopMarket   OrderType = "stop_market"
	OrderTypeTakeLimit    OrderType = "take_limit"
	OrderTypeTakeMarket   OrderType = "take_market"
	OrderTypeMarketLimit  OrderType = "market_limit"
	OrderTypeTrailingStop OrderType = "trailing_stop"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeLimit, OrderTypeMarket, OrderTypeStopLimit, OrderTypeStopMarket,
		OrderTypeTakeLimit, OrderTypeTakeMarket, OrderTypeMarketLimit, OrderTypeTrailingStop:
		return true
	}
	return false
}

// NeedsPrice reports whether an order of this type must carry a limit price.
func (t OrderType) NeedsPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit || t == OrderTypeTakeLimit
}

// OrderState is the lifecycle state of an order.
type OrderState string

// Order state constants.
const (
	OrderStateOpen        OrderState = "open"
	OrderStateFilled      OrderState = "filled"
	OrderStateRejected    OrderState = "rejected"
	OrderStateCancelled   OrderState = "cancelled"
	OrderStateUntriggered OrderState = "untriggered"
	OrderStateTriggered   OrderState = "triggered"
)

// IsTerminal returns true if the order is in a terminal state (no further changes possible).
func (s OrderState) IsTerminal() bool {
	return s == OrderStateFilled || s == OrderStateRejected || s == OrderStateCancelled
}

// TimeInForce defines how long an order remains active.
type TimeInForce string

// Time in force constants.
const (
	GoodTilCancelled  TimeInForce = "good_til_cancelled"
	GoodTilDay        TimeInForce = "good_til_day"
	FillOrKill        TimeInForce = "fill_or_kill"
	ImmediateOrCancel TimeInForce = "immediate_or_cancel"
)

// InstrumentKind is the instrument family.
type InstrumentKind string

// Instrument kind constants.
const (
	KindFuture      InstrumentKind = "future"
	KindOption      InstrumentKind = "option"
	KindSpot        InstrumentKind = "spot"
	KindFutureCombo InstrumentKind = "future_combo"
	KindOptionCombo InstrumentKind = "option_combo"
)

// Millis is a Unix timestamp in milliseconds as sent by the exchange.
type Millis int64

// Time converts the timestamp to a time.Time in UTC.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

// Ticker is the result of public/ticker.
type Ticker struct {
	InstrumentName  string      `json:"instrument_name"`
	State           string      `json:"state"`
	Timestamp       Millis      `json:"timestamp"`
	BestBidPrice    Decimal     `json:"best_bid_price"`
	BestBidAmount   Decimal     `json:"best_bid_amount"`
	BestAskPrice    Decimal     `json:"best_ask_price"`
	BestAskAmount   Decimal     `json:"best_ask_amount"`
	LastPrice       Decimal     `json:"last_price"`
	MarkPrice       Decimal     `json:"mark_price"`
	IndexPrice      Decimal     `json:"index_price"`
	OpenInterest    Decimal     `json:"open_interest"`
	MinPrice        Decimal     `json:"min_price"`
	MaxPrice        Decimal     `json:"max_price"`
	CurrentFunding  Decimal     `json:"current_funding"`
	Funding8h       Decimal     `json:"funding_8h"`
	Stats           TickerStats `json:"stats"`
}

// TickerStats are the rolling 24 hour statistics of a ticker.
type TickerStats struct {
	High        Decimal `json:"high"`
	Low         Decimal `json:"low"`
	Volume      Decimal `json:"volume"`
	VolumeUSD   Decimal `json:"volume_usd"`
	PriceChange Decimal `json:"price_change"`
}

// OrderBookLevel is one [price, amount] pair.
type OrderBookLevel struct {
	Price  Decimal
	Amount Decimal
}

// UnmarshalJSON decodes the two-element array form.
func (l *OrderBookLevel) UnmarshalJSON(data []byte) error {
	var pair []Decimal
	if err := sonic.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("order book level: want 2 elements, got %d", len(pair))
	}
	l.Price, l.Amount = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes the two-element array form.
func (l OrderBookLevel) MarshalJSON() ([]byte, error) {
	return []byte("[" + l.Price.String() + "," + l.Amount.String() + "]"), nil
}

// OrderBook is the result of public/get_order_book. Bids are sorted by price
// descending and asks ascending.
type OrderBook struct {
	InstrumentName string           `json:"instrument_name"`
	Timestamp      Millis           `json:"timestamp"`
	State          string           `json:"state"`
	ChangeID       int64            `json:"change_id"`
	Bids           []OrderBookLevel `json:"bids"`
	Asks           []OrderBookLevel `json:"asks"`
	BestBidPrice   Decimal          `json:"best_bid_price"`
	BestAskPrice   Decimal          `json:"best_ask_price"`
	MarkPrice      Decimal          `json:"mark_price"`
	IndexPrice     Decimal          `json:"index_price"`
}

// Instrument describes a tradable instrument.
type Instrument struct {
	InstrumentName      string         `json:"instrument_name"`
	Kind                InstrumentKind `json:"kind"`
	BaseCurrency        string         `json:"base_currency"`
	QuoteCurrency       string         `json:"quote_currency"`
	SettlementCurrency  string         `json:"settlement_currency"`
	TickSize            Decimal        `json:"tick_size"`
	MinTradeAmount      Decimal        `json:"min_trade_amount"`
	ContractSize        Decimal        `json:"contract_size"`
	IsActive            bool           `json:"is_active"`
	OptionType          string         `json:"option_type,omitempty"`
	Strike              *Decimal       `json:"strike,omitempty"`
	CreationTimestamp   Millis         `json:"creation_timestamp"`
	ExpirationTimestamp Millis         `json:"expiration_timestamp"`
}

// AccountSummary is the result of private/get_account_summary.
type AccountSummary struct {
	Currency          string  `json:"currency"`
	Equity            Decimal `json:"equity"`
	Balance           Decimal `json:"balance"`
	AvailableFunds    Decimal `json:"available_funds"`
	MarginBalance     Decimal `json:"margin_balance"`
	InitialMargin     Decimal `json:"initial_margin"`
	MaintenanceMargin Decimal `json:"maintenance_margin"`
	TotalPL           Decimal `json:"total_pl"`
	SessionUPL        Decimal `json:"session_upl"`
	SessionRPL        Decimal `json:"session_rpl"`
}

// Position is one open position.
type Position struct {
	InstrumentName     string         `json:"instrument_name"`
	Kind               InstrumentKind `json:"kind"`
	Direction          Direction      `json:"direction"`
	Size               Decimal        `json:"size"`
	AveragePrice       Decimal        `json:"average_price"`
	MarkPrice          Decimal        `json:"mark_price"`
	IndexPrice         Decimal        `json:"index_price"`
	FloatingProfitLoss Decimal        `json:"floating_profit_loss"`
	RealizedProfitLoss Decimal        `json:"realized_profit_loss"`
	TotalProfitLoss    Decimal        `json:"total_profit_loss"`
	Leverage           int            `json:"leverage"`
}

// OrderPrice is an order's limit price. Market orders report the literal
// "market_price" instead of a number.
type OrderPrice struct {
	Decimal
	Market bool
}

// UnmarshalJSON accepts a number, a numeric string or "market_price".
func (p *OrderPrice) UnmarshalJSON(data []byte) error {
	if string(data) == `"market_price"` {
		p.Market = true
		p.SetInt64(0)
		return nil
	}
	p.Market = false
	return p.Decimal.UnmarshalJSON(data)
}

// MarshalJSON mirrors UnmarshalJSON.
func (p OrderPrice) MarshalJSON() ([]byte, error) {
	if p.Market {
		return []byte(`"market_price"`), nil
	}
	return p.Decimal.MarshalJSON()
}

func (p OrderPrice) String() string {
	if p.Market {
		return "market_price"
	}
	return p.Decimal.String()
}

// Order is an order as reported by the exchange.
type Order struct {
	OrderID             string      `json:"order_id"`
	InstrumentName      string      `json:"instrument_name"`
	Direction           Direction   `json:"direction"`
	OrderType           OrderType   `json:"order_type"`
	OrderState          OrderState  `json:"order_state"`
	Price               OrderPrice  `json:"price"`
	Amount              Decimal     `json:"amount"`
	FilledAmount        Decimal     `json:"filled_amount"`
	AveragePrice        Decimal     `json:"average_price"`
	Label               string      `json:"label"`
	TimeInForce         TimeInForce `json:"time_in_force"`
	PostOnly            bool        `json:"post_only"`
	ReduceOnly          bool        `json:"reduce_only"`
	CreationTimestamp   Millis      `json:"creation_timestamp"`
	LastUpdateTimestamp Millis      `json:"last_update_timestamp"`
}

// Trade is a single execution.
type Trade struct {
	TradeID        string    `json:"trade_id"`
	OrderID        string    `json:"order_id"`
	InstrumentName string    `json:"instrument_name"`
	Direction      Direction `json:"direction"`
	Price          Decimal   `json:"price"`
	Amount         Decimal   `json:"amount"`
	Fee            Decimal   `json:"fee"`
	FeeCurrency    string    `json:"fee_currency"`
	Timestamp      Millis    `json:"timestamp"`
}

// OrderResult is the result of private/buy and private/sell.
type OrderResult struct {
	Order  Order   `json:"order"`
	Trades []Trade `json:"trades"`
}
