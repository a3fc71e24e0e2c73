package client

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"deribit/pkg/core"
)

// TestResult is the result of public/test.
type TestResult struct {
	Version string `json:"version"`
}

// Test checks connectivity and returns the API version.
func (c *Client) Test(ctx context.Context) (*TestResult, error) {
	res, err := Get[TestResult](ctx, c, core.PathTest, nil, false)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetTime returns the exchange's current time.
func (c *Client) GetTime(ctx context.Context) (time.Time, error) {
	ms, err := Get[core.Millis](ctx, c, core.PathGetTime, nil, false)
	if err != nil {
		return time.Time{}, err
	}
	return ms.Time(), nil
}

// GetTicker fetches the ticker of one instrument.
func (c *Client) GetTicker(ctx context.Context, instrument string) (*core.Ticker, error) {
	if instrument == "" {
		return nil, core.NewConfigError("instrument_name is required", nil)
	}
	res, err := Get[core.Ticker](ctx, c, core.PathTicker, core.Params{"instrument_name": instrument}, false)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetOrderBook fetches the order book of one instrument. A depth of zero
// uses the exchange default.
func (c *Client) GetOrderBook(ctx context.Context, instrument string, depth int) (*core.OrderBook, error) {
	if instrument == "" {
		return nil, core.NewConfigError("instrument_name is required", nil)
	}
	params := core.Params{"instrument_name": instrument}
	if depth > 0 {
		params["depth"] = depth
	}
	res, err := Get[core.OrderBook](ctx, c, core.PathGetOrderBook, params, false)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// InstrumentsQuery filters public/get_instruments.
type InstrumentsQuery struct {
	Currency string              `validate:"required"`
	Kind     core.InstrumentKind `validate:"omitempty,oneof=future option spot future_combo option_combo"`
	Expired  bool
}

// GetInstruments lists the instruments of a currency.
func (c *Client) GetInstruments(ctx context.Context, q InstrumentsQuery) ([]core.Instrument, error) {
	if err := validate.Struct(q); err != nil {
		return nil, core.NewConfigError("invalid instruments query", err)
	}
	params := core.Params{"currency": q.Currency}
	if q.Kind != "" {
		params["kind"] = string(q.Kind)
	}
	if q.Expired {
		params["expired"] = true
	}
	return Get[[]core.Instrument](ctx, c, core.PathGetInstruments, params, false)
}

// GetAccountSummary fetches the account summary for a currency.
func (c *Client) GetAccountSummary(ctx context.Context, currency string, extended bool) (*core.AccountSummary, error) {
	if currency == "" {
		return nil, core.NewConfigError("currency is required", nil)
	}
	params := core.Params{"currency": currency}
	if extended {
		params["extended"] = true
	}
	res, err := Get[core.AccountSummary](ctx, c, core.PathGetAccountSummary, params, true)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetPositions lists open positions for a currency, optionally of one kind.
func (c *Client) GetPositions(ctx context.Context, currency string, kind core.InstrumentKind) ([]core.Position, error) {
	if currency == "" {
		return nil, core.NewConfigError("currency is required", nil)
	}
	params := core.Params{"currency": currency}
	if kind != "" {
		params["kind"] = string(kind)
	}
	return Get[[]core.Position](ctx, c, core.PathGetPositions, params, true)
}

// GetOpenOrders lists open orders for a currency, optionally of one kind.
func (c *Client) GetOpenOrders(ctx context.Context, currency string, kind core.InstrumentKind) ([]core.Order, error) {
	if currency == "" {
		return nil, core.NewConfigError("currency is required", nil)
	}
	params := core.Params{"currency": currency}
	if kind != "" {
		params["kind"] = string(kind)
	}
	return Get[[]core.Order](ctx, c, core.PathGetOpenOrders, params, true)
}

// OrderParams describes a new order for Buy and Sell.
type OrderParams struct {
	InstrumentName string           `validate:"required"`
	Amount         core.Decimal     `validate:"-"`
	Type           core.OrderType   `validate:"omitempty"`
	Price          *core.Decimal    `validate:"-"`
	TriggerPrice   *core.Decimal    `validate:"-"`
	Trigger        string           `validate:"omitempty,oneof=index_price mark_price last_price"`
	TimeInForce    core.TimeInForce `validate:"omitempty,oneof=good_til_cancelled good_til_day fill_or_kill immediate_or_cancel"`
	Label          string           `validate:"max=64"`
	PostOnly       bool
	ReduceOnly     bool
}

var validate = validator.New()

// Validate checks the order locally so that a malformed order is rejected
// before any quota is spent.
func (p OrderParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return core.NewConfigError("invalid order", err)
	}
	if p.Amount.Sign() <= 0 {
		return core.NewConfigError("order amount must be positive", nil)
	}
	if p.Type != "" && !p.Type.Valid() {
		return core.NewConfigError("unknown order type "+string(p.Type), nil)
	}
	if p.Type.NeedsPrice() && p.Price == nil {
		return core.NewConfigError(string(p.Type)+" order requires a price", nil)
	}
	return nil
}

func (p OrderParams) params() core.Params {
	params := core.Params{
		"instrument_name": p.InstrumentName,
		"amount":          p.Amount,
	}
	if p.Type != "" {
		params["type"] = string(p.Type)
	}
	if p.Price != nil {
		params["price"] = *p.Price
	}
	if p.TriggerPrice != nil {
		params["trigger_price"] = *p.TriggerPrice
	}
	if p.Trigger != "" {
		params["trigger"] = p.Trigger
	}
	if p.TimeInForce != "" {
		params["time_in_force"] = string(p.TimeInForce)
	}
	if p.Label != "" {
		params["label"] = p.Label
	}
	if p.PostOnly {
		params["post_only"] = true
	}
	if p.ReduceOnly {
		params["reduce_only"] = true
	}
	return params
}

// Buy places a buy order.
func (c *Client) Buy(ctx context.Context, p OrderParams) (*core.OrderResult, error) {
	return c.placeOrder(ctx, core.PathBuy, p)
}

// Sell places a sell order.
func (c *Client) Sell(ctx context.Context, p OrderParams) (*core.OrderResult, error) {
	return c.placeOrder(ctx, core.PathSell, p)
}

func (c *Client) placeOrder(ctx context.Context, path string, p OrderParams) (*core.OrderResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	res, err := Get[core.OrderResult](ctx, c, path, p.params(), true)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Cancel cancels one order and returns its final state.
func (c *Client) Cancel(ctx context.Context, orderID string) (*core.Order, error) {
	if orderID == "" {
		return nil, core.NewConfigError("order_id is required", nil)
	}
	res, err := Get[core.Order](ctx, c, core.PathCancel, core.Params{"order_id": orderID}, true)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelAll cancels every open order and returns how many were cancelled.
func (c *Client) CancelAll(ctx context.Context) (int, error) {
	return Get[int](ctx, c, core.PathCancelAll, nil, true)
}

// CancelAllByInstrument cancels every open order on one instrument.
func (c *Client) CancelAllByInstrument(ctx context.Context, instrument string) (int, error) {
	if instrument == "" {
		return 0, core.NewConfigError("instrument_name is required", nil)
	}
	return Get[int](ctx, c, core.PathCancelAllByInstrument, core.Params{"instrument_name": instrument}, true)
}
