package core

// Base URLs of the v2 REST API.
const (
	ProductionBaseURL = "https://www.deribit.com/api/v2"
	TestnetBaseURL    = "https://test.deribit.com/api/v2"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "deribit-go/1.0"

// Endpoint paths, relative to the base URL.
const (
	PathAuth                  = "/public/auth"
	PathTest                  = "/public/test"
	PathGetTime               = "/public/get_time"
	PathTicker                = "/public/ticker"
	PathGetOrderBook          = "/public/get_order_book"
	PathGetInstruments        = "/public/get_instruments"
	PathGetAccountSummary     = "/private/get_account_summary"
	PathGetPositions          = "/private/get_positions"
	PathGetOpenOrders         = "/private/get_open_orders_by_currency"
	PathBuy                   = "/private/buy"
	PathSell                  = "/private/sell"
	PathCancel                = "/private/cancel"
	PathCancelAll             = "/private/cancel_all"
	PathCancelAllByInstrument = "/private/cancel_all_by_instrument"
)

// HeaderAuthorization carries the bearer token on private calls.
const HeaderAuthorization = "Authorization"
