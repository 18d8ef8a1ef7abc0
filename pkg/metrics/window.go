package metrics

// MarketWindow is an inclusive minute-of-day range during which
// restart observations are forwarded
type MarketWindow struct {
	Open  int
	Close int
}

// DefaultMarketWindow is 09:15-15:30
var DefaultMarketWindow = MarketWindow{Open: 555, Close: 930}

// IsOpen reports whether minute lies inside the window
func (w MarketWindow) IsOpen(minute int) bool {
	return minute >= w.Open && minute <= w.Close
}
