package indicator

import "strings"

// Action is a trading recommendation derived from the indicator set.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is the aggregated recommendation for one asset, with the reasons
// that produced it.
type Signal struct {
	Action     Action   `json:"action"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

type vote struct {
	action     Action
	confidence float64
	reason     string
}

// Evaluate derives a trading signal from the price series and its indicator
// set. Each contributing indicator casts a weighted vote; the majority side
// wins with the mean confidence of its votes. With no votes, or a tie, the
// result is HOLD.
func Evaluate(prices []float64, set Set, cfg Config) Signal {
	var votes []vote

	if set.RSI.Valid {
		switch {
		case set.RSI.Value <= cfg.RSIOversold:
			votes = append(votes, vote{ActionBuy, 0.8, "RSI oversold"})
		case set.RSI.Value >= cfg.RSIOverbought:
			votes = append(votes, vote{ActionSell, 0.8, "RSI overbought"})
		}
	}

	// MACD crosses need the previous point of both series.
	if macd, err := MACD(prices, cfg.MACDFastPeriod, cfg.MACDSlowPeriod, cfg.MACDSignalPeriod); err == nil && len(macd.Line) >= 2 {
		last := len(macd.Line) - 1
		prevDiff := macd.Line[last-1] - macd.Signal[last-1]
		currDiff := macd.Line[last] - macd.Signal[last]
		if prevDiff <= 0 && currDiff > 0 {
			votes = append(votes, vote{ActionBuy, 0.7, "MACD golden cross"})
		} else if prevDiff >= 0 && currDiff < 0 {
			votes = append(votes, vote{ActionSell, 0.7, "MACD dead cross"})
		}
	}

	if set.SMAShort.Valid && set.SMALong.Valid {
		if set.SMAShort.Value > set.SMALong.Value {
			votes = append(votes, vote{ActionBuy, 0.6, "short MA above long MA"})
		} else if set.SMAShort.Value < set.SMALong.Value {
			votes = append(votes, vote{ActionSell, 0.6, "short MA below long MA"})
		}
	}

	if set.BollUpper.Valid && set.BollLower.Valid && len(prices) > 0 {
		current := prices[len(prices)-1]
		if current > set.BollUpper.Value {
			votes = append(votes, vote{ActionSell, 0.5, "price above upper Bollinger band"})
		} else if current < set.BollLower.Value {
			votes = append(votes, vote{ActionBuy, 0.5, "price below lower Bollinger band"})
		}
	}

	return tally(votes)
}

func tally(votes []vote) Signal {
	if len(votes) == 0 {
		return Signal{Action: ActionHold, Confidence: 0.5, Reasons: []string{"no clear signal"}}
	}

	var buys, sells []vote
	for _, v := range votes {
		switch v.action {
		case ActionBuy:
			buys = append(buys, v)
		case ActionSell:
			sells = append(sells, v)
		}
	}

	var winner []vote
	var action Action
	switch {
	case len(buys) > len(sells):
		winner, action = buys, ActionBuy
	case len(sells) > len(buys):
		winner, action = sells, ActionSell
	default:
		return Signal{Action: ActionHold, Confidence: 0.5, Reasons: []string{"conflicting signals"}}
	}

	sum := 0.0
	reasons := make([]string, 0, len(winner))
	for _, v := range winner {
		sum += v.confidence
		reasons = append(reasons, v.reason)
	}
	return Signal{
		Action:     action,
		Confidence: sum / float64(len(winner)),
		Reasons:    reasons,
	}
}

// Describe renders a signal as a single human-readable line for logs.
func Describe(coinID string, s Signal) string {
	return coinID + ": " + string(s.Action) + " (" + strings.Join(s.Reasons, ", ") + ")"
}
