package backtest

import "growth-screener/internal/market"

// Action is what a rule asks the engine to do at a bar.
type Action int

const (
	ActionHold Action = iota
	ActionEnter
	ActionExit
)

func (a Action) String() string {
	switch a {
	case ActionEnter:
		return "enter"
	case ActionExit:
		return "exit"
	default:
		return "hold"
	}
}

// Decision is a rule's output for one bar. Build it with Hold, Enter or Exit.
type Decision struct {
	Action Action
	Stop   float64 // protective stop for Enter
	Reason string
}

// Hold leaves the position unchanged.
func Hold() Decision { return Decision{Action: ActionHold} }

// Enter opens a long position at the bar close with the given stop.
func Enter(stop float64, reason string) Decision {
	return Decision{Action: ActionEnter, Stop: stop, Reason: reason}
}

// Exit closes the open position at the bar close.
func Exit(reason string) Decision {
	return Decision{Action: ActionExit, Reason: reason}
}

// PositionView is a read-only snapshot of the open position.
type PositionView struct {
	Open       bool    `json:"open"`
	EntryIndex int     `json:"entry_index"`
	EntryPrice float64 `json:"entry_price"`
	Size       int64   `json:"size"`
	Stop       float64 `json:"stop"`
}

// View is what a rule sees at step t: bars [0..t] and the current position.
// Later bars are not reachable through it.
type View struct {
	Series   *market.PriceSeries
	Position PositionView
	Equity   float64
}

// Index returns t, the index of the bar being decided.
func (v View) Index() int { return v.Series.Len() - 1 }

// Bar returns the bar being decided.
func (v View) Bar() market.PriceBar { return v.Series.Last() }

// Rule decides at each bar whether to enter, exit or hold.
type Rule interface {
	Name() string
	Decide(View) (Decision, error)
}

// RuleFunc adapts a function to a Rule.
type RuleFunc struct {
	RuleName string
	Fn       func(View) (Decision, error)
}

// Name implements Rule.
func (r RuleFunc) Name() string { return r.RuleName }

// Decide implements Rule.
func (r RuleFunc) Decide(v View) (Decision, error) { return r.Fn(v) }
