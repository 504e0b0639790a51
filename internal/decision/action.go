package decision

import "fmt"

// Action is the discrete trading decision assigned to one ticker for one run.
type Action int

// Policy head index order. This is the single canonical mapping between the
// model's output index and the trading action; every adapter and consumer
// must go through ActionFromIndex / Index rather than hard-coding integers.
const (
	ActionSell Action = iota
	ActionHold
	ActionBuy
)

// ActionIndexOrder mirrors the output layout of the policy head.
var ActionIndexOrder = [3]Action{ActionSell, ActionHold, ActionBuy}

func (a Action) String() string {
	switch a {
	case ActionSell:
		return "SELL"
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Index returns the policy output index for the action.
func (a Action) Index() int { return int(a) }

// ActionFromIndex maps a policy output index back to an Action.
func ActionFromIndex(i int) (Action, error) {
	if i < 0 || i >= len(ActionIndexOrder) {
		return ActionHold, fmt.Errorf("action index out of range: %d", i)
	}
	return ActionIndexOrder[i], nil
}

// TickerAction pairs one ticker with the action decided for it.
type TickerAction struct {
	Ticker string
	Action Action
}
