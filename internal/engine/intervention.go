package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/starmarket/internal/economy"
)

// TriggerByName starts a galaxy-wide event named the way quest scripts and
// config name them, e.g. "resource_shortage". "none" does nothing and returns
// a zero event.
func (e *MarketEngine) TriggerByName(name string) (economy.EconomicEvent, error) {
	kind, ok := economy.ParseEventKind(name)
	if !ok {
		return economy.EconomicEvent{}, fmt.Errorf("trigger %q: %w", name, economy.ErrUnknownEventKind)
	}
	if kind == economy.EventNone {
		return economy.EconomicEvent{}, nil
	}
	ev, ok := e.Trigger(kind)
	if !ok {
		return economy.EconomicEvent{}, fmt.Errorf("trigger %q: no template: %w", name, economy.ErrUnknownEventKind)
	}
	return ev, nil
}

// Provision injects goods into the galaxy-wide supply of a commodity, as a
// relief convoy or quest reward would.
func (e *MarketEngine) Provision(commodity string, quantity int64) (string, error) {
	c, err := e.lookup(commodity)
	if err != nil {
		return "", err
	}
	if quantity <= 0 {
		return "", fmt.Errorf("provision %s: %w", commodity, economy.ErrInvalidQuantity)
	}

	c.Supply += quantity
	desc := fmt.Sprintf("A relief convoy delivers %d units of %s", quantity, commodity)
	e.emit(CategoryIntervention, desc)

	slog.Info("provision intervention", "commodity", commodity, "quantity", quantity, "supply", c.Supply)
	return desc, nil
}

// Requisition removes goods from the galaxy-wide supply, leaving at least one
// unit, and returns how many were taken.
func (e *MarketEngine) Requisition(commodity string, quantity int64) (int64, error) {
	c, err := e.lookup(commodity)
	if err != nil {
		return 0, err
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("requisition %s: %w", commodity, economy.ErrInvalidQuantity)
	}

	taken := min(quantity, c.Supply-1)
	c.Supply -= taken
	e.emit(CategoryIntervention, fmt.Sprintf("The fleet requisitions %d units of %s", taken, commodity))

	slog.Info("requisition intervention", "commodity", commodity, "requested", quantity, "taken", taken, "supply", c.Supply)
	return taken, nil
}
