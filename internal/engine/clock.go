package engine

import (
	"context"
	"log/slog"
)

// Clock drives an engine forward one turn at a time. Callbacks run
// synchronously on the caller's goroutine.
type Clock struct {
	Turn        uint32 // Last completed turn
	ReportEvery uint32 // 0 disables reports
	SaveEvery   uint32 // 0 disables saves

	OnTurn   func(turn uint32) // Every turn
	OnReport func(turn uint32) // Every ReportEvery turns
	OnSave   func(turn uint32) // Every SaveEvery turns
}

// NewClock creates a clock that resumes after turn start.
func NewClock(start uint32) *Clock {
	return &Clock{Turn: start}
}

// Step advances the clock by one turn.
func (c *Clock) Step() {
	c.Turn++

	if c.OnTurn != nil {
		c.OnTurn(c.Turn)
	}
	if c.ReportEvery > 0 && c.Turn%c.ReportEvery == 0 && c.OnReport != nil {
		c.OnReport(c.Turn)
	}
	if c.SaveEvery > 0 && c.Turn%c.SaveEvery == 0 && c.OnSave != nil {
		c.OnSave(c.Turn)
	}
}

// RunTurns steps n turns, stopping early between turns when ctx is done.
// It returns the number of turns completed.
func (c *Clock) RunTurns(ctx context.Context, n int) int {
	slog.Info("clock started", "turn", c.Turn, "turns", n)
	done := 0
	for done < n {
		if ctx.Err() != nil {
			break
		}
		c.Step()
		done++
	}
	slog.Info("clock stopped", "turn", c.Turn, "completed", done)
	return done
}
