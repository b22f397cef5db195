package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Schedule(t *testing.T) {
	c := NewClock(0)
	c.ReportEvery = 5
	c.SaveEvery = 10

	var turns, reports, saves []uint32
	c.OnTurn = func(turn uint32) { turns = append(turns, turn) }
	c.OnReport = func(turn uint32) { reports = append(reports, turn) }
	c.OnSave = func(turn uint32) { saves = append(saves, turn) }

	done := c.RunTurns(context.Background(), 20)
	assert.Equal(t, 20, done)
	assert.Equal(t, uint32(20), c.Turn)
	assert.Len(t, turns, 20)
	assert.Equal(t, uint32(1), turns[0])
	assert.Equal(t, []uint32{5, 10, 15, 20}, reports)
	assert.Equal(t, []uint32{10, 20}, saves)
}

func TestClock_ResumesAndDisabledSchedules(t *testing.T) {
	c := NewClock(100)
	var last uint32
	c.OnTurn = func(turn uint32) { last = turn }
	c.OnSave = func(uint32) { t.Fatal("saves are disabled") }

	c.Step()
	assert.Equal(t, uint32(101), last)
}

func TestClock_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewClock(0)
	c.OnTurn = func(turn uint32) {
		if turn == 3 {
			cancel()
		}
	}

	done := c.RunTurns(ctx, 50)
	assert.Equal(t, 3, done)
	assert.Equal(t, uint32(3), c.Turn)

	cancel()
	assert.Zero(t, NewClock(0).RunTurns(ctx, 10))
}

func TestClock_DrivesEngine(t *testing.T) {
	e := newEngineForTest(t, 4, nil)
	seedSectors(t, e)

	c := NewClock(e.Turn())
	c.OnTurn = func(turn uint32) { e.AdvanceTurn(turn) }
	c.RunTurns(context.Background(), 30)

	assert.Equal(t, uint32(30), e.Turn())
	food, err := e.Commodity("Food")
	assert.NoError(t, err)
	assert.Len(t, food.PriceHistory, 31)
}
