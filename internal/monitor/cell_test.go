package monitor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sweeney/washer-sensor/internal/logic"
)

func TestCellTakeClears(t *testing.T) {
	c := NewCell()
	c.SetActive(true)
	c.StageCommand("on")
	c.StageSample(c.Begin().Epoch, logic.Deltas{X: 1}, false)

	if cmd, ok := c.TakeCommand(); !ok || cmd != "on" {
		t.Errorf("TakeCommand: got %q, %v", cmd, ok)
	}
	if _, ok := c.TakeCommand(); ok {
		t.Error("second TakeCommand should be empty")
	}
	if d, ok := c.TakeReadings(); !ok || d.X != 1 {
		t.Errorf("TakeReadings: got %+v, %v", d, ok)
	}
	if _, ok := c.TakeReadings(); ok {
		t.Error("second TakeReadings should be empty")
	}
	if _, ok := c.TakeNotification(); ok {
		t.Error("no notification should be staged")
	}
}

func TestCellStagingOverwrites(t *testing.T) {
	c := NewCell()
	c.SetActive(true)
	epoch := c.Begin().Epoch

	c.StageSample(epoch, logic.Deltas{X: 1}, false)
	c.StageSample(epoch, logic.Deltas{X: 2}, false)
	c.StageCommand("on")
	c.StageCommand("off")

	if d, _ := c.TakeReadings(); d.X != 2 {
		t.Errorf("expected latest readings to win, got %+v", d)
	}
	if cmd, _ := c.TakeCommand(); cmd != "off" {
		t.Errorf("expected latest command to win, got %q", cmd)
	}
}

func TestCellStageSampleDone(t *testing.T) {
	c := NewCell()
	c.SetActive(true)

	if !c.StageSample(c.Begin().Epoch, logic.Deltas{}, true) {
		t.Fatal("StageSample returned false")
	}
	if cmd, ok := c.TakeCommand(); !ok || cmd != logic.CommandOff {
		t.Errorf("command: got %q, %v, want off", cmd, ok)
	}
	if n, ok := c.TakeNotification(); !ok || n != logic.DoneMessage {
		t.Errorf("notification: got %q, %v", n, ok)
	}
}

func TestCellStageSampleDroppedWhenInactive(t *testing.T) {
	c := NewCell()
	if c.StageSample(c.Begin().Epoch, logic.Deltas{X: 9}, true) {
		t.Error("StageSample should be refused while inactive")
	}
	if _, ok := c.TakeReadings(); ok {
		t.Error("nothing should be staged while inactive")
	}
	if _, ok := c.TakeCommand(); ok {
		t.Error("no command should be staged while inactive")
	}
}

func TestCellStageSampleDroppedAfterReactivation(t *testing.T) {
	c := NewCell()
	c.SetActive(true)
	cyc := c.Begin()

	// Operator re-sends "on" while the cycle is in flight.
	c.SetActive(true)

	if c.StageSample(cyc.Epoch, logic.Deltas{X: 5}, true) {
		t.Error("stale cycle should be discarded")
	}
	if _, ok := c.TakeNotification(); ok {
		t.Error("stale completion must not be staged")
	}
}

func TestCellSetActive(t *testing.T) {
	c := NewCell()

	if !c.SetActive(true) {
		t.Error("inactive -> active should report a transition")
	}
	if c.SetActive(true) {
		t.Error("active -> active is not a transition")
	}
	if c.SetActive(false) {
		t.Error("deactivation is not an activation")
	}
	if c.Active() {
		t.Error("expected inactive")
	}
}

func TestCellActivationRequestsResetOnce(t *testing.T) {
	c := NewCell()

	if cyc := c.Begin(); cyc.Active || cyc.Reset {
		t.Fatalf("fresh cell: got %+v", cyc)
	}

	c.SetActive(true)
	if cyc := c.Begin(); !cyc.Active || !cyc.Reset {
		t.Errorf("first cycle after activation: got %+v", cyc)
	}
	if cyc := c.Begin(); cyc.Reset {
		t.Error("reset should be consumed by the first cycle")
	}

	// Re-activation while active re-arms the reset.
	c.SetActive(true)
	if cyc := c.Begin(); !cyc.Reset {
		t.Error("repeated activation should request another reset")
	}
}

func TestCellResetHeldUntilActiveCycle(t *testing.T) {
	c := NewCell()
	c.SetActive(true)
	c.SetActive(false)

	if cyc := c.Begin(); cyc.Active {
		t.Fatal("expected inactive cycle")
	}
	c.SetActive(true)
	if cyc := c.Begin(); !cyc.Reset {
		t.Error("expected reset on first active cycle")
	}
}

func TestCellActivationClearsReadings(t *testing.T) {
	c := NewCell()
	c.SetActive(true)
	c.StageSample(c.Begin().Epoch, logic.Deltas{X: 7}, false)

	c.SetActive(true)
	if _, ok := c.TakeReadings(); ok {
		t.Error("activation should clear staged readings")
	}
}

func TestCellConcurrentStageAndTake(t *testing.T) {
	const n = 2000
	c := NewCell()
	c.SetActive(true)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Sampler: stage increasing readings, every tenth one a completion.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			cyc := c.Begin()
			c.StageSample(cyc.Epoch, logic.Deltas{X: int64(i)}, i%10 == 0)
		}
	}()

	// Handler: stage distinct commands.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			c.StageCommand(fmt.Sprintf("cmd-%d", i))
		}
	}()

	var readings []int64
	commands := map[string]int{}
	notifications := 0
	take := func() {
		if d, ok := c.TakeReadings(); ok {
			readings = append(readings, d.X)
		}
		if cmd, ok := c.TakeCommand(); ok {
			commands[cmd]++
		}
		if _, ok := c.TakeNotification(); ok {
			notifications++
		}
	}

	go func() {
		wg.Wait()
		close(stop)
	}()
	for running := true; running; {
		select {
		case <-stop:
			running = false
		default:
		}
		take()
	}
	take()

	if len(readings) == 0 || len(readings) > n {
		t.Fatalf("delivered %d readings for %d stages", len(readings), n)
	}
	for i := 1; i < len(readings); i++ {
		if readings[i] <= readings[i-1] {
			t.Fatalf("reading %d delivered after %d: duplicate or out of order", readings[i], readings[i-1])
		}
	}
	if readings[len(readings)-1] != n {
		t.Errorf("last delivered reading: got %d, want %d", readings[len(readings)-1], n)
	}
	for cmd, count := range commands {
		// "off" is staged by every completion.
		if cmd != logic.CommandOff && count > 1 {
			t.Errorf("command %q delivered %d times", cmd, count)
		}
	}
	if notifications == 0 || notifications > n/10 {
		t.Errorf("delivered %d notifications for %d completions", notifications, n/10)
	}
	if _, ok := c.TakeReadings(); ok {
		t.Error("cell should be empty after the final drain")
	}
}
