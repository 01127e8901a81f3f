package grid

import (
	"context"
	"time"
)

// Step advances the grid by one tick: the day clock moves, due scheduled
// ticks fire in order, and neighbor notifications are drained.
func (g *Grid) Step() {
	g.mu.Lock()
	g.step()
	g.release()
}

// StepN advances n ticks.
func (g *Grid) StepN(n int) {
	for i := 0; i < n; i++ {
		g.Step()
	}
}

func (g *Grid) step() {
	start := time.Now()
	g.tick++
	if !g.env.Frozen {
		g.env.DayTime++
	}
	for {
		e, ok := g.queue.popDue(g.tick)
		if !ok {
			break
		}
		if cur, ok := g.nodes[e.pos]; !ok || cur != e.n {
			continue
		}
		e.n.Tick()
		g.drain()
	}
	g.metrics.ObserveTick(time.Since(start))
}

// Pause stops Run from advancing ticks until Resume.
func (g *Grid) Pause() {
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()
}

func (g *Grid) Resume() {
	g.mu.Lock()
	g.paused = false
	g.mu.Unlock()
}

func (g *Grid) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Run steps the grid every interval until ctx is done. Every flushEvery
// ticks dirty nodes are written to the store; a final flush runs on exit.
func (g *Grid) Run(ctx context.Context, interval time.Duration, flushEvery int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.mu.Lock()
	g.emit("info", "grid.started", "", map[string]interface{}{
		"grid":     g.id,
		"tick_ms":  interval.Milliseconds(),
		"nodes":    len(g.nodes),
		"start_at": g.tick,
	})
	g.release()

	sinceFlush := 0
	for {
		select {
		case <-ctx.Done():
			ferr := g.Flush(context.WithoutCancel(ctx))
			g.mu.Lock()
			g.emit("info", "grid.stopped", "", map[string]interface{}{"grid": g.id, "tick": g.tick})
			g.release()
			return ferr
		case <-ticker.C:
			if g.Paused() {
				continue
			}
			g.Step()
			sinceFlush++
			if flushEvery > 0 && sinceFlush >= flushEvery {
				sinceFlush = 0
				if err := g.Flush(ctx); err != nil {
					g.logger.Error("flush failed", "grid", g.id, "error", err)
				}
			}
		}
	}
}
