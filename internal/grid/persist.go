package grid

import (
	"context"
	"fmt"
	"sort"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

// Store persists node records. Both storage backends implement it.
type Store interface {
	SaveNodes(ctx context.Context, recs []node.Record) error
	LoadNodes(ctx context.Context) ([]node.Record, error)
	DeleteNode(ctx context.Context, p geom.Pos) error
}

// Records returns the durable state of every node ordered by position.
func (g *Grid) Records() []node.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]node.Record, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.Record())
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].Pos, out[j].Pos) })
	return out
}

// Flush writes dirty nodes and deletes removed ones. Nodes that fail to
// save stay dirty for the next flush.
func (g *Grid) Flush(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	g.mu.Lock()
	recs := make([]node.Record, 0, len(g.dirty))
	for p := range g.dirty {
		if n, ok := g.nodes[p]; ok {
			recs = append(recs, n.Record())
		}
	}
	deleted := make([]geom.Pos, 0, len(g.deleted))
	for p := range g.deleted {
		deleted = append(deleted, p)
	}
	g.dirty = make(map[geom.Pos]struct{})
	g.deleted = make(map[geom.Pos]struct{})
	g.mu.Unlock()

	if len(recs) == 0 && len(deleted) == 0 {
		return nil
	}
	err := g.store.SaveNodes(ctx, recs)
	var failed []geom.Pos
	if err != nil {
		for _, r := range recs {
			failed = append(failed, r.Pos)
		}
		err = fmt.Errorf("save %d nodes: %w", len(recs), err)
	}
	var failedDeletes []geom.Pos
	for _, p := range deleted {
		if derr := g.store.DeleteNode(ctx, p); derr != nil {
			failedDeletes = append(failedDeletes, p)
			if err == nil {
				err = fmt.Errorf("delete node %s: %w", p, derr)
			}
		}
	}
	if len(failed) > 0 || len(failedDeletes) > 0 {
		g.mu.Lock()
		for _, p := range failed {
			if _, ok := g.nodes[p]; ok {
				g.dirty[p] = struct{}{}
			}
		}
		for _, p := range failedDeletes {
			if _, ok := g.nodes[p]; !ok {
				g.deleted[p] = struct{}{}
			}
		}
		g.mu.Unlock()
	}
	return err
}

// Save writes every node, not just the dirty ones.
func (g *Grid) Save(ctx context.Context) (int, error) {
	if g.store == nil {
		return 0, fmt.Errorf("grid %s has no store", g.id)
	}
	recs := g.Records()
	if err := g.store.SaveNodes(ctx, recs); err != nil {
		return 0, fmt.Errorf("save grid %s: %w", g.id, err)
	}
	g.mu.Lock()
	g.dirty = make(map[geom.Pos]struct{})
	g.emit("info", "grid.saved", "", map[string]interface{}{"grid": g.id, "nodes": len(recs)})
	g.release()
	return len(recs), g.Flush(ctx)
}

// Load restores nodes from the store. It returns the number of restored
// nodes; records of unknown types are skipped and counted in skipped.
func (g *Grid) Load(ctx context.Context) (restored, skipped int, err error) {
	if g.store == nil {
		return 0, 0, nil
	}
	recs, err := g.store.LoadNodes(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load grid %s: %w", g.id, err)
	}
	restored, skipped = g.Restore(recs)
	return restored, skipped, nil
}

// Restore places nodes from records without re-running placement side
// effects. Existing nodes of another type or facing are replaced.
func (g *Grid) Restore(recs []node.Record) (restored, skipped int) {
	g.mu.Lock()
	for _, r := range recs {
		// A node placed from the layout keeps its sensor parameters and
		// only takes the durable state.
		if cur, ok := g.nodes[r.Pos]; ok && cur.Capability().Name() == r.Type && cur.Facing() == r.Facing {
			cur.Restore(r)
			g.changed[r.Pos] = struct{}{}
			restored++
			continue
		}
		n, err := node.Build(r.Type, r.Pos, r.Facing, node.Params{}, g.host, g.host, g.policy)
		if err != nil {
			g.logger.Warn("skipping stored node", "pos", r.Pos.String(), "type", r.Type, "error", err)
			skipped++
			continue
		}
		if old, ok := g.nodes[r.Pos]; ok {
			g.queue.forget(old)
		}
		g.nodes[r.Pos] = n
		n.Restore(r)
		g.changed[r.Pos] = struct{}{}
		restored++
	}
	g.emit("info", "grid.loaded", "", map[string]interface{}{
		"grid":     g.id,
		"restored": restored,
		"skipped":  skipped,
	})
	g.release()
	return restored, skipped
}
