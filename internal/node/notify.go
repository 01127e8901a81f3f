package node

import "github.com/AaronLay10/SignalGrid/internal/geom"

// notify informs the cells that read this node's output. force is set when
// the node is going away so that dependents never stay stuck high.
func (n *Node) notify(force bool) {
	if !force && n.cfg.noOutput() {
		return
	}
	deep := force || !n.cfg.weak()
	if n.cap.SidesConfigurable() {
		for _, d := range geom.Directions {
			if n.cfg.side(geom.LocalSide(n.facing, d)) {
				n.feed(d, deep)
			}
		}
		return
	}
	switch n.cap.Mount() {
	case MountWall:
		n.feed(n.facing.Opposite(), deep)
	case MountFloor:
		n.feed(n.facing, deep)
		n.feed(geom.Down, deep)
	case MountHatch:
		n.feed(n.facing, deep)
	case MountCube:
		for _, d := range geom.Directions {
			n.feed(d, deep)
		}
	}
}

// feed informs the neighbor in direction d and, when deep, that neighbor's
// own neighbors except this node.
func (n *Node) feed(d geom.Direction, deep bool) {
	nb := n.pos.Neighbor(d)
	n.world.NotifyNeighbor(nb, n.pos)
	if deep {
		n.notifyAround(nb, d.Opposite())
	}
}

func (n *Node) notifyAround(p geom.Pos, except geom.Direction) {
	for _, d := range geom.Directions {
		if d != except {
			n.world.NotifyNeighbor(p.Neighbor(d), p)
		}
	}
}

// notifyAll informs every neighbor and every neighbor's neighbors. Used
// after a configuration change that may alter what any side emits.
func (n *Node) notifyAll() {
	for _, d := range geom.Directions {
		nb := n.pos.Neighbor(d)
		n.world.NotifyNeighbor(nb, n.pos)
		n.notifyAround(nb, d.Opposite())
	}
}
