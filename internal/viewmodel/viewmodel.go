// Package viewmodel projects a forwarder.Forwarder's tree into a
// read-only, flattened node tree suitable for driving a UI — the Go
// analogue of a Qt QAbstractItemModel, without any Qt dependency.
package viewmodel

import (
	"fmt"

	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/forwarder"
)

// NodeType discriminates the three row kinds a Tree can contain.
type NodeType int

const (
	NodeRoot NodeType = iota
	NodeMaster
	NodeChannel
)

// Node is one row of the projected tree. Parent and Index let a
// caller navigate without walking back through the forwarder;
// Children preserves the forwarder's own insertion order.
type Node struct {
	Type NodeType

	MasterID  forwarder.MasterID
	ChannelID forwarder.ChannelID

	Name      string
	Frequency float64
	RateOrBW  float64 // master: bandwidth; channel: consumer sample rate
	Enabled   bool

	Parent   *Node
	Index    int
	Children []*Node
}

// Tree is a single rebuilt snapshot of the forwarder's structure.
// It never mutates in place — every structural change in the
// forwarder produces a brand new Tree via Rebuild, mirroring the
// original's beginResetModel/endResetModel pairing without needing
// the caller to straddle a half-updated structure.
type Tree struct {
	Root *Node
}

// Rebuild walks f's current master/channel set and returns a fresh
// Tree. Called atomically with respect to the forwarder: f is assumed
// not to mutate concurrently with this call.
func Rebuild(f *forwarder.Forwarder) *Tree {
	root := &Node{Type: NodeRoot, Index: -1}

	for i, mid := range f.MasterOrder() {
		m, ok := f.Master(mid)
		if !ok {
			continue
		}
		masterNode := &Node{
			Type:      NodeMaster,
			MasterID:  mid,
			Name:      m.Name,
			Frequency: m.Frequency,
			RateOrBW:  m.Bandwidth,
			Enabled:   m.Enabled,
			Parent:    root,
			Index:     i,
		}
		for j, cid := range m.Channels {
			c, ok := f.Channel(cid)
			if !ok {
				continue
			}
			enabled := true
			if er, ok := c.Consumer.(consumer.EnabledReporter); ok {
				enabled = er.Enabled()
			}
			channelNode := &Node{
				Type:      NodeChannel,
				ChannelID: cid,
				Name:      c.Name,
				Frequency: m.Frequency + c.Offset,
				RateOrBW:  c.SampRate,
				Enabled:   enabled,
				Parent:    masterNode,
				Index:     j,
			}
			masterNode.Children = append(masterNode.Children, channelNode)
		}
		root.Children = append(root.Children, masterNode)
	}

	return &Tree{Root: root}
}

// Model wires a Tree's lifecycle to a forwarder: every structural
// change rebuilds the tree and hands it to onChange.
type Model struct {
	f        *forwarder.Forwarder
	tree     *Tree
	onChange func(*Tree)
}

// Attach registers this Model as f's change observer and performs an
// initial rebuild. onChange, if non-nil, is invoked with the fresh
// Tree on every subsequent rebuild (including this first one).
func Attach(f *forwarder.Forwarder, onChange func(*Tree)) *Model {
	mdl := &Model{f: f, onChange: onChange}
	mdl.rebuild()
	f.SetChangeObserver(mdl.rebuild)
	return mdl
}

func (mdl *Model) rebuild() {
	mdl.tree = Rebuild(mdl.f)
	if mdl.onChange != nil {
		mdl.onChange(mdl.tree)
	}
}

// Tree returns the most recently rebuilt snapshot.
func (mdl *Model) Tree() *Tree {
	return mdl.tree
}

// SetMasterEnabled writes an enabled toggle through to the forwarder,
// which pushes a config update to the analyzer if the master is open.
func (mdl *Model) SetMasterEnabled(id forwarder.MasterID, enabled bool) error {
	return mdl.f.SetMasterEnabled(id, enabled)
}

// SetChannelEnabled writes an enabled toggle through to the channel's
// consumer, per spec: unlike a master, a channel's enabled flag lives
// on the consumer itself (SetEnabled/EnableStateChanged), not on the
// forwarder tree, so this writes through directly and rebuilds the
// tree to reflect it rather than going through the forwarder.
func (mdl *Model) SetChannelEnabled(id forwarder.ChannelID, enabled bool) error {
	ch, ok := mdl.f.Channel(id)
	if !ok {
		return fmt.Errorf("viewmodel: no such channel %d", id)
	}
	t, ok := ch.Consumer.(consumer.Toggleable)
	if !ok {
		return fmt.Errorf("viewmodel: channel %q's consumer does not accept an enabled toggle", ch.Name)
	}
	t.SetEnabled(enabled)
	mdl.rebuild()
	return nil
}
