package journal

import "github.com/hxrts/aura/pkg/ids"

// EquivocationSet is a standalone suspect set, independent of a live
// Journal instance. Merge does not write to it (it flags suspects on the
// Journal itself), and pkg/sync's peer admission check consults
// Journal.IsSuspect rather than this set.
type EquivocationSet struct {
	suspects map[ids.DeviceId]bool
}

func NewEquivocationSet() *EquivocationSet {
	return &EquivocationSet{suspects: make(map[ids.DeviceId]bool)}
}

func (s *EquivocationSet) Flag(dev ids.DeviceId)   { s.suspects[dev] = true }
func (s *EquivocationSet) Clear(dev ids.DeviceId)  { delete(s.suspects, dev) }
func (s *EquivocationSet) IsSuspect(dev ids.DeviceId) bool { return s.suspects[dev] }
