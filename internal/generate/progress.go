package generate

import "sync/atomic"

// Progress counts processed items across all workers. It is the only value
// workers share.
type Progress struct {
	n atomic.Int64
}

// Inc records one processed item.
func (p *Progress) Inc() { p.n.Add(1) }

// Load returns the number of processed items.
func (p *Progress) Load() int64 { return p.n.Load() }
