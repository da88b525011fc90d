package client

import (
	"sync"
	"time"
)

const (
	// DefaultMaxVisible bounds concurrent transient presentations.
	DefaultMaxVisible = 3
	// DefaultMaxPending bounds notifications waiting for a free slot.
	DefaultMaxPending = DefaultCapacity
)

// DismissReason says why a presentation left the surface.
type DismissReason string

const (
	DismissTimeout DismissReason = "timeout"
	DismissClick   DismissReason = "click"
	DismissClose   DismissReason = "close"
)

// Surface renders transient presentations.
type Surface interface {
	Show(n Notification, policy Policy)
	Hide(n Notification, reason DismissReason)
}

// Timer is the part of *time.Timer the presenter needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// PresenterOption customises a Presenter.
type PresenterOption func(*Presenter)

// WithMaxVisible overrides the concurrent presentation limit.
func WithMaxVisible(n int) PresenterOption {
	return func(p *Presenter) {
		if n > 0 {
			p.maxVisible = n
		}
	}
}

// WithAfterFunc replaces the timer source.
func WithAfterFunc(fn AfterFunc) PresenterOption {
	return func(p *Presenter) {
		if fn != nil {
			p.afterFunc = fn
		}
	}
}

// WithSurfaced registers a hook called once for every notification that is
// put on the surface.
func WithSurfaced(fn func(Notification)) PresenterOption {
	return func(p *Presenter) {
		p.onSurfaced = fn
	}
}

type presentation struct {
	n     Notification
	timer Timer
}

// Presenter applies the priority policy to live notifications. Notifications
// arriving while the surface is full wait in arrival order and are surfaced as
// slots free up; when the queue is full the oldest waiting entry is dropped.
type Presenter struct {
	mu         sync.Mutex
	visible    []*presentation
	pending    []Notification
	maxVisible int
	maxPending int
	afterFunc  AfterFunc
	onSurfaced func(Notification)
	surface    Surface
}

// NewPresenter constructs a presenter rendering to surface.
func NewPresenter(surface Surface, opts ...PresenterOption) *Presenter {
	p := &Presenter{
		maxVisible: DefaultMaxVisible,
		maxPending: DefaultMaxPending,
		afterFunc:  realAfterFunc,
		surface:    surface,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Present shows n if there is room, otherwise queues it behind earlier
// overflow. It reports whether n was surfaced now.
func (p *Presenter) Present(n Notification) bool {
	p.mu.Lock()
	if p.knownLocked(n) {
		p.mu.Unlock()
		return false
	}
	if len(p.visible) >= p.maxVisible || len(p.pending) > 0 {
		if len(p.pending) >= p.maxPending {
			p.pending = p.pending[1:]
		}
		p.pending = append(p.pending, n)
		p.mu.Unlock()
		return false
	}
	p.admitLocked(n)
	p.mu.Unlock()

	p.surfaced(n)
	return true
}

// Pending returns the notifications waiting for a slot, oldest first.
func (p *Presenter) Pending() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notification(nil), p.pending...)
}

// Dismiss removes the presentation of id. The notification itself is untouched.
func (p *Presenter) Dismiss(id string, reason DismissReason) bool {
	p.mu.Lock()
	var entry *presentation
	for _, v := range p.visible {
		if sameNotification(v.n, Notification{ID: id, EventID: id}) {
			entry = v
			break
		}
	}
	p.mu.Unlock()

	if entry == nil {
		return false
	}
	return p.dismiss(entry, reason)
}

// Visible returns the notifications currently on the surface, oldest first.
func (p *Presenter) Visible() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Notification, 0, len(p.visible))
	for _, v := range p.visible {
		out = append(out, v.n)
	}
	return out
}

func (p *Presenter) dismiss(entry *presentation, reason DismissReason) bool {
	p.mu.Lock()
	idx := -1
	for i, v := range p.visible {
		if v == entry {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return false
	}
	p.visible = append(p.visible[:idx], p.visible[idx+1:]...)
	if entry.timer != nil {
		entry.timer.Stop()
	}

	var promoted []Notification
	for len(p.visible) < p.maxVisible && len(p.pending) > 0 {
		next := p.pending[0]
		p.pending = p.pending[1:]
		p.admitLocked(next)
		promoted = append(promoted, next)
	}
	p.mu.Unlock()

	if p.surface != nil {
		p.surface.Hide(entry.n, reason)
	}
	for _, n := range promoted {
		p.surfaced(n)
	}
	return true
}

func (p *Presenter) knownLocked(n Notification) bool {
	for _, v := range p.visible {
		if sameNotification(v.n, n) {
			return true
		}
	}
	for _, q := range p.pending {
		if sameNotification(q, n) {
			return true
		}
	}
	return false
}

// admitLocked puts n on the surface and arms its auto-dismiss timer.
func (p *Presenter) admitLocked(n Notification) {
	policy := PolicyFor(n.Priority)
	entry := &presentation{n: n}
	p.visible = append(p.visible, entry)
	if !policy.Sticky && policy.AutoDismiss > 0 {
		entry.timer = p.afterFunc(policy.AutoDismiss, func() {
			p.dismiss(entry, DismissTimeout)
		})
	}
}

func (p *Presenter) surfaced(n Notification) {
	if p.surface != nil {
		p.surface.Show(n, PolicyFor(n.Priority))
	}
	if p.onSurfaced != nil {
		p.onSurfaced(n)
	}
}
