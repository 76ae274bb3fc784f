// Package paddletest provides an in-memory Provider for tests.
package paddletest

import (
	"context"
	"sync"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
)

type Fake struct {
	mu   sync.Mutex
	subs map[string]*paddle.Subscription

	// Err, when set, is returned by every call.
	Err error

	GetCalls    []string
	CancelCalls []string
}

var _ paddle.Provider = (*Fake)(nil)

func New() *Fake {
	return &Fake{subs: map[string]*paddle.Subscription{}}
}

// Put stores a copy of s keyed by its id.
func (f *Fake) Put(s *paddle.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *s
	f.subs[s.ID] = &c
}

func (f *Fake) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

func (f *Fake) GetSubscription(_ context.Context, id string) (*paddle.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls = append(f.GetCalls, id)
	if f.Err != nil {
		return nil, f.Err
	}
	s, ok := f.subs[id]
	if !ok {
		return nil, paddle.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *Fake) CancelSubscription(_ context.Context, id string) (*paddle.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CancelCalls = append(f.CancelCalls, id)
	if f.Err != nil {
		return nil, f.Err
	}
	s, ok := f.subs[id]
	if !ok {
		return nil, paddle.ErrNotFound
	}
	s.ScheduledChange = &paddle.ScheduledChange{Action: "cancel", EffectiveAt: s.NextBilledAt}
	c := *s
	return &c, nil
}
