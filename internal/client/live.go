package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sakif/snippethub/internal/search"
	"github.com/sakif/snippethub/internal/service"
)

// ErrSuperseded is returned by LiveSearch.Search when a newer search started
// before this one delivered its result.
var ErrSuperseded = errors.New("client: search superseded by a newer one")

// LiveSearch runs search-as-you-type queries. Only the newest query may
// deliver a result.
//
// Each call takes the next sequence number and cancels the request still in
// flight. A response whose sequence is no longer the latest is dropped, so a
// slow early query can never overwrite the results of a later one.
type LiveSearch struct {
	client *Client
	seq    atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *Client) LiveSearch() *LiveSearch {
	return &LiveSearch{client: c}
}

// Search supersedes any in-flight search and runs state.
func (l *LiveSearch) Search(ctx context.Context, state search.State) (*service.SearchResult, error) {
	seq := l.seq.Add(1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = cancel
	l.mu.Unlock()

	res, err := l.client.Search(ctx, state)
	if l.seq.Load() != seq {
		return nil, ErrSuperseded
	}
	return res, err
}

// Seq is the sequence number of the newest search started so far.
func (l *LiveSearch) Seq() uint64 {
	return l.seq.Load()
}
