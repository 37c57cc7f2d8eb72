// Package stub provides a deterministic in-memory remote.Client for
// tests and offline runs.
package stub

import (
	"context"
	"sort"
	"sync"

	"ledgerwatch/internal/remote"
)

// Client implements remote.Client backed by in-memory maps. Safe for
// concurrent use; query behavior can be overridden per address to
// simulate failures.
type Client struct {
	mu         sync.Mutex
	balances   map[string]uint64 // key: address + "/" + tokenType
	events     map[string][]remote.EventRecord
	queryErrs  map[string]error
	checkpoint uint64
	healthy    bool
	queryCalls map[string]int
}

var _ remote.Client = (*Client)(nil)

// NewClient creates an empty stub client that reports healthy.
func NewClient() *Client {
	return &Client{
		balances:   make(map[string]uint64),
		events:     make(map[string][]remote.EventRecord),
		queryErrs:  make(map[string]error),
		queryCalls: make(map[string]int),
		healthy:    true,
	}
}

// GetBalance returns the configured balance, 0 if unset.
func (c *Client) GetBalance(_ context.Context, address, tokenType string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address+"/"+tokenType], nil
}

// QueryEvents returns configured events newest first, or the configured
// error for the address.
func (c *Client) QueryEvents(_ context.Context, address string, limit int) ([]remote.EventRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queryCalls[address]++

	if err := c.queryErrs[address]; err != nil {
		return nil, err
	}

	recs := append([]remote.EventRecord(nil), c.events[address]...)
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Timestamp > recs[j].Timestamp
	})
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs, nil
}

// LatestCheckpoint returns the configured checkpoint.
func (c *Client) LatestCheckpoint(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkpoint, nil
}

// IsHealthy returns the configured health state.
func (c *Client) IsHealthy(_ context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// SetBalance sets the balance for an address and token type.
func (c *Client) SetBalance(address, tokenType string, balance uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address+"/"+tokenType] = balance
}

// AddEvents appends event records for an address.
func (c *Client) AddEvents(address string, recs ...remote.EventRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[address] = append(c.events[address], recs...)
}

// SetQueryError makes QueryEvents fail for an address; nil clears it.
func (c *Client) SetQueryError(address string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.queryErrs, address)
		return
	}
	c.queryErrs[address] = err
}

// SetCheckpoint sets the reported latest checkpoint.
func (c *Client) SetCheckpoint(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkpoint = seq
}

// SetHealthy sets the reported health state.
func (c *Client) SetHealthy(healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = healthy
}

// QueryCalls returns how many times QueryEvents ran for an address.
func (c *Client) QueryCalls(address string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryCalls[address]
}
