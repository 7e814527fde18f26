// Package utils contains small concurrency helpers shared by the transports.
package utils

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ConcurrentGroup runs functions concurrently and aggregates their errors.
// It differs from errgroup.Group in that a failure in one goroutine never
// interrupts the others: per-server checks are independent and must all run
// to completion regardless of their peers.
type ConcurrentGroup struct {
	wg sync.WaitGroup

	errsMu sync.Mutex
	errs   []error
}

func NewConcurrentGroup() *ConcurrentGroup {
	return &ConcurrentGroup{}
}

func (c *ConcurrentGroup) Go(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.errsMu.Lock()
			c.errs = append(c.errs, err)
			c.errsMu.Unlock()
		}
	}()
}

// Wait blocks until every function has returned, then reports their
// accumulated errors as one, or nil when all succeeded.
func (c *ConcurrentGroup) Wait() error {
	c.wg.Wait()
	c.errsMu.Lock()
	defer c.errsMu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	var merged error
	for _, err := range c.errs {
		merged = multierror.Append(merged, err)
	}
	return merged
}
