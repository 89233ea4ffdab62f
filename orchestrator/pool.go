/*
NAME
  pool.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package orchestrator

import (
	"context"
	"sync"

	"github.com/wepx/wepx/logging"
)

// Pool runs Cycles concurrently, one goroutine per in-flight cycle, up
// to a fixed width. This is the in-process realization of the "process
// pool" fan-out the driving spec allows as either OS processes or a
// worker-pool abstraction (spec §4.5, §9): concurrency is bounded by
// width rather than by the model count, and each Cycle's lock acquire
// is still what actually prevents duplicate work, including duplicate
// work from a second wepxd process running against the same lock
// directory.
type Pool struct {
	width int
	log   logging.Logger
}

// NewPool returns a Pool that runs at most width cycles at once.
func NewPool(width int, log logging.Logger) *Pool {
	if width < 1 {
		width = 1
	}
	return &Pool{width: width, log: log}
}

// RunAll runs every cycle in cycles, returning once all have completed.
// Errors are logged rather than aggregated and returned: one model's
// cycle failing must not prevent the others from being attempted, per
// the per-cycle error handling rules in spec §4.7.
func (p *Pool) RunAll(ctx context.Context, cycles []*Cycle) {
	sem := make(chan struct{}, p.width)
	var wg sync.WaitGroup

	for _, c := range cycles {
		c := c
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := c.Run(ctx); err != nil {
				p.log.Error("cycle run failed", "model", c.Model.ID, "error", err.Error())
			}
		}()
	}
	wg.Wait()
}
