// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"sync"
)

// Inhibition is a veto returned by an inhibitor. Reason is a short machine
// identifier; Response, when non-empty, is sent to the user instead of the
// generic blocked notification.
type Inhibition struct {
	Reason   string
	Response string
}

// Inhibitor is a pluggable predicate that can veto a matched command before
// it runs. Returning nil clears the command.
type Inhibitor func(ctx context.Context, cc *Context) *Inhibition

// runInhibitors evaluates all inhibitors concurrently. All must settle; the
// first veto in registration order wins so results are deterministic.
func runInhibitors(ctx context.Context, inhibitors []Inhibitor, cc *Context) *Inhibition {
	if len(inhibitors) == 0 {
		return nil
	}

	results := make([]*Inhibition, len(inhibitors))
	var wg sync.WaitGroup
	for i, inhibitor := range inhibitors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = inhibitor(ctx, cc)
		}()
	}
	wg.Wait()

	for _, res := range results {
		if res != nil {
			return res
		}
	}
	return nil
}
