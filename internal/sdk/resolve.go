package sdk

import (
	"context"
	"fmt"
)

// Resolution is the single outcome of a deferred-link lookup.
type Resolution struct {
	URL string
	Err error
}

// Resolve runs FetchDeferredAppLink in its own goroutine. The returned
// channel yields exactly one Resolution and is then closed. Once ctx is
// done the lookup resolves with ctx's error right away, even if the client
// ignores ctx; its late result is dropped.
func Resolve(ctx context.Context, c Client) <-chan Resolution {
	out := make(chan Resolution, 1)
	fetched := make(chan Resolution, 1)
	go func() {
		var res Resolution
		defer func() {
			if r := recover(); r != nil {
				res = Resolution{Err: fmt.Errorf("deferred link lookup panicked: %v", r)}
			}
			fetched <- res
		}()
		url, err := c.FetchDeferredAppLink(ctx)
		res = Resolution{URL: url, Err: err}
	}()
	go func() {
		defer close(out)
		var res Resolution
		select {
		case res = <-fetched:
			if res.Err == nil && ctx.Err() != nil {
				res = Resolution{Err: ctx.Err()}
			}
		case <-ctx.Done():
			res = Resolution{Err: ctx.Err()}
		}
		out <- res
	}()
	return out
}
