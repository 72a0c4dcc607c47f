package api

import (
	"context"
	"iter"

	"github.com/google/go-github/v57/github"

	"github.com/tilpner/github-label-feed/internal/retry"
)

// perPage is the page size for all listing endpoints, so fetching n items
// costs max(1, ceil(n/100)) requests.
const perPage = 100

// PageFunc fetches one page of a listing endpoint.
type PageFunc[T any] func(ctx context.Context, page int) ([]T, *github.Response, error)

// Pages returns a lazy sequence of pages, starting from the first page on
// every call. Each page fetch runs under the retry policy; the sequence ends
// with a non-nil error when retries are exhausted, or cleanly when the API
// reports no further pages.
func Pages[T any](ctx context.Context, pol retry.Policy, fetch PageFunc[T]) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		page := 1
		for {
			var items []T
			var resp *github.Response
			err := pol.Do(ctx, func() error {
				var err error
				items, resp, err = fetch(ctx, page)
				return err
			})
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(items, nil) {
				return
			}
			if resp == nil || resp.NextPage == 0 || len(items) == 0 {
				return
			}
			page = resp.NextPage
		}
	}
}

// CollectPages drains Pages into a single slice.
func CollectPages[T any](ctx context.Context, pol retry.Policy, fetch PageFunc[T]) ([]T, error) {
	var all []T
	for items, err := range Pages(ctx, pol, fetch) {
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}
