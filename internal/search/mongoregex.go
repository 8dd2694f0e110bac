package search

import (
	"context"
	"fmt"
	"time"

	"tradepost/api/internal/store"
)

// ListingStore is the slice of the entity store the regex fallback needs.
type ListingStore interface {
	SearchOfferables(ctx context.Context, kind store.Kind, query string, limit int64) ([]store.Offerable, error)
}

// MongoRegex is the fallback searcher: a case-insensitive regex scan over the
// listing collections, the way the platform searched before the index existed.
type MongoRegex struct {
	store ListingStore
}

func NewMongoRegex(listingStore ListingStore) *MongoRegex {
	return &MongoRegex{store: listingStore}
}

// Healthy always reports true; the store is the source of truth.
func (r *MongoRegex) Healthy() bool {
	return true
}

// Search scans titles and descriptions of both kinds unless filtered.
func (r *MongoRegex) Search(q Query) ([]Result, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var results []Result
	kinds := []struct {
		kind store.Kind
		rtyp ResultType
	}{
		{store.KindItem, ResultItem},
		{store.KindRequest, ResultRequest},
	}
	for _, k := range kinds {
		if q.FilterType != "" && q.FilterType != k.rtyp {
			continue
		}
		offerables, err := r.store.SearchOfferables(ctx, k.kind, q.Text, limit)
		if err != nil {
			return nil, 0, fmt.Errorf("regex search %ss: %w", k.kind, err)
		}
		for _, o := range offerables {
			results = append(results, Result{
				Type:    k.rtyp,
				ID:      o.ID,
				Title:   o.Title,
				Snippet: o.Description,
				Status:  o.Status,
			})
		}
	}
	return results, len(results), nil
}
