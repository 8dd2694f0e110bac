package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to the
// regex scan over the entity store.
type Service struct {
	meili    *Meili
	fallback *MongoRegex
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, fallback *MongoRegex) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise scans the store.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to regex scan: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: regex scan error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexListing indexes a listing (fire-and-forget to Meilisearch).
func (s *Service) IndexListing(rec ListingRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexListing(rec); err != nil {
			log.Printf("search: index listing %s: %v", rec.ID, err)
		}
	}()
}

// ReindexAll bulk-pushes listings into Meilisearch, used at startup.
func (s *Service) ReindexAll(records []ListingRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexListings(records); err != nil {
		log.Printf("search: reindex listings: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
