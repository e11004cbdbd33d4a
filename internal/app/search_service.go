package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/amanthanvi/tripbook/internal/record"
	"github.com/amanthanvi/tripbook/internal/storage"
)

const (
	MatchExact    = "exact"
	MatchContains = "contains"
)

type SearchService struct {
	repo *storage.Repository
}

func NewSearchService(repo *storage.Repository) *SearchService {
	return &SearchService{repo: repo}
}

// Search runs a case-insensitive query. An empty Type searches every record;
// any other Type must be a known record type.
func (s *SearchService) Search(_ context.Context, req SearchRequest) ([]*record.Record, error) {
	req.Type = strings.TrimSpace(req.Type)
	if req.Type != "" && !isKnownType(req.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}
	if req.Value == "" {
		return nil, fmt.Errorf("%w: search value is required", ErrValidation)
	}

	match, err := parseMatchMode(req.Match)
	if err != nil {
		return nil, err
	}
	return s.repo.Query(storage.Query{
		Type:  req.Type,
		Field: strings.TrimSpace(req.Field),
		Value: req.Value,
		Match: match,
	}), nil
}

func parseMatchMode(raw string) (storage.MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", MatchExact:
		return storage.MatchExact, nil
	case MatchContains:
		return storage.MatchContains, nil
	default:
		return storage.MatchExact, fmt.Errorf("%w: match must be %q or %q", ErrValidation, MatchExact, MatchContains)
	}
}
