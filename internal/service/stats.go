package service

import (
	"context"
	"strconv"
)

const statsPrefix = "stats:"

// cachedCounts serves key from the statistics cache, loading and storing it
// on a miss. Cache failures are logged and never fail the request.
func (s *MappingService) cachedCounts(ctx context.Context, key string, load func() (map[string]int, error)) (map[string]int, error) {
	var counts map[string]int

	hit, err := s.cache.GetJSON(ctx, statsPrefix+key, &counts)
	if err != nil {
		s.server.Logger.Warn().Err(err).Str("key", key).Msg("statistics cache read failed")
	}
	s.server.Metrics.StatsCacheLookup(hit)
	if hit {
		return counts, nil
	}

	counts, err = load()
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, statsPrefix+key, counts, s.server.Config.Repository.StatsCacheTTL); err != nil {
		s.server.Logger.Warn().Err(err).Str("key", key).Msg("statistics cache write failed")
	}
	return counts, nil
}

// OntologyCounts is the number of mappings of every ontology, zeros included.
func (s *MappingService) OntologyCounts(ctx context.Context) (map[string]int, error) {
	return s.cachedCounts(ctx, "ontologies", func() (map[string]int, error) {
		return s.stores.Mappings.CountByOntology(ctx)
	})
}

// CountsBetween is the number of mappings the ontology shares with each other ontology.
func (s *MappingService) CountsBetween(ctx context.Context, acronym string) (map[string]int, error) {
	if _, err := s.requireOntology(ctx, acronym); err != nil {
		return nil, err
	}
	return s.cachedCounts(ctx, "ontologies:"+acronym, func() (map[string]int, error) {
		return s.stores.Mappings.CountBetween(ctx, acronym)
	})
}

// PopularClasses is the number of mappings of the most mapped classes of the
// ontology; size defaults to 10.
func (s *MappingService) PopularClasses(ctx context.Context, acronym string, size int) (map[string]int, error) {
	if _, err := s.requireOntology(ctx, acronym); err != nil {
		return nil, err
	}
	_, size = Pagination(1, size, 10, s.server.Config.Repository.MaxPageSize)

	return s.cachedCounts(ctx, "popular:"+acronym+":"+strconv.Itoa(size), func() (map[string]int, error) {
		return s.stores.Mappings.PopularClasses(ctx, acronym, size)
	})
}

// TopCreators is the number of mappings of the ontology per creator; size defaults to 10.
func (s *MappingService) TopCreators(ctx context.Context, acronym string, size int) (map[string]int, error) {
	if _, err := s.requireOntology(ctx, acronym); err != nil {
		return nil, err
	}
	_, size = Pagination(1, size, 10, s.server.Config.Repository.MaxPageSize)

	return s.cachedCounts(ctx, "users:"+acronym+":"+strconv.Itoa(size), func() (map[string]int, error) {
		return s.stores.Mappings.TopCreators(ctx, acronym, size)
	})
}

// InvalidateStatistics drops every cached statistic.
func (s *MappingService) InvalidateStatistics(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, statsPrefix); err != nil {
		s.server.Logger.Warn().Err(err).Msg("statistics cache invalidation failed")
	}
}

// RefreshStatistics recomputes the per-ontology statistics into the cache.
func (s *MappingService) RefreshStatistics(ctx context.Context) error {
	s.InvalidateStatistics(ctx)

	counts, err := s.OntologyCounts(ctx)
	if err != nil {
		return err
	}
	for acronym := range counts {
		if _, err := s.CountsBetween(ctx, acronym); err != nil {
			return err
		}
	}

	s.server.Logger.Info().Int("ontologies", len(counts)).Msg("mapping statistics refreshed")
	return nil
}
