package sources

import (
	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/internal/config"
	"github.com/vats98754/aus-job-fetcher/internal/filter"
)

// Build returns the configured adapters in priority order. When two
// sources report the same posting, the earlier one here wins.
func Build(cfg *config.Config, fetcher *Fetcher, logger *zap.Logger) []Source {
	list := []Source{
		NewCurated(fetcher, cfg.CuratedListURL, logger),
		NewSeek(cfg.SeekBaseURL, cfg.SeekSearches, cfg.SeekMaxPerSearch, cfg.UserAgent, cfg.SourceTimeout, logger),
	}

	if cfg.AdzunaEnabled() {
		list = append(list, NewAdzuna(fetcher, AdzunaOptions{
			BaseURL:        cfg.AdzunaBaseURL,
			AppID:          cfg.AdzunaAppID,
			AppKey:         cfg.AdzunaAppKey,
			Country:        cfg.AdzunaCountry,
			Searches:       cfg.AdzunaSearches,
			ResultsPerPage: cfg.AdzunaResultsPerPage,
			MaxDaysOld:     cfg.AdzunaMaxDaysOld,
		}, logger))
	} else {
		logger.Info("adzuna credentials not configured, skipping source")
	}

	list = append(list, NewHackerNews(fetcher, HackerNewsOptions{
		APIBaseURL:       cfg.HNAPIBaseURL,
		SearchAPIBaseURL: cfg.HNSearchAPIBaseURL,
		MaxComments:      cfg.HNMaxComments,
		Workers:          cfg.HNWorkers,
	}, logger))

	return list
}

// Exemptions marks every pre-vetted source as exempt from both topic checks.
func Exemptions(prevetted []string) map[string]filter.Exemption {
	out := make(map[string]filter.Exemption, len(prevetted))
	for _, name := range prevetted {
		out[name] = filter.Exemption{SkipRole: true, SkipRegion: true}
	}
	return out
}
