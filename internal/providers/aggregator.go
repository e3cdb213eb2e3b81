// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package providers

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/cartographus/internal/models"
)

// priorityUnknownSentinel is the priority index assigned to a source name
// absent from the configured priority list, so unlisted sources always
// sort after every listed one.
const priorityUnknownSentinel = 1 << 30

// Aggregator fans out to every configured Provider in parallel and merges
// their results into one deterministically ranked suggestion list.
type Aggregator struct {
	providers []Provider
}

// NewAggregator builds an Aggregator over the given providers, in no
// particular order — ranking is driven entirely by the priority list
// passed to Aggregate.
func NewAggregator(providers ...Provider) *Aggregator {
	return &Aggregator{providers: providers}
}

// Aggregate fans out one concurrent query per configured provider,
// concatenates their results (treating per-provider failures as empty,
// since Provider.GetArtwork never itself errors), and sorts the
// concatenation by (priority_index_of_source, -score). The result is
// deterministic for identical inputs and configuration.
func (a *Aggregator) Aggregate(ctx context.Context, kind MediaKind, externalIDs ExternalIDs, wantedKinds []models.ArtworkKind, priority []string) []Result {
	priorityIndex := make(map[models.ArtworkSource]int, len(priority))
	for i, name := range priority {
		priorityIndex[models.ArtworkSource(name)] = i
	}

	configured := make([]Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if p.IsConfigured() {
			configured = append(configured, p)
		}
	}

	resultsByProvider := make([][]Result, len(configured))
	var wg sync.WaitGroup
	for i, p := range configured {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			resultsByProvider[i] = p.GetArtwork(ctx, kind, externalIDs, wantedKinds)
		}(i, p)
	}
	wg.Wait()

	var all []Result
	for _, rs := range resultsByProvider {
		all = append(all, rs...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		pi, pj := indexOf(priorityIndex, all[i].Source), indexOf(priorityIndex, all[j].Source)
		if pi != pj {
			return pi < pj
		}
		return all[i].Score > all[j].Score
	})

	return all
}

func indexOf(priorityIndex map[models.ArtworkSource]int, source models.ArtworkSource) int {
	if idx, ok := priorityIndex[source]; ok {
		return idx
	}
	return priorityUnknownSentinel
}
