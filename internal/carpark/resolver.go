package carpark

import (
	"fmt"
	"sort"

	"github.com/parkscout/parkscout/internal/geo"
)

// Nearest ranks carparks by great-circle distance from the destination and
// returns the k closest, ascending. Records without a usable coordinate are
// excluded; when k exceeds the eligible count, all eligible carparks are
// returned. Ties are broken by input order via a stable sort, so identical
// inputs always produce identical output. The function is pure.
//
// Returns ErrInvalidK when k < 1 and geo.ErrInvalidCoordinate when the
// destination is out of range.
func Nearest(destination geo.Coordinate, records []Record, k int) ([]RankedResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if err := destination.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	ranked := make([]RankedResult, 0, len(records))
	for _, r := range records {
		if !r.HasCoordinate {
			continue
		}
		ranked = append(ranked, RankedResult{
			Record:     r,
			DistanceKm: geo.DistanceKm(destination, r.Coordinate),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked, nil
}
