// Package stats computes visit analytics from the view event log.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/arbmuseum/arb/backend/internal/models"
	"gorm.io/gorm"
)

// Weights of the best-asset score
const (
	weightToday = 0.6
	weightFirst = 0.25
	weightAll   = 0.15
)

// BestAsset identifies the top asset
type BestAsset struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Summary is the analytics payload
type Summary struct {
	BestAsset    *BestAsset `json:"best_asset"`
	ViewsToday   int64      `json:"views_today"`
	ViewsAllTime int64      `json:"views_all_time"`
}

// Service computes summaries
type Service struct {
	db *gorm.DB
}

// NewService creates a stats service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type assetCount struct {
	AssetID uint
	Cnt     int64
}

// Summary counts views and picks the best asset for the day containing now.
// With no views today the most viewed asset of all time wins; otherwise each
// asset scores 0.6*today + 0.25*first-in-session + 0.15*all-time, each term
// normalized by its maximum.
func (s *Service) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	all, err := s.countByAsset(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	today, err := s.countByAsset(ctx, &dayStart, &dayEnd)
	if err != nil {
		return nil, err
	}

	out := &Summary{ViewsAllTime: sum(all), ViewsToday: sum(today)}

	var (
		bestID uint
		ok     bool
	)
	if out.ViewsToday == 0 {
		bestID, ok = mostViewed(all)
	} else {
		firsts, err := s.firstViewedCounts(ctx)
		if err != nil {
			return nil, err
		}
		bestID, ok = PickBest(today, firsts, all)
	}
	if !ok {
		return out, nil
	}

	var asset models.Asset
	if err := s.db.WithContext(ctx).Select("id", "slug", "name").Where("id = ?", bestID).First(&asset).Error; err != nil {
		return nil, fmt.Errorf("failed to load best asset: %w", err)
	}
	out.BestAsset = &BestAsset{Slug: asset.Slug, Name: asset.Name}
	return out, nil
}

func (s *Service) countByAsset(ctx context.Context, from, to *time.Time) (map[uint]int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ViewEvent{}).
		Select("asset_id, COUNT(*) AS cnt").
		Where("event_type = ? AND asset_id IS NOT NULL", models.EventViewedItem)
	if from != nil && to != nil {
		q = q.Where("timestamp >= ? AND timestamp < ?", from.UTC(), to.UTC())
	}
	var rows []assetCount
	if err := q.Group("asset_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}
	return toMap(rows), nil
}

// firstViewedCounts counts, per asset, the sessions whose earliest view was of it
func (s *Service) firstViewedCounts(ctx context.Context) (map[uint]int64, error) {
	var rows []assetCount
	err := s.db.WithContext(ctx).Raw(`
		SELECT v.asset_id AS asset_id, COUNT(DISTINCT v.session_id) AS cnt
		FROM view_events v
		JOIN (
			SELECT session_id, MIN(id) AS first_id
			FROM view_events
			WHERE event_type = ? AND asset_id IS NOT NULL
			GROUP BY session_id
		) f ON v.id = f.first_id
		GROUP BY v.asset_id`, models.EventViewedItem).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count first views: %w", err)
	}
	return toMap(rows), nil
}

// PickBest applies the weighted score. Ties go to more views today, then more
// views overall, then the smaller asset id.
func PickBest(today, firsts, all map[uint]int64) (uint, bool) {
	maxT, maxF, maxA := maxOf(today), maxOf(firsts), maxOf(all)

	candidates := map[uint]struct{}{}
	for _, m := range []map[uint]int64{today, firsts, all} {
		for id := range m {
			candidates[id] = struct{}{}
		}
	}

	var (
		bestID    uint
		bestScore = -1.0
		found     bool
	)
	for id := range candidates {
		t, f, a := today[id], firsts[id], all[id]
		score := 0.0
		if maxT > 0 {
			score += weightToday * float64(t) / float64(maxT)
		}
		if maxF > 0 {
			score += weightFirst * float64(f) / float64(maxF)
		}
		if maxA > 0 {
			score += weightAll * float64(a) / float64(maxA)
		}

		switch {
		case !found || score > bestScore+1e-9:
		case math.Abs(score-bestScore) < 1e-9 && beats(id, bestID, today, all):
		default:
			continue
		}
		bestID, bestScore, found = id, score, true
	}
	return bestID, found
}

func beats(id, current uint, today, all map[uint]int64) bool {
	if today[id] != today[current] {
		return today[id] > today[current]
	}
	if all[id] != all[current] {
		return all[id] > all[current]
	}
	return id < current
}

func mostViewed(all map[uint]int64) (uint, bool) {
	var (
		bestID uint
		best   int64
		found  bool
	)
	for id, n := range all {
		if !found || n > best || (n == best && id < bestID) {
			bestID, best, found = id, n, true
		}
	}
	return bestID, found
}

func toMap(rows []assetCount) map[uint]int64 {
	m := make(map[uint]int64, len(rows))
	for _, r := range rows {
		m[r.AssetID] = r.Cnt
	}
	return m
}

func sum(m map[uint]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}

func maxOf(m map[uint]int64) int64 {
	var n int64
	for _, v := range m {
		if v > n {
			n = v
		}
	}
	return n
}
