package services

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"collections-backend/model"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	analyticsCacheKey = "analytics:snapshot"
	analyticsCacheTTL = 5 * time.Minute
)

type AnalyticsService struct {
	DB    *gorm.DB
	Redis *redis.Client
}

type CollectionsTotals struct {
	TotalOwed      float64 `json:"total_owed"`
	TotalCollected float64 `json:"total_collected"`
	Remaining      float64 `json:"remaining"`
}

type PaymentEvent struct {
	UserID            uint    `json:"user_id"`
	UserName          string  `json:"user_name"`
	Amount            float64 `json:"amount"`
	Date              string  `json:"date"`
	InstallmentNumber int     `json:"installment_number,omitempty"`
}

type AnalyticsSnapshot struct {
	CountsByStatus  map[string]int    `json:"counts_by_status"`
	AvgOverdueDays  float64           `json:"avg_overdue_days"`
	TotalUsers      int               `json:"total_users"`
	Collections     CollectionsTotals `json:"collections"`
	PaymentTimeline []PaymentEvent    `json:"payment_timeline"`
}

// Snapshot serves the cached analytics when Redis is configured and warm,
// recomputing and re-caching otherwise.
func (s *AnalyticsService) Snapshot(ctx context.Context) (*AnalyticsSnapshot, error) {
	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, analyticsCacheKey).Bytes(); err == nil {
			var snap AnalyticsSnapshot
			if err := json.Unmarshal(cached, &snap); err == nil {
				return &snap, nil
			}
		}
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the snapshot from the store and rewrites the cache.
func (s *AnalyticsService) Refresh(ctx context.Context) (*AnalyticsSnapshot, error) {
	var users []model.User
	if err := s.DB.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}

	snap := &AnalyticsSnapshot{
		CountsByStatus:  CountsByStatus(users),
		AvgOverdueDays:  AvgOverdueDays(users, time.Now()),
		TotalUsers:      len(users),
		Collections:     ComputeCollections(users),
		PaymentTimeline: PaymentTimeline(users),
	}

	if s.Redis != nil {
		payload, err := json.Marshal(snap)
		if err == nil {
			if err := s.Redis.Set(ctx, analyticsCacheKey, payload, analyticsCacheTTL).Err(); err != nil {
				log.Printf("failed to cache analytics snapshot: %v", err)
			}
		}
	}
	return snap, nil
}

// CountsByStatus tallies users over the three active statuses; archived
// users are excluded from the dashboard counts.
func CountsByStatus(users []model.User) map[string]int {
	counts := map[string]int{
		model.StatusPending:  0,
		model.StatusOngoing:  0,
		model.StatusFinished: 0,
	}
	for _, u := range users {
		if _, ok := counts[u.Status]; ok {
			counts[u.Status]++
		}
	}
	return counts
}

// AvgOverdueDays is the mean of (today - due_date) in days over users that
// still owe money past their due date. 0.0 when no user qualifies.
func AvgOverdueDays(users []model.User, now time.Time) float64 {
	today := now.Truncate(24 * time.Hour)
	var total, count int

	for _, u := range users {
		d := model.ParseDetails(u.Details)
		if d.AmountOwed == nil || *d.AmountOwed <= 0 {
			continue
		}
		due, ok := parseISODate(d.DueDate)
		if !ok || !due.Before(today) {
			continue
		}
		total += int(today.Sub(due).Hours() / 24)
		count++
	}

	if count == 0 {
		return 0.0
	}
	return float64(total) / float64(count)
}

// ComputeCollections sums owed and collected amounts across all users.
// Collected prefers the explicit total_paid detail, falling back to summed
// payment history. Remaining never goes negative.
func ComputeCollections(users []model.User) CollectionsTotals {
	owed := decimal.Zero
	collected := decimal.Zero

	for _, u := range users {
		d := model.ParseDetails(u.Details)
		if d.AmountOwed != nil {
			owed = owed.Add(decimal.NewFromFloat(*d.AmountOwed))
		}
		switch {
		case d.TotalPaid != nil:
			collected = collected.Add(decimal.NewFromFloat(*d.TotalPaid))
		default:
			for _, p := range d.PaymentHistory {
				collected = collected.Add(decimal.NewFromFloat(p.Amount))
			}
		}
	}

	remaining := owed.Sub(collected)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return CollectionsTotals{
		TotalOwed:      owed.InexactFloat64(),
		TotalCollected: collected.InexactFloat64(),
		Remaining:      remaining.InexactFloat64(),
	}
}

// PaymentTimeline flattens every user's payment history into one
// date-sorted sequence.
func PaymentTimeline(users []model.User) []PaymentEvent {
	events := []PaymentEvent{}
	for _, u := range users {
		d := model.ParseDetails(u.Details)
		for _, p := range d.PaymentHistory {
			events = append(events, PaymentEvent{
				UserID:            u.ID,
				UserName:          u.Name,
				Amount:            p.Amount,
				Date:              p.Date,
				InstallmentNumber: p.InstallmentNumber,
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].UserID < events[j].UserID
	})
	return events
}

func parseISODate(s string) (time.Time, bool) {
	if len(s) < 10 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
