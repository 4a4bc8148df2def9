package services

import (
	"encoding/json"
	"testing"
	"time"

	"collections-backend/model"

	"gorm.io/datatypes"
)

func jsonDetails(t *testing.T, m map[string]any) datatypes.JSON {
	t.Helper()
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal details: %v", err)
	}
	return datatypes.JSON(b)
}

func TestCountsByStatus(t *testing.T) {
	users := []model.User{
		{Status: model.StatusPending},
		{Status: model.StatusPending},
		{Status: model.StatusOngoing},
		{Status: model.StatusArchived},
	}
	counts := CountsByStatus(users)
	if counts[model.StatusPending] != 2 || counts[model.StatusOngoing] != 1 || counts[model.StatusFinished] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
	if _, ok := counts[model.StatusArchived]; ok {
		t.Error("archived should not appear in dashboard counts")
	}
}

func TestAvgOverdueDaysEmpty(t *testing.T) {
	if got := AvgOverdueDays(nil, time.Now()); got != 0.0 {
		t.Errorf("empty set: got %v, want 0.0", got)
	}

	users := []model.User{
		// no amount owed
		{Details: jsonDetails(t, map[string]any{"due_date": "2020-01-01"})},
		// owed but not yet due
		{Details: jsonDetails(t, map[string]any{"amount_owed": 100, "due_date": "2999-01-01"})},
		// owed zero
		{Details: jsonDetails(t, map[string]any{"amount_owed": 0, "due_date": "2020-01-01"})},
	}
	if got := AvgOverdueDays(users, time.Now()); got != 0.0 {
		t.Errorf("no qualifying users: got %v, want 0.0", got)
	}
}

func TestAvgOverdueDays(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	users := []model.User{
		{Details: jsonDetails(t, map[string]any{"amount_owed": 100, "due_date": "2026-03-01"})}, // 10 days
		{Details: jsonDetails(t, map[string]any{"amount_owed": 50, "due_date": "2026-02-19"})},  // 20 days
		{Details: jsonDetails(t, map[string]any{"amount_owed": 50, "due_date": "not-a-date"})},  // ignored
	}
	if got := AvgOverdueDays(users, now); got != 15.0 {
		t.Errorf("got %v, want 15.0", got)
	}
}

func TestComputeCollections(t *testing.T) {
	users := []model.User{
		{Details: jsonDetails(t, map[string]any{"amount_owed": 1000, "total_paid": 300})},
		{Details: jsonDetails(t, map[string]any{
			"amount_owed": 500,
			"payment_history": []map[string]any{
				{"installment_number": 1, "amount": 100, "date": "2026-01-05"},
				{"installment_number": 2, "amount": 150, "date": "2026-02-05"},
			},
		})},
		{Details: jsonDetails(t, map[string]any{})},
	}

	totals := ComputeCollections(users)
	if totals.TotalOwed != 1500 {
		t.Errorf("TotalOwed = %v, want 1500", totals.TotalOwed)
	}
	if totals.TotalCollected != 550 {
		t.Errorf("TotalCollected = %v, want 550", totals.TotalCollected)
	}
	if totals.Remaining != 950 {
		t.Errorf("Remaining = %v, want 950", totals.Remaining)
	}
}

func TestComputeCollectionsRemainingNeverNegative(t *testing.T) {
	users := []model.User{
		{Details: jsonDetails(t, map[string]any{"amount_owed": 100, "total_paid": 250})},
	}
	if got := ComputeCollections(users).Remaining; got != 0 {
		t.Errorf("Remaining = %v, want 0", got)
	}
}

func TestPaymentTimelineSortedByDate(t *testing.T) {
	users := []model.User{
		{ID: 1, Name: "Alice", Details: jsonDetails(t, map[string]any{
			"payment_history": []map[string]any{
				{"installment_number": 2, "amount": 50, "date": "2026-03-01"},
				{"installment_number": 1, "amount": 50, "date": "2026-01-01"},
			},
		})},
		{ID: 2, Name: "Bob", Details: jsonDetails(t, map[string]any{
			"payment_history": []map[string]any{
				{"installment_number": 1, "amount": 75, "date": "2026-02-01"},
			},
		})},
	}

	events := PaymentTimeline(users)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	wantDates := []string{"2026-01-01", "2026-02-01", "2026-03-01"}
	for i, want := range wantDates {
		if events[i].Date != want {
			t.Errorf("event %d date = %q, want %q", i, events[i].Date, want)
		}
	}
	if events[1].UserName != "Bob" {
		t.Errorf("event 1 user = %q, want Bob", events[1].UserName)
	}
}

func TestUserStatusAfterExecution(t *testing.T) {
	owed := 100.0
	zero := 0.0
	if got := UserStatusAfterExecution(model.Details{AmountOwed: &owed}); got != model.StatusOngoing {
		t.Errorf("owed 100: got %q, want ongoing", got)
	}
	if got := UserStatusAfterExecution(model.Details{AmountOwed: &zero}); got != model.StatusFinished {
		t.Errorf("owed 0: got %q, want finished", got)
	}
	if got := UserStatusAfterExecution(model.Details{}); got != model.StatusFinished {
		t.Errorf("no amount: got %q, want finished", got)
	}
}

func TestGroupStatusAfterExecution(t *testing.T) {
	members := []model.User{
		{Details: jsonDetails(t, map[string]any{"amount_owed": 0})},
		{Details: jsonDetails(t, map[string]any{"amount_owed": 10})},
	}
	if got := GroupStatusAfterExecution(members); got != model.StatusOngoing {
		t.Errorf("one member owes: got %q, want ongoing", got)
	}

	settled := []model.User{
		{Details: jsonDetails(t, map[string]any{"amount_owed": 0})},
		{Details: jsonDetails(t, map[string]any{})},
	}
	if got := GroupStatusAfterExecution(settled); got != model.StatusFinished {
		t.Errorf("nobody owes: got %q, want finished", got)
	}
}
