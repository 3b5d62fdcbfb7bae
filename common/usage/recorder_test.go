// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestRecorderUpsertsBucket(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO rampart_api_key_usage").
		WithArgs("key-1", "/api/v1/security/analyze",
			now.Format("2006-01-02"), now.Hour(),
			1, 0, 120, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewRecorder(db)
	r.Track(Event{
		APIKeyID: "key-1",
		Endpoint: "/api/v1/security/analyze",
		Success:  true,
		Tokens:   120,
	})
	r.Close()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecorderCountsFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO rampart_api_key_usage").
		WithArgs("key-1", "/api/v1/llm/chat",
			sqlmock.AnyArg(), sqlmock.AnyArg(),
			0, 1, 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewRecorder(db)
	r.Track(Event{APIKeyID: "key-1", Endpoint: "/api/v1/llm/chat", Success: false})
	r.Close()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecorderIgnoresAnonymousEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	r := NewRecorder(db)
	r.Track(Event{Endpoint: "/api/v1/filter"})
	r.Close()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected query for anonymous event: %v", err)
	}
}

func TestSummarizeKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"endpoint", "usage_date", "usage_hour",
		"request_count", "success_count", "error_count", "total_tokens", "total_cost_cents",
	}).
		AddRow("/api/v1/security/analyze", day, 10, 40, 38, 2, 5200, 0).
		AddRow("/api/v1/llm/chat", day, 9, 12, 12, 0, 9000, 27)

	mock.ExpectQuery("SELECT endpoint, usage_date, usage_hour").
		WithArgs("key-1", "2026-08-01").
		WillReturnRows(rows)

	r := NewRecorder(db)
	defer r.Close()

	summary, err := r.SummarizeKey(context.Background(),
		"key-1", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SummarizeKey: %v", err)
	}

	if summary.RequestCount != 52 {
		t.Errorf("RequestCount = %d, want 52", summary.RequestCount)
	}
	if summary.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", summary.ErrorCount)
	}
	if summary.TotalTokens != 14200 {
		t.Errorf("TotalTokens = %d, want 14200", summary.TotalTokens)
	}
	if summary.CostCents != 27 {
		t.Errorf("CostCents = %d, want 27", summary.CostCents)
	}
	if got := summary.ByEndpoint["/api/v1/llm/chat"]; got != 12 {
		t.Errorf("ByEndpoint[llm/chat] = %d, want 12", got)
	}
	if len(summary.Buckets) != 2 {
		t.Errorf("len(Buckets) = %d, want 2", len(summary.Buckets))
	}
}
