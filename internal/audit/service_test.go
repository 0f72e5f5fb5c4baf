package audit

import (
	"context"
	"strings"
	"testing"
	"time"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastOffset int
	lastLimit  int
	lastFilter TimelineFilters
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilter = f
	s.lastOffset = offset
	s.lastLimit = limit
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func (s *stubTimelineRepo) TimelineAll(ctx context.Context, f TimelineFilters) ([]TimelineRow, error) {
	s.lastFilter = f
	return s.rows, nil
}

func timelineRow(ts, actor, action string) TimelineRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{At: at, Actor: actor, Action: action, Entity: "account", EntityID: "ACC000000001"}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{
		rows: []TimelineRow{
			timelineRow("2026-03-10T10:00:00Z", "c1", "account.opened"),
			timelineRow("2026-03-09T09:00:00Z", "c1", "ledger.deposit"),
			timelineRow("2026-03-08T08:00:00Z", "operator", "account.suspended"),
		},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext {
		t.Fatalf("expected hasNext true")
	}
	if result.Paging.NextPage != 2 {
		t.Fatalf("expected next page 2, got %d", result.Paging.NextPage)
	}
	if repo.lastLimit != 3 {
		t.Fatalf("expected limit 3, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 0 {
		t.Fatalf("expected offset 0, got %d", repo.lastOffset)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	if _, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != maxPageSize+1 {
		t.Fatalf("expected limit %d, got %d", maxPageSize+1, repo.lastLimit)
	}

	if _, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastOffset != 2*defaultPageSize {
		t.Fatalf("expected offset %d, got %d", 2*defaultPageSize, repo.lastOffset)
	}
}

func TestServiceExportReturnsAllRows(t *testing.T) {
	repo := &stubTimelineRepo{
		rows: []TimelineRow{
			timelineRow("2026-03-10T10:00:00Z", "c1", "ledger.transfer"),
			timelineRow("2026-03-09T09:00:00Z", "c1", "ledger.withdrawal"),
		},
	}
	svc := NewService(repo)
	rows, err := svc.Export(context.Background(), TimelineFilters{Actor: "c1"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if repo.lastFilter.Actor != "c1" {
		t.Fatalf("expected actor filter passed through, got %q", repo.lastFilter.Actor)
	}
}

func TestExporterWritesCSV(t *testing.T) {
	rows := []TimelineRow{
		{
			At:       time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
			Actor:    "c1",
			Action:   "ledger.deposit",
			Entity:   "transaction",
			EntityID: "42",
			Meta:     `{"amount":"50.00"}`,
		},
	}
	data, err := NewExporter().WriteCSV(rows)
	if err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out := string(data)
	if !strings.HasPrefix(out, "At,Actor,Action,Entity,Entity ID,Meta\n") {
		t.Fatalf("missing header, got %q", out)
	}
	if !strings.Contains(out, "2026-03-10T10:00:00Z,c1,ledger.deposit,transaction,42") {
		t.Fatalf("missing row, got %q", out)
	}
}
