package ban

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and flushes
// all ban and report keys before returning. Tests that call this helper
// require a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	clean := func() {
		for _, pattern := range []string{UserPrefix + "test_*", IPPrefix + "test_*", ReportsPrefix + "test_*"} {
			iter := client.Scan(ctx, 0, pattern, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	clean()
	t.Cleanup(func() {
		clean()
		client.Close()
	})
	return NewStore(client)
}

func TestIsBanned_NotBanned(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	banned, reason, err := store.IsBanned(ctx, "test_no_ban", "test_203.0.113.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if banned {
		t.Errorf("expected not banned, got banned (reason=%q)", reason)
	}
}

func TestBanUserAndCheck(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID := "test_ban_check"

	if err := store.BanUser(ctx, userID, 30*time.Second, "spam"); err != nil {
		t.Fatalf("BanUser() error: %v", err)
	}

	banned, reason, err := store.IsBanned(ctx, userID, "")
	if err != nil {
		t.Fatalf("IsBanned() error: %v", err)
	}
	if !banned {
		t.Fatal("expected banned=true")
	}
	if reason != "spam" {
		t.Errorf("expected reason=%q, got %q", "spam", reason)
	}

	remaining, err := store.Remaining(ctx, userID)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining <= 0 || remaining > 30 {
		t.Errorf("expected remaining in (0,30], got %d", remaining)
	}
}

func TestBanIP(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ip := "test_198.51.100.7"

	if err := store.BanIP(ctx, ip, time.Minute, "abuse"); err != nil {
		t.Fatalf("BanIP() error: %v", err)
	}

	// An unbanned user id on a banned IP is still refused.
	banned, reason, err := store.IsBanned(ctx, "test_clean_user", ip)
	if err != nil {
		t.Fatalf("IsBanned() error: %v", err)
	}
	if !banned {
		t.Fatal("expected banned=true for banned IP")
	}
	if reason != "abuse" {
		t.Errorf("expected reason=%q, got %q", "abuse", reason)
	}
}

func TestUnban(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID := "test_unban"

	if err := store.BanUser(ctx, userID, time.Minute, "test"); err != nil {
		t.Fatalf("BanUser() error: %v", err)
	}

	banned, _, _ := store.IsBanned(ctx, userID, "")
	if !banned {
		t.Fatal("expected banned=true after BanUser()")
	}

	if err := store.Unban(ctx, userID); err != nil {
		t.Fatalf("Unban() error: %v", err)
	}
	banned, _, err := store.IsBanned(ctx, userID, "")
	if err != nil {
		t.Fatalf("IsBanned() error: %v", err)
	}
	if banned {
		t.Error("expected not banned after Unban()")
	}
}

// ---------------------------------------------------------------------------
// Escalation tests
// ---------------------------------------------------------------------------

func TestEscalationDuration(t *testing.T) {
	cases := []struct {
		count    int
		expected time.Duration
	}{
		{0, Ban15Min},
		{1, Ban15Min},
		{2, Ban1Hour},
		{3, Ban24Hour},
		{4, Ban24Hour},
		{10, Ban24Hour},
	}
	for _, tc := range cases {
		got := escalationDuration(tc.count)
		if got != tc.expected {
			t.Errorf("escalationDuration(%d) = %v, want %v", tc.count, got, tc.expected)
		}
	}
}

func TestOffenseCount_NoOffenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.OffenseCount(ctx, "test_no_offenses")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 offenses, got %d", count)
	}
}

func TestReportAndCheck_BelowThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID := "test_report_below"

	banned, duration, err := store.ReportAndCheck(ctx, userID, "rude")
	if err != nil {
		t.Fatalf("ReportAndCheck() error: %v", err)
	}
	if banned {
		t.Error("expected banned=false after 1 report")
	}
	if duration != 0 {
		t.Errorf("expected duration=0, got %v", duration)
	}

	banned, _, err = store.ReportAndCheck(ctx, userID, "rude")
	if err != nil {
		t.Fatalf("ReportAndCheck() error: %v", err)
	}
	if banned {
		t.Error("expected banned=false after 2 reports")
	}

	isBanned, _, _ := store.IsBanned(ctx, userID, "")
	if isBanned {
		t.Error("user should not be banned with only 2 reports")
	}
}

func TestReportAndCheck_AutoBanAt3Reports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID := "test_report_autoban"

	store.ReportAndCheck(ctx, userID, "spam")
	store.ReportAndCheck(ctx, userID, "spam")

	banned, duration, err := store.ReportAndCheck(ctx, userID, "spam")
	if err != nil {
		t.Fatalf("ReportAndCheck() error: %v", err)
	}
	if !banned {
		t.Fatal("expected banned=true after 3 reports")
	}
	// 3rd report count = 3, which maps to Ban24Hour via escalationDuration.
	if duration != Ban24Hour {
		t.Errorf("expected ban duration %v, got %v", Ban24Hour, duration)
	}

	isBanned, reason, _ := store.IsBanned(ctx, userID, "")
	if !isBanned {
		t.Fatal("expected IsBanned=true after auto-ban")
	}
	if reason != "multiple_reports" {
		t.Errorf("expected reason=%q, got %q", "multiple_reports", reason)
	}
}

func TestReportAndCheck_SubsequentReportsStillBan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID := "test_report_subsequent"

	store.ReportAndCheck(ctx, userID, "spam")
	store.ReportAndCheck(ctx, userID, "spam")
	store.ReportAndCheck(ctx, userID, "spam")

	banned, duration, err := store.ReportAndCheck(ctx, userID, "spam")
	if err != nil {
		t.Fatalf("ReportAndCheck() error: %v", err)
	}
	if !banned {
		t.Fatal("expected banned=true for 4th+ report")
	}
	if duration != Ban24Hour {
		t.Errorf("expected %v, got %v", Ban24Hour, duration)
	}
}

func TestReportCounterTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID := "test_report_ttl"

	store.ReportAndCheck(ctx, userID, "test")

	ttl, err := store.client.TTL(ctx, ReportsPrefix+userID).Result()
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	// TTL should be positive and close to 24h. Allow 10s slack.
	if ttl < ReportsTTL-10*time.Second || ttl > ReportsTTL {
		t.Errorf("expected TTL ~%v, got %v", ReportsTTL, ttl)
	}
}
