package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences upsert: every call bumps the
// current value by the increment argument (1 when absent).
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("OP")
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "OP-2026-00001" {
		t.Errorf("expected OP-2026-00001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "OP-2026-00002" {
		t.Errorf("expected OP-2026-00002, got %s", num)
	}
}

func TestNextValue_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("PB")
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	opts := &Options{
		Strategy:  StrategyCached,
		RangeSize: 10,
	}

	// First call allocates the range 1..10; DB value jumps to 10.
	v, err := svc.NextValue(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Errorf("expected 1, got %d", v)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value 10, got %d", q.currentValue)
	}

	// Second call is served from memory.
	v, err = svc.NextValue(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to stay 10, got %d", q.currentValue)
	}

	// Exhaust the range; the next call allocates 11..20.
	for i := 0; i < 8; i++ {
		if _, err := svc.NextValue(ctx, cfg, opts, period); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	v, err = svc.NextValue(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 11 {
		t.Errorf("expected 11, got %d", v)
	}
	if q.currentValue != 20 {
		t.Errorf("expected DB value 20, got %d", q.currentValue)
	}
}

func TestBuildKey_Periods(t *testing.T) {
	svc := New(&mockQuerier{})
	period := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		reset string
		want  string
	}{
		{"year", "OP_2026"},
		{"month", "OP_2026_07"},
		{"never", "OP"},
	}
	for _, c := range cases {
		cfg := Config{Prefix: "OP", ResetPeriod: c.reset}
		if got := svc.buildKey(cfg, period); got != c.want {
			t.Errorf("reset %q: expected %s, got %s", c.reset, c.want, got)
		}
	}
}

func TestParseNumber(t *testing.T) {
	if got := ParseNumber("OP-2026-00042"); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if got := ParseNumber("OP-00007"); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := ParseNumber("garbage"); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}
