package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

type fakeLookup struct {
	codes map[string]int
	err   error
	calls int
	last  [2]string
}

func (f *fakeLookup) LocationCode(_ context.Context, city, state string) (int, bool, error) {
	f.calls++
	f.last = [2]string{city, state}
	if f.err != nil {
		return 0, false, f.err
	}
	code, ok := f.codes[city+"|"+state]
	return code, ok, nil
}

func TestResolveStaticTable(t *testing.T) {
	lookup := &fakeLookup{}
	r := New([]models.LocationEntry{{City: "Seattle", State: "WA", Code: 1027744}}, lookup, 0, zaptest.NewLogger(t))

	if got := r.Resolve(context.Background(), "seattle", "Washington"); got != 1027744 {
		t.Errorf("expected static code, got %d", got)
	}
	if lookup.calls != 0 {
		t.Error("static hit must not consult the lookup table")
	}
}

func TestResolveLookupExpandsState(t *testing.T) {
	lookup := &fakeLookup{codes: map[string]int{"Austin|Texas": 1026201}}
	r := New(nil, lookup, 0, zaptest.NewLogger(t))

	if got := r.Resolve(context.Background(), "Austin", "tx"); got != 1026201 {
		t.Errorf("expected looked-up code, got %d", got)
	}
	if lookup.last[1] != "Texas" {
		t.Errorf("expected expanded state name, got %q", lookup.last[1])
	}
}

func TestResolveDefaults(t *testing.T) {
	r := New(nil, &fakeLookup{}, 0, zaptest.NewLogger(t))
	if got := r.Resolve(context.Background(), "Nowhere", "ZZ"); got != DefaultCode {
		t.Errorf("expected default code, got %d", got)
	}

	broken := New(nil, &fakeLookup{err: errors.New("timeout")}, 1234, zaptest.NewLogger(t))
	if got := broken.Resolve(context.Background(), "Austin", "TX"); got != 1234 {
		t.Errorf("expected configured default on lookup error, got %d", got)
	}

	noTable := New(nil, nil, 0, nil)
	if got := noTable.Resolve(context.Background(), "Austin", "TX"); got != DefaultCode {
		t.Errorf("expected default without lookup, got %d", got)
	}
}

type hangingLookup struct{}

func (hangingLookup) LocationCode(ctx context.Context, _, _ string) (int, bool, error) {
	<-ctx.Done()
	return 0, false, ctx.Err()
}

func TestResolveBoundsSlowLookup(t *testing.T) {
	r := New(nil, hangingLookup{}, 0, zaptest.NewLogger(t))
	r.timeout = 20 * time.Millisecond

	start := time.Now()
	if got := r.Resolve(context.WithoutCancel(context.Background()), "Austin", "TX"); got != DefaultCode {
		t.Errorf("expected default code after timeout, got %d", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("lookup was not bounded: %v", elapsed)
	}
}

func TestStateName(t *testing.T) {
	if StateName(" wa ") != "Washington" {
		t.Error("expected abbreviation expansion")
	}
	if StateName("Ontario") != "Ontario" {
		t.Error("expected unknown state unchanged")
	}
}
