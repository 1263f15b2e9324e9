package querystate

import (
	"testing"

	"github.com/vango-dev/querystate/pkg/options"
	"github.com/vango-dev/querystate/pkg/parsers"
)

func TestParam_GetSet(t *testing.T) {
	env := newTestEnv(t, "page=2")
	page := Use(env.rt, "page", parsers.Int.WithDefault(1))
	defer page.Close()

	if v, ok := page.Get(); !ok || v != 2 {
		t.Fatalf("got %v, %v, want 2, true", v, ok)
	}
	params := settle(t, env, page.Set(5))
	if got := params.Get("page"); got != "5" {
		t.Fatalf("URL: got %q, want 5", got)
	}
	if got := page.Value(); got != 5 {
		t.Fatalf("value: got %d, want 5", got)
	}
}

func TestParam_RemoveFallsBackToDefault(t *testing.T) {
	env := newTestEnv(t, "page=2")
	page := Use(env.rt, "page", parsers.Int.WithDefault(1))

	params := settle(t, env, page.Remove())
	if params.Has("page") {
		t.Fatalf("got %q, want page removed", params.Encode())
	}
	if got := page.Value(); got != 1 {
		t.Fatalf("value: got %d, want 1", got)
	}
}

func TestParam_NoDefault(t *testing.T) {
	env := newTestEnv(t, "")
	q := Use(env.rt, "q", parsers.String)

	if v, ok := q.Get(); ok || v != "" {
		t.Fatalf("got %q, %v, want empty, false", v, ok)
	}
}

func TestParam_Update(t *testing.T) {
	env := newTestEnv(t, "")
	count := Use(env.rt, "count", parsers.Int.WithDefault(0).WithOptions(options.ClearOnDefault(true)))

	settle(t, env, count.Update(func(n int) int { return n + 1 }))
	if got := env.mem.SearchParams().Get("count"); got != "1" {
		t.Fatalf("URL: got %q, want 1", got)
	}
	params := settle(t, env, count.Update(func(n int) int { return n - 1 }))
	if params.Has("count") {
		t.Fatalf("got %q, want count cleared at default", params.Encode())
	}
}

func TestParam_SharesStateWithBinding(t *testing.T) {
	env := newTestEnv(t, "")
	tags := Use(env.rt, "tags", parsers.ArrayOf(parsers.String, ","))
	other := env.rt.Bind(Keys{"tags": parsers.ArrayOf(parsers.String, ",")})

	f := other.Set("tags", []string{"go", "web"})
	got, ok := tags.Get()
	if !ok || len(got) != 2 || got[1] != "web" {
		t.Fatalf("got %v, %v, want [go web]", got, ok)
	}
	if got := settle(t, env, f).Get("tags"); got != "go,web" {
		t.Fatalf("URL: got %q, want go,web", got)
	}
}
