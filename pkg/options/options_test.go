package options

import (
	"testing"
	"time"
)

func TestResolve_Defaults(t *testing.T) {
	r := Resolve()
	if r.History != HistoryReplace || !r.Shallow || r.Scroll || r.ClearOnDefault {
		t.Fatalf("Resolve(): got %+v", r)
	}
	if r.Throttle != DefaultThrottle {
		t.Fatalf("Throttle: got %v, want %v", r.Throttle, DefaultThrottle)
	}
	if r.Transition != nil {
		t.Fatal("Transition: got non-nil, want nil")
	}
}

func TestResolve_Precedence(t *testing.T) {
	group := Join(Throttle(50*time.Millisecond), Push(), ClearOnDefault(true))
	key := Join(Throttle(200*time.Millisecond), Shallow(false))
	call := Throttle(10 * time.Millisecond)

	r := Resolve(call, key, group)
	if r.Throttle != 10*time.Millisecond {
		t.Errorf("Throttle: got %v, want 10ms", r.Throttle)
	}
	if r.History != HistoryPush {
		t.Errorf("History: got %v, want push from group", r.History)
	}
	if r.Shallow {
		t.Error("Shallow: got true, want false from key")
	}
	if !r.ClearOnDefault {
		t.Error("ClearOnDefault: got false, want true from group")
	}

	r = Resolve(Options{}, key, group)
	if r.Throttle != 200*time.Millisecond {
		t.Errorf("Throttle without call layer: got %v, want 200ms", r.Throttle)
	}

	r = Resolve(Options{}, Options{}, group)
	if r.Throttle != 50*time.Millisecond {
		t.Errorf("Throttle from group only: got %v, want 50ms", r.Throttle)
	}
}

func TestResolve_ExplicitFalseOverridesWeakerTrue(t *testing.T) {
	r := Resolve(ClearOnDefault(false), ClearOnDefault(true))
	if r.ClearOnDefault {
		t.Fatal("explicit false at call level should win")
	}
}

func TestResolve_NegativeThrottleClamped(t *testing.T) {
	if r := Resolve(Throttle(-time.Second)); r.Throttle != 0 {
		t.Fatalf("Throttle: got %v, want 0", r.Throttle)
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name string
		navs []Navigation
		want Navigation
	}{
		{
			name: "empty",
			want: Navigation{History: HistoryReplace, Shallow: true},
		},
		{
			name: "push wins",
			navs: []Navigation{
				{History: HistoryReplace, Shallow: true},
				{History: HistoryPush, Shallow: true},
			},
			want: Navigation{History: HistoryPush, Shallow: true},
		},
		{
			name: "non-shallow wins",
			navs: []Navigation{
				{Shallow: true},
				{Shallow: false},
			},
			want: Navigation{History: HistoryReplace, Shallow: false},
		},
		{
			name: "scroll wins",
			navs: []Navigation{
				{Shallow: true, Scroll: true},
				{Shallow: true},
			},
			want: Navigation{History: HistoryReplace, Shallow: true, Scroll: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Combine(tt.navs...); got != tt.want {
				t.Fatalf("Combine: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseHistory(t *testing.T) {
	for in, want := range map[string]History{"push": HistoryPush, "PUSH": HistoryPush, "replace": HistoryReplace, "": HistoryReplace} {
		got, err := ParseHistory(in)
		if err != nil || got != want {
			t.Errorf("ParseHistory(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseHistory("reload"); err == nil {
		t.Error("ParseHistory(reload) should fail")
	}
	if HistoryPush.String() != "push" || HistoryReplace.String() != "replace" {
		t.Error("History.String mismatch")
	}
}

func TestTransitionFunc(t *testing.T) {
	var order []string
	tr := TransitionFunc(func(apply func()) {
		order = append(order, "before")
		apply()
		order = append(order, "after")
	})
	r := Resolve(WithTransition(tr))
	r.Transition.Start(func() { order = append(order, "apply") })
	if len(order) != 3 || order[1] != "apply" {
		t.Fatalf("order: got %v", order)
	}
}

func TestResolve_TransitionFallsThrough(t *testing.T) {
	var calls int
	tr := TransitionFunc(func(apply func()) {
		calls++
		apply()
	})

	r := Resolve(Throttle(time.Millisecond), Options{}, WithTransition(tr))
	if r.Transition == nil {
		t.Fatal("Transition: got nil, want group transition")
	}
	r.Transition.Start(func() {})
	if calls != 1 {
		t.Fatalf("calls: got %d, want 1", calls)
	}
}

func TestResolveEqual(t *testing.T) {
	never := func(a, b any) bool { return false }
	always := func(a, b any) bool { return true }

	if eq := ResolveEqual(Options{}, Options{}); eq != nil {
		t.Fatal("ResolveEqual with no layer setting Equal: got non-nil")
	}
	if eq := ResolveEqual(Options{}, WithEqual(never), WithEqual(always)); eq == nil || eq(1, 1) {
		t.Fatal("ResolveEqual: want the strongest layer's Equal")
	}
}

func TestJoinLaterWins(t *testing.T) {
	o := Join(Push(), Throttle(time.Second), Replace(), Shallow(false))
	r := Resolve(o)
	if r.History != HistoryReplace {
		t.Errorf("History: got %v, want replace", r.History)
	}
	if r.Throttle != time.Second {
		t.Errorf("Throttle: got %v, want 1s", r.Throttle)
	}
	if r.Shallow {
		t.Error("Shallow: got true, want false")
	}
}

func TestMergeKeepsWeakerFunc(t *testing.T) {
	eq := func(a, b any) bool { return true }
	o := WithEqual(eq).Merge(Throttle(time.Second))
	if o.Equal == nil {
		t.Fatal("Equal: got nil after merging a layer without Equal")
	}
	if o.Throttle == nil || *o.Throttle != time.Second {
		t.Fatalf("Throttle: got %v, want 1s", o.Throttle)
	}
}
