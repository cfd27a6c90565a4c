package tasks

import (
	"testing"

	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// TestRoundRobinWrap tests the cursor cycles over the available list.
func TestRoundRobinWrap(t *testing.T) {
	s := &roundRobin{}
	sc := SelectionContext{Available: []string{"a", "b", "c"}}

	want := []string{"a", "b", "c", "a", "b"}
	for i, exp := range want {
		got, ok := s.Select(api.Task{}, sc)
		if !ok || got != exp {
			t.Fatalf("pick %d: want %q got %q ok=%v", i, exp, got, ok)
		}
	}
}

// TestRoundRobinEmpty tests selection with no available robots.
func TestRoundRobinEmpty(t *testing.T) {
	s := &roundRobin{}
	if _, ok := s.Select(api.Task{}, SelectionContext{}); ok {
		t.Fatalf("selected from empty fleet")
	}
}

// TestLoadBalancedPicksLeastActive tests the minimum-load choice.
func TestLoadBalancedPicksLeastActive(t *testing.T) {
	s := loadBalanced{name: StrategyLoadBalanced}
	sc := SelectionContext{
		Available:     []string{"a", "b", "c"},
		ActiveByRobot: map[string]int{"a": 2, "b": 0, "c": 1},
	}
	got, ok := s.Select(api.Task{}, sc)
	if !ok || got != "b" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

// TestLoadBalancedTieBreak tests ties resolve to the first candidate.
func TestLoadBalancedTieBreak(t *testing.T) {
	s := loadBalanced{name: StrategyLoadBalanced}
	sc := SelectionContext{
		Available:     []string{"a", "b"},
		ActiveByRobot: map[string]int{},
	}
	got, ok := s.Select(api.Task{}, sc)
	if !ok || got != "a" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

// TestDefaultStrategies tests the registry contents and aliases.
func TestDefaultStrategies(t *testing.T) {
	r := DefaultStrategies()
	for _, name := range []string{
		StrategyRoundRobin,
		StrategyLoadBalanced,
		StrategyCapabilityBased,
		StrategyNearestRobot,
	} {
		s, err := r.Get(name)
		if err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("strategy %s reports name %s", name, s.Name())
		}
	}
	if _, err := r.Get("teleport"); err == nil {
		t.Fatalf("unknown strategy lookup succeeded")
	}
}

// TestRegistryReplace tests that a re-registered name wins.
type fixedStrategy struct{ robot string }

func (s fixedStrategy) Name() string { return StrategyLoadBalanced }
func (s fixedStrategy) Select(_ api.Task, _ SelectionContext) (string, bool) {
	return s.robot, true
}

func TestRegistryReplace(t *testing.T) {
	r := DefaultStrategies()
	r.Register(fixedStrategy{robot: "pinned"})
	s, err := r.Get(StrategyLoadBalanced)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := s.Select(api.Task{}, SelectionContext{Available: []string{"other"}})
	if got != "pinned" {
		t.Fatalf("replacement not used, got %q", got)
	}
}
