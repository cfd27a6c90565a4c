package tasks

import (
	"fmt"
	"sync"

	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// Assignment strategy names recognized by the default registry.
const (
	StrategyRoundRobin      = "round_robin"
	StrategyLoadBalanced    = "load_balanced"
	StrategyCapabilityBased = "capability_based"
	StrategyNearestRobot    = "nearest_robot"
)

// SelectionContext is the snapshot a strategy evaluates against. It is
// built by the manager before evaluation so strategies never touch the
// manager's lock.
type SelectionContext struct {
	// Available robot ids, in the registry's deterministic order.
	Available []string
	// ActiveByRobot counts currently active local assignments per robot.
	ActiveByRobot map[string]int
}

// Strategy maps a ready task to a robot id. Implementations carrying
// state (like round robin's cursor) must be safe for concurrent use.
type Strategy interface {
	Name() string
	Select(task api.Task, sc SelectionContext) (string, bool)
}

// StrategyRegistry holds named strategies so a real capability or
// distance aware implementation can be swapped in without touching the
// manager.
type StrategyRegistry struct {
	mu         sync.Mutex
	strategies map[string]Strategy
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{strategies: map[string]Strategy{}}
}

func (r *StrategyRegistry) Register(s Strategy) {
	r.mu.Lock()
	r.strategies[s.Name()] = s
	r.mu.Unlock()
}

func (r *StrategyRegistry) Get(name string) (Strategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("strategy not registered: %s", name)
	}
	return s, nil
}

// DefaultStrategies returns a registry with the built-in policies.
// capability_based and nearest_robot currently alias load_balanced;
// they are registered separately so replacements slot in by name.
func DefaultStrategies() *StrategyRegistry {
	r := NewStrategyRegistry()
	r.Register(&roundRobin{})
	r.Register(loadBalanced{name: StrategyLoadBalanced})
	r.Register(loadBalanced{name: StrategyCapabilityBased})
	r.Register(loadBalanced{name: StrategyNearestRobot})
	return r
}

// roundRobin cycles over the available list, wrapping.
type roundRobin struct {
	mu   sync.Mutex
	next int
}

func (s *roundRobin) Name() string { return StrategyRoundRobin }

func (s *roundRobin) Select(_ api.Task, sc SelectionContext) (string, bool) {
	if len(sc.Available) == 0 {
		return "", false
	}
	s.mu.Lock()
	id := sc.Available[s.next%len(sc.Available)]
	s.next++
	s.mu.Unlock()
	return id, true
}

// loadBalanced picks the robot with the fewest active assignments,
// ties broken by iteration order of the available list.
type loadBalanced struct {
	name string
}

func (s loadBalanced) Name() string { return s.name }

func (s loadBalanced) Select(_ api.Task, sc SelectionContext) (string, bool) {
	if len(sc.Available) == 0 {
		return "", false
	}
	best := sc.Available[0]
	bestLoad := sc.ActiveByRobot[best]
	for _, id := range sc.Available[1:] {
		if load := sc.ActiveByRobot[id]; load < bestLoad {
			best = id
			bestLoad = load
		}
	}
	return best, true
}
