package usecase

import (
	"fmt"
	"os"
	"sort"

	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"gopkg.in/yaml.v3"
)

// LoadPlan parses and validates a YAML deployment plan
func LoadPlan(path string) (*models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	var plan models.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment plan: %w", err)
	}
	return &plan, nil
}

// PlanSteps linearizes a plan: contracts in dependency order followed by
// initialization calls in declaration order.
func PlanSteps(plan *models.Plan) ([]*models.StepRecord, error) {
	graph := NewDependencyGraph(plan.Contracts)
	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	steps := make([]*models.StepRecord, 0, len(order)+len(plan.Initialize))
	for _, name := range order {
		c := plan.Contracts[name]
		steps = append(steps, &models.StepRecord{
			Name:         name,
			Kind:         models.StepDeploy,
			Artifact:     c.Artifact,
			Args:         c.Args,
			Dependencies: c.Dependencies(),
			GasLimit:     c.Gas,
			Status:       models.StepPending,
		})
	}

	used := make(map[string]int)
	for _, call := range plan.Initialize {
		name := fmt.Sprintf("%s.%s", call.Target, call.Method)
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s#%d", name, n)
		}
		steps = append(steps, &models.StepRecord{
			Name:         name,
			Kind:         models.StepInitialize,
			Artifact:     plan.Contracts[call.Target].Artifact,
			Target:       call.Target,
			Method:       call.Method,
			Args:         call.Args,
			Dependencies: call.Dependencies(),
			GasLimit:     call.Gas,
			Status:       models.StepPending,
		})
	}

	return steps, nil
}

// DependencyGraph represents a directed acyclic graph of plan contracts
type DependencyGraph struct {
	nodes map[string]*models.ContractSpec
	edges map[string][]string // dependency -> dependents
}

// NewDependencyGraph builds the graph from declared deps and "@Name" arguments
func NewDependencyGraph(contracts map[string]*models.ContractSpec) *DependencyGraph {
	graph := &DependencyGraph{
		nodes: contracts,
		edges: make(map[string][]string),
	}

	for name, c := range contracts {
		for _, dep := range c.Dependencies() {
			if _, exists := contracts[dep]; !exists {
				continue
			}
			graph.edges[dep] = append(graph.edges[dep], name)
		}
	}

	return graph
}

// TopologicalSort returns contract names in execution order, breaking ties
// by name, or an error if there's a cycle
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	for name := range g.nodes {
		inDegree[name] = 0
	}

	for name, c := range g.nodes {
		for _, dep := range c.Dependencies() {
			if _, exists := g.nodes[dep]; !exists {
				return nil, fmt.Errorf("contract '%s' depends on non-existent contract '%s'", name, dep)
			}
			inDegree[name]++
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, dependent := range g.edges[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycleNodes []string
		for name, degree := range inDegree {
			if degree > 0 {
				cycleNodes = append(cycleNodes, name)
			}
		}
		sort.Strings(cycleNodes)
		return nil, fmt.Errorf("circular dependency detected involving contracts: %v", cycleNodes)
	}

	return result, nil
}
