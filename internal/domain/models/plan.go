package models

import (
	"fmt"
	"sort"
	"strings"
)

// Plan describes a multi-contract deployment loaded from YAML
type Plan struct {
	Group      string                   `yaml:"group"`
	Network    string                   `yaml:"network,omitempty"`
	FeeToken   string                   `yaml:"feeToken,omitempty"`
	Contracts  map[string]*ContractSpec `yaml:"contracts"`
	Initialize []*InitCall              `yaml:"initialize,omitempty"`
}

// ContractSpec is one contract of a plan. Args may reference the address
// of another contract with "@Name".
type ContractSpec struct {
	Artifact string   `yaml:"artifact"`
	Args     []string `yaml:"args,omitempty"`
	Deps     []string `yaml:"deps,omitempty"`
	Gas      uint64   `yaml:"gas,omitempty"`
}

// InitCall is a post-deployment call on a deployed contract of the plan
type InitCall struct {
	Target string   `yaml:"target"`
	Method string   `yaml:"method"`
	Args   []string `yaml:"args,omitempty"`
	Gas    uint64   `yaml:"gas,omitempty"`
}

// DeploymentRequest describes a single contract deployment
type DeploymentRequest struct {
	Artifact string
	Args     []string
	Network  string
	GasLimit uint64
	FeeToken string
}

// AddressRef returns the contract name referenced by an "@Name" argument
func AddressRef(arg string) (string, bool) {
	if len(arg) < 2 || arg[0] != '@' {
		return "", false
	}
	return arg[1:], true
}

// Dependencies returns the declared deps plus contracts referenced in args, sorted
func (c *ContractSpec) Dependencies() []string {
	return collectDeps(c.Deps, c.Args)
}

// Dependencies returns the call target plus contracts referenced in args, sorted
func (i *InitCall) Dependencies() []string {
	return collectDeps([]string{i.Target}, i.Args)
}

func collectDeps(declared, args []string) []string {
	seen := make(map[string]bool)
	var deps []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			deps = append(deps, name)
		}
	}
	for _, d := range declared {
		add(d)
	}
	for _, a := range args {
		if name, ok := AddressRef(a); ok {
			add(name)
		}
	}
	sort.Strings(deps)
	return deps
}

// Validate checks the plan for missing fields and unknown references.
// Cycles are detected when the plan is ordered.
func (p *Plan) Validate() error {
	if p.Group == "" {
		return fmt.Errorf("group name is required")
	}
	if len(p.Contracts) == 0 {
		return fmt.Errorf("at least one contract is required")
	}

	for name, c := range p.Contracts {
		if c == nil || strings.TrimSpace(c.Artifact) == "" {
			return fmt.Errorf("contract '%s' must specify an artifact", name)
		}
		for _, dep := range c.Dependencies() {
			if dep == name {
				return fmt.Errorf("contract '%s' cannot depend on itself", name)
			}
			if _, exists := p.Contracts[dep]; !exists {
				return fmt.Errorf("contract '%s' depends on non-existent contract '%s'", name, dep)
			}
		}
	}

	for i, call := range p.Initialize {
		if call == nil || call.Target == "" {
			return fmt.Errorf("initialize[%d] must specify a target", i)
		}
		if call.Method == "" {
			return fmt.Errorf("initialize[%d] must specify a method", i)
		}
		for _, dep := range call.Dependencies() {
			if _, exists := p.Contracts[dep]; !exists {
				return fmt.Errorf("initialize[%d] references non-existent contract '%s'", i, dep)
			}
		}
	}

	return nil
}
