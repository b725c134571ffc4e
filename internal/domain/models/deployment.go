package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/trebuchet-org/treb-relay/internal/domain"
)

// DeploymentStatus is the lifecycle state of a deployment record
type DeploymentStatus string

const (
	StatusPending     DeploymentStatus = "pending"
	StatusInProgress  DeploymentStatus = "in_progress"
	StatusInitialized DeploymentStatus = "initialized"
	StatusCompleted   DeploymentStatus = "completed"
	StatusFailed      DeploymentStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s DeploymentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var transitions = map[DeploymentStatus][]DeploymentStatus{
	StatusPending:     {StatusInProgress, StatusFailed},
	StatusInProgress:  {StatusInProgress, StatusInitialized, StatusFailed},
	StatusInitialized: {StatusCompleted, StatusFailed},
}

// StepKind distinguishes contract creation from initialization calls
type StepKind string

const (
	StepDeploy     StepKind = "deploy"
	StepInitialize StepKind = "initialize"
)

// StepStatus is the state of a single step
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
)

// StepRecord captures everything needed to rebuild, resign and resubmit a step
type StepRecord struct {
	Name         string       `json:"name"`
	Kind         StepKind     `json:"kind"`
	Artifact     string       `json:"artifact"`
	Target       string       `json:"target,omitempty"` // deployed contract an initialize step calls
	Method       string       `json:"method,omitempty"`
	Args         []string     `json:"args,omitempty"`
	Dependencies []string     `json:"dependencies,omitempty"`
	GasLimit     uint64       `json:"gasLimit,omitempty"`
	Status       StepStatus   `json:"status"`
	SignedHash   string       `json:"signedHash,omitempty"`
	Result       *RelayResult `json:"result,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// Succeeded reports whether the step holds a successful relay result
func (s *StepRecord) Succeeded() bool {
	return s.Status == StepSucceeded && s.Result != nil && s.Result.Success
}

func (s *StepRecord) clone() *StepRecord {
	c := *s
	c.Args = slices.Clone(s.Args)
	c.Dependencies = slices.Clone(s.Dependencies)
	c.Result = s.Result.Clone()
	return &c
}

// Failure describes why a record entered the failed state
type Failure struct {
	Step    string           `json:"step,omitempty"`
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}

// DeploymentRecord aggregates the steps of one logical deployment. Only
// the orchestrator run that owns the record mutates it.
type DeploymentRecord struct {
	ID          string           `json:"id"`
	Group       string           `json:"group"`
	Network     string           `json:"network"`
	ChainID     uint64           `json:"chainId,omitempty"`
	Controller  string           `json:"controller"`
	Sponsor     string           `json:"sponsor"`
	FeeToken    string           `json:"feeToken"`
	ResumedFrom string           `json:"resumedFrom,omitempty"`
	Status      DeploymentStatus `json:"status"`
	Steps       []*StepRecord    `json:"steps"`
	Failure     *Failure         `json:"failure,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// NewDeploymentRecord creates a pending record. Deploy steps must precede
// initialize steps.
func NewDeploymentRecord(id, group, network string, steps []*StepRecord, now time.Time) *DeploymentRecord {
	for _, s := range steps {
		if s.Status == "" {
			s.Status = StepPending
		}
	}
	return &DeploymentRecord{
		ID:        id,
		Group:     group,
		Network:   network,
		Status:    StatusPending,
		Steps:     steps,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the record to a new status. Terminal states are final.
func (r *DeploymentRecord) Transition(to DeploymentStatus, now time.Time) error {
	if !slices.Contains(transitions[r.Status], to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}

// MarkInitialized records that every contract step has succeeded
func (r *DeploymentRecord) MarkInitialized(now time.Time) error {
	for _, s := range r.DeploySteps() {
		if !s.Succeeded() {
			return fmt.Errorf("%w: step %q has not succeeded", domain.ErrInvalidTransition, s.Name)
		}
	}
	return r.Transition(StatusInitialized, now)
}

// Complete marks the record completed. It refuses unless every step,
// initialization included, holds a successful relay result.
func (r *DeploymentRecord) Complete(now time.Time) error {
	for _, s := range r.Steps {
		if !s.Succeeded() {
			return fmt.Errorf("%w: step %q has not succeeded", domain.ErrInvalidTransition, s.Name)
		}
	}
	return r.Transition(StatusCompleted, now)
}

// Fail moves the record to failed, keeping partial results
func (r *DeploymentRecord) Fail(failure Failure) error {
	if err := r.Transition(StatusFailed, failure.At); err != nil {
		return err
	}
	r.Failure = &failure
	return nil
}

// DeploySteps returns the contract creation steps in execution order
func (r *DeploymentRecord) DeploySteps() []*StepRecord {
	return r.stepsOfKind(StepDeploy)
}

// InitSteps returns the initialization steps in execution order
func (r *DeploymentRecord) InitSteps() []*StepRecord {
	return r.stepsOfKind(StepInitialize)
}

func (r *DeploymentRecord) stepsOfKind(kind StepKind) []*StepRecord {
	var out []*StepRecord
	for _, s := range r.Steps {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Step returns the step with the given name
func (r *DeploymentRecord) Step(name string) *StepRecord {
	for _, s := range r.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// AddressOf returns the address a succeeded deploy step produced
func (r *DeploymentRecord) AddressOf(name string) (string, bool) {
	s := r.Step(name)
	if s == nil || s.Kind != StepDeploy || !s.Succeeded() || s.Result.ContractAddress == "" {
		return "", false
	}
	return s.Result.ContractAddress, true
}

// Addresses returns every resolved contract address by step name
func (r *DeploymentRecord) Addresses() map[string]string {
	out := make(map[string]string)
	for _, s := range r.DeploySteps() {
		if addr, ok := r.AddressOf(s.Name); ok {
			out[s.Name] = addr
		}
	}
	return out
}

// Results returns every recorded relay result in step order
func (r *DeploymentRecord) Results() []*RelayResult {
	var out []*RelayResult
	for _, s := range r.Steps {
		if s.Result != nil {
			out = append(out, s.Result)
		}
	}
	return out
}

// Clone returns a deep copy of the record
func (r *DeploymentRecord) Clone() *DeploymentRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Steps = make([]*StepRecord, len(r.Steps))
	for i, s := range r.Steps {
		c.Steps[i] = s.clone()
	}
	if r.Failure != nil {
		f := *r.Failure
		c.Failure = &f
	}
	return &c
}

// ResumeInto derives a new pending record from a failed one. Succeeded
// steps keep their results; the failed step and everything after it are
// reset so they are rebuilt, resigned and resubmitted.
func (r *DeploymentRecord) ResumeInto(id string, now time.Time) (*DeploymentRecord, error) {
	if r.Status != StatusFailed {
		return nil, fmt.Errorf("only failed deployments can be resumed, %s is %s", r.ID, r.Status)
	}
	next := r.Clone()
	next.ID = id
	next.ResumedFrom = r.ID
	next.Status = StatusPending
	next.Failure = nil
	next.CreatedAt = now
	next.UpdatedAt = now
	for _, s := range next.Steps {
		if s.Succeeded() {
			continue
		}
		s.Status = StepPending
		s.SignedHash = ""
		s.Result = nil
		s.Error = ""
	}
	return next, nil
}
