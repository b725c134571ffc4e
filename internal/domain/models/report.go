package models

import "time"

// Report is the persisted audit view of a deployment run
type Report struct {
	DeploymentID    string           `json:"deploymentId"`
	ResumedFrom     string           `json:"resumedFrom,omitempty"`
	GeneratedAt     time.Time        `json:"generatedAt"`
	Group           string           `json:"group"`
	Network         string           `json:"network"`
	Controller      string           `json:"controller"`
	Sponsor         string           `json:"sponsor"`
	Status          DeploymentStatus `json:"status"`
	Steps           []ReportStep     `json:"steps"`
	Failure         *Failure         `json:"failure,omitempty"`
	Recommendations []string         `json:"recommendations"`
}

// ReportStep summarizes one step of the run
type ReportStep struct {
	Name            string     `json:"name"`
	Kind            StepKind   `json:"kind"`
	Status          StepStatus `json:"status"`
	ContractAddress string     `json:"contractAddress,omitempty"`
	TransactionHash string     `json:"transactionHash,omitempty"`
	GasUsed         uint64     `json:"gasUsed,omitempty"`
	Error           string     `json:"error,omitempty"`
}
