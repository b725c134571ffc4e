package models

import (
	"time"

	"github.com/trebuchet-org/treb-relay/internal/domain"
)

// DeploymentEvent is published whenever a record changes state or a step settles
type DeploymentEvent struct {
	DeploymentID string           `json:"deploymentId"`
	Status       DeploymentStatus `json:"status"`
	Step         string           `json:"step,omitempty"`
	StepStatus   StepStatus       `json:"stepStatus,omitempty"`
	Kind         domain.ErrorKind `json:"kind,omitempty"`
	Message      string           `json:"message,omitempty"`
	At           time.Time        `json:"at"`
}
