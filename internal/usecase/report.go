package usecase

import (
	"fmt"
	"time"

	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// gasWarnRatio flags steps that used most of their gas limit
const gasWarnRatio = 0.9

// BuildReport summarizes a deployment record for audit and replay
func BuildReport(rec *models.DeploymentRecord, now time.Time) *models.Report {
	report := &models.Report{
		DeploymentID: rec.ID,
		ResumedFrom:  rec.ResumedFrom,
		GeneratedAt:  now.UTC(),
		Group:        rec.Group,
		Network:      rec.Network,
		Controller:   rec.Controller,
		Sponsor:      rec.Sponsor,
		Status:       rec.Status,
		Steps:        make([]models.ReportStep, 0, len(rec.Steps)),
	}
	if rec.Failure != nil {
		f := *rec.Failure
		report.Failure = &f
	}

	for _, s := range rec.Steps {
		rs := models.ReportStep{
			Name:   s.Name,
			Kind:   s.Kind,
			Status: s.Status,
			Error:  s.Error,
		}
		if s.Result != nil {
			rs.ContractAddress = s.Result.ContractAddress
			rs.TransactionHash = s.Result.TransactionHash
			rs.GasUsed = s.Result.GasUsed
		}
		report.Steps = append(report.Steps, rs)
	}

	report.Recommendations = recommendations(rec)
	return report
}

func recommendations(rec *models.DeploymentRecord) []string {
	var recs []string

	for _, s := range rec.Steps {
		if s.Result == nil || s.GasLimit == 0 {
			continue
		}
		if float64(s.Result.GasUsed) >= gasWarnRatio*float64(s.GasLimit) {
			recs = append(recs, fmt.Sprintf("Step %s used %d of %d gas; raise its gas limit before redeploying.", s.Name, s.Result.GasUsed, s.GasLimit))
		}
	}

	switch rec.Status {
	case models.StatusCompleted:
		recs = append(recs, "All steps succeeded; record the deployed addresses for downstream configuration.")
		return recs
	case models.StatusFailed:
	default:
		return append(recs, fmt.Sprintf("Deployment is still %s; check it again with `treb-relay status %s`.", rec.Status, rec.ID))
	}

	if rec.Failure == nil {
		return recs
	}

	resume := fmt.Sprintf("Resume with `treb-relay resume %s` once fixed; succeeded steps are reused.", rec.ID)
	switch rec.Failure.Kind {
	case domain.KindRelayUnavailable:
		recs = append(recs, "The relay was unreachable after all retries; check the relayer URL and its health.", resume)
	case domain.KindRelayRejected:
		recs = append(recs, fmt.Sprintf("The relay rejected step %s (%s); verify the sponsor balance and fee token.", rec.Failure.Step, rec.Failure.Message), resume)
	case domain.KindSigning:
		recs = append(recs, "Signing failed; check the signer backend, the controller key reference and the signer URL.", resume)
	case domain.KindEncoding:
		recs = append(recs, "Arguments did not match the contract ABI; check argument count and types in the plan.", resume)
	case domain.KindArtifactNotFound, domain.KindArtifactMalformed:
		recs = append(recs, "Rebuild the contracts and verify the artifact paths in the plan.", resume)
	case domain.KindDependencyUnresolved:
		recs = append(recs, "A required contract address never materialized; deploy the dependency first or add it to the plan.")
	case domain.KindChainUnavailable:
		recs = append(recs, "The RPC endpoint could not be reached; check the RPC URL or configure a chain id and start nonce.", resume)
	case domain.KindCancelled:
		recs = append(recs, "The deployment was cancelled.", resume)
	default:
		recs = append(recs, resume)
	}
	return recs
}
