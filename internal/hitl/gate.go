// Package hitl содержит гейт Human-in-the-loop: детерминированное решение,
// отправлять ли заявку на ручную проверку до того, как она получит
// терминальный статус.
package hitl

import (
	"fmt"

	"github.com/xela07ax/claimwise-platform/internal/domain"
	"github.com/xela07ax/claimwise-platform/internal/drift"
	"go.uber.org/zap"
)

// Decision итог гейта по одной заявке
type Decision struct {
	Flag   bool   // true — заявка уходит в очередь, статус остается Pending
	Reason string // Объяснение для guardrail_summary.fraud_reason
}

type Gate struct {
	logger *zap.Logger
}

func NewGate(logger *zap.Logger) *Gate {
	return &Gate{logger: logger.Named("hitl-gate")}
}

// Decide проверяет, нужна ли ручная проверка (HITL).
// Правило вычисляется один раз на входящее предложение статуса:
//  1. fraud_status != "No Fraud" — всегда флаг;
//  2. сегмент заявки в drifted_features при severity warning/critical — флаг
//     с объяснением (магнитуда/порог/сегмент);
//  3. иначе предложенный статус коммитится напрямую.
func (g *Gate) Decide(claim *domain.Claim, rep drift.Report) Decision {
	if claim.GuardrailSummary.FraudSuspected() {
		g.logger.Warn("FRAUD GUARDRAIL TRIGGERED",
			zap.String("claim_id", claim.ClaimID),
			zap.String("fraud_status", claim.GuardrailSummary.FraudStatus),
		)
		reason := claim.GuardrailSummary.FraudReason
		if reason == "" {
			reason = fmt.Sprintf("fraud guardrail: status %q requires manual review", claim.GuardrailSummary.FraudStatus)
		}
		return Decision{Flag: true, Reason: reason}
	}

	segment := claim.Segment()
	if segment != "" && rep.Actionable() && rep.Affected(segment) {
		g.logger.Warn("DRIFT GUARDRAIL TRIGGERED",
			zap.String("claim_id", claim.ClaimID),
			zap.String("segment", segment),
			zap.Float64("magnitude", rep.DriftMagnitude),
			zap.Float64("threshold", rep.Threshold),
			zap.String("severity", string(rep.Severity)),
		)
		return Decision{
			Flag: true,
			Reason: fmt.Sprintf(
				"denial-rate drift in segment %q: magnitude %.2f exceeds threshold %.2f (severity %s)",
				segment, rep.DriftMagnitude, rep.Threshold, rep.Severity,
			),
		}
	}

	return Decision{}
}

// Apply переносит решение гейта в guardrail_summary заявки
func Apply(claim *domain.Claim, d Decision, rep drift.Report) {
	if claim.GuardrailSummary == nil {
		claim.GuardrailSummary = &domain.GuardrailSummary{}
	}
	gs := claim.GuardrailSummary
	gs.HITLFlag = d.Flag
	if d.Flag && gs.FraudReason == "" {
		gs.FraudReason = d.Reason
	}
	gs.DriftDetected = rep.HasDrift
	gs.DriftMagnitude = rep.DriftMagnitude
	gs.AffectedFeatures = gs.AffectedFeatures[:0]
	for _, f := range rep.DriftedFeatures {
		gs.AffectedFeatures = append(gs.AffectedFeatures, f.Name)
	}
}
