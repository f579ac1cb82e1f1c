package contracts

import (
	"context"

	"github.com/google/uuid"

	"github.com/routong/routong-backend/pkg/enums"
)

// Verdict is the adjudicator's decision on a piece of evidence.
type Verdict string

const (
	VerdictPassed Verdict = "passed"
	VerdictFailed Verdict = "failed"
)

// Adjudicator decides whether submitted evidence proves the commitment was
// kept. Evidence content is opaque to the settlement core.
type Adjudicator interface {
	Adjudicate(ctx context.Context, contractID uuid.UUID, method enums.VerificationMethod, evidence []byte) (Verdict, error)
}

type selfReportAdjudicator struct{}

// NewSelfReportAdjudicator accepts any non-empty evidence payload. Manual
// review and ML verification plug in behind the same interface later.
func NewSelfReportAdjudicator() Adjudicator {
	return selfReportAdjudicator{}
}

func (selfReportAdjudicator) Adjudicate(ctx context.Context, contractID uuid.UUID, method enums.VerificationMethod, evidence []byte) (Verdict, error) {
	if len(evidence) == 0 {
		return VerdictFailed, nil
	}
	return VerdictPassed, nil
}
