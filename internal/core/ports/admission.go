package ports

import (
	"context"

	"github.com/tariffscope/admission/internal/core/domain/admission"
)

// AdmissionService evaluates the three throttle layers (IP, identity,
// organization quota) in order and produces one admission decision.
//
// Admit never fails: infrastructure errors are resolved internally by the
// configured fail-open/fail-closed policy, so every invocation returns a
// well-formed Allow or Deny that business logic can act on directly.
type AdmissionService interface {
	Admit(ctx context.Context, req *admission.Request) *admission.Decision
}
