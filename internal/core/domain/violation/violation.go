package violation

import (
	"time"

	"github.com/google/uuid"

	"github.com/tariffscope/admission/internal/core/domain/limit"
)

// Violation is one rejected admission attempt. Rows are append-only audit
// evidence: never mutated or deleted by normal operation, only aged out by
// the retention job.
type Violation struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	Subject       string      `json:"subject" db:"subject"`
	Scope         limit.Scope `json:"scope" db:"scope"`
	Limit         int         `json:"limit" db:"limit_value"`
	ObservedCount int         `json:"observed_count" db:"observed_count"`
	Endpoint      string      `json:"endpoint" db:"endpoint"`
	UserID        *uuid.UUID  `json:"user_id,omitempty" db:"user_id"`
	UserAgent     string      `json:"user_agent" db:"user_agent"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// Filter narrows violation listings for the admin surface.
type Filter struct {
	Subject *string      `json:"subject,omitempty" query:"subject"`
	Scope   *limit.Scope `json:"scope,omitempty" query:"scope"`
	Since   *time.Time   `json:"since,omitempty" query:"since"`
	Until   *time.Time   `json:"until,omitempty" query:"until"`
	Limit   int          `json:"limit" query:"limit"`
	Offset  int          `json:"offset" query:"offset"`
}

// ViolatorRank is one row of the top-violators report.
type ViolatorRank struct {
	Subject    string      `json:"subject" db:"subject"`
	Scope      limit.Scope `json:"scope" db:"scope"`
	Violations int         `json:"violations" db:"violations"`
}
