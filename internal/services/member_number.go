// Package services implements higher-level business logic that coordinates
// across repositories and external systems. The approval service, for example,
// orchestrates membership number assignment, document generation, email
// dispatch and the final status transition in one sequence.
package services

import (
	"fmt"

	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/db/models"
)

// MemberNumber derives the human-facing membership number for a member. A few
// numbers were hand-assigned before automatic derivation existed; those are
// carried as a quicklook-id keyed exception table in config. Everyone else
// gets the configured prefix plus the zero-padded insertion sequence, e.g.
// SIN-AT0042. Once stored on the member the number is immutable; this function
// is only consulted when member_id is still unassigned.
func MemberNumber(m *models.Member, cfg *config.MembershipConfig) string {
	if num, ok := cfg.NumberExceptions[m.QuicklookID]; ok {
		return num
	}
	width := cfg.NumberWidth
	if width <= 0 {
		width = 4
	}
	return fmt.Sprintf("%s%0*d", cfg.NumberPrefix, width, m.MemberSeq)
}
