package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/ledgerloop/revrec/internal/observability/context"
	"github.com/ledgerloop/revrec/internal/orgcontext"
)

// HeaderOrg names the organization a request acts on. Upstream
// authentication is expected to have validated the caller's access to
// it; this service only scopes queries by it (and the database enforces
// isolation through row-level security).
const HeaderOrg = "X-Org-ID"

func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := s.cfg.DefaultOrgID

		if header := strings.TrimSpace(c.GetHeader(HeaderOrg)); header != "" {
			parsed, err := snowflake.ParseString(header)
			if err != nil || parsed == 0 {
				AbortWithError(c, newValidationError("org_id", "invalid_organization", "invalid organization id"))
				return
			}
			orgID = int64(parsed)
		}

		if orgID == 0 {
			AbortWithError(c, newValidationError("org_id", "invalid_organization", "organization id required"))
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		ctx = obscontext.WithOrgID(ctx, snowflake.ID(orgID).String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
