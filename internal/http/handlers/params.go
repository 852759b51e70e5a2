package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/domain"
)

// pathID parses the :id segment. An id that cannot parse cannot exist, so a
// malformed id is reported as not found.
func pathID(c *gin.Context) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("id %q: %w", raw, domain.ErrNotFound)
	}
	return id, nil
}
