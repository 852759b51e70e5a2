package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/http/middleware"
	"github.com/yungbote/pythagon-backend/internal/http/response"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/services"
)

type SolveHandler struct {
	log     *logger.Logger
	solving services.SolvingService
}

func NewSolveHandler(log *logger.Logger, solving services.SolvingService) *SolveHandler {
	return &SolveHandler{log: log.With("handler", "SolveHandler"), solving: solving}
}

type StartSolveResponse struct {
	ID     uuid.UUID             `json:"id"`
	Status domain.SolutionStatus `json:"status"`
}

// POST /solve/:id (problem id)
func (h *SolveHandler) Start(c *gin.Context) {
	problemID, err := pathID(c)
	if err != nil {
		response.RespondDomainError(c, err, "problem")
		return
	}
	sol, err := h.solving.StartSolve(c.Request.Context(), middleware.CallerID(c), problemID)
	if err != nil {
		response.RespondDomainError(c, err, "problem")
		return
	}
	response.RespondOK(c, StartSolveResponse{ID: sol.ID, Status: sol.Status})
}

// GET /solve/:id/status (solution id)
func (h *SolveHandler) Status(c *gin.Context) {
	solutionID, err := pathID(c)
	if err != nil {
		response.RespondDomainError(c, err, "solution")
		return
	}
	sol, err := h.solving.PollSolve(c.Request.Context(), middleware.CallerID(c), solutionID)
	if err != nil {
		response.RespondDomainError(c, err, "solution")
		return
	}
	response.RespondOK(c, sol)
}
