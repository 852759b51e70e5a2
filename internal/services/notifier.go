package services

import (
	"context"
	"time"

	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/observability"
	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/realtime"
	"github.com/yungbote/pythagon-backend/internal/realtime/bus"
)

// StatusNotifier announces entity status changes. Delivery is best effort:
// a failed publish is logged and never fails the transition.
type StatusNotifier interface {
	ProblemChanged(ctx context.Context, p *domain.Problem)
	SolutionChanged(ctx context.Context, s *domain.Solution)
}

type statusNotifier struct {
	log     *logger.Logger
	bus     bus.Bus
	metrics *observability.Metrics
}

func NewStatusNotifier(baseLog *logger.Logger, b bus.Bus, metrics *observability.Metrics) StatusNotifier {
	if b == nil {
		b = bus.NewNopBus()
	}
	return &statusNotifier{
		log:     baseLog.With("service", "StatusNotifier"),
		bus:     b,
		metrics: metrics,
	}
}

func (n *statusNotifier) ProblemChanged(ctx context.Context, p *domain.Problem) {
	if p == nil {
		return
	}
	n.publish(ctx, realtime.StatusEvent{
		Kind:    realtime.KindProblem,
		ID:      p.ID.String(),
		Status:  string(p.Status),
		OwnerID: p.OwnerID,
		At:      p.UpdatedAt,
	})
}

func (n *statusNotifier) SolutionChanged(ctx context.Context, s *domain.Solution) {
	if s == nil {
		return
	}
	n.publish(ctx, realtime.StatusEvent{
		Kind:    realtime.KindSolution,
		ID:      s.ID.String(),
		Status:  string(s.Status),
		OwnerID: s.OwnerID,
		At:      s.UpdatedAt,
	})
}

func (n *statusNotifier) publish(ctx context.Context, ev realtime.StatusEvent) {
	n.metrics.IncTransition(ev.Kind, ev.Status)
	pubCtx, cancel := context.WithTimeout(ctxutil.Detach(ctx), 2*time.Second)
	defer cancel()
	if err := n.bus.Publish(pubCtx, ev); err != nil {
		kv := append([]interface{}{"kind", ev.Kind, "id", ev.ID, "status", ev.Status, "error", err}, ctxutil.LogFields(ctx)...)
		n.log.Warn("status event publish failed", kv...)
	}
}
