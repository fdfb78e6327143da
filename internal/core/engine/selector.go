package engine

import (
	"log/slog"
	"sync"

	"github.com/autoquest/autoquest/internal/core/ports"
)

// backendSelector tracks which vector index serves the engine. It has exactly
// one transition: any error from an external backend selects the flat
// in-memory index for the remainder of the process. There is no re-promotion.
type backendSelector struct {
	mu         sync.Mutex
	active     ports.VectorIndex
	fallback   ports.VectorIndex
	downgraded bool

	logger  *slog.Logger
	metrics Metrics
}

func newBackendSelector(active, fallback ports.VectorIndex, logger *slog.Logger, metrics Metrics) *backendSelector {
	if active == nil {
		active = fallback
	}
	return &backendSelector{
		active:   active,
		fallback: fallback,
		logger:   logger,
		metrics:  metrics,
	}
}

func (s *backendSelector) current() ports.VectorIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *backendSelector) isFlat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == s.fallback
}

// downgrade switches to the flat index permanently. Safe to call twice; the
// second call is a no-op so concurrent readers race benignly.
func (s *backendSelector) downgrade(cause error) ports.VectorIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == s.fallback {
		return s.active
	}
	from := s.active.Type()
	s.logger.Error("vector backend failed, downgrading to flat index",
		"from", from,
		"to", s.fallback.Type(),
		"error", cause,
	)
	if s.metrics != nil {
		s.metrics.BackendDowngraded(from, s.fallback.Type())
	}
	s.active = s.fallback
	s.downgraded = true
	return s.active
}
