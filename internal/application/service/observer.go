package service

import (
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
	"github.com/personal/adunit-lifecycle/pkg/logger"
	"github.com/personal/adunit-lifecycle/pkg/monitoring"
)

// changeRecorder logs and counts unit changes, then forwards them
type changeRecorder struct {
	logger *logger.Logger
	next   []unit.Observer
}

func newChangeRecorder(log *logger.Logger, next []unit.Observer) *changeRecorder {
	return &changeRecorder{logger: log, next: next}
}

func (r *changeRecorder) OnChange(c unit.Change) {
	kind := string(c.Unit.Kind())

	switch c.Cause {
	case unit.CauseLoaded:
		monitoring.RecordLoadResult(kind, true)
	case unit.CauseFailed:
		monitoring.RecordLoadResult(kind, false)
	case unit.CauseReward:
		monitoring.RecordReward(kind)
	case unit.CauseProviderError:
		monitoring.RecordProviderError(kind)
	}
	if c.From != c.To {
		monitoring.RecordTransition(kind, string(c.From), string(c.To), string(c.Cause))
	}

	entry := r.logger.WithFields(logger.Fields{
		"unit":  c.Unit.String(),
		"from":  c.From,
		"to":    c.To,
		"cause": c.Cause,
	})
	switch {
	case c.Cause == unit.CauseFailed:
		entry.WithError(c.Err).WithField("failures", c.Unit.ConsecutiveFailures()).Warn("Unit failed to load")
	case c.Err != nil:
		entry.WithError(c.Err).Warn("Provider call failed")
	case c.Reward != nil:
		entry.WithFields(logger.Fields{
			"rewardType":   c.Reward.Type,
			"rewardAmount": c.Reward.Amount,
		}).Info("Reward granted")
	default:
		entry.Debug("Unit changed")
	}

	for _, o := range r.next {
		o.OnChange(c)
	}
}
