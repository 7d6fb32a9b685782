package consistency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rxledger/inventory-ledger/pkg/logging"
)

// Prober attempts to open and immediately abort a no-op multi-document transaction
type Prober interface {
	ProbeTransactions(ctx context.Context) error
}

// Selector resolves the process mode exactly once
type Selector struct {
	prober  Prober
	setting Setting
	timeout time.Duration
	logger  *logging.Logger

	once     sync.Once
	mode     Mode
	probeErr error
	err      error
}

// NewSelector creates a selector. A zero timeout means no probe deadline.
func NewSelector(prober Prober, setting Setting, timeout time.Duration, logger *logging.Logger) *Selector {
	return &Selector{
		prober:  prober,
		setting: setting,
		timeout: timeout,
		logger:  logger.WithComponent("consistency-selector"),
	}
}

// Select returns the process mode, probing on the first call only.
// Under SettingAuto any probe failure downgrades permanently to BestEffort.
// Under SettingStrict a probe failure is returned as an error.
func (s *Selector) Select(ctx context.Context) (Mode, error) {
	s.once.Do(func() {
		s.mode, s.err = s.resolve(ctx)
	})
	return s.mode, s.err
}

// ProbeError is the error the probe reported, if it ran and failed
func (s *Selector) ProbeError() error {
	return s.probeErr
}

func (s *Selector) resolve(ctx context.Context) (Mode, error) {
	if s.setting == SettingBestEffort {
		s.logger.Warn("Consistency mode forced to best-effort; multi-step operations may partially apply")
		return BestEffort, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.probeErr = s.prober.ProbeTransactions(ctx)
	elapsed := time.Since(start)

	if s.probeErr == nil {
		s.logger.Info("Multi-document transactions available", "mode", Strict, "probeMs", elapsed.Milliseconds())
		return Strict, nil
	}

	if s.setting == SettingStrict {
		return "", fmt.Errorf("strict consistency required but transaction probe failed: %w", s.probeErr)
	}

	s.logger.Warn("Multi-document transactions unavailable, running best-effort",
		"mode", BestEffort,
		"probeMs", elapsed.Milliseconds(),
		"error", s.probeErr.Error(),
	)
	return BestEffort, nil
}
