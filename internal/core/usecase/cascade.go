package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

const (
	stageOutcomeSuccess     = "success"
	stageOutcomeFailure     = "failure"
	stageOutcomeConfigError = "config_error"
)

// Cascade runs classifier stages in order and returns the first usable
// answer. The offline stage always runs last and cannot fail, so Detect only
// errors on a provider configuration problem or an expired request budget.
type Cascade struct {
	stages       []ports.ClassifierStage
	offline      *OfflineStage
	stageTimeout time.Duration
	observer     ports.DetectionObserver
}

func NewCascade(
	stages []ports.ClassifierStage,
	offline *OfflineStage,
	stageTimeout time.Duration,
	observer ports.DetectionObserver,
) *Cascade {
	if offline == nil {
		offline = NewOfflineStage(nil)
	}
	if observer == nil {
		observer = noopObserver{}
	}
	remote := make([]ports.ClassifierStage, 0, len(stages))
	for _, stage := range stages {
		if stage != nil {
			remote = append(remote, stage)
		}
	}
	return &Cascade{
		stages:       remote,
		offline:      offline,
		stageTimeout: stageTimeout,
		observer:     observer,
	}
}

// StageNames lists the configured stages including the offline tail.
func (c *Cascade) StageNames() []string {
	names := make([]string, 0, len(c.stages)+1)
	for _, stage := range c.stages {
		names = append(names, stage.Name())
	}
	return append(names, c.offline.Name())
}

func (c *Cascade) Detect(ctx context.Context, img domain.Image, cropType string) (domain.DetectionResult, error) {
	for _, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			return domain.DetectionResult{}, domain.WrapError(domain.ErrTimeout, "detect cascade", err)
		}

		result, err := c.runStage(ctx, stage, img, cropType)
		if err == nil {
			c.observer.ObserveStage(stage.Name(), stageOutcomeSuccess)
			return result, nil
		}

		if domain.IsKind(err, domain.ErrProviderConfig) {
			c.observer.ObserveStage(stage.Name(), stageOutcomeConfigError)
			slog.Error("detection_stage_misconfigured", "stage", stage.Name(), "error", err)
			return domain.DetectionResult{}, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		c.observer.ObserveStage(stage.Name(), stageOutcomeFailure)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.DetectionResult{}, domain.WrapError(domain.ErrTimeout, "detect cascade", ctxErr)
		}
		logStageFailure(stage.Name(), err)
	}

	result, _ := c.offline.Detect(ctx, img, cropType)
	c.observer.ObserveStage(c.offline.Name(), stageOutcomeSuccess)
	return domain.NormalizeDetection(result), nil
}

func (c *Cascade) runStage(ctx context.Context, stage ports.ClassifierStage, img domain.Image, cropType string) (domain.DetectionResult, error) {
	stageCtx := ctx
	if c.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeoutCause(ctx, c.stageTimeout, domain.ErrStageTimeout)
		defer cancel()
	}

	raw, err := stage.Detect(stageCtx, img, cropType)
	if err != nil {
		return domain.DetectionResult{}, err
	}

	result := domain.NormalizeDetection(raw)
	if result.Disease == "" {
		return domain.DetectionResult{}, domain.NewProviderReplyError(stage.Name(), "", errors.New("empty disease name"))
	}
	result.Stage = stage.Name()
	return result, nil
}

func logStageFailure(stage string, err error) {
	attrs := []any{"stage", stage, "error", err}
	var replyErr *domain.ProviderReplyError
	if errors.As(err, &replyErr) {
		attrs = append(attrs, "provider", replyErr.Provider, "raw_snippet", strings.TrimSpace(replyErr.Raw))
	}
	slog.Warn("detection_stage_failed", attrs...)
}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, string) {}
func (noopObserver) ObserveValidatorFailOpen() {}
func (noopObserver) ObserveDetection(string, float64) {}
func (noopObserver) ObserveAssetReleaseFailure() {}
