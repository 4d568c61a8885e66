// Package pipeline runs one render, classify, notify pass for a URL.
package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/metrics"
	"github.com/JakeFAU/sale-monitor/internal/monitor"
	"github.com/JakeFAU/sale-monitor/internal/storage"
	"github.com/JakeFAU/sale-monitor/internal/telemetry"
)

// Step names used in logs, spans and metrics.
const (
	StepRender   = "render"
	StepClassify = "classify"
	StepNotify   = "notify"
	StepArchive  = "archive"
)

// Limiter spaces out page loads per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Config controls Pipeline behavior.
type Config struct {
	// DefaultURL is monitored when a scheduled request carries no URL.
	DefaultURL string
	Prompt     string
	MaxTokens  int
	From       string
	To         string
	// StoragePrefix is prepended to screenshot copies when a store is set.
	StoragePrefix string
	// Limiter is optional; nil renders without waiting.
	Limiter Limiter
}

// Pipeline executes monitor requests. It holds no per-run state and is safe
// for concurrent use.
type Pipeline struct {
	renderer   monitor.Renderer
	classifier monitor.Classifier
	notifier   monitor.Notifier
	store      monitor.BlobStore
	clock      monitor.Clock
	ids        monitor.IDGenerator
	tracer     trace.Tracer
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Pipeline. store may be nil to keep screenshots in memory only.
func New(
	renderer monitor.Renderer,
	classifier monitor.Classifier,
	notifier monitor.Notifier,
	store monitor.BlobStore,
	clock monitor.Clock,
	ids monitor.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.Prompt == "" {
		cfg.Prompt = monitor.DefaultPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = monitor.DefaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Pipeline{
		renderer:   renderer,
		classifier: classifier,
		notifier:   notifier,
		store:      store,
		clock:      clock,
		ids:        ids,
		tracer:     telemetry.Tracer(),
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one request. It never returns an error: failures, including
// panics inside any step, are reported through Outcome.Err. A failed email
// leaves the outcome successful with EmailSent false.
func (p *Pipeline) Run(ctx context.Context, req monitor.Request) (out monitor.Outcome) {
	out.Request = p.resolve(req)
	out.RunID = p.newRunID()

	logger := p.logger.With(
		zap.String("run_id", out.RunID),
		zap.String("trigger", string(req.Trigger)),
		zap.String("url", out.Request.URL),
	)
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", out.RunID),
		attribute.String("trigger", string(req.Trigger)),
		attribute.String("url", out.Request.URL),
	))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.Err = monitor.Errorf(monitor.KindUnexpected, "unexpected failure: %v", r)
			logger.Error("pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		if out.Timestamp.IsZero() {
			out.Timestamp = p.clock.Now()
		}
		p.finish(span, logger, out, time.Since(started))
	}()

	logger.Info("run started")
	if strings.TrimSpace(out.Request.URL) == "" {
		out.Err = monitor.Errorf(monitor.KindUnexpected, "url is required")
		return out
	}

	shot, err := p.render(ctx, logger, out.Request.URL)
	if err != nil {
		out.Err = monitor.AsError(err, monitor.KindNavigation)
		return out
	}
	out.Screenshot = shot

	classification, err := p.classify(ctx, logger, shot)
	if err != nil {
		out.Err = monitor.AsError(err, monitor.KindClassification)
		return out
	}
	out.Classification = classification
	out.Timestamp = p.clock.Now()

	p.archive(ctx, logger, out.RunID, shot, out.Timestamp)

	msg := monitor.BuildEmail(p.cfg.From, p.cfg.To, out.Request.URL, classification, shot, out.Timestamp)
	if err := p.notify(ctx, logger, msg); err != nil {
		out.NotifyErr = err
		out.EmailSent = false
	} else {
		out.EmailSent = true
	}
	return out
}

func (p *Pipeline) resolve(req monitor.Request) monitor.Request {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" && req.Trigger == monitor.TriggerScheduled {
		req.URL = p.cfg.DefaultURL
	}
	return req
}

func (p *Pipeline) newRunID() string {
	if p.ids == nil {
		return ""
	}
	id, err := p.ids.NewID()
	if err != nil {
		p.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func (p *Pipeline) render(ctx context.Context, logger *zap.Logger, url string) (monitor.Screenshot, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+StepRender)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStep(StepRender, time.Since(start)) }()

	if p.cfg.Limiter != nil {
		if err := p.cfg.Limiter.Wait(ctx, url); err != nil {
			err = monitor.NavigationError(err)
			recordSpanError(span, err)
			logger.Error("render throttled", zap.String("step", StepRender), zap.Error(err))
			return monitor.Screenshot{}, err
		}
	}

	shot, err := p.renderer.Capture(ctx, url)
	if err != nil {
		// Untagged renderer errors are treated as navigation failures.
		if !isTagged(err) {
			err = monitor.NavigationError(err)
		}
		recordSpanError(span, err)
		logger.Error("render failed", zap.String("step", StepRender), zap.String("kind", string(monitor.KindOf(err))), zap.Error(err))
		return monitor.Screenshot{}, err
	}
	if len(shot.Data) == 0 {
		err := monitor.CaptureError(errors.New("renderer returned an empty screenshot"))
		recordSpanError(span, err)
		logger.Error("render failed", zap.String("step", StepRender), zap.Error(err))
		return monitor.Screenshot{}, err
	}
	if shot.ContentType == "" {
		shot.ContentType = "image/jpeg"
	}

	metrics.ObserveScreenshot(len(shot.Data))
	logger.Info("screenshot captured",
		zap.String("step", StepRender),
		zap.Int("bytes", len(shot.Data)),
		zap.Int("base64_length", base64.StdEncoding.EncodedLen(len(shot.Data))),
		zap.Duration("elapsed", time.Since(start)),
	)
	return shot, nil
}

func (p *Pipeline) classify(ctx context.Context, logger *zap.Logger, shot monitor.Screenshot) (monitor.Classification, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+StepClassify)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStep(StepClassify, time.Since(start)) }()

	description, err := p.classifier.Describe(ctx, shot.Data, p.cfg.Prompt, p.cfg.MaxTokens)
	if err != nil {
		err = monitor.ClassificationError(fmt.Errorf("describe screenshot: %w", err))
		recordSpanError(span, err)
		logger.Error("classification failed", zap.String("step", StepClassify), zap.Error(err))
		return monitor.Classification{}, err
	}

	classification := monitor.Classify(description)
	span.SetAttributes(attribute.Bool("has_sale", classification.HasSale))
	logger.Info("screenshot classified",
		zap.String("step", StepClassify),
		zap.Bool("has_sale", classification.HasSale),
		zap.String("analysis", description),
		zap.Duration("elapsed", time.Since(start)),
	)
	return classification, nil
}

// notify sends the report. Any failure, a panicking transport included, comes
// back as a notification error and never aborts the run.
func (p *Pipeline) notify(ctx context.Context, logger *zap.Logger, msg monitor.EmailMessage) (err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+StepNotify)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStep(StepNotify, time.Since(start)) }()
	defer func() {
		if r := recover(); r != nil {
			err = monitor.NotificationError(fmt.Errorf("send report: panic: %v", r))
			recordSpanError(span, err)
			metrics.ObserveEmail(false)
			logger.Error("report email panicked", zap.String("step", StepNotify), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if err := p.notifier.Send(ctx, msg); err != nil {
		err = monitor.NotificationError(fmt.Errorf("send report: %w", err))
		recordSpanError(span, err)
		metrics.ObserveEmail(false)
		logger.Warn("report email failed", zap.String("step", StepNotify), zap.Error(err))
		return err
	}
	metrics.ObserveEmail(true)
	logger.Info("report email sent", zap.String("step", StepNotify), zap.String("subject", msg.Subject))
	return nil
}

// archive copies the screenshot to the configured store. Failures are logged
// and never affect the outcome.
func (p *Pipeline) archive(ctx context.Context, logger *zap.Logger, runID string, shot monitor.Screenshot, at time.Time) {
	if p.store == nil {
		return
	}
	if runID == "" {
		runID = fmt.Sprintf("run-%d", at.UnixNano())
	}
	ctx, span := p.tracer.Start(ctx, "pipeline."+StepArchive)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStep(StepArchive, time.Since(start)) }()
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			logger.Error("screenshot copy panicked", zap.String("step", StepArchive), zap.Any("panic", r))
		}
	}()

	key := storage.ScreenshotKey(p.cfg.StoragePrefix, runID, at)
	uri, err := p.store.PutObject(ctx, key, shot.ContentType, bytes.NewReader(shot.Data))
	if err != nil {
		recordSpanError(span, err)
		logger.Warn("screenshot copy failed", zap.String("step", StepArchive), zap.String("key", key), zap.Error(err))
		return
	}
	logger.Debug("screenshot copied", zap.String("step", StepArchive), zap.String("uri", uri))
}

func (p *Pipeline) finish(span trace.Span, logger *zap.Logger, out monitor.Outcome, elapsed time.Duration) {
	defer span.End()

	status := metrics.StatusSuccess
	if out.Err != nil {
		status = string(out.Err.Kind)
		recordSpanError(span, out.Err)
	} else if out.Classification.HasSale {
		metrics.ObserveSale(string(out.Request.Trigger))
	}
	metrics.ObserveRun(string(out.Request.Trigger), status, out.Timestamp)
	span.SetAttributes(attribute.String("status", status), attribute.Bool("email_sent", out.EmailSent))

	if out.Err != nil {
		logger.Error("run failed", zap.String("kind", status), zap.Error(out.Err), zap.Duration("elapsed", elapsed))
		return
	}
	logger.Info("run finished",
		zap.Bool("has_sale", out.Classification.HasSale),
		zap.Bool("email_sent", out.EmailSent),
		zap.Duration("elapsed", elapsed),
	)
}

func isTagged(err error) bool {
	var tagged *monitor.Error
	return errors.As(err, &tagged)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
