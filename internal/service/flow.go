package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/researcher/internal/domain"
	"github.com/xiaot623/gogo/researcher/internal/observability"
	"github.com/xiaot623/gogo/researcher/internal/session"
)

const (
	msgSearching     = "Searching for relevant sources..."
	msgSynthesizing  = "Synthesizing findings..."
	msgReportReady   = "Report ready"
	msgNoSources     = "no sources found"
	msgTimedOut      = "timed out"
	msgCancelled     = "cancelled"
	msgFlowCancelled = "research cancelled"

	maxErrorMessage = 200
)

// DegradedNote prefixes reports produced without any platform findings.
const DegradedNote = "> **Note:** none of the platform extractions succeeded; this report is based on the search summary alone and carries reduced confidence.\n\n"

// errFlowStopped ends a flow whose session can no longer be published to.
var errFlowStopped = errors.New("flow stopped")

// Run drives one session from pending to a terminal status. It is the only
// writer of the session's state table.
func (s *Service) Run(ctx context.Context, sess *session.Session) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanSession,
		attribute.String(observability.AttrSessionID, sess.ID))
	s.metrics.FlowStarted()

	f := &flow{
		svc:    s,
		sess:   sess,
		logger: s.logger.With(zap.String("session_id", sess.ID)),
	}
	err := f.run(ctx)

	status, _ := sess.Table().Status()
	s.metrics.FlowFinished(string(status))
	observability.EndSpan(span, string(status), err)

	if err != nil && !errors.Is(err, errFlowStopped) {
		f.logger.Info("research flow failed", zap.Error(err))
		return
	}
	f.logger.Info("research flow finished", zap.String("status", string(status)))
}

type flow struct {
	svc    *Service
	sess   *session.Session
	logger *zap.Logger
}

type extractionResult struct {
	id      domain.AgentID
	content string
	err     error
}

func (f *flow) run(ctx context.Context) error {
	if err := f.publish(domain.Event{Type: domain.EventTypeFlowStarted, Query: f.sess.Query}); err != nil {
		return err
	}

	search, err := f.search(ctx)
	if err != nil {
		return err
	}

	findings, err := f.extract(ctx, search)
	if err != nil {
		return err
	}

	return f.synthesize(ctx, search, findings)
}

func (f *flow) search(ctx context.Context) (*domain.SearchResult, error) {
	if err := f.agent(domain.AgentSearch, domain.AgentStatusRunning, msgSearching); err != nil {
		return nil, err
	}

	res, err := runAgent(ctx, f, domain.AgentSearch, f.svc.config.SearchTimeout,
		func(ctx context.Context) (*domain.SearchResult, error) {
			return f.svc.toolkit.Searcher.Search(ctx, f.sess.Query)
		})
	if errors.Is(err, domain.ErrCancelled) {
		return nil, f.cancelled()
	}
	if err == nil && res == nil {
		err = errors.New("search returned no result")
	}
	if err != nil {
		if pubErr := f.agent(domain.AgentSearch, domain.AgentStatusError, agentErrorMessage(err)); pubErr != nil {
			return nil, pubErr
		}
		return nil, f.fail(&domain.SessionFatalError{Stage: domain.AgentSearch, Err: err})
	}

	if err := f.agent(domain.AgentSearch, domain.AgentStatusDone, res.Summary); err != nil {
		return nil, err
	}
	return res, nil
}

// extract runs every extraction agent through a bounded pool and waits at the
// fan-in barrier. It returns the non-empty findings in platform order.
func (f *flow) extract(ctx context.Context, search *domain.SearchResult) ([]domain.Finding, error) {
	var pending []domain.AgentID
	for _, id := range domain.ExtractionAgents {
		urls := search.Sources[id]
		msg := fmt.Sprintf("Extracting from %d sources...", len(urls))
		if err := f.agent(id, domain.AgentStatusRunning, msg); err != nil {
			return nil, err
		}
		if len(urls) > 0 {
			pending = append(pending, id)
		}
	}
	for _, id := range domain.ExtractionAgents {
		if len(search.Sources[id]) == 0 {
			if err := f.agent(id, domain.AgentStatusDone, msgNoSources); err != nil {
				return nil, err
			}
		}
	}

	contents := make(map[domain.AgentID]string, len(pending))
	if len(pending) > 0 {
		if err := f.fanOut(ctx, search, pending, contents); err != nil {
			return nil, err
		}
	}

	var findings []domain.Finding
	for _, id := range domain.ExtractionAgents {
		if c := contents[id]; c != "" {
			findings = append(findings, domain.Finding{AgentID: id, Content: c})
		}
	}
	return findings, nil
}

func (f *flow) fanOut(ctx context.Context, search *domain.SearchResult, pending []domain.AgentID, contents map[domain.AgentID]string) error {
	cfg := f.svc.config
	fanCtx, cancelFan := context.WithCancelCause(ctx)
	defer cancelFan(nil)

	results := make(chan extractionResult, len(pending))
	go func() {
		var g errgroup.Group
		g.SetLimit(max(cfg.MaxConcurrentExtractions, 1))
		for _, id := range pending {
			id := id
			extractor := f.svc.toolkit.Extractors[id]
			urls := search.Sources[id]
			g.Go(func() error {
				if extractor == nil {
					results <- extractionResult{id: id, err: fmt.Errorf("no extractor configured for %s", id)}
					return nil
				}
				content, err := runAgent(fanCtx, f, id, cfg.ExtractionTimeout, func(ctx context.Context) (string, error) {
					return extractor.Extract(ctx, f.sess.Query, urls)
				})
				results <- extractionResult{id: id, content: content, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	outstanding := make(map[domain.AgentID]bool, len(pending))
	for _, id := range pending {
		outstanding[id] = true
	}

	barrier := time.NewTimer(cfg.FanOutTimeout)
	defer barrier.Stop()

	for len(outstanding) > 0 {
		select {
		case r := <-results:
			if !outstanding[r.id] {
				continue
			}
			delete(outstanding, r.id)
			if r.err != nil {
				if err := f.agent(r.id, domain.AgentStatusError, agentErrorMessage(r.err)); err != nil {
					return err
				}
				continue
			}
			contents[r.id] = r.content
			if err := f.agent(r.id, domain.AgentStatusDone, "Extraction complete"); err != nil {
				return err
			}

		case <-barrier.C:
			cancelFan(domain.ErrFanOutTimeout)
			for _, id := range domain.ExtractionAgents {
				if !outstanding[id] {
					continue
				}
				delete(outstanding, id)
				f.logger.Info("extraction cut off at fan-out deadline", zap.String("agent_id", string(id)), zap.Error(domain.ErrFanOutTimeout))
				if err := f.agent(id, domain.AgentStatusError, msgTimedOut); err != nil {
					return err
				}
			}

		case <-ctx.Done():
			cancelFan(nil)
			return f.cancelled()
		}
	}
	return nil
}

func (f *flow) synthesize(ctx context.Context, search *domain.SearchResult, findings []domain.Finding) error {
	if ctx.Err() != nil {
		return f.cancelled()
	}
	if err := f.agent(domain.AgentSynthesis, domain.AgentStatusRunning, msgSynthesizing); err != nil {
		return err
	}

	report, err := runAgent(ctx, f, domain.AgentSynthesis, f.svc.config.SynthesisTimeout,
		func(ctx context.Context) (string, error) {
			return f.svc.toolkit.Synthesizer.Synthesize(ctx, f.sess.Query, search.Summary, findings)
		})
	if errors.Is(err, domain.ErrCancelled) {
		return f.cancelled()
	}
	if err != nil {
		if pubErr := f.agent(domain.AgentSynthesis, domain.AgentStatusError, agentErrorMessage(err)); pubErr != nil {
			return pubErr
		}
		return f.fail(&domain.SessionFatalError{Stage: domain.AgentSynthesis, Err: err})
	}

	if len(findings) == 0 {
		report = DegradedNote + report
	}

	if err := f.agent(domain.AgentSynthesis, domain.AgentStatusDone, msgReportReady); err != nil {
		return err
	}
	return f.publish(domain.Event{Type: domain.EventTypeResearchComplete, Result: report})
}

// cancelled closes out every unfinished agent and fails the session.
func (f *flow) cancelled() error {
	snap := f.sess.Table().Snapshot()
	for _, id := range domain.AllAgents() {
		if snap.Agents[id].Status.IsTerminal() {
			continue
		}
		if err := f.agent(id, domain.AgentStatusError, msgCancelled); err != nil {
			return err
		}
	}
	if err := f.publish(domain.Event{Type: domain.EventTypeError, Message: msgFlowCancelled}); err != nil {
		return err
	}
	return domain.ErrCancelled
}

func (f *flow) fail(err *domain.SessionFatalError) error {
	if pubErr := f.publish(domain.Event{Type: domain.EventTypeError, Message: err.Error()}); pubErr != nil {
		return pubErr
	}
	return err
}

func (f *flow) agent(id domain.AgentID, status domain.AgentStatus, message string) error {
	return f.publish(domain.NewAgentUpdate(id, status, message))
}

func (f *flow) publish(ev domain.Event) error {
	if err := f.svc.publish(f.sess, ev); err != nil {
		return fmt.Errorf("%w: %v", errFlowStopped, err)
	}
	return nil
}

// runAgent calls fn under its own timeout and returns as soon as either fn
// finishes or the budget is spent, whether or not fn honors ctx.
// It returns domain.ErrCancelled when parent was cancelled and
// domain.ErrAgentTimeout when the budget ran out or parent was cut off at
// the fan-out deadline.
func runAgent[T any](parent context.Context, f *flow, id domain.AgentID, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if parent.Err() != nil {
		status, err := stoppedBy(parent)
		f.svc.metrics.ObserveAgent(string(id), status, 0)
		return zero, err
	}

	ctx, span := f.svc.tracer.StartSpan(parent, observability.SpanAgent,
		attribute.String(observability.AttrSessionID, f.sess.ID),
		attribute.String(observability.AttrAgentID, string(id)),
		attribute.String(observability.AttrAgentRole, string(id.Role())))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("agent panicked: %v", rec)}
			}
		}()
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	status := "done"
	switch {
	case r.err == nil:
	case parent.Err() != nil:
		status, r.err = stoppedBy(parent)
		r.value = zero
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.value, r.err, status = zero, domain.ErrAgentTimeout, "timeout"
	default:
		status = "error"
	}

	f.svc.metrics.ObserveAgent(string(id), status, time.Since(start))
	observability.EndSpan(span, status, r.err)
	return r.value, r.err
}

// stoppedBy maps a done parent context to the agent outcome.
func stoppedBy(parent context.Context) (string, error) {
	if errors.Is(context.Cause(parent), domain.ErrFanOutTimeout) {
		return "timeout", domain.ErrAgentTimeout
	}
	return "cancelled", domain.ErrCancelled
}

func agentErrorMessage(err error) string {
	if errors.Is(err, domain.ErrAgentTimeout) {
		return msgTimedOut
	}
	msg := []rune(err.Error())
	if len(msg) > maxErrorMessage {
		return string(msg[:maxErrorMessage]) + "..."
	}
	return string(msg)
}
