package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xiaot623/gogo/researcher/internal/adapter/llm"
	"github.com/xiaot623/gogo/researcher/internal/config"
	"github.com/xiaot623/gogo/researcher/internal/domain"
	"github.com/xiaot623/gogo/researcher/internal/metrics"
	"github.com/xiaot623/gogo/researcher/internal/session"
	"github.com/xiaot623/gogo/researcher/policy"
	"github.com/xiaot623/gogo/researcher/tests/helpers"
)

type fakeSearcher struct {
	calls atomic.Int32
	gate  chan struct{}
	res   *domain.SearchResult
	err   error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.res, f.err
}

// fakeExtractor answers after delay. With hang set it waits for ctx; with
// ignoreCtx set it waits for release only.
type fakeExtractor struct {
	content   string
	err       error
	delay     time.Duration
	hang      bool
	ignoreCtx bool
	release   chan struct{}
	started   chan struct{}
	calls     atomic.Int32

	inFlight *atomic.Int32
	maxSeen  *atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, query string, urls []string) (string, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.inFlight != nil {
		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)
		for {
			seen := f.maxSeen.Load()
			if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
				break
			}
		}
	}
	switch {
	case f.ignoreCtx:
		<-f.release
		return f.content, f.err
	case f.hang:
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.content, f.err
}

type fakeSynthesizer struct {
	mu       sync.Mutex
	calls    int
	findings []domain.Finding
	summary  string
	report   string
	err      error
	hang     bool
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, query, summary string, findings []domain.Finding) (string, error) {
	f.mu.Lock()
	f.calls++
	f.findings = findings
	f.summary = summary
	f.mu.Unlock()
	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.report, f.err
}

func (f *fakeSynthesizer) seen() (int, []domain.Finding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.findings
}

func (f *fakeSynthesizer) seenSummary() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary
}

func allSources() map[domain.AgentID][]string {
	return map[domain.AgentID][]string{
		domain.AgentInstagram: {"https://instagram.com/p/ai"},
		domain.AgentLinkedIn:  {"https://linkedin.com/pulse/ai"},
		domain.AgentYouTube:   {"https://youtube.com/watch?v=ai"},
		domain.AgentX:         {"https://x.com/ai/status/1"},
		domain.AgentWeb:       {"https://example.com/ai"},
	}
}

func newToolkit(search *fakeSearcher, synth *fakeSynthesizer, extractors map[domain.AgentID]*fakeExtractor) domain.Toolkit {
	kit := domain.Toolkit{
		Searcher:    search,
		Synthesizer: synth,
		Extractors:  make(map[domain.AgentID]domain.Extractor),
	}
	for _, id := range domain.ExtractionAgents {
		ex, ok := extractors[id]
		if !ok {
			ex = &fakeExtractor{content: "- findings from " + string(id)}
			extractors[id] = ex
		}
		kit.Extractors[id] = ex
	}
	return kit
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:                     "mock",
		SearchTimeout:            time.Second,
		ExtractionTimeout:        time.Second,
		FanOutTimeout:            2 * time.Second,
		SynthesisTimeout:         time.Second,
		MaxConcurrentExtractions: 5,
		MaxQueryLength:           1000,
		SubscriberBuffer:         64,
		SessionTTL:               time.Minute,
		SessionMaxAge:            time.Hour,
		SweepInterval:            time.Minute,
	}
}

func newTestService(t *testing.T, kit domain.Toolkit, cfg *config.Config) *Service {
	t.Helper()
	return newTestServiceWithOptions(t, kit, cfg, Options{})
}

func newTestServiceWithOptions(t *testing.T, kit domain.Toolkit, cfg *config.Config, opts Options) *Service {
	t.Helper()
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	svc := New(context.Background(), helpers.NewTestSQLiteStore(t), kit, llm.NewMockClient(0), cfg, policyEngine, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func startResearch(t *testing.T, svc *Service, query string) *session.Session {
	t.Helper()
	resp, err := svc.CreateResearch(context.Background(), query)
	require.NoError(t, err)
	sess, err := svc.Registry().Get(resp.SessionID)
	require.NoError(t, err)
	return sess
}

func waitFlow(t *testing.T, sess *session.Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("flow of session %s did not finish", sess.ID)
	}
}

func trace(t *testing.T, svc *Service, sess *session.Session) []domain.Event {
	t.Helper()
	events, err := svc.GetEvents(context.Background(), sess.ID, 0, 500)
	require.NoError(t, err)
	return events
}

// assertTrace checks the ordering properties every flow must satisfy.
func assertTrace(t *testing.T, events []domain.Event) {
	t.Helper()
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventTypeFlowStarted, events[0].Type)

	last := map[domain.AgentID]domain.AgentStatus{}
	synthesisStarted := false
	terminals := 0
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq, "seq must be contiguous")
		if ev.Type.IsTerminal() {
			terminals++
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
		}
		if ev.Type != domain.EventTypeAgentUpdate {
			continue
		}
		prev, ok := last[ev.AgentID]
		if !ok {
			prev = domain.AgentStatusWaiting
		}
		assert.True(t, prev.CanTransition(ev.Status), "agent %s regressed %s -> %s", ev.AgentID, prev, ev.Status)
		last[ev.AgentID] = ev.Status

		if ev.AgentID == domain.AgentSynthesis && ev.Status == domain.AgentStatusRunning {
			synthesisStarted = true
		}
		if synthesisStarted && ev.AgentID.Role() == domain.RoleExtraction {
			t.Errorf("extraction update for %s after synthesis started", ev.AgentID)
		}
	}
	assert.Equal(t, 1, terminals)
}

func agentUpdates(events []domain.Event, id domain.AgentID) []domain.Event {
	var out []domain.Event
	for _, ev := range events {
		if ev.Type == domain.EventTypeAgentUpdate && ev.AgentID == id {
			out = append(out, ev)
		}
	}
	return out
}

func TestFlowAITrendsWithInstagramTimeout(t *testing.T) {
	search := &fakeSearcher{res: &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()}}
	synth := &fakeSynthesizer{report: "# AI trends"}
	extractors := map[domain.AgentID]*fakeExtractor{
		domain.AgentInstagram: {hang: true},
	}
	cfg := testConfig()
	cfg.ExtractionTimeout = 100 * time.Millisecond
	svc := newTestService(t, newToolkit(search, synth, extractors), cfg)

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, domain.SessionStatusCompleted, snap.Status)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "# AI trends", *snap.Result)
	assert.Equal(t, domain.AgentStatusError, snap.Agents[domain.AgentInstagram].Status)
	assert.Equal(t, "timed out", snap.Agents[domain.AgentInstagram].Message)
	for _, id := range []domain.AgentID{domain.AgentSearch, domain.AgentLinkedIn, domain.AgentYouTube, domain.AgentX, domain.AgentWeb, domain.AgentSynthesis} {
		assert.Equal(t, domain.AgentStatusDone, snap.Agents[id].Status, id)
	}

	calls, findings := synth.seen()
	assert.Equal(t, 1, calls)
	require.Len(t, findings, 4)
	assert.Equal(t, []domain.AgentID{domain.AgentLinkedIn, domain.AgentYouTube, domain.AgentX, domain.AgentWeb},
		[]domain.AgentID{findings[0].AgentID, findings[1].AgentID, findings[2].AgentID, findings[3].AgentID})
	assert.Equal(t, "Found 5 sources", synth.seenSummary())

	events := trace(t, svc, sess)
	assertTrace(t, events)
	assert.Equal(t, domain.EventTypeResearchComplete, events[len(events)-1].Type)

	search1 := agentUpdates(events, domain.AgentSearch)
	require.Len(t, search1, 2)
	assert.Equal(t, "Searching for relevant sources...", search1[0].Message)
	assert.Equal(t, "Found 5 sources", search1[1].Message)
}

func TestFlowSearchFailureEndsSession(t *testing.T) {
	search := &fakeSearcher{err: errors.New("gateway down")}
	synth := &fakeSynthesizer{report: "unused"}
	extractors := map[domain.AgentID]*fakeExtractor{}
	svc := newTestService(t, newToolkit(search, synth, extractors), testConfig())

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, domain.SessionStatusError, snap.Status)
	assert.Equal(t, "search failed: gateway down", snap.Error)
	assert.Nil(t, snap.Result)
	assert.Equal(t, domain.AgentStatusError, snap.Agents[domain.AgentSearch].Status)
	assert.Equal(t, "gateway down", snap.Agents[domain.AgentSearch].Message)
	for _, id := range domain.ExtractionAgents {
		assert.Equal(t, domain.AgentStatusWaiting, snap.Agents[id].Status, id)
		assert.Zero(t, extractors[id].calls.Load(), id)
	}
	calls, _ := synth.seen()
	assert.Zero(t, calls)

	events := trace(t, svc, sess)
	assertTrace(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventTypeError, last.Type)
	assert.Equal(t, "search failed: gateway down", last.Message)
}

func TestFlowSearchTimeout(t *testing.T) {
	search := &fakeSearcher{gate: make(chan struct{})}
	synth := &fakeSynthesizer{}
	cfg := testConfig()
	cfg.SearchTimeout = 50 * time.Millisecond
	svc := newTestService(t, newToolkit(search, synth, map[domain.AgentID]*fakeExtractor{}), cfg)

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, domain.SessionStatusError, snap.Status)
	assert.Equal(t, "timed out", snap.Agents[domain.AgentSearch].Message)
	assert.Equal(t, "search failed: agent timed out", snap.Error)
}

func TestFlowAllExtractionsFailingIsDegraded(t *testing.T) {
	search := &fakeSearcher{res: &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()}}
	synth := &fakeSynthesizer{report: "# Thin report"}
	extractors := map[domain.AgentID]*fakeExtractor{}
	for _, id := range domain.ExtractionAgents {
		extractors[id] = &fakeExtractor{err: errors.New("upstream 502")}
	}
	svc := newTestService(t, newToolkit(search, synth, extractors), testConfig())

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, domain.SessionStatusCompleted, snap.Status)
	require.NotNil(t, snap.Result)
	assert.True(t, strings.HasPrefix(*snap.Result, DegradedNote))
	assert.True(t, strings.HasSuffix(*snap.Result, "# Thin report"))
	for _, id := range domain.ExtractionAgents {
		assert.Equal(t, domain.AgentStatusError, snap.Agents[id].Status, id)
		assert.Equal(t, "upstream 502", snap.Agents[id].Message, id)
	}

	calls, findings := synth.seen()
	assert.Equal(t, 1, calls)
	assert.Empty(t, findings)
	assertTrace(t, trace(t, svc, sess))
}

func TestFlowEmptyBucketsFinishWithoutExtraction(t *testing.T) {
	search := &fakeSearcher{res: &domain.SearchResult{
		Summary: "Found 1 sources",
		Sources: map[domain.AgentID][]string{domain.AgentWeb: {"https://example.com/a"}},
	}}
	synth := &fakeSynthesizer{report: "# Web only"}
	extractors := map[domain.AgentID]*fakeExtractor{}
	svc := newTestService(t, newToolkit(search, synth, extractors), testConfig())

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, domain.SessionStatusCompleted, snap.Status)
	assert.Equal(t, "# Web only", *snap.Result)
	for _, id := range []domain.AgentID{domain.AgentInstagram, domain.AgentLinkedIn, domain.AgentYouTube, domain.AgentX} {
		assert.Equal(t, domain.AgentStatusDone, snap.Agents[id].Status, id)
		assert.Equal(t, "no sources found", snap.Agents[id].Message, id)
		assert.Zero(t, extractors[id].calls.Load(), id)
	}
	assert.Equal(t, int32(1), extractors[domain.AgentWeb].calls.Load())

	_, findings := synth.seen()
	require.Len(t, findings, 1)
	assert.Equal(t, domain.AgentWeb, findings[0].AgentID)
	assertTrace(t, trace(t, svc, sess))
}

func TestFlowFanOutDeadlineCutsOffUncooperativeExtractor(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	search := &fakeSearcher{res: &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()}}
	synth := &fakeSynthesizer{report: "# Report"}
	extractors := map[domain.AgentID]*fakeExtractor{
		domain.AgentYouTube: {ignoreCtx: true, release: release, content: "late"},
	}
	cfg := testConfig()
	cfg.ExtractionTimeout = 5 * time.Second
	cfg.FanOutTimeout = 100 * time.Millisecond
	svc := newTestService(t, newToolkit(search, synth, extractors), cfg)

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, domain.SessionStatusCompleted, snap.Status)
	assert.Equal(t, domain.AgentStatusError, snap.Agents[domain.AgentYouTube].Status)
	assert.Equal(t, "timed out", snap.Agents[domain.AgentYouTube].Message)

	_, findings := synth.seen()
	assert.Len(t, findings, 4)

	events := trace(t, svc, sess)
	assertTrace(t, events)
	assert.Len(t, agentUpdates(events, domain.AgentYouTube), 2)
}

// agentRuns reads research_agent_runs_total for one agent and status.
func agentRuns(t *testing.T, reg *prometheus.Registry, agent domain.AgentID, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "research_agent_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["agent"] == string(agent) && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestFanOutDeadlineCountsAgentOnce(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	search := &fakeSearcher{res: &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()}}
	synth := &fakeSynthesizer{report: "# Report"}
	extractors := map[domain.AgentID]*fakeExtractor{
		domain.AgentYouTube: {ignoreCtx: true, release: release, content: "late"},
	}
	cfg := testConfig()
	cfg.ExtractionTimeout = 5 * time.Second
	cfg.FanOutTimeout = 100 * time.Millisecond
	reg := prometheus.NewRegistry()
	svc := newTestServiceWithOptions(t, newToolkit(search, synth, extractors), cfg,
		Options{Metrics: metrics.MustNewMetrics(reg)})

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)
	assert.Equal(t, domain.SessionStatusCompleted, sess.Snapshot().Status)

	require.Eventually(t, func() bool {
		return agentRuns(t, reg, domain.AgentYouTube, "timeout") == 1
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, agentRuns(t, reg, domain.AgentYouTube, "cancelled"))
	assert.Equal(t, 1.0, agentRuns(t, reg, domain.AgentInstagram, "done"))
}

func TestFlowZeroConcurrencyLimitStillRuns(t *testing.T) {
	search := &fakeSearcher{res: &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()}}
	synth := &fakeSynthesizer{report: "# Report"}
	cfg := testConfig()
	cfg.MaxConcurrentExtractions = 0
	svc := newTestService(t, newToolkit(search, synth, map[domain.AgentID]*fakeExtractor{}), cfg)

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, domain.SessionStatusCompleted, snap.Status)
	for _, id := range domain.ExtractionAgents {
		assert.Equal(t, domain.AgentStatusDone, snap.Agents[id].Status, id)
	}
}

func TestFlowCancelStopsSession(t *testing.T) {
	started := make(chan struct{}, 1)
	search := &fakeSearcher{res: &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()}}
	synth := &fakeSynthesizer{report: "unused"}
	extractors := map[domain.AgentID]*fakeExtractor{}
	for _, id := range domain.ExtractionAgents {
		extractors[id] = &fakeExtractor{hang: true, started: started}
	}
	cfg := testConfig()
	cfg.ExtractionTimeout = 10 * time.Second
	cfg.FanOutTimeout = 10 * time.Second
	svc := newTestService(t, newToolkit(search, synth, extractors), cfg)

	sess := startResearch(t, svc, "AI trends")
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("extraction never started")
	}

	_, err := svc.CancelResearch(sess.ID)
	require.NoError(t, err)
	waitFlow(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, domain.SessionStatusError, snap.Status)
	assert.Equal(t, "research cancelled", snap.Error)
	assert.Equal(t, domain.AgentStatusDone, snap.Agents[domain.AgentSearch].Status)
	for _, id := range domain.ExtractionAgents {
		assert.Equal(t, domain.AgentStatusError, snap.Agents[id].Status, id)
	}
	assert.Equal(t, domain.AgentStatusError, snap.Agents[domain.AgentSynthesis].Status)
	assert.Equal(t, "cancelled", snap.Agents[domain.AgentSynthesis].Message)

	calls, _ := synth.seen()
	assert.Zero(t, calls)
	assertTrace(t, trace(t, svc, sess))
}

func TestFlowSynthesisFailure(t *testing.T) {
	search := &fakeSearcher{res: &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()}}
	synth := &fakeSynthesizer{err: errors.New("context length exceeded")}
	svc := newTestService(t, newToolkit(search, synth, map[domain.AgentID]*fakeExtractor{}), testConfig())

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, domain.SessionStatusError, snap.Status)
	assert.Equal(t, "synthesis failed: context length exceeded", snap.Error)
	assert.Equal(t, domain.AgentStatusError, snap.Agents[domain.AgentSynthesis].Status)
	for _, id := range domain.ExtractionAgents {
		assert.Equal(t, domain.AgentStatusDone, snap.Agents[id].Status, id)
	}
	assertTrace(t, trace(t, svc, sess))
}

func TestFlowRespectsConcurrencyCap(t *testing.T) {
	var inFlight, maxSeen atomic.Int32
	search := &fakeSearcher{res: &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()}}
	synth := &fakeSynthesizer{report: "# Report"}
	extractors := map[domain.AgentID]*fakeExtractor{}
	for _, id := range domain.ExtractionAgents {
		extractors[id] = &fakeExtractor{content: "ok", delay: 30 * time.Millisecond, inFlight: &inFlight, maxSeen: &maxSeen}
	}
	cfg := testConfig()
	cfg.MaxConcurrentExtractions = 2
	svc := newTestService(t, newToolkit(search, synth, extractors), cfg)

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	assert.Equal(t, domain.SessionStatusCompleted, sess.Snapshot().Status)
	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
	assert.Equal(t, int32(2), maxSeen.Load())
}

func TestLateSubscriberGetsTerminalEventWithoutRerun(t *testing.T) {
	search := &fakeSearcher{res: &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()}}
	synth := &fakeSynthesizer{report: "# Report"}
	svc := newTestService(t, newToolkit(search, synth, map[domain.AgentID]*fakeExtractor{}), testConfig())

	sess := startResearch(t, svc, "AI trends")
	waitFlow(t, sess)

	snap, sub, err := svc.Subscribe(sess.ID)
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, domain.SessionStatusCompleted, snap.Status)

	var got []domain.Event
	for ev := range sub.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, domain.EventTypeResearchComplete, got[0].Type)
	assert.Equal(t, "# Report", got[0].Result)
	assert.Equal(t, int32(1), search.calls.Load())
}

func TestSubscribersSeeIdenticalOrder(t *testing.T) {
	search := &fakeSearcher{
		gate: make(chan struct{}),
		res:  &domain.SearchResult{Summary: "Found 5 sources", Sources: allSources()},
	}
	synth := &fakeSynthesizer{report: "# Report"}
	svc := newTestService(t, newToolkit(search, synth, map[domain.AgentID]*fakeExtractor{}), testConfig())

	sess := startResearch(t, svc, "AI trends")

	collect := func() <-chan []uint64 {
		_, sub, err := svc.Subscribe(sess.ID)
		require.NoError(t, err)
		out := make(chan []uint64, 1)
		go func() {
			defer sub.Close()
			var seqs []uint64
			for ev := range sub.Events() {
				seqs = append(seqs, ev.Seq)
			}
			out <- seqs
		}()
		return out
	}
	first, second := collect(), collect()
	close(search.gate)
	waitFlow(t, sess)

	a, b := <-first, <-second
	require.NotEmpty(t, a)
	require.NotEmpty(t, b)
	for _, seqs := range [][]uint64{a, b} {
		for i := range seqs {
			assert.Equal(t, seqs[0]+uint64(i), seqs[i], "stream must be gap free")
		}
	}
	// both streams end on the same terminal event
	events := trace(t, svc, sess)
	assert.Equal(t, events[len(events)-1].Seq, a[len(a)-1])
	assert.Equal(t, a[len(a)-1], b[len(b)-1])
}
