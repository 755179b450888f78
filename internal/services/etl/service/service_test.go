package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	perr "moviesync/internal/platform/errors"
	"moviesync/internal/platform/logger"
	"moviesync/internal/platform/testkit"
	cpdom "moviesync/internal/services/checkpoint/domain"
	cprepo "moviesync/internal/services/checkpoint/repo"
	"moviesync/internal/services/etl/domain"
	"moviesync/internal/services/etl/guardrails"
	ledgerdom "moviesync/internal/services/ledger/domain"
)

const filmID = "11111111-1111-4111-8111-111111111111"

var (
	t0 = time.Date(2021, 6, 16, 20, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

// fakeExtract takes a real lease on cp and returns err when set
type fakeExtract struct {
	cp    cpdom.Store
	err   error
	calls int
	ctxs  []context.Context
}

func (f *fakeExtract) Extract(ctx context.Context, owner string) (domain.Batch, *guardrails.Lease, error) {
	f.calls++
	f.ctxs = append(f.ctxs, ctx)
	if f.err != nil {
		return domain.Batch{Cursor: t0}, nil, f.err
	}
	lease, cp, err := guardrails.Acquire(ctx, f.cp, owner, time.Minute)
	if err != nil {
		return domain.Batch{Cursor: cp.Cursor}, nil, err
	}
	return domain.Batch{
		Cursor:     cp.Cursor,
		Records:    []domain.ChangeRecord{{FilmID: filmID, Reasons: domain.ReasonFilm, ChangedAt: t1}},
		Films:      []domain.FilmRow{{ID: filmID, Title: "Alpha", Persons: "[]", ChangedAt: t1}},
		NextCursor: t1,
	}, lease, nil
}

type fakeLoad struct {
	err   error
	calls int
}

func (f *fakeLoad) Load(ctx context.Context, lease *guardrails.Lease, docs domain.Documents, next time.Time) (domain.LoadResult, error) {
	f.calls++
	if f.err != nil {
		return domain.LoadResult{}, f.err
	}
	if err := lease.Commit(ctx, next); err != nil {
		return domain.LoadResult{}, err
	}
	return domain.LoadResult{SuccessCount: docs.Len(), FailedIDs: []string{}}, nil
}

type fakeRedrive struct {
	res   domain.RedriveResult
	err   error
	calls int
}

func (f *fakeRedrive) Redrive(context.Context) (domain.RedriveResult, error) {
	f.calls++
	return f.res, f.err
}

type fakeLedger struct {
	mu   sync.Mutex
	runs []ledgerdom.Run
	err  error
}

func (f *fakeLedger) Record(_ context.Context, r ledgerdom.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, r)
	return f.err
}

type harness struct {
	cp     *cprepo.Memory
	ex     *fakeExtract
	ld     *fakeLoad
	rd     *fakeRedrive
	ledger *fakeLedger
	svc    *Service
}

func newHarness() *harness {
	h := &harness{cp: cprepo.NewMemory(nil), ld: &fakeLoad{}, rd: &fakeRedrive{}, ledger: &fakeLedger{}}
	h.ex = &fakeExtract{cp: h.cp}
	h.svc = New(h.ex, h.ld, h.rd, h.ledger, Config{Interval: time.Hour, Owner: "host:1:abcd1234"})
	return h
}

func TestRunOnce_Synced(t *testing.T) {
	h := newHarness()
	h.rd.res = domain.RedriveResult{Redriven: 2}

	run, err := h.svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.Outcome != ledgerdom.OutcomeSynced || !run.CursorFrom.Equal(cpdom.Epoch) || !run.CursorTo.Equal(t1) {
		t.Fatalf("run = %+v", run)
	}
	if run.Films != 1 || run.Succeeded != 1 || run.Redriven != 2 || run.RunID == "" {
		t.Fatalf("run counters = %+v", run)
	}
	if len(h.ledger.runs) != 1 || h.ledger.runs[0].RunID != run.RunID {
		t.Fatalf("ledger = %+v", h.ledger.runs)
	}
	rec, _ := h.cp.Get(context.Background())
	if rec.Locked || !rec.Cursor.Equal(t1) {
		t.Fatalf("checkpoint = %+v", rec)
	}

	st := h.svc.Status()
	if st.State != StateIdle || st.Ticks != 1 || st.Last == nil || st.Last.RunID != run.RunID || st.LastSyncedAt == nil {
		t.Fatalf("status = %+v", st)
	}
}

func TestRunOnce_ContendedSkipsLoadAndRedrive(t *testing.T) {
	h := newHarness()
	if _, ok, _ := h.cp.Acquire(context.Background(), "someone-else", time.Hour); !ok {
		t.Fatalf("setup acquire failed")
	}

	run, err := h.svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.Outcome != ledgerdom.OutcomeContended || h.ld.calls != 0 || h.rd.calls != 0 {
		t.Fatalf("run = %+v load %d redrive %d", run, h.ld.calls, h.rd.calls)
	}
	if h.svc.Status().LastSyncedAt != nil {
		t.Fatalf("contended tick must not count as synced")
	}
}

func TestRunOnce_IdleStillRedrives(t *testing.T) {
	h := newHarness()
	h.ex.err = domain.ErrNoChanges

	run, err := h.svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.Outcome != ledgerdom.OutcomeIdle || !run.CursorTo.Equal(t0) || h.ld.calls != 0 || h.rd.calls != 1 {
		t.Fatalf("run = %+v load %d redrive %d", run, h.ld.calls, h.rd.calls)
	}
}

func TestRunOnce_LoadFailureReleasesLease(t *testing.T) {
	h := newHarness()
	h.ld.err = perr.Unavailablef("sink down")

	run, err := h.svc.RunOnce(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if run.Outcome != ledgerdom.OutcomeFailed || run.Error == "" || !run.CursorTo.Equal(cpdom.Epoch) {
		t.Fatalf("run = %+v", run)
	}
	if h.rd.calls != 0 {
		t.Fatalf("failed tick must not redrive")
	}
	rec, _ := h.cp.Get(context.Background())
	if rec.Locked || !rec.Cursor.Equal(cpdom.Epoch) {
		t.Fatalf("checkpoint must equal the pre-tick state: %+v", rec)
	}
	if len(h.ledger.runs) != 1 || h.ledger.runs[0].Outcome != ledgerdom.OutcomeFailed {
		t.Fatalf("ledger = %+v", h.ledger.runs)
	}
}

func TestRunOnce_ExtractFailure(t *testing.T) {
	h := newHarness()
	h.ex.err = perr.Unavailablef("source down")

	run, err := h.svc.RunOnce(context.Background())
	if err == nil || run.Outcome != ledgerdom.OutcomeFailed || h.ld.calls != 0 {
		t.Fatalf("run = %+v err %v", run, err)
	}
}

func TestRunOnce_LedgerAndRedriveErrorsDoNotFailTick(t *testing.T) {
	h := newHarness()
	h.ledger.err = errors.New("clickhouse down")
	h.rd.err = errors.New("redis down")

	if _, err := h.svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
}

func TestRunOnce_IgnoresCancellationAndTagsRun(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := h.svc.RunOnce(ctx)
	if err != nil || run.Outcome != ledgerdom.OutcomeSynced {
		t.Fatalf("RunOnce on cancelled ctx = %+v, %v", run, err)
	}
	got := h.ex.ctxs[0]
	if got.Err() != nil {
		t.Fatalf("tick context was cancelled")
	}
	if logger.RunID(got) != run.RunID {
		t.Fatalf("run id not on context")
	}
}

func TestRun_TicksImmediatelyAndStops(t *testing.T) {
	h := newHarness()
	h.ex.err = domain.ErrNoChanges
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.svc.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for h.svc.Status().Ticks == 0 {
		select {
		case <-deadline:
			t.Fatalf("no tick within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.svc.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.ex.calls != 0 {
		t.Fatalf("no tick expected")
	}
}

func TestNew_Defaults(t *testing.T) {
	svc := New(&fakeExtract{}, &fakeLoad{}, nil, nil, Config{})
	if svc.Cfg.Interval != 30*time.Second || svc.Cfg.Owner == "" {
		t.Fatalf("cfg = %+v", svc.Cfg)
	}
	testkit.MustPanic(t, func() { New(nil, &fakeLoad{}, nil, nil, Config{}) })
}
