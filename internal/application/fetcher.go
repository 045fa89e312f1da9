package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
	"github.com/ericfisherdev/zotoksheets/internal/metrics"
)

// FetchConfig holds the configured fetch defaults. PageSize is also the upper
// bound for a caller-supplied page size.
type FetchConfig struct {
	PageSize         int
	MaxPages         int
	BatchSize        int
	MemoryLimit      int
	MaxExecutionTime time.Duration
	PageDelay        time.Duration
	Retry            RetryPolicy
}

// Fetcher drives multi-page GET retrieval within wall-clock, page-count and
// record-count budgets.
type Fetcher struct {
	api     driven.ZotokAPI
	catalog model.Catalog
	cfg     FetchConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewFetcher creates a Fetcher. m and logger may be nil.
func NewFetcher(api driven.ZotokAPI, catalog model.Catalog, cfg FetchConfig, m *metrics.Metrics, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		api:     api,
		catalog: catalog,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

type fetchRun struct {
	ep       model.Endpoint
	token    string
	period   string
	budgets  model.FetchBudgets
	start    time.Time
	records  []model.Record
	pages    int
	hasNext  bool
	timedOut bool
}

// Fetch retrieves every record of endpointKey in page order. Running out of
// time is not an error: the records gathered so far are returned with
// StopTimeBudget.
func (f *Fetcher) Fetch(ctx context.Context, token, endpointKey, period string, budgets model.FetchBudgets) (*model.FetchResult, error) {
	ep, err := f.catalog.Lookup(endpointKey)
	if err != nil {
		return nil, err
	}
	resolved, err := ep.ResolvePeriod(period)
	if err != nil {
		return nil, err
	}

	run := &fetchRun{
		ep:      ep,
		token:   token,
		period:  resolved,
		budgets: f.resolveBudgets(budgets),
		start:   f.now(),
		hasNext: true,
	}

	var stop model.StopReason
	if !ep.SupportsPagination {
		stop, err = f.fetchSingle(ctx, run)
	} else {
		stop, err = f.fetchPages(ctx, run)
	}
	elapsed := f.now().Sub(run.start)
	if err != nil {
		f.logger.Error("fetch failed",
			"endpoint", ep.Key,
			"pages_processed", run.pages,
			"elapsed", elapsed,
			"error", err,
		)
		return nil, err
	}

	f.metrics.ObserveFetch(ep.Key, string(stop), len(run.records), elapsed)
	f.logger.Info("fetch complete",
		"endpoint", ep.Key,
		"records", len(run.records),
		"pages_processed", run.pages,
		"stop_reason", stop,
		"elapsed", elapsed,
	)

	records := run.records
	if records == nil {
		records = []model.Record{}
	}
	return &model.FetchResult{
		Records:        records,
		RecordCount:    len(records),
		PagesProcessed: run.pages,
		ExecutionTime:  elapsed,
		StopReason:     stop,
	}, nil
}

// resolveBudgets fills zero budgets from config and caps the page size at the
// configured value.
func (f *Fetcher) resolveBudgets(b model.FetchBudgets) model.FetchBudgets {
	if b.PageSize <= 0 || b.PageSize > f.cfg.PageSize {
		b.PageSize = f.cfg.PageSize
	}
	if b.MaxPages <= 0 {
		b.MaxPages = f.cfg.MaxPages
	}
	if b.MemoryLimit <= 0 {
		b.MemoryLimit = f.cfg.MemoryLimit
	}
	if b.BatchSize <= 0 {
		b.BatchSize = f.cfg.BatchSize
	}
	if b.MaxExecutionTime <= 0 {
		b.MaxExecutionTime = f.cfg.MaxExecutionTime
	}
	return b
}

func (f *Fetcher) fetchSingle(ctx context.Context, run *fetchRun) (model.StopReason, error) {
	page, err := f.fetchPage(ctx, run.token, model.PageQuery{
		APIName: run.ep.APIName,
		Period:  run.period,
	})
	if err != nil {
		return "", rejectBadRequest(err)
	}
	run.pages = 1
	run.records = append(run.records, page.Data...)
	return model.StopSingleRequest, nil
}

func (f *Fetcher) fetchPages(ctx context.Context, run *fetchRun) (model.StopReason, error) {
	b := run.budgets
	pageNo := 1
	for run.hasNext && run.pages < b.MaxPages && len(run.records) < b.MemoryLimit {
		if f.now().Sub(run.start) >= b.MaxExecutionTime {
			run.timedOut = true
			f.logger.Warn("fetch time budget exhausted, returning partial result",
				"endpoint", run.ep.Key,
				"pages_processed", run.pages,
				"records", len(run.records),
			)
			break
		}
		if run.pages > 0 {
			if err := sleepContext(ctx, f.cfg.PageDelay); err != nil {
				return "", err
			}
		}

		n := 1
		if b.BatchSize > 1 {
			n = min(b.BatchSize, b.MaxPages-run.pages)
		}
		if err := f.fetchBatch(ctx, run, pageNo, n); err != nil {
			return "", err
		}
		pageNo += n
	}

	switch {
	case run.timedOut:
		return model.StopTimeBudget, nil
	case !run.hasNext:
		return model.StopEndOfData, nil
	case run.pages >= b.MaxPages:
		return model.StopMaxPages, nil
	default:
		return model.StopMemoryLimit, nil
	}
}

type pageOutcome struct {
	page *model.Page
	err  error
}

// fetchBatch requests pages first..first+n-1 concurrently and accepts them in
// page order up to the first short, empty or 400 page. Pages after that
// point are discarded even if they returned data.
func (f *Fetcher) fetchBatch(ctx context.Context, run *fetchRun, first, n int) error {
	outcomes := make([]pageOutcome, n)
	query := func(pageNo int) model.PageQuery {
		return model.PageQuery{
			APIName:   run.ep.APIName,
			Paginated: true,
			PageNo:    pageNo,
			PageSize:  run.budgets.PageSize,
			Period:    run.period,
		}
	}

	if n == 1 {
		outcomes[0].page, outcomes[0].err = f.fetchPage(ctx, run.token, query(first))
	} else {
		var g errgroup.Group
		g.SetLimit(n)
		for i := range n {
			g.Go(func() error {
				outcomes[i].page, outcomes[i].err = f.fetchPage(ctx, run.token, query(first+i))
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, o := range outcomes {
		pageNo := first + i
		if o.err != nil {
			if model.StatusCodeOf(o.err) == http.StatusBadRequest {
				if pageNo == 1 {
					f.logger.Warn("first page rejected with 400, returning no records", "endpoint", run.ep.Key, "error", o.err)
				} else {
					f.logger.Debug("page rejected with 400, treating as end of data", "endpoint", run.ep.Key, "page", pageNo)
				}
				run.hasNext = false
				return nil
			}
			return o.err
		}

		run.pages++
		run.records = append(run.records, o.page.Data...)
		f.logger.Debug("page fetched", "endpoint", run.ep.Key, "page", pageNo, "records", len(o.page.Data))
		if len(o.page.Data) < run.budgets.PageSize {
			run.hasNext = false
			return nil
		}
	}
	return nil
}

// fetchPage requests one page, retrying transient failures. 400, 401 and
// malformed responses are not retried.
func (f *Fetcher) fetchPage(ctx context.Context, token string, q model.PageQuery) (*model.Page, error) {
	op := fmt.Sprintf("fetch %s page %d", q.APIName, q.PageNo)
	if !q.Paginated {
		op = "fetch " + q.APIName
	}

	var page *model.Page
	attempts, err := f.cfg.Retry.run(ctx, "fetch_page", f.metrics, f.logger, func(int) error {
		p, err := f.api.FetchPage(ctx, token, q)
		if err != nil {
			switch {
			case model.KindOf(err) == model.KindMalformedResponse,
				model.StatusCodeOf(err) == http.StatusBadRequest,
				model.StatusCodeOf(err) == http.StatusUnauthorized:
				return backoff.Permanent(err)
			}
			return err
		}
		page = p
		return nil
	})
	if err == nil {
		return page, nil
	}

	status := model.StatusCodeOf(err)
	var mErr *model.Error
	switch {
	case errors.As(err, &mErr):
		return nil, err
	case status == http.StatusUnauthorized:
		return nil, &model.Error{Kind: model.KindAuth, Op: op, StatusCode: status, NeedsCredentials: true, Err: err}
	case status == http.StatusBadRequest:
		return nil, &model.Error{Kind: model.KindTransientHTTP, Op: op, StatusCode: status, Err: err}
	default:
		return nil, &model.Error{
			Kind:       model.KindTransientHTTP,
			Op:         op,
			StatusCode: status,
			Err:        fmt.Errorf("failed after %d attempts: %w", attempts, err),
		}
	}
}

// rejectBadRequest turns a 400 on a single-request fetch into a validation error.
func rejectBadRequest(err error) error {
	if model.StatusCodeOf(err) != http.StatusBadRequest {
		return err
	}
	return &model.Error{
		Kind:       model.KindValidation,
		Op:         "fetch",
		StatusCode: http.StatusBadRequest,
		Violations: []string{"server rejected request (400)"},
		Err:        err,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
