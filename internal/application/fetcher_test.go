package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ericfisherdev/zotoksheets/internal/application"
	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
)

var testFetchConfig = application.FetchConfig{
	PageSize:         100,
	MaxPages:         10,
	BatchSize:        1,
	MemoryLimit:      10000,
	MaxExecutionTime: time.Minute,
	Retry:            fastRetry,
}

func newFetcher(api *fakeAPI, cfg application.FetchConfig) *application.Fetcher {
	return application.NewFetcher(api, testCatalog(), cfg, nil, nil)
}

// pagesServer serves pages[pageNo-1] and an empty page past the end.
func pagesServer(pages ...[]model.Record) func(string, model.PageQuery) (*model.Page, error) {
	return func(_ string, q model.PageQuery) (*model.Page, error) {
		if q.PageNo < 1 || q.PageNo > len(pages) {
			return page(nil), nil
		}
		return page(pages[q.PageNo-1]), nil
	}
}

func recordIDs(recs []model.Record) []any {
	ids := make([]any, len(recs))
	for i, r := range recs {
		ids[i] = r["id"]
	}
	return ids
}

func TestFetcher_ShortLastPage(t *testing.T) {
	api := &fakeAPI{fetch: pagesServer(
		[]model.Record{{"id": "a"}, {"id": "b"}},
		[]model.Record{{"id": "c"}, {"id": "d"}},
		[]model.Record{{"id": "e"}},
	)}

	res, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "customers", "30",
		model.FetchBudgets{PageSize: 2, MaxPages: 10})

	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c", "d", "e"}, recordIDs(res.Records))
	assert.Equal(t, 5, res.RecordCount)
	assert.Equal(t, 3, res.PagesProcessed)
	assert.Equal(t, model.StopEndOfData, res.StopReason)
	assert.Equal(t, 3, api.fetchCount())
	for i, q := range api.queries {
		assert.Equal(t, model.PageQuery{APIName: "customers", Paginated: true, PageNo: i + 1, PageSize: 2, Period: "30"}, q)
	}
}

func TestProperty_PaginationStopsAfterShortPage(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pageSize := rapid.IntRange(1, 5).Draw(t, "pageSize")
		full := rapid.IntRange(0, 6).Draw(t, "fullPages")
		tail := rapid.IntRange(0, pageSize-1).Draw(t, "tail")
		batch := rapid.IntRange(1, 4).Draw(t, "batch")

		var pages [][]model.Record
		var want []any
		for i := range full + 1 {
			n := pageSize
			if i == full {
				n = tail
			}
			recs := records(string(rune('a'+i)), n)
			pages = append(pages, recs)
			want = append(want, recordIDs(recs)...)
		}
		if want == nil {
			want = []any{}
		}

		api := &fakeAPI{fetch: pagesServer(pages...)}
		cfg := testFetchConfig
		cfg.MaxPages = 50
		cfg.BatchSize = batch

		res, err := newFetcher(api, cfg).Fetch(context.Background(), "tok", "orders", "",
			model.FetchBudgets{PageSize: pageSize})

		require.NoError(t, err)
		assert.Equal(t, want, recordIDs(res.Records))
		assert.Equal(t, full+1, res.PagesProcessed)
		assert.Equal(t, model.StopEndOfData, res.StopReason)
		if batch == 1 {
			assert.Equal(t, full+1, api.fetchCount(), "no requests after the short page")
		}
	})
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	api := &fakeAPI{fetch: func(string, model.PageQuery) (*model.Page, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < fastRetry.MaxAttempts {
			return nil, &model.HTTPError{StatusCode: 500, Body: "boom"}
		}
		return page([]model.Record{{"id": "ok"}}), nil
	}}

	res, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "orders", "", model.FetchBudgets{})

	require.NoError(t, err)
	assert.Equal(t, []any{"ok"}, recordIDs(res.Records))
	assert.Equal(t, fastRetry.MaxAttempts, api.fetchCount())
}

func TestFetcher_RetryBudgetExhausted(t *testing.T) {
	api := &fakeAPI{fetch: func(string, model.PageQuery) (*model.Page, error) {
		return nil, &model.HTTPError{StatusCode: 503}
	}}

	_, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "orders", "", model.FetchBudgets{})

	require.ErrorIs(t, err, model.ErrTransientHTTP)
	assert.Equal(t, 503, model.StatusCodeOf(err))
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, fastRetry.MaxAttempts, api.fetchCount())
}

func TestFetcher_TimeBudgetReturnsPartialResult(t *testing.T) {
	api := &fakeAPI{fetch: func(string, model.PageQuery) (*model.Page, error) {
		return page(records("p", 2)), nil
	}}
	cfg := testFetchConfig
	cfg.MaxPages = 100
	cfg.PageDelay = 20 * time.Millisecond
	cfg.MaxExecutionTime = 50 * time.Millisecond

	res, err := newFetcher(api, cfg).Fetch(context.Background(), "tok", "orders", "", model.FetchBudgets{PageSize: 2})

	require.NoError(t, err)
	assert.Equal(t, model.StopTimeBudget, res.StopReason)
	assert.GreaterOrEqual(t, res.PagesProcessed, 1)
	assert.Less(t, res.PagesProcessed, 100)
	assert.Equal(t, 2*res.PagesProcessed, res.RecordCount)
}

func TestFetcher_StopReasons(t *testing.T) {
	full := func(string, model.PageQuery) (*model.Page, error) { return page(records("p", 5)), nil }

	t.Run("max pages", func(t *testing.T) {
		api := &fakeAPI{fetch: full}
		res, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "orders", "",
			model.FetchBudgets{PageSize: 5, MaxPages: 3})
		require.NoError(t, err)
		assert.Equal(t, model.StopMaxPages, res.StopReason)
		assert.Equal(t, 3, res.PagesProcessed)
		assert.Equal(t, 15, res.RecordCount)
	})

	t.Run("memory limit", func(t *testing.T) {
		api := &fakeAPI{fetch: full}
		res, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "orders", "",
			model.FetchBudgets{PageSize: 5, MemoryLimit: 12})
		require.NoError(t, err)
		assert.Equal(t, model.StopMemoryLimit, res.StopReason)
		assert.Equal(t, 3, res.PagesProcessed)
	})

	t.Run("single request", func(t *testing.T) {
		api := &fakeAPI{fetch: full}
		res, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "products", "", model.FetchBudgets{})
		require.NoError(t, err)
		assert.Equal(t, model.StopSingleRequest, res.StopReason)
		assert.Equal(t, 1, res.PagesProcessed)
		require.Len(t, api.queries, 1)
		assert.False(t, api.queries[0].Paginated)
	})
}

func TestFetcher_PageSizeClamped(t *testing.T) {
	api := &fakeAPI{}
	cfg := testFetchConfig
	cfg.PageSize = 50

	_, err := newFetcher(api, cfg).Fetch(context.Background(), "tok", "orders", "", model.FetchBudgets{PageSize: 5000})

	require.NoError(t, err)
	require.NotEmpty(t, api.queries)
	assert.Equal(t, 50, api.queries[0].PageSize)
}

func TestFetcher_Unauthorized(t *testing.T) {
	api := &fakeAPI{fetch: func(string, model.PageQuery) (*model.Page, error) {
		return nil, &model.HTTPError{StatusCode: 401}
	}}

	_, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "orders", "", model.FetchBudgets{})

	require.ErrorIs(t, err, model.ErrAuth)
	assert.True(t, model.NeedsCredentials(err))
	assert.Equal(t, 1, api.fetchCount(), "401 is not retried")
}

func TestFetcher_BadRequest(t *testing.T) {
	t.Run("first page ends the data with no records", func(t *testing.T) {
		api := &fakeAPI{fetch: func(string, model.PageQuery) (*model.Page, error) {
			return nil, &model.HTTPError{StatusCode: 400, Body: "bad period"}
		}}

		res, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "orders", "", model.FetchBudgets{})

		require.NoError(t, err)
		assert.Equal(t, model.StopEndOfData, res.StopReason)
		assert.Equal(t, 0, res.PagesProcessed)
		assert.Equal(t, 0, res.RecordCount)
		assert.Equal(t, 1, api.fetchCount())
	})

	t.Run("single request is a validation error", func(t *testing.T) {
		api := &fakeAPI{fetch: func(string, model.PageQuery) (*model.Page, error) {
			return nil, &model.HTTPError{StatusCode: 400}
		}}

		_, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "products", "", model.FetchBudgets{})

		require.ErrorIs(t, err, model.ErrValidation)
		assert.Equal(t, 1, api.fetchCount())
	})

	t.Run("later page ends the data", func(t *testing.T) {
		api := &fakeAPI{fetch: func(_ string, q model.PageQuery) (*model.Page, error) {
			if q.PageNo > 2 {
				return nil, &model.HTTPError{StatusCode: 400}
			}
			return page(records("p", 3)), nil
		}}

		res, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "orders", "",
			model.FetchBudgets{PageSize: 3})

		require.NoError(t, err)
		assert.Equal(t, model.StopEndOfData, res.StopReason)
		assert.Equal(t, 2, res.PagesProcessed)
		assert.Equal(t, 6, res.RecordCount)
	})
}

func TestFetcher_MalformedNotRetried(t *testing.T) {
	api := &fakeAPI{fetch: func(string, model.PageQuery) (*model.Page, error) {
		return nil, model.NewMalformedResponseError("fetch page", "missing data")
	}}

	_, err := newFetcher(api, testFetchConfig).Fetch(context.Background(), "tok", "orders", "", model.FetchBudgets{})

	require.ErrorIs(t, err, model.ErrMalformedResponse)
	assert.Equal(t, 1, api.fetchCount())
}

func TestFetcher_BatchKeepsPageOrderAndDiscardsPastShortPage(t *testing.T) {
	api := &fakeAPI{fetch: func(_ string, q model.PageQuery) (*model.Page, error) {
		// Later pages answer first.
		time.Sleep(time.Duration(5-q.PageNo) * time.Millisecond)
		switch q.PageNo {
		case 1, 2:
			return page(records(string(rune('a'+q.PageNo-1)), 2)), nil
		case 3:
			return page(records("c", 1)), nil
		default:
			return page(records("z", 2)), nil
		}
	}}
	cfg := testFetchConfig
	cfg.BatchSize = 4

	res, err := newFetcher(api, cfg).Fetch(context.Background(), "tok", "orders", "", model.FetchBudgets{PageSize: 2})

	require.NoError(t, err)
	assert.Equal(t, []any{"a0", "a1", "b0", "b1", "c0"}, recordIDs(res.Records))
	assert.Equal(t, 3, res.PagesProcessed)
	assert.Equal(t, 4, api.fetchCount())
}

func TestFetcher_InvalidInput(t *testing.T) {
	api := &fakeAPI{}
	f := newFetcher(api, testFetchConfig)

	_, err := f.Fetch(context.Background(), "tok", "nope", "", model.FetchBudgets{})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = f.Fetch(context.Background(), "tok", "customers", "45", model.FetchBudgets{})
	require.ErrorIs(t, err, model.ErrValidation)

	assert.Equal(t, 0, api.fetchCount())
}

func TestFetcher_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{fetch: func(string, model.PageQuery) (*model.Page, error) {
		cancel()
		return nil, &model.HTTPError{StatusCode: 502}
	}}

	_, err := newFetcher(api, testFetchConfig).Fetch(ctx, "tok", "orders", "", model.FetchBudgets{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || model.KindOf(err) == model.KindTransientHTTP)
}
