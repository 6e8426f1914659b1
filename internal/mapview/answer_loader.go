package mapview

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
	"github.com/rpattn/auditdesk/internal/repository"
)

// AnswerLoader batches latest-answer lookups so a page of facilities costs one
// query. Values are question_key -> answer maps from each facility's newest audit.
type AnswerLoader struct {
	Loader *dataloader.Loader
}

func NewAnswerLoader(repo repository.AuditRepository) *AnswerLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return failAll(len(keys), fmt.Errorf("invalid facility id %q: %w", k.String(), err))
			}
			ids[i] = id
		}

		answers, err := repo.LatestAnswersByFacility(ctx, ids, nil)
		if err != nil {
			return failAll(len(keys), err)
		}

		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			byKey := answers[id]
			if byKey == nil {
				byKey = map[string]string{}
			}
			results[i] = &dataloader.Result{Data: byKey}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
	return &AnswerLoader{Loader: loader}
}

func failAll(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

// LoadMany resolves answers for every facility id, in one batch.
func (l *AnswerLoader) LoadMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]map[string]string, error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}
	values, errs := l.Loader.LoadMany(ctx, keys)()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	out := make(map[uuid.UUID]map[string]string, len(ids))
	for i, v := range values {
		if byKey, ok := v.(map[string]string); ok {
			out[ids[i]] = byKey
		}
	}
	return out, nil
}

type loaderKey struct{}

// WithAnswerLoader stores a request scoped loader in ctx.
func WithAnswerLoader(ctx context.Context, l *AnswerLoader) context.Context {
	return context.WithValue(ctx, loaderKey{}, l)
}

// AnswerLoaderFromContext returns the request's loader, or nil.
func AnswerLoaderFromContext(ctx context.Context) *AnswerLoader {
	if l, ok := ctx.Value(loaderKey{}).(*AnswerLoader); ok {
		return l
	}
	return nil
}
