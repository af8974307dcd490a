package adapter

import (
	"context"
	"fmt"

	"github.com/ripplekit/storebridge/internal/cache"
	"github.com/ripplekit/storebridge/internal/core"
	"github.com/ripplekit/storebridge/internal/observe"
	"github.com/ripplekit/storebridge/internal/predicate"
)

// Observe opens a live subscription for a query. The subscription emits
// the full matching record array immediately and again whenever the
// model's table changes. Tearing the subscription down also drops the
// query cache entry for the same query, since nothing will keep it
// fresh.
func (a *Adapter) Observe(ctx context.Context, model string, pred *core.Predicate, page *core.Pagination) (*observe.Subscription, error) {
	if _, err := a.requireReady(); err != nil {
		return nil, err
	}
	col := a.collection(model)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrCollectionNotRegistered, model)
	}

	compiler := predicate.NewCompiler(col.Model)
	dir, _ := compiler.CompileQuery(pred, page)
	q := observe.Query{
		Table:       col.Table,
		Model:       model,
		Directives:  dir,
		Fingerprint: cache.Fingerprint(col.Table, pred, page),
	}
	md := col.Model
	sub := a.hub.Subscribe(ctx, q, func(records []core.Record) []core.Record {
		return a.convertAll(md, records)
	})
	return sub, nil
}

// StopObserve tears down every active subscription and clears the whole
// query cache. Individual unsubscribe failures are logged and swallowed
// so one bad stream cannot keep the rest alive.
func (a *Adapter) StopObserve() error {
	if _, err := a.requireReady(); err != nil {
		return err
	}
	a.hub.UnsubscribeAll()
	a.cache.Clear()
	return nil
}
