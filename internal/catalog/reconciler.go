package catalog

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"sjsage522/pricecompare/internal/crawler"
	"sjsage522/pricecompare/logger"
	apperrors "sjsage522/pricecompare/pkg/errors"
)

// Action is the decision taken for a reconciled record
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

// Result reports what happened to one record
type Result struct {
	ProductID string `json:"product_id"`
	Action    Action `json:"action"`
}

// Reconciler creates or updates catalog products from crawled records
type Reconciler struct {
	store   Store
	locks   *urlLocks
	workers int
	now     func() time.Time
	log     *logger.Logger
}

// NewReconciler creates a reconciler running up to workers records at once
func NewReconciler(store Store, workers int) *Reconciler {
	return &Reconciler{
		store:   store,
		locks:   newURLLocks(),
		workers: max(workers, 1),
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.ForReconciler(),
	}
}

// SetClock replaces the clock used to date price history
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Apply reconciles a single record against the catalog.
//
// An unknown URL creates a product with its first price point. A known URL
// with a different price updates the price and appends a price point; the
// same price leaves the catalog untouched.
func (r *Reconciler) Apply(ctx context.Context, record crawler.NormalizedRecord) (Result, error) {
	unlock := r.locks.Lock(record.URL)
	defer unlock()

	existing, err := r.store.FindByURL(ctx, record.URL)
	if errors.Is(err, ErrNotFound) {
		created, err := r.store.Create(ctx, record.RawProductRecord, r.now())
		if err == nil {
			reconcileActions.WithLabelValues(string(ActionCreated)).Inc()
			return Result{ProductID: created.ID, Action: ActionCreated}, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Result{}, err
		}

		// created elsewhere in the meantime: decide again against the stored row
		r.log.Debug().Str("url", record.URL).Msg("create conflict, re-reading")
		existing, err = r.store.FindByURL(ctx, record.URL)
		if err != nil {
			return Result{}, apperrors.NewConflict(record.URL, err)
		}
	} else if err != nil {
		return Result{}, err
	}

	if existing.Price.Equal(record.Price) {
		reconcileActions.WithLabelValues(string(ActionUnchanged)).Inc()
		return Result{ProductID: existing.ID, Action: ActionUnchanged}, nil
	}

	updated, err := r.store.UpdatePrice(ctx, existing, record.Price, r.now())
	if err != nil {
		return Result{}, err
	}
	r.log.Info().
		Str("url", record.URL).
		Stringer("old_price", existing.Price).
		Stringer("new_price", record.Price).
		Msg("price changed")
	reconcileActions.WithLabelValues(string(ActionUpdated)).Inc()
	return Result{ProductID: updated.ID, Action: ActionUpdated}, nil
}

// Reconcile applies every record and returns the results in input order
func (r *Reconciler) Reconcile(ctx context.Context, records []crawler.NormalizedRecord) ([]Result, error) {
	results := make([]Result, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, record := range records {
		g.Go(func() error {
			result, err := r.Apply(gctx, record)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	created, updated := 0, 0
	for _, res := range results {
		switch res.Action {
		case ActionCreated:
			created++
		case ActionUpdated:
			updated++
		}
	}
	r.log.Info().
		Int("records", len(records)).
		Int("created", created).
		Int("updated", updated).
		Msg("reconcile finished")
	return results, nil
}
