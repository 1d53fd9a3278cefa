package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/log"
)

// Refresher renews the access token on a schedule so it never expires
// mid-session. Failures are already handled by the store (the user is
// signed out), so the refresher only logs them.
type Refresher struct {
	store  *Store
	cron   *cron.Cron
	logger *log.Logger
}

// NewRefresher builds a Refresher using the store's configured
// interval.
func NewRefresher(store *Store, logger *log.Logger) (*Refresher, error) {
	if logger == nil {
		logger = log.G
	}

	r := &Refresher{
		store:  store,
		cron:   cron.New(),
		logger: logger,
	}

	spec := fmt.Sprintf("@every %dm", store.config.RefreshInterval)
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Refresher) tick() {
	if !r.store.Authenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := r.store.RefreshAccessToken(ctx); err != nil {
		if errors.IsKind(err, errors.KindUnauthenticated) {
			return
		}
		r.logger.Warn().Err(err).Msg("scheduled token refresh failed")
	}
}

// Start begins the schedule.
func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Debug().Int("interval_minutes", r.store.config.RefreshInterval).Msg("token refresher started")
}

// Stop halts the schedule and waits for a running tick to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Debug().Msg("token refresher stopped")
}
