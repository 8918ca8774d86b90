package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"dexsync/internal/application/port"
	"dexsync/internal/domain/model"
)

// Resync periodically walks the accounts known to the sync ledger and
// reruns the ledger-data sync for any that have gone stale.
type Resync struct {
	store    port.RecordStore
	accounts *Accounts
	orch     *Orchestrator
	fetcher  port.Fetcher
	interval time.Duration
}

func NewResync(store port.RecordStore, accounts *Accounts, orch *Orchestrator, fetcher port.Fetcher, interval time.Duration) *Resync {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Resync{
		store:    store,
		accounts: accounts,
		orch:     orch,
		fetcher:  fetcher,
		interval: interval,
	}
}

// Start schedules the resync job and stops it when ctx is done.
func (r *Resync) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.tick(ctx) }),
	)
	if err != nil {
		return err
	}
	s.Start()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("resync scheduler shutdown failed")
		}
	}()

	log.Info().Dur("interval", r.interval).Msg("resync scheduler started")
	return nil
}

func (r *Resync) tick(ctx context.Context) {
	addrs, err := r.store.ListSyncedAccounts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("resync: list accounts failed")
		return
	}
	for _, addr := range addrs {
		stale, err := r.accounts.NeedsSync(ctx, addr, model.SourceLedger, r.interval)
		if err != nil {
			log.Error().Err(err).Str("account", addr).Msg("resync: staleness check failed")
			continue
		}
		if !stale {
			continue
		}
		batch := r.fetcher.FetchAll(ctx, addr, "")
		res, err := r.orch.RunSync(ctx, model.SourceLedger, addr, batch)
		if err != nil {
			log.Error().Err(err).Str("account", addr).Msg("resync: pass failed")
			continue
		}
		log.Info().Str("account", addr).Str("status", res.Status).Int("written", res.Written()).Msg("resync pass done")
	}
}
