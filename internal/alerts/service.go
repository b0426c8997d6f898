package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"expiry-alert-service/internal/events"
	"expiry-alert-service/internal/inventory"
	"expiry-alert-service/internal/logging"
	"expiry-alert-service/internal/models"
)

// Notifier records delivery intents for non-in_app channels. Delivery
// success or failure never affects alert status.
type Notifier interface {
	Notify(ctx context.Context, cfg models.AlertConfiguration, alerts []models.ExpiryAlert) error
}

// Options tune the engine.
type Options struct {
	// ScanBatchSize bounds how many inventory rows one store round-trip reads.
	ScanBatchSize int
	// DefaultRecipient receives alerts no scoped configuration claims.
	DefaultRecipient int64
	// Now is the clock; defaults to time.Now. Tests pin it.
	Now func() time.Time
}

const defaultScanBatchSize = 500

// Service is the expiry-alert engine: it scans inventory, classifies risk,
// maintains the alert lifecycle, and drives dispatch. It is stateless apart
// from the scan-request queue; all state lives in the injected stores.
type Service struct {
	store    AlertStore
	configs  ConfigStore
	source   inventory.Source
	resolver RecipientResolver
	bus      *events.Bus
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time
	batch    int

	scans  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// New constructs the engine with explicit dependencies.
func New(store AlertStore, configs ConfigStore, source inventory.Source, resolver RecipientResolver, bus *events.Bus, notifier Notifier, logger *logging.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ScanBatchSize <= 0 {
		opts.ScanBatchSize = defaultScanBatchSize
	}
	if resolver == nil {
		resolver = ScopeResolver{DefaultRecipient: opts.DefaultRecipient}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:    store,
		configs:  configs,
		source:   source,
		resolver: resolver,
		bus:      bus,
		notifier: notifier,
		logger:   logger,
		now:      opts.Now,
		batch:    opts.ScanBatchSize,
		scans:    make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the scan worker that serializes triggered generation runs.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	s.wg.Add(1)
	go s.worker()
}

// Stop cancels the scan worker.
func (s *Service) Stop() {
	s.cancel()
}

// TriggerScan requests a generation run without blocking. Re-running the
// generator is always safe, so coalescing bursts into one queued scan loses
// nothing.
func (s *Service) TriggerScan() {
	select {
	case s.scans <- struct{}{}:
	default: // a scan is already queued
	}
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Scan worker stopped")
			return
		case <-s.scans:
			if _, err := s.Generate(s.ctx); err != nil {
				s.logger.Errorf("Triggered scan failed: %v", err)
			}
		}
	}
}

// Generate scans every monitored inventory table, classifies items against
// recipient thresholds, and upserts alerts. A failure in one table is logged
// and skipped; the returned counts cover the tables that succeeded. Counts
// include newly created alerts only — refreshing an existing active alert is
// not generation.
func (s *Service) Generate(ctx context.Context) (models.GenerationResult, error) {
	var res models.GenerationResult

	active, err := s.configs.ActiveConfigurations(ctx)
	if err != nil {
		return res, &models.TransientError{Err: err}
	}
	now := s.now()

	for _, table := range s.source.Tables() {
		if err := s.scanTable(ctx, table, active, now, &res); err != nil {
			s.logger.Errorf("Scan of %s failed, skipping: %v", table, err)
			continue
		}
	}

	s.logger.Infof("Generation run: %d new alerts (%d critical, %d expired)",
		res.AlertsGenerated, res.CriticalCount, res.ExpiredCount)

	if res.AlertsGenerated > 0 {
		if err := s.DispatchPending(ctx); err != nil {
			s.logger.Errorf("Post-generation dispatch failed: %v", err)
		}
	}
	return res, nil
}

func (s *Service) scanTable(ctx context.Context, table string, active []models.AlertConfiguration, now time.Time, res *models.GenerationResult) error {
	for offset := 0; ; offset += s.batch {
		items, err := s.source.Items(ctx, table, s.batch, offset)
		if err != nil {
			return err
		}
		for _, item := range items {
			s.processItem(ctx, item, active, now, res)
		}
		if len(items) < s.batch {
			return nil
		}
	}
}

func (s *Service) processItem(ctx context.Context, item models.InventoryItemSnapshot, active []models.AlertConfiguration, now time.Time, res *models.GenerationResult) {
	// The source already filters these, but other Source implementations may
	// not.
	if item.ExpiryDate == nil || item.Quantity <= 0 {
		return
	}

	recipient := s.resolver.Resolve(item, active)
	cfg, ok := configFor(active, recipient)
	if !ok {
		// Fallback recipient without an active scoped configuration: thresholds
		// come from their (possibly freshly defaulted) configuration row.
		loaded, err := s.configs.GetOrCreateConfiguration(ctx, recipient)
		if err != nil {
			s.logger.Errorf("Configuration lookup for user %d failed: %v", recipient, err)
			return
		}
		cfg = loaded
	}

	days := daysUntil(*item.ExpiryDate, now)
	alertType, priority, ok := classify(days, cfg)
	if !ok {
		return
	}

	alert := models.ExpiryAlert{
		ID:              uuid.New(),
		ItemTable:       item.Table,
		ItemID:          item.ID,
		ItemName:        item.Name,
		ItemCategory:    item.Category,
		BatchNumber:     item.BatchNumber,
		ExpiryDate:      *item.ExpiryDate,
		AlertType:       alertType,
		DaysUntilExpiry: days,
		Quantity:        item.Quantity,
		EstimatedValue:  item.EstimatedValue(),
		RecipientUserID: recipient,
		Status:          models.StatusPending,
		Priority:        priority,
		Location:        item.Location,
	}

	inserted, err := s.store.UpsertAlert(ctx, alert)
	if err != nil {
		s.logger.Errorf("Upsert for %s/%s failed: %v", item.Table, item.ID, err)
		return
	}
	if !inserted {
		s.publish(events.Event{Kind: events.KindRefreshed, Alert: alert})
		return
	}

	res.AlertsGenerated++
	switch alertType {
	case models.AlertTypeCritical:
		res.CriticalCount++
	case models.AlertTypeExpired:
		res.ExpiredCount++
	}
	s.publish(events.Event{Kind: events.KindCreated, Alert: alert})
}

func configFor(active []models.AlertConfiguration, userID int64) (models.AlertConfiguration, bool) {
	for _, cfg := range active {
		if cfg.UserID == userID {
			return cfg, true
		}
	}
	return models.AlertConfiguration{}, false
}

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}
