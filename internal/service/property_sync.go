package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentsites/internal/config"
	"agentsites/internal/domain"
	"agentsites/internal/metrics"
	"agentsites/internal/source/apex27"
)

// PropertySync reconciles upstream listings into the properties table.
type PropertySync struct {
	source     ListingSource
	tenants    TenantStore
	properties PropertyStore
	syncState  SyncStateStore
	enqueuer   Enqueuer
	logger     *slog.Logger
	config     config.SyncConfig
}

// NewPropertySync wires the sync. source is only needed by FullSync and
// enqueuer only when rebuilds on change are enabled; both may be nil.
func NewPropertySync(
	source ListingSource,
	tenants TenantStore,
	properties PropertyStore,
	syncState SyncStateStore,
	enqueuer Enqueuer,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *PropertySync {
	return &PropertySync{
		source:     source,
		tenants:    tenants,
		properties: properties,
		syncState:  syncState,
		enqueuer:   enqueuer,
		logger:     logger.With("component", "property_sync"),
		config:     cfg,
	}
}

// HandleEvent applies one listing event. Expected absences such as an
// unmapped branch come back as skipped outcomes, not errors.
func (s *PropertySync) HandleEvent(ctx context.Context, event domain.ListingEvent) (*domain.SyncOutcome, error) {
	outcome, err := s.handle(ctx, event)

	label := "synced"
	switch {
	case err != nil:
		label = "error"
	case outcome.Skipped:
		label = "skipped"
	}
	metrics.PropertySyncEventsTotal.WithLabelValues(string(event.Action), label).Inc()

	return outcome, err
}

func (s *PropertySync) handle(ctx context.Context, event domain.ListingEvent) (*domain.SyncOutcome, error) {
	listing := event.Listing
	logger := s.logger.With("action", event.Action, "listing_id", listing.ExternalID)

	switch event.Action {
	case domain.ListingDelete:
		return s.remove(ctx, listing.ExternalID, "Property marked as sold")

	case domain.ListingCreate, domain.ListingUpdate:
		if !isExportable(listing) {
			if event.Action == domain.ListingCreate {
				logger.Info("filtering non-exportable listing")
				return &domain.SyncOutcome{
					Success:   true,
					Skipped:   true,
					Message:   "Property filtered - not exportable",
					ListingID: listing.ExternalID,
				}, nil
			}
			logger.Info("removing listing that is no longer exportable")
			return s.remove(ctx, listing.ExternalID, "Property removed - no longer exportable")
		}
		return s.upsert(ctx, listing)
	}

	return nil, fmt.Errorf("handle %q: %w", event.Action, apex27.ErrUnknownAction)
}

func (s *PropertySync) upsert(ctx context.Context, listing domain.Listing) (*domain.SyncOutcome, error) {
	tenant, err := s.tenants.FindByBranchID(ctx, listing.BranchID)
	if err != nil {
		return nil, fmt.Errorf("find agent for branch %s: %w", listing.BranchID, err)
	}
	if tenant == nil {
		s.logger.Info("no agent for branch",
			"listing_id", listing.ExternalID,
			"branch_id", listing.BranchID,
		)
		return &domain.SyncOutcome{
			Success:   true,
			Skipped:   true,
			Message:   "Property skipped - no matching agent",
			ListingID: listing.ExternalID,
			BranchID:  listing.BranchID,
		}, nil
	}

	res, err := s.properties.Upsert(ctx, mapListing(tenant.ID, listing))
	if err != nil {
		return nil, fmt.Errorf("upsert property %s: %w", listing.ExternalID, err)
	}

	if res.AgentID != tenant.ID {
		s.logger.Warn("listing branch maps to a different agent than the owner, ownership kept",
			"listing_id", listing.ExternalID,
			"owner_id", res.AgentID,
			"mapped_agent_id", tenant.ID,
		)
	}

	message := "Property updated"
	if res.Inserted {
		message = "Property created"
	}
	s.logger.Info(strings.ToLower(message),
		"listing_id", listing.ExternalID,
		"property_id", res.ID,
		"agent_id", res.AgentID,
	)

	s.requestRebuild(ctx, res.AgentID)

	id := res.ID
	return &domain.SyncOutcome{
		Success:    true,
		Message:    message,
		PropertyID: &id,
		ListingID:  listing.ExternalID,
	}, nil
}

func (s *PropertySync) remove(ctx context.Context, externalID, message string) (*domain.SyncOutcome, error) {
	removal, err := s.properties.SoftDelete(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("soft delete property %s: %w", externalID, err)
	}

	if !removal.Found {
		s.logger.Info("delete for unknown listing ignored", "listing_id", externalID)
		message = "Property not found - nothing to delete"
	} else if removal.Changed {
		s.requestRebuild(ctx, removal.AgentID)
	}

	return &domain.SyncOutcome{
		Success:   true,
		Message:   message,
		ListingID: externalID,
	}, nil
}

// Property returns the stored property for an Apex27 listing id, sold rows
// included. Nil means the listing was never synced.
func (s *PropertySync) Property(ctx context.Context, externalID string) (*domain.Property, error) {
	p, err := s.properties.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", externalID, err)
	}
	return p, nil
}

// requestRebuild queues a low priority rebuild for the owning agent.
// Failures are logged and never fail the event.
func (s *PropertySync) requestRebuild(ctx context.Context, tenantID uuid.UUID) {
	if !s.config.RebuildOnChange || s.enqueuer == nil {
		return
	}
	if _, err := s.enqueuer.Enqueue(ctx, tenantID, domain.TriggerPropertyUpdated, domain.PriorityLow); err != nil {
		s.logger.Warn("failed to queue rebuild after property change", "agent_id", tenantID, "error", err)
	}
}

// SyncAll applies each listing as an update. One listing failing, even by
// panicking, does not stop the batch.
func (s *PropertySync) SyncAll(ctx context.Context, listings []domain.Listing) domain.SyncStats {
	start := time.Now()
	stats := domain.SyncStats{Total: len(listings)}

	for _, listing := range listings {
		outcome, err := s.syncOne(ctx, listing)
		switch {
		case err != nil:
			stats.Errors++
			s.logger.Error("failed to sync listing", "listing_id", listing.ExternalID, "error", err)
		case outcome.Skipped:
			stats.Skipped++
		default:
			stats.Synced++
		}
	}

	stats.Duration = time.Since(start)
	s.logger.Info("property sync completed",
		"total", stats.Total,
		"synced", stats.Synced,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)
	return stats
}

func (s *PropertySync) syncOne(ctx context.Context, listing domain.Listing) (outcome *domain.SyncOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = nil, fmt.Errorf("panic syncing listing %s: %v", listing.ExternalID, r)
		}
	}()
	return s.HandleEvent(ctx, domain.ListingEvent{Action: domain.ListingUpdate, Listing: listing})
}

// FullSync pulls every listing from the source and syncs them. A partial
// fetch is still synced; the fetch error is returned alongside the stats.
func (s *PropertySync) FullSync(ctx context.Context) (*domain.SyncStats, error) {
	if s.source == nil {
		return nil, errors.New("full sync: no listing source configured")
	}

	s.logger.Info("starting full sync", "source", s.source.ID())

	listings, fetchErr := s.source.FetchListings(ctx)
	if fetchErr != nil && len(listings) == 0 {
		return nil, fmt.Errorf("fetch listings: %w", fetchErr)
	}
	if fetchErr != nil {
		s.logger.Warn("listing fetch incomplete, syncing what was read", "count", len(listings), "error", fetchErr)
	}

	stats := s.SyncAll(ctx, listings)

	if err := s.updateSyncState(ctx, listings, stats); err != nil {
		return &stats, fmt.Errorf("update sync state: %w", err)
	}
	if fetchErr != nil {
		return &stats, fmt.Errorf("fetch listings: %w", fetchErr)
	}
	return &stats, nil
}

// Run performs one full sync for the scheduler.
func (s *PropertySync) Run(ctx context.Context) error {
	_, err := s.FullSync(ctx)
	return err
}

func (s *PropertySync) updateSyncState(ctx context.Context, listings []domain.Listing, stats domain.SyncStats) error {
	state, err := s.syncState.Get(ctx, s.source.ID())
	if err != nil {
		return err
	}

	state.SourceID = s.source.ID()
	state.LastSyncedAt = time.Now()
	if len(listings) > 0 {
		state.LastListingID = listings[len(listings)-1].ExternalID
	}
	state.TotalSynced += int64(stats.Synced)

	return s.syncState.Update(ctx, state)
}

// isExportable treats a missing flag as exportable.
func isExportable(l domain.Listing) bool {
	return l.Exportable == nil || *l.Exportable
}

func mapListing(agentID uuid.UUID, l domain.Listing) *domain.Property {
	p := &domain.Property{
		AgentID:         agentID,
		ExternalID:      l.ExternalID,
		TransactionType: mapTransactionType(l.TransactionType),
		Title:           listingTitle(l),
		Description:     listingDescription(l),
		Price:           parsePrice(l.Price),
		Bedrooms:        l.Bedrooms,
		Bathrooms:       l.Bathrooms,
		PropertyType:    l.PropertyType,
		Address:         l.Address,
		Postcode:        l.Address.Postcode,
		Features:        collectFeatures(l),
		Status:          resolveStatus(l.Status, l.SaleProgression),
		IsFeatured:      l.Featured,
		IsHidden:        false,
		RawData:         l.Raw,
	}
	if l.Latitude != nil && l.Longitude != nil {
		p.Location = &domain.GeoPoint{Latitude: *l.Latitude, Longitude: *l.Longitude}
	}
	return p
}

func mapTransactionType(t string) domain.TransactionType {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "rental":
		return domain.TransactionLet
	case "sale":
		return domain.TransactionSale
	}
	return domain.TransactionCommercial
}

// resolveStatus lets sale progression override the listing status.
func resolveStatus(status string, progression *string) domain.PropertyStatus {
	if progression != nil {
		p := strings.ToLower(strings.TrimSpace(*progression))
		if strings.Contains(p, "sold") || p == "completed" {
			return domain.PropertySold
		}
		if strings.Contains(p, "offer") || strings.Contains(p, "sstc") {
			return domain.PropertyUnderOffer
		}
	}

	switch strings.ToLower(strings.TrimSpace(status)) {
	case "available", "for sale":
		return domain.PropertyAvailable
	case "under offer", "sstc":
		return domain.PropertyUnderOffer
	case "sold", "completed":
		return domain.PropertySold
	case "let", "tenanted":
		return domain.PropertyLet
	}
	return domain.PropertyAvailable
}

// parsePrice reads a decimal string; anything unparseable is 0.
func parsePrice(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func collectFeatures(l domain.Listing) []string {
	features := make([]string, 0, len(l.Bullets)+len(l.Accessibility)+len(l.Heating)+len(l.Parking)+len(l.OutsideSpace))
	features = append(features, l.Bullets...)
	features = append(features, l.Accessibility...)
	features = append(features, l.Heating...)
	features = append(features, l.Parking...)
	features = append(features, l.OutsideSpace...)
	return features
}

func listingTitle(l domain.Listing) string {
	if l.Address.DisplayAddress != "" {
		return l.Address.DisplayAddress
	}
	return fmt.Sprintf("%d bed %s", l.Bedrooms, l.PropertyType)
}

func listingDescription(l domain.Listing) *string {
	if l.Description != nil && *l.Description != "" {
		return l.Description
	}
	if l.Summary != nil && *l.Summary != "" {
		return l.Summary
	}
	return nil
}
