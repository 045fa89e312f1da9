package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
)

// MappingService persists per-sheet column mappings.
type MappingService struct {
	store   driven.KeyValueStore
	catalog model.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewMappingService creates a MappingService. logger may be nil.
func NewMappingService(store driven.KeyValueStore, catalog model.Catalog, logger *slog.Logger) *MappingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MappingService{store: store, catalog: catalog, logger: logger, now: time.Now}
}

// Save stores rec under its sheet identifier, replacing any previous mapping.
func (s *MappingService) Save(ctx context.Context, rec model.MappingRecord) (*model.MappingRecord, error) {
	rec.Sheet = strings.TrimSpace(rec.Sheet)
	var violations []string
	if rec.Sheet == "" {
		violations = append(violations, "sheet is required")
	}
	if len(rec.Mapping) == 0 {
		violations = append(violations, "mapping must contain at least one column")
	}
	if rec.Endpoint != "" {
		if _, ok := s.catalog[rec.Endpoint]; !ok {
			violations = append(violations, fmt.Sprintf("unknown endpoint %q", rec.Endpoint))
		}
	}
	if len(violations) > 0 {
		return nil, model.NewValidationError("save mapping", violations...)
	}

	rec.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode mapping: %w", err)
	}
	if err := s.store.Set(ctx, model.KeyMappingsPrefix+rec.Sheet, string(data)); err != nil {
		return nil, fmt.Errorf("save mapping %q: %w", rec.Sheet, err)
	}
	s.logger.Info("mapping saved", "sheet", rec.Sheet, "endpoint", rec.Endpoint, "columns", len(rec.Mapping))
	return &rec, nil
}

// Get returns the mapping for sheet, or nil when none is saved.
func (s *MappingService) Get(ctx context.Context, sheet string) (*model.MappingRecord, error) {
	raw, ok, err := s.store.Get(ctx, model.KeyMappingsPrefix+sheet)
	if err != nil {
		return nil, fmt.Errorf("get mapping %q: %w", sheet, err)
	}
	if !ok {
		return nil, nil
	}
	var rec model.MappingRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode mapping %q: %w", sheet, err)
	}
	return &rec, nil
}

// List returns every saved mapping sorted by sheet. Unreadable records are
// skipped with a warning.
func (s *MappingService) List(ctx context.Context) ([]model.MappingRecord, error) {
	entries, err := s.store.List(ctx, model.KeyMappingsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	out := make([]model.MappingRecord, 0, len(entries))
	for key, raw := range entries {
		var rec model.MappingRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("skipping unreadable mapping", "key", key, "error", err)
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sheet < out[j].Sheet })
	return out, nil
}

// Delete removes the mapping for sheet.
func (s *MappingService) Delete(ctx context.Context, sheet string) error {
	if err := s.store.Delete(ctx, model.KeyMappingsPrefix+sheet); err != nil {
		return fmt.Errorf("delete mapping %q: %w", sheet, err)
	}
	return nil
}
