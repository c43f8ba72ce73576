package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"rewards/internal/cache"
	"rewards/internal/core"
	applog "rewards/internal/log"
	"rewards/internal/sources/api"
)

var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrEditInProgress  = errors.New("record is being saved")
)

// RegionView is a region with its availability zones split out.
type RegionView struct {
	core.Region
	Zones []string `json:"zones"`
}

func newRegionView(r core.Region) RegionView {
	v := RegionView{Region: r, Zones: []string{}}
	if r.AvailabilityZones != nil {
		if z := core.SplitZones(*r.AvailabilityZones); z != nil {
			v.Zones = z
		}
	}
	return v
}

// RecordService reads single records through the REST client's record cache
// and edits regions. Zone edits on one region are serialized by an editor
// state per region id.
type RecordService struct {
	client *api.Client
	logger *applog.Logger

	mu      sync.Mutex
	editors map[int64]core.EditorState
}

func NewRecordService(client *api.Client, logger *applog.Logger) *RecordService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &RecordService{
		client:  client,
		logger:  logger.WithComponent(applog.ComponentRecords),
		editors: make(map[int64]core.EditorState),
	}
}

// Record returns the raw JSON of one record of resource.
func (s *RecordService) Record(ctx context.Context, resource string, id int64) (json.RawMessage, error) {
	if !api.IsResource(resource) {
		return nil, fmt.Errorf("%q: %w", resource, ErrUnknownResource)
	}
	return api.Get[json.RawMessage](ctx, s.client, resource, id)
}

// CacheStats reports the record cache usage.
func (s *RecordService) CacheStats() cache.Stats {
	return s.client.CacheStats()
}

func (s *RecordService) Region(ctx context.Context, id int64) (RegionView, error) {
	r, err := api.Get[core.Region](ctx, s.client, api.ResourceRegions, id)
	if err != nil {
		return RegionView{}, err
	}
	return newRegionView(r), nil
}

// CreateRegion stores a new region. Zones are normalized through AddZone so
// blanks and duplicates are dropped.
func (s *RecordService) CreateRegion(ctx context.Context, in RegionView) (RegionView, error) {
	region := in.Region
	region.ID = 0
	zones := ""
	if region.AvailabilityZones != nil {
		for _, z := range core.SplitZones(*region.AvailabilityZones) {
			zones = core.AddZone(zones, z)
		}
	}
	for _, z := range in.Zones {
		zones = core.AddZone(zones, z)
	}
	region.AvailabilityZones = core.ZonesPtr(zones)

	state, err := core.EditorState{}.Submit()
	if err != nil {
		return RegionView{}, err
	}
	return s.save(ctx, state, region)
}

func (s *RecordService) DeleteRegion(ctx context.Context, id int64) error {
	if err := s.lock(id); err != nil {
		return err
	}
	defer s.unlock(id)
	return api.Delete(ctx, s.client, api.ResourceRegions, id)
}

// AddZone adds zone to the region unless it is already listed.
func (s *RecordService) AddZone(ctx context.Context, id int64, zone string) (RegionView, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return RegionView{}, fmt.Errorf("zone: %w", core.ErrMissingName)
	}
	return s.editZones(ctx, id, func(z string) string { return core.AddZone(z, zone) })
}

// RemoveZone drops zone from the region.
func (s *RecordService) RemoveZone(ctx context.Context, id int64, zone string) (RegionView, error) {
	return s.editZones(ctx, id, func(z string) string { return core.RemoveZone(z, zone) })
}

func (s *RecordService) editZones(ctx context.Context, id int64, change func(string) string) (RegionView, error) {
	if err := s.lock(id); err != nil {
		return RegionView{}, err
	}
	defer s.unlock(id)

	region, err := api.Get[core.Region](ctx, s.client, api.ResourceRegions, id)
	if err != nil {
		return RegionView{}, err
	}
	zones := ""
	if region.AvailabilityZones != nil {
		zones = *region.AvailabilityZones
	}
	region.AvailabilityZones = core.ZonesPtr(change(zones))
	region.ID = 0

	state, err := s.transition(id, core.EditorState.Submit)
	if err != nil {
		return RegionView{}, err
	}
	view, err := s.save(ctx, state, region)
	if _, doneErr := s.transition(id, func(st core.EditorState) (core.EditorState, error) {
		return st.Done(err == nil)
	}); doneErr != nil {
		s.logger.WarnContext(ctx, "Region editor out of step", applog.FieldError, doneErr)
	}
	return view, err
}

// save creates or updates region depending on the submission in state.
func (s *RecordService) save(ctx context.Context, state core.EditorState, region core.Region) (RegionView, error) {
	if err := region.Validate(); err != nil {
		return RegionView{}, err
	}
	var (
		saved core.Region
		err   error
	)
	if state.IsUpdate() {
		saved, err = api.Update(ctx, s.client, api.ResourceRegions, state.EntityID, region)
	} else {
		saved, err = api.Create(ctx, s.client, api.ResourceRegions, region)
	}
	if err != nil {
		return RegionView{}, err
	}
	s.logger.InfoContext(ctx, "Region saved", "region_id", saved.ID, "update", state.IsUpdate())
	return newRegionView(saved), nil
}

// lock moves the region's editor from Idle to Editing.
func (s *RecordService) lock(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.editors[id].Edit(id)
	if errors.Is(err, core.ErrMissingID) {
		return err
	}
	if err != nil {
		return fmt.Errorf("region %d: %w", id, ErrEditInProgress)
	}
	s.editors[id] = st
	return nil
}

// unlock returns the editor to Idle, abandoning a failed edit.
func (s *RecordService) unlock(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.editors[id].Cancel(); err != nil {
		s.logger.Warn("Region editor released while submitting", "region_id", id, applog.FieldError, err)
	}
	delete(s.editors, id)
}

func (s *RecordService) transition(id int64, step func(core.EditorState) (core.EditorState, error)) (core.EditorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := step(s.editors[id])
	if err != nil {
		return st, err
	}
	s.editors[id] = st
	return st, nil
}
