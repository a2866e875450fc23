package slot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/auth"
)

// -- Mock Repositories --

type mockSlotRepo struct {
	slots map[uuid.UUID]*TimeSlot
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[uuid.UUID]*TimeSlot)}
}

func (m *mockSlotRepo) CreateBatch(_ context.Context, slots []*TimeSlot) (int, error) {
	inserted := 0
	for _, s := range slots {
		dup := false
		for _, existing := range m.slots {
			if existing.ProviderEventID == s.ProviderEventID && existing.StartTime.Equal(s.StartTime) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		m.slots[s.ID] = s
		inserted++
	}
	return inserted, nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *mockSlotRepo) ListByProvider(_ context.Context, providerID uuid.UUID, from, to time.Time, status Status, limit, offset int) ([]*TimeSlot, int, error) {
	var result []*TimeSlot
	for _, s := range m.slots {
		if s.ProviderID != providerID {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		if s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		result = append(result, s)
	}
	return result, len(result), nil
}

func (m *mockSlotRepo) Reserve(_ context.Context, slotID, bookingID uuid.UUID) error {
	s, ok := m.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	if s.Status != StatusAvailable {
		return ErrConflict
	}
	s.Status = StatusBooked
	s.BookingID = &bookingID
	return nil
}

func (m *mockSlotRepo) Release(_ context.Context, slotID uuid.UUID) error {
	s, ok := m.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	if s.Status == StatusBooked {
		s.Status = StatusAvailable
		s.BookingID = nil
	}
	return nil
}

func (m *mockSlotRepo) Block(_ context.Context, slotID uuid.UUID) error {
	return m.transition(slotID, StatusAvailable, StatusBlocked)
}

func (m *mockSlotRepo) Unblock(_ context.Context, slotID uuid.UUID) error {
	return m.transition(slotID, StatusBlocked, StatusAvailable)
}

func (m *mockSlotRepo) transition(slotID uuid.UUID, from, to Status) error {
	s, ok := m.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	if s.Status != from {
		return ErrConflict
	}
	s.Status = to
	return nil
}

type mockConfigRepo struct {
	configs map[uuid.UUID]*EventConfiguration
}

func newMockConfigRepo() *mockConfigRepo {
	return &mockConfigRepo{configs: make(map[uuid.UUID]*EventConfiguration)}
}

func (m *mockConfigRepo) Create(_ context.Context, cfg *EventConfiguration) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	m.configs[cfg.ID] = cfg
	return nil
}

func (m *mockConfigRepo) GetByID(_ context.Context, id uuid.UUID) (*EventConfiguration, error) {
	cfg, ok := m.configs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cfg, nil
}

func (m *mockConfigRepo) ListByProvider(_ context.Context, providerID uuid.UUID) ([]*EventConfiguration, error) {
	var result []*EventConfiguration
	for _, cfg := range m.configs {
		if cfg.ProviderID == providerID {
			result = append(result, cfg)
		}
	}
	return result, nil
}

func (m *mockConfigRepo) Update(_ context.Context, cfg *EventConfiguration) error {
	if _, ok := m.configs[cfg.ID]; !ok {
		return ErrNotFound
	}
	m.configs[cfg.ID] = cfg
	return nil
}

func (m *mockConfigRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.configs[id]; !ok {
		return ErrNotFound
	}
	delete(m.configs, id)
	return nil
}

func newTestService() (*Service, *mockSlotRepo, *mockConfigRepo) {
	slots := newMockSlotRepo()
	configs := newMockConfigRepo()
	svc := NewService(slots, configs, zerolog.Nop())
	svc.now = func() time.Time { return genNow }
	return svc, slots, configs
}

func providerActor(id uuid.UUID) auth.Actor {
	return auth.Actor{ID: id, Roles: []string{auth.RoleProvider}}
}

// -- Tests --

func TestService_CreateConfig_OwnedByActor(t *testing.T) {
	svc, _, configs := newTestService()
	actor := providerActor(uuid.New())

	cfg := validConfig()
	cfg.ProviderID = uuid.New() // ignored for non-admins
	if err := svc.CreateConfig(context.Background(), actor, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ProviderID != actor.ID {
		t.Errorf("provider_id = %s, want actor %s", cfg.ProviderID, actor.ID)
	}
	if _, ok := configs.configs[cfg.ID]; !ok {
		t.Error("config not persisted")
	}
}

func TestService_CreateConfig_AppliesDefaultHorizon(t *testing.T) {
	svc, _, _ := newTestService()
	svc.SetDefaultHorizon(45)

	cfg := validConfig()
	cfg.MaxBookingDays = 0
	if err := svc.CreateConfig(context.Background(), providerActor(uuid.New()), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxBookingDays != 45 {
		t.Errorf("max_booking_days = %d, want 45", cfg.MaxBookingDays)
	}
}

func TestService_CreateConfig_RejectsInvalid(t *testing.T) {
	svc, _, _ := newTestService()
	cfg := validConfig()
	cfg.DailyConfigs["monday"] = DayConfig{Enabled: true, TimeBlocks: []TimeBlock{
		{Start: "13:00", End: "09:00", SlotDurationMin: 30},
	}}
	if err := svc.CreateConfig(context.Background(), providerActor(uuid.New()), cfg); err == nil {
		t.Error("expected validation error")
	}
}

func TestService_UpdateConfig_ForbidsOtherProvider(t *testing.T) {
	svc, _, configs := newTestService()
	cfg := validConfig()
	configs.configs[cfg.ID] = cfg

	err := svc.UpdateConfig(context.Background(), providerActor(uuid.New()), validConfigWithID(cfg.ID))
	if err != ErrForbidden {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestService_UpdateConfig_AdminBypassesOwnership(t *testing.T) {
	svc, _, configs := newTestService()
	cfg := validConfig()
	configs.configs[cfg.ID] = cfg

	admin := auth.Actor{ID: uuid.New(), Roles: []string{auth.RoleAdmin}}
	updated := validConfigWithID(cfg.ID)
	updated.Title = "Extended Consultation"
	if err := svc.UpdateConfig(context.Background(), admin, updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if configs.configs[cfg.ID].Title != "Extended Consultation" {
		t.Error("update not applied")
	}
	if configs.configs[cfg.ID].ProviderID != cfg.ProviderID {
		t.Error("ownership must survive admin updates")
	}
}

func TestService_DeleteConfig(t *testing.T) {
	svc, _, configs := newTestService()
	cfg := validConfig()
	configs.configs[cfg.ID] = cfg

	if err := svc.DeleteConfig(context.Background(), providerActor(uuid.New()), cfg.ID); err != ErrForbidden {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteConfig(context.Background(), providerActor(cfg.ProviderID), cfg.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := configs.configs[cfg.ID]; ok {
		t.Error("config not deleted")
	}
}

func validConfigWithID(id uuid.UUID) *EventConfiguration {
	cfg := validConfig()
	cfg.ID = id
	return cfg
}

func TestService_GenerateForConfig(t *testing.T) {
	svc, slots, configs := newTestService()
	cfg := genConfig()
	configs.configs[cfg.ID] = cfg

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	inserted, err := svc.GenerateForConfig(context.Background(), providerActor(cfg.ProviderID), cfg.ID, start, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 4 {
		t.Errorf("inserted = %d, want 4", inserted)
	}
	if len(slots.slots) != 4 {
		t.Errorf("stored = %d, want 4", len(slots.slots))
	}
}

func TestService_GenerateForConfig_IdempotentRerun(t *testing.T) {
	svc, _, configs := newTestService()
	cfg := genConfig()
	configs.configs[cfg.ID] = cfg
	actor := providerActor(cfg.ProviderID)

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if _, err := svc.GenerateForConfig(context.Background(), actor, cfg.ID, start, start); err != nil {
		t.Fatalf("first run: %v", err)
	}
	inserted, err := svc.GenerateForConfig(context.Background(), actor, cfg.ID, start, start)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if inserted != 0 {
		t.Errorf("rerun inserted %d slots, want 0", inserted)
	}
}

func TestService_GenerateForConfig_Forbidden(t *testing.T) {
	svc, _, configs := newTestService()
	cfg := genConfig()
	configs.configs[cfg.ID] = cfg

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	_, err := svc.GenerateForConfig(context.Background(), providerActor(uuid.New()), cfg.ID, start, start)
	if err != ErrForbidden {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestService_GenerateForConfig_InvertedRange(t *testing.T) {
	svc, _, configs := newTestService()
	cfg := genConfig()
	configs.configs[cfg.ID] = cfg

	start := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	_, err := svc.GenerateForConfig(context.Background(), providerActor(cfg.ProviderID), cfg.ID, start, start.AddDate(0, 0, -7))
	if err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestService_BlockUnblockSlot(t *testing.T) {
	svc, slots, _ := newTestService()
	providerID := uuid.New()
	s := &TimeSlot{ID: uuid.New(), ProviderID: providerID, Status: StatusAvailable}
	slots.slots[s.ID] = s
	actor := providerActor(providerID)

	if err := svc.BlockSlot(context.Background(), actor, s.ID); err != nil {
		t.Fatalf("block: %v", err)
	}
	if s.Status != StatusBlocked {
		t.Errorf("status = %s, want blocked", s.Status)
	}
	if err := svc.UnblockSlot(context.Background(), actor, s.ID); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if s.Status != StatusAvailable {
		t.Errorf("status = %s, want available", s.Status)
	}
}

func TestService_BlockSlot_BookedConflicts(t *testing.T) {
	svc, slots, _ := newTestService()
	providerID := uuid.New()
	s := &TimeSlot{ID: uuid.New(), ProviderID: providerID, Status: StatusBooked}
	slots.slots[s.ID] = s

	if err := svc.BlockSlot(context.Background(), providerActor(providerID), s.ID); err != ErrConflict {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestService_BlockSlot_ForbidsOtherProvider(t *testing.T) {
	svc, slots, _ := newTestService()
	s := &TimeSlot{ID: uuid.New(), ProviderID: uuid.New(), Status: StatusAvailable}
	slots.slots[s.ID] = s

	if err := svc.BlockSlot(context.Background(), providerActor(uuid.New()), s.ID); err != ErrForbidden {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}
