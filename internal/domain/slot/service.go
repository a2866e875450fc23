package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/auth"
)

// ErrForbidden is returned when an actor operates on another provider's
// configuration or slots without an elevated role.
var ErrForbidden = fmt.Errorf("forbidden")

type Service struct {
	slots   Repository
	configs ConfigRepository
	logger  zerolog.Logger

	// defaultMaxBookingDays is applied to configurations created without an
	// explicit horizon.
	defaultMaxBookingDays int

	// now is swapped in tests.
	now func() time.Time
}

// SetDefaultHorizon sets the booking horizon used when a configuration does
// not specify max_booking_days.
func (s *Service) SetDefaultHorizon(days int) {
	s.defaultMaxBookingDays = days
}

func NewService(slots Repository, configs ConfigRepository, logger zerolog.Logger) *Service {
	return &Service{
		slots:   slots,
		configs: configs,
		logger:  logger.With().Str("component", "slot_service").Logger(),
		now:     time.Now,
	}
}

// -- Event configuration --

func (s *Service) CreateConfig(ctx context.Context, actor auth.Actor, cfg *EventConfiguration) error {
	if !actor.IsAdmin() {
		if !actor.HasRole(auth.RoleProvider) {
			return ErrForbidden
		}
		cfg.ProviderID = actor.ID
	}
	if cfg.ProviderID == uuid.Nil {
		return fmt.Errorf("provider_id is required")
	}
	if cfg.MaxBookingDays == 0 {
		cfg.MaxBookingDays = s.defaultMaxBookingDays
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.configs.Create(ctx, cfg)
}

func (s *Service) GetConfig(ctx context.Context, id uuid.UUID) (*EventConfiguration, error) {
	return s.configs.GetByID(ctx, id)
}

func (s *Service) ListConfigs(ctx context.Context, providerID uuid.UUID) ([]*EventConfiguration, error) {
	return s.configs.ListByProvider(ctx, providerID)
}

func (s *Service) UpdateConfig(ctx context.Context, actor auth.Actor, cfg *EventConfiguration) error {
	existing, err := s.configs.GetByID(ctx, cfg.ID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && existing.ProviderID != actor.ID {
		return ErrForbidden
	}
	cfg.ProviderID = existing.ProviderID
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.configs.Update(ctx, cfg)
}

// DeleteConfig removes a configuration that has not generated any slots yet.
func (s *Service) DeleteConfig(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	existing, err := s.configs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && existing.ProviderID != actor.ID {
		return ErrForbidden
	}
	return s.configs.Delete(ctx, id)
}

// -- Slot generation --

// GenerateForConfig materializes slots for the configuration over the given
// date range. Slots already present for a (config, date, start) are kept as
// they are, so regeneration never disturbs booked or blocked slots.
func (s *Service) GenerateForConfig(ctx context.Context, actor auth.Actor, configID uuid.UUID, rangeStart, rangeEnd time.Time) (int, error) {
	cfg, err := s.configs.GetByID(ctx, configID)
	if err != nil {
		return 0, err
	}
	if !actor.IsAdmin() && cfg.ProviderID != actor.ID {
		return 0, ErrForbidden
	}
	if rangeEnd.Before(rangeStart) {
		return 0, fmt.Errorf("range end %s precedes range start %s", rangeEnd.Format(time.DateOnly), rangeStart.Format(time.DateOnly))
	}

	slots := GenerateSlots(cfg, rangeStart, rangeEnd, s.now())
	inserted, err := s.slots.CreateBatch(ctx, slots)
	if err != nil {
		return inserted, err
	}
	s.logger.Info().
		Str("config_id", configID.String()).
		Int("generated", len(slots)).
		Int("inserted", inserted).
		Msg("slot generation complete")
	return inserted, nil
}

// -- Slots --

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return s.slots.GetByID(ctx, id)
}

func (s *Service) ListSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time, status Status, limit, offset int) ([]*TimeSlot, int, error) {
	if to.IsZero() {
		to = from.AddDate(0, 0, 7)
	}
	return s.slots.ListByProvider(ctx, providerID, from, to, status, limit, offset)
}

func (s *Service) BlockSlot(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if err := s.authorizeSlot(ctx, actor, id); err != nil {
		return err
	}
	return s.slots.Block(ctx, id)
}

func (s *Service) UnblockSlot(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if err := s.authorizeSlot(ctx, actor, id); err != nil {
		return err
	}
	return s.slots.Unblock(ctx, id)
}

func (s *Service) authorizeSlot(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if actor.IsAdmin() {
		return nil
	}
	sl, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sl.ProviderID != actor.ID {
		return ErrForbidden
	}
	return nil
}
