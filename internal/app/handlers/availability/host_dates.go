package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hiddystays/internal/app/commands"
	"hiddystays/internal/app/dto"
	handlersupport "hiddystays/internal/app/handlers/support"
	"hiddystays/internal/app/middleware"
	"hiddystays/internal/app/outbox"
	"hiddystays/internal/app/uow"
	domainavailability "hiddystays/internal/domain/availability"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/events"
	"hiddystays/internal/domain/shared/money"
)

const (
	blockDatesKey      = "availability.block"
	unblockDatesKey    = "availability.unblock"
	setDateOverrideKey = "availability.override"
)

type BlockDatesCommand struct {
	HostID          string `validate:"required"`
	PropertyID      string `validate:"required"`
	StartDate       string `validate:"required,datetime=2006-01-02"`
	EndDate         string `validate:"required,datetime=2006-01-02"`
	Reason          string `validate:"max=200"`
	PriceCents      *int64 `validate:"omitempty,min=0"`
	IdempotencyKeyV string
}

func (c BlockDatesCommand) Key() string            { return blockDatesKey }
func (c BlockDatesCommand) ActorID() string        { return c.HostID }
func (c BlockDatesCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c BlockDatesCommand) ResultPrototype() any   { return &dto.BlockedRange{} }

type UnblockDatesCommand struct {
	HostID     string `validate:"required"`
	PropertyID string `validate:"required"`
	BlockID    string `validate:"required"`
}

func (c UnblockDatesCommand) Key() string     { return unblockDatesKey }
func (c UnblockDatesCommand) ActorID() string { return c.HostID }

type UnblockResult struct {
	BlockID string `json:"block_id"`
	Deleted bool   `json:"deleted"`
}

type SetDateOverrideCommand struct {
	HostID     string `validate:"required"`
	PropertyID string `validate:"required"`
	Date       string `validate:"required,datetime=2006-01-02"`
	Available  bool
	PriceCents *int64 `validate:"omitempty,min=0"`
	MinNights  int    `validate:"min=0"`
	MaxNights  int    `validate:"min=0"`
}

func (c SetDateOverrideCommand) Key() string     { return setDateOverrideKey }
func (c SetDateOverrideCommand) ActorID() string { return c.HostID }

// HostDatesHandler handles every host-side calendar write.
type HostDatesHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Now     func() time.Time
}

func (h *HostDatesHandler) Block(ctx context.Context, cmd BlockDatesCommand) (*dto.BlockedRange, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	property, err := h.ownedProperty(ctx, unit, cmd.PropertyID, cmd.HostID)
	if err != nil {
		return nil, err
	}
	span, err := parseSpan(cmd.StartDate, cmd.EndDate)
	if err != nil {
		return nil, err
	}
	var override *money.Money
	if cmd.PriceCents != nil {
		m, err := money.New(*cmd.PriceCents, property.NightlyRate.Currency)
		if err != nil {
			return nil, err
		}
		override = &m
	}
	if err := unit.Properties().Lock(ctx, property.ID); err != nil {
		return nil, err
	}
	active, err := activeOccupancies(ctx, unit, property.ID)
	if err != nil {
		return nil, err
	}
	block, err := domainavailability.NewBlock(domainavailability.NewBlockParams{
		ID:            domainavailability.BlockID(uuid.NewString()),
		PropertyID:    property.ID,
		Span:          span,
		Reason:        cmd.Reason,
		PriceOverride: override,
		Active:        active,
		Now:           handlersupport.Clock(h.Now),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Availability().SaveBlock(ctx, block); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, block.Drain()); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("dates blocked", "property_id", property.ID, "block_id", block.ID, "span", block.Span.HalfOpen().String(), "price_period", block.IsPricePeriod())
	}
	out := dto.MapBlockedRange(block)
	return &out, nil
}

func (h *HostDatesHandler) Unblock(ctx context.Context, cmd UnblockDatesCommand) (*UnblockResult, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	property, err := h.ownedProperty(ctx, unit, cmd.PropertyID, cmd.HostID)
	if err != nil {
		return nil, err
	}
	block, err := unit.Availability().BlockByID(ctx, domainavailability.BlockID(cmd.BlockID))
	if err != nil {
		return nil, err
	}
	if block.PropertyID != property.ID {
		return nil, domainavailability.ErrBlockNotFound
	}
	block.Release(handlersupport.Clock(h.Now))
	if err := unit.Availability().DeleteBlock(ctx, block.ID); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, block.Drain()); err != nil {
		return nil, err
	}
	return &UnblockResult{BlockID: string(block.ID), Deleted: true}, nil
}

// SetOverride upserts the explicit record for one date. Closing a date held
// by an active booking is refused like a block would be.
func (h *HostDatesHandler) SetOverride(ctx context.Context, cmd SetDateOverrideCommand) (*dto.DateOverride, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	property, err := h.ownedProperty(ctx, unit, cmd.PropertyID, cmd.HostID)
	if err != nil {
		return nil, err
	}
	date, err := daterange.ParseDay(cmd.Date)
	if err != nil {
		return nil, err
	}
	if cmd.MinNights > 0 && cmd.MaxNights > 0 && cmd.MinNights > cmd.MaxNights {
		return nil, properties.ErrNightsRange
	}
	now := handlersupport.Clock(h.Now)
	record := domainavailability.Record{
		PropertyID: property.ID,
		Date:       date,
		Available:  cmd.Available,
		MinNights:  cmd.MinNights,
		MaxNights:  cmd.MaxNights,
		UpdatedAt:  now,
	}
	if cmd.PriceCents != nil {
		m, err := money.New(*cmd.PriceCents, property.NightlyRate.Currency)
		if err != nil {
			return nil, err
		}
		record.CustomPrice = &m
	}
	if err := unit.Properties().Lock(ctx, property.ID); err != nil {
		return nil, err
	}
	if !cmd.Available {
		active, err := activeOccupancies(ctx, unit, property.ID)
		if err != nil {
			return nil, err
		}
		for _, occ := range active {
			if occ.Range.ContainsDate(date) {
				return nil, fmt.Errorf("%w: booking %s holds %s", domainavailability.ErrBlockConflictsBooking, occ.BookingID, cmd.Date)
			}
		}
	}
	if err := unit.Availability().SaveRecord(ctx, record); err != nil {
		return nil, err
	}
	ev := domainavailability.DateOverridden{
		PropertyID: string(property.ID),
		Date:       daterange.Format(date),
		Available:  record.Available,
		At:         now,
	}
	if record.CustomPrice != nil {
		cents := record.CustomPrice.Amount
		ev.PriceCents = &cents
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, []events.DomainEvent{ev}); err != nil {
		return nil, err
	}
	out := dto.MapDateOverride(record)
	return &out, nil
}

func (h *HostDatesHandler) ownedProperty(ctx context.Context, unit uow.UnitOfWork, propertyID, hostID string) (*properties.Property, error) {
	property, err := unit.Properties().ByID(ctx, properties.PropertyID(strings.TrimSpace(propertyID)))
	if err != nil {
		return nil, err
	}
	if !property.OwnedBy(properties.HostID(hostID)) {
		// Another host's property reads as missing.
		return nil, errors.Join(properties.ErrNotFound, properties.ErrNotOwned)
	}
	return property, nil
}

func activeOccupancies(ctx context.Context, unit uow.UnitOfWork, propertyID properties.PropertyID) ([]domainavailability.Occupancy, error) {
	active, err := unit.Bookings().ListActiveByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	out := make([]domainavailability.Occupancy, 0, len(active))
	for _, b := range active {
		out = append(out, domainavailability.Occupancy{BookingID: string(b.ID), Range: b.Range})
	}
	return out, nil
}

func parseSpan(start, end string) (daterange.Span, error) {
	from, err := daterange.ParseDay(start)
	if err != nil {
		return daterange.Span{}, err
	}
	to, err := daterange.ParseDay(end)
	if err != nil {
		return daterange.Span{}, err
	}
	return daterange.NewSpan(from, to)
}

// Register wires the host commands onto bus.
func (h *HostDatesHandler) Register(bus *commands.InMemoryBus) {
	commands.RegisterHandler(bus, commands.HandlerFunc[BlockDatesCommand, *dto.BlockedRange](h.Block))
	commands.RegisterHandler(bus, commands.HandlerFunc[UnblockDatesCommand, *UnblockResult](h.Unblock))
	commands.RegisterHandler(bus, commands.HandlerFunc[SetDateOverrideCommand, *dto.DateOverride](h.SetOverride))
}

var (
	_ middleware.IdempotentCommand = BlockDatesCommand{}
	_ middleware.ActorMessage      = UnblockDatesCommand{}
)
