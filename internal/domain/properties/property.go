package properties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hiddystays/internal/domain/shared/money"
)

var (
	ErrNotFound      = errors.New("properties: property not found")
	ErrNotOwned      = errors.New("properties: property not owned by host")
	ErrNightsRange   = errors.New("properties: min nights must be <= max nights")
	ErrNightlyRate   = errors.New("properties: nightly rate must be non-negative")
	ErrTitleRequired = errors.New("properties: title is required")
	ErrGuestsLimit   = errors.New("properties: guests limit must be at least 1")
	ErrStayLength    = errors.New("properties: stay length outside allowed nights")
)

type PropertyID string
type HostID string

type Property struct {
	ID          PropertyID
	Host        HostID
	Title       string
	City        string
	Country     string
	NightlyRate money.Money
	MinNights   int
	MaxNights   int
	GuestsLimit int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	ByID(ctx context.Context, id PropertyID) (*Property, error)
	Save(ctx context.Context, property *Property) error
	// Lock serialises booking writes for one property until the surrounding
	// unit of work ends.
	Lock(ctx context.Context, id PropertyID) error
}

type CreateParams struct {
	ID          PropertyID
	Host        HostID
	Title       string
	City        string
	Country     string
	NightlyRate money.Money
	MinNights   int
	MaxNights   int
	GuestsLimit int
	Active      bool
	Now         time.Time
}

func New(params CreateParams) (*Property, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("properties: id is required")
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, errors.New("properties: host is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.NightlyRate.Amount < 0 {
		return nil, ErrNightlyRate
	}
	if params.NightlyRate.Currency == "" {
		return nil, money.ErrInvalidCurrency
	}
	minNights := params.MinNights
	if minNights < 1 {
		minNights = 1
	}
	maxNights := params.MaxNights
	if maxNights == 0 {
		maxNights = 365
	}
	if minNights > maxNights {
		return nil, ErrNightsRange
	}
	guests := params.GuestsLimit
	if guests == 0 {
		guests = 1
	}
	if guests < 1 {
		return nil, ErrGuestsLimit
	}
	now := params.Now.UTC()
	return &Property{
		ID:          params.ID,
		Host:        params.Host,
		Title:       strings.TrimSpace(params.Title),
		City:        strings.TrimSpace(params.City),
		Country:     strings.TrimSpace(params.Country),
		NightlyRate: params.NightlyRate,
		MinNights:   minNights,
		MaxNights:   maxNights,
		GuestsLimit: guests,
		Active:      params.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *Property) OwnedBy(host HostID) bool {
	return p != nil && host != "" && p.Host == host
}

// NightsLimits carries a per-date min/max override; zero fields fall back to
// the property defaults.
type NightsLimits struct {
	Min int
	Max int
}

// AllowsStay checks the stay length against the property limits, with the
// check-in date's override applied on top.
func (p *Property) AllowsStay(nights int, override NightsLimits) error {
	minNights, maxNights := p.MinNights, p.MaxNights
	if override.Min > 0 {
		minNights = override.Min
	}
	if override.Max > 0 {
		maxNights = override.Max
	}
	if nights < minNights {
		return fmt.Errorf("%w: minimum stay is %d nights", ErrStayLength, minNights)
	}
	if maxNights > 0 && nights > maxNights {
		return fmt.Errorf("%w: maximum stay is %d nights", ErrStayLength, maxNights)
	}
	return nil
}

func (p *Property) AllowsGuests(guests int) bool {
	return guests >= 1 && guests <= p.GuestsLimit
}
