package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"hiddystays/internal/app/outbox"
	"hiddystays/internal/app/uow"
	"hiddystays/internal/domain/availability"
	"hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
)

var (
	ErrUnitClosed      = errors.New("memory: unit of work already finished")
	ErrReadOnlyUnit    = errors.New("memory: write in read-only unit of work")
	ErrPricingMissing  = errors.New("memory: pricing calculator not configured")
	ErrVersionConflict = errors.New("memory: booking was modified concurrently")
)

// Store keeps every aggregate in process memory. Write units hold writeMu
// from Begin until Commit or Rollback, which serialises bookings the way a
// row lock would; read-only units never block.
type Store struct {
	writeMu sync.Mutex

	mu         sync.RWMutex
	properties map[properties.PropertyID]properties.Property
	bookings   map[booking.BookingID]booking.Booking
	sessions   map[string]booking.BookingID
	blocks     map[availability.BlockID]availability.BlockedRange
	records    map[string]availability.Record

	Pricing pricing.Calculator
	Outbox  *Outbox
}

func NewStore() *Store {
	return &Store{
		properties: make(map[properties.PropertyID]properties.Property),
		bookings:   make(map[booking.BookingID]booking.Booking),
		sessions:   make(map[string]booking.BookingID),
		blocks:     make(map[availability.BlockID]availability.BlockedRange),
		records:    make(map[string]availability.Record),
	}
}

// PutProperty stores p outside any unit of work; used for fixtures.
func (s *Store) PutProperty(p *properties.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.ID] = *p
}

func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if s.Pricing == nil {
		return nil, ErrPricingMissing
	}
	if !opts.ReadOnly {
		s.writeMu.Lock()
	}
	return &Tx{
		store:      s,
		readOnly:   opts.ReadOnly,
		properties: make(map[properties.PropertyID]*properties.Property),
		bookings:   make(map[booking.BookingID]*booking.Booking),
		blocks:     make(map[availability.BlockID]*availability.BlockedRange),
		records:    make(map[string]*availability.Record),
	}, nil
}

// Tx buffers writes and applies them atomically on Commit. A nil entry in a
// staged map marks a delete.
type Tx struct {
	store    *Store
	readOnly bool
	done     bool

	properties map[properties.PropertyID]*properties.Property
	bookings   map[booking.BookingID]*booking.Booking
	blocks     map[availability.BlockID]*availability.BlockedRange
	records    map[string]*availability.Record
	events     []outbox.EventRecord
}

func (t *Tx) Properties() properties.Repository     { return propertyView{t} }
func (t *Tx) Availability() availability.Repository { return availabilityView{t} }
func (t *Tx) Bookings() booking.Repository          { return bookingView{t} }
func (t *Tx) Pricing() pricing.Calculator           { return t.store.Pricing }

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrUnitClosed
	}
	t.done = true
	if t.readOnly {
		return nil
	}
	defer t.store.writeMu.Unlock()

	s := t.store
	s.mu.Lock()
	for id, p := range t.properties {
		s.properties[id] = *p
	}
	for id, b := range t.bookings {
		if prev, ok := s.bookings[id]; ok && prev.Session != nil {
			delete(s.sessions, prev.Session.ID)
		}
		s.bookings[id] = cloneBooking(b)
		if b.Session != nil {
			s.sessions[b.Session.ID] = id
		}
	}
	for id, b := range t.blocks {
		if b == nil {
			delete(s.blocks, id)
			continue
		}
		s.blocks[id] = cloneBlock(b)
	}
	for key, r := range t.records {
		s.records[key] = *r
	}
	s.mu.Unlock()

	if s.Outbox != nil && len(t.events) > 0 {
		s.Outbox.commit(t.events)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.readOnly {
		t.store.writeMu.Unlock()
	}
	return nil
}

func (t *Tx) stage(rec outbox.EventRecord) {
	t.events = append(t.events, rec)
}

func (t *Tx) writable() error {
	if t.done {
		return ErrUnitClosed
	}
	if t.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

type propertyView struct{ t *Tx }

func (v propertyView) ByID(ctx context.Context, id properties.PropertyID) (*properties.Property, error) {
	if p, ok := v.t.properties[id]; ok {
		cp := *p
		return &cp, nil
	}
	v.t.store.mu.RLock()
	defer v.t.store.mu.RUnlock()
	p, ok := v.t.store.properties[id]
	if !ok {
		return nil, properties.ErrNotFound
	}
	return &p, nil
}

func (v propertyView) Save(ctx context.Context, p *properties.Property) error {
	if err := v.t.writable(); err != nil {
		return err
	}
	cp := *p
	v.t.properties[p.ID] = &cp
	return nil
}

// Lock is satisfied by the unit-wide write lock taken in Begin.
func (v propertyView) Lock(ctx context.Context, id properties.PropertyID) error {
	return v.t.writable()
}

type bookingView struct{ t *Tx }

func (v bookingView) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	if b, ok := v.t.bookings[id]; ok {
		out := cloneBooking(b)
		return &out, nil
	}
	v.t.store.mu.RLock()
	defer v.t.store.mu.RUnlock()
	b, ok := v.t.store.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	out := cloneBooking(&b)
	return &out, nil
}

func (v bookingView) BySession(ctx context.Context, sessionID string) (*booking.Booking, error) {
	for _, b := range v.t.bookings {
		if b.Session != nil && b.Session.ID == sessionID {
			out := cloneBooking(b)
			return &out, nil
		}
	}
	v.t.store.mu.RLock()
	id, ok := v.t.store.sessions[sessionID]
	v.t.store.mu.RUnlock()
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return v.ByID(ctx, id)
}

func (v bookingView) Save(ctx context.Context, b *booking.Booking) error {
	if err := v.t.writable(); err != nil {
		return err
	}
	current := int64(0)
	if staged, ok := v.t.bookings[b.ID]; ok {
		current = staged.Version
	} else {
		v.t.store.mu.RLock()
		if stored, ok := v.t.store.bookings[b.ID]; ok {
			current = stored.Version
		}
		v.t.store.mu.RUnlock()
	}
	if b.Version != current {
		return ErrVersionConflict
	}
	b.Version++
	staged := cloneBooking(b)
	v.t.bookings[b.ID] = &staged
	return nil
}

func (v bookingView) all() []*booking.Booking {
	v.t.store.mu.RLock()
	out := make([]*booking.Booking, 0, len(v.t.store.bookings)+len(v.t.bookings))
	for id, b := range v.t.store.bookings {
		if _, staged := v.t.bookings[id]; staged {
			continue
		}
		cp := cloneBooking(&b)
		out = append(out, &cp)
	}
	v.t.store.mu.RUnlock()
	for _, b := range v.t.bookings {
		cp := cloneBooking(b)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v bookingView) ListActiveByProperty(ctx context.Context, propertyID properties.PropertyID) ([]*booking.Booking, error) {
	var out []*booking.Booking
	for _, b := range v.all() {
		if b.PropertyID == propertyID && b.Active() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (v bookingView) ListByGuest(ctx context.Context, guestID string) ([]*booking.Booking, error) {
	var out []*booking.Booking
	for _, b := range v.all() {
		if b.GuestID == guestID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (v bookingView) ListDueForCompletion(ctx context.Context, now time.Time) ([]*booking.Booking, error) {
	var out []*booking.Booking
	for _, b := range v.all() {
		if b.Status == booking.StatusConfirmed && !now.Before(b.Range.CheckOut) {
			out = append(out, b)
		}
	}
	return out, nil
}

type availabilityView struct{ t *Tx }

func (v availabilityView) Blocks(ctx context.Context, id properties.PropertyID, window daterange.Span) ([]*availability.BlockedRange, error) {
	v.t.store.mu.RLock()
	var out []*availability.BlockedRange
	for bid, b := range v.t.store.blocks {
		if _, staged := v.t.blocks[bid]; staged {
			continue
		}
		if b.PropertyID == id && spansOverlap(b.Span, window) {
			cp := cloneBlock(&b)
			out = append(out, &cp)
		}
	}
	v.t.store.mu.RUnlock()
	for _, b := range v.t.blocks {
		if b != nil && b.PropertyID == id && spansOverlap(b.Span, window) {
			cp := cloneBlock(b)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v availabilityView) BlockByID(ctx context.Context, id availability.BlockID) (*availability.BlockedRange, error) {
	if b, ok := v.t.blocks[id]; ok {
		if b == nil {
			return nil, availability.ErrBlockNotFound
		}
		cp := cloneBlock(b)
		return &cp, nil
	}
	v.t.store.mu.RLock()
	defer v.t.store.mu.RUnlock()
	b, ok := v.t.store.blocks[id]
	if !ok {
		return nil, availability.ErrBlockNotFound
	}
	cp := cloneBlock(&b)
	return &cp, nil
}

func (v availabilityView) SaveBlock(ctx context.Context, block *availability.BlockedRange) error {
	if err := v.t.writable(); err != nil {
		return err
	}
	cp := cloneBlock(block)
	v.t.blocks[block.ID] = &cp
	return nil
}

func (v availabilityView) DeleteBlock(ctx context.Context, id availability.BlockID) error {
	if err := v.t.writable(); err != nil {
		return err
	}
	if _, err := v.BlockByID(ctx, id); err != nil {
		return err
	}
	v.t.blocks[id] = nil
	return nil
}

func (v availabilityView) Records(ctx context.Context, id properties.PropertyID, window daterange.Span) ([]availability.Record, error) {
	merged := make(map[string]availability.Record)
	v.t.store.mu.RLock()
	for key, r := range v.t.store.records {
		if r.PropertyID == id && window.Contains(r.Date) {
			merged[key] = r
		}
	}
	v.t.store.mu.RUnlock()
	for key, r := range v.t.records {
		if r.PropertyID == id && window.Contains(r.Date) {
			merged[key] = *r
		}
	}
	out := make([]availability.Record, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (v availabilityView) SaveRecord(ctx context.Context, record availability.Record) error {
	if err := v.t.writable(); err != nil {
		return err
	}
	record.Date = daterange.Day(record.Date)
	v.t.records[recordKey(record.PropertyID, record.Date)] = &record
	return nil
}

func recordKey(id properties.PropertyID, date time.Time) string {
	return string(id) + "|" + daterange.Format(date)
}

func spansOverlap(a, b daterange.Span) bool {
	return !a.End.Before(b.Start) && !b.End.Before(a.Start)
}

// cloneBooking copies b without its pending events so stored state never
// aliases a caller's aggregate.
func cloneBooking(b *booking.Booking) booking.Booking {
	out := booking.Booking{
		ID:           b.ID,
		PropertyID:   b.PropertyID,
		GuestID:      b.GuestID,
		GuestEmail:   b.GuestEmail,
		GuestName:    b.GuestName,
		Range:        b.Range,
		Guests:       b.Guests,
		Total:        b.Total,
		Status:       b.Status,
		Payment:      b.Payment,
		PaymentRef:   b.PaymentRef,
		Refunded:     b.Refunded,
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
		Version:      b.Version,
	}
	if b.Session != nil {
		s := *b.Session
		out.Session = &s
	}
	if len(b.ReturnedPayments) > 0 {
		out.ReturnedPayments = append([]string(nil), b.ReturnedPayments...)
	}
	return out
}

func cloneBlock(b *availability.BlockedRange) availability.BlockedRange {
	out := availability.BlockedRange{
		ID:         b.ID,
		PropertyID: b.PropertyID,
		Span:       b.Span,
		Reason:     b.Reason,
		CreatedAt:  b.CreatedAt,
	}
	if b.PriceOverride != nil {
		p := *b.PriceOverride
		out.PriceOverride = &p
	}
	return out
}

var (
	_ uow.UoWFactory = (*Store)(nil)
	_ uow.UnitOfWork = (*Tx)(nil)
)
