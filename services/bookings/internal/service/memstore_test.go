package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/events"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/repository"
)

// ---------- In-memory store ----------

type memState struct {
	nextID   int64
	tick     time.Time
	users    map[int64]domain.User
	rooms    map[int64]domain.Room
	images   map[int64][]domain.RoomImage
	bookings map[int64]domain.Booking
	history  []domain.HistoryEvent
	reviews  map[int64]domain.Review
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:   s.nextID,
		tick:     s.tick,
		users:    make(map[int64]domain.User, len(s.users)),
		rooms:    make(map[int64]domain.Room, len(s.rooms)),
		images:   make(map[int64][]domain.RoomImage, len(s.images)),
		bookings: make(map[int64]domain.Booking, len(s.bookings)),
		history:  append([]domain.HistoryEvent(nil), s.history...),
		reviews:  make(map[int64]domain.Review, len(s.reviews)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.images {
		c.images[k] = append([]domain.RoomImage(nil), v...)
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	return c
}

type memStore struct {
	mu   sync.Mutex
	st   *memState
	inTx bool

	// failHistory makes the next history append fail.
	failHistory error
	// failRoomGet makes the next room lookup fail.
	failRoomGet error
}

func newMemStore() *memStore {
	return &memStore{st: &memState{
		tick:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    map[int64]domain.User{},
		rooms:    map[int64]domain.Room{},
		images:   map[int64][]domain.RoomImage{},
		bookings: map[int64]domain.Booking{},
		reviews:  map[int64]domain.Review{},
	}}
}

func (m *memStore) id() int64 {
	m.st.nextID++
	return m.st.nextID
}

func (m *memStore) now() time.Time {
	m.st.tick = m.st.tick.Add(time.Second)
	return m.st.tick
}

func (m *memStore) Users() repository.UserRepository       { return memUsers{m} }
func (m *memStore) Rooms() repository.RoomRepository       { return memRooms{m} }
func (m *memStore) Bookings() repository.BookingRepository { return memBookings{m} }
func (m *memStore) History() repository.HistoryRepository  { return memHistory{m} }
func (m *memStore) Reviews() repository.ReviewRepository   { return memReviews{m} }

func (m *memStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.inTx = true
	snapshot := m.st.clone()
	err := fn(m)
	m.inTx = false
	if err != nil {
		m.st = snapshot
	}
	return err
}

// seed helpers

func (m *memStore) addUser(email string, role domain.Role) domain.Identity {
	u := domain.User{ID: m.id(), Email: email, FirstName: strings.Split(email, "@")[0], Role: role, IsActive: true}
	u.CreatedAt = m.now()
	m.st.users[u.ID] = u
	return u.Identity()
}

func (m *memStore) addRoom(owner domain.Identity, address string, price float64, capacity int, amenities ...string) domain.Room {
	r := domain.Room{
		ID: m.id(), OwnerID: owner.UserID, Type: domain.RoomStandard, PricePerNight: price,
		Address: address, Capacity: capacity, Amenities: amenities, IsActive: true,
	}
	r.CreatedAt = m.now()
	m.st.rooms[r.ID] = r
	return r
}

func (m *memStore) addBooking(guest domain.Identity, roomID int64, in, out string, status domain.BookingStatus) domain.Booking {
	b := domain.Booking{ID: m.id(), GuestID: guest.UserID, RoomID: roomID, CheckIn: day(in), CheckOut: day(out), Status: status}
	b.CreatedAt = m.now()
	m.st.bookings[b.ID] = b
	return b
}

func (m *memStore) historyOf(bookingID int64) []domain.HistoryEvent {
	var out []domain.HistoryEvent
	for _, e := range m.st.history {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out
}

// ---------- users ----------

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	for _, existing := range r.m.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, domain.ErrEmailTaken
		}
	}
	c := *u
	c.ID = r.m.id()
	c.Email = strings.ToLower(c.Email)
	c.CreatedAt = r.m.now()
	r.m.st.users[c.ID] = c
	return &c, nil
}

func (r memUsers) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.m.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.m.st.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r memUsers) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.m.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (r memUsers) UpdateRole(_ context.Context, id int64, role domain.Role) error {
	u, ok := r.m.st.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Role = role
	r.m.st.users[id] = u
	return nil
}

func (r memUsers) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := r.m.st.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsActive = active
	r.m.st.users[id] = u
	return nil
}

// ---------- rooms ----------

type memRooms struct{ m *memStore }

func (r memRooms) withImages(rm domain.Room) *domain.Room {
	rm.Images = append([]domain.RoomImage(nil), r.m.st.images[rm.ID]...)
	return &rm
}

func (r memRooms) Create(_ context.Context, room *domain.Room) (*domain.Room, error) {
	c := *room
	c.ID = r.m.id()
	c.CreatedAt = r.m.now()
	c.Images = nil
	r.m.st.rooms[c.ID] = c
	return &c, nil
}

func (r memRooms) GetByID(_ context.Context, id int64) (*domain.Room, error) {
	if err := r.m.failRoomGet; err != nil {
		r.m.failRoomGet = nil
		return nil, err
	}
	rm, ok := r.m.st.rooms[id]
	if !ok {
		return nil, nil
	}
	return r.withImages(rm), nil
}

func (r memRooms) GetForUpdate(ctx context.Context, id int64) (*domain.Room, error) {
	return r.GetByID(ctx, id)
}

func (r memRooms) Update(_ context.Context, room *domain.Room) (*domain.Room, error) {
	if _, ok := r.m.st.rooms[room.ID]; !ok {
		return nil, nil
	}
	c := *room
	c.Images = nil
	r.m.st.rooms[c.ID] = c
	return r.withImages(c), nil
}

func (r memRooms) SetActive(_ context.Context, id int64, active bool) error {
	rm, ok := r.m.st.rooms[id]
	if !ok {
		return domain.ErrNotFound
	}
	rm.IsActive = active
	r.m.st.rooms[id] = rm
	return nil
}

func (r memRooms) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.st.rooms[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.m.st.rooms, id)
	delete(r.m.st.images, id)
	for bid, b := range r.m.st.bookings {
		if b.RoomID == id {
			delete(r.m.st.bookings, bid)
		}
	}
	for rid, rv := range r.m.st.reviews {
		if rv.RoomID == id {
			delete(r.m.st.reviews, rid)
		}
	}
	return nil
}

func (r memRooms) ListByOwner(_ context.Context, ownerID int64) ([]domain.Room, error) {
	var out []domain.Room
	for _, rm := range r.m.st.rooms {
		if rm.OwnerID == ownerID {
			out = append(out, rm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memRooms) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	rooms, _ := r.ListByOwner(ctx, ownerID)
	return len(rooms), nil
}

func (r memRooms) SearchCandidates(_ context.Context, destination string, guests int) ([]domain.Room, error) {
	var out []domain.Room
	for _, rm := range r.m.st.rooms {
		if rm.IsActive && strings.EqualFold(rm.Address, strings.TrimSpace(destination)) && rm.Capacity >= guests {
			out = append(out, rm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PricePerNight == out[j].PricePerNight {
			return out[i].ID < out[j].ID
		}
		return out[i].PricePerNight < out[j].PricePerNight
	})
	return out, nil
}

func (r memRooms) AddImages(_ context.Context, roomID int64, urls []string) ([]domain.RoomImage, error) {
	var out []domain.RoomImage
	for _, u := range urls {
		img := domain.RoomImage{ID: r.m.id(), RoomID: roomID, URL: u, CreatedAt: r.m.now()}
		r.m.st.images[roomID] = append(r.m.st.images[roomID], img)
		out = append(out, img)
	}
	return out, nil
}

func (r memRooms) ListImages(_ context.Context, roomID int64) ([]domain.RoomImage, error) {
	return append([]domain.RoomImage(nil), r.m.st.images[roomID]...), nil
}

func (r memRooms) DeleteImage(_ context.Context, roomID, imageID int64) error {
	imgs := r.m.st.images[roomID]
	for i, img := range imgs {
		if img.ID == imageID {
			r.m.st.images[roomID] = append(imgs[:i:i], imgs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// ---------- bookings ----------

type memBookings struct{ m *memStore }

// violatesExclusion mirrors the storage overlap constraint.
func (r memBookings) violatesExclusion(b domain.Booking) bool {
	if !b.Status.Active() {
		return false
	}
	for _, other := range r.m.st.bookings {
		if other.ID == b.ID || other.RoomID != b.RoomID || !other.Status.Active() {
			continue
		}
		if other.Range().Overlaps(b.Range()) {
			return true
		}
	}
	return false
}

func (r memBookings) Create(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	c := *b
	if r.violatesExclusion(c) {
		return nil, fmt.Errorf("%w (bookings_no_overlap)", domain.ErrRoomUnavailable)
	}
	c.ID = r.m.id()
	c.CreatedAt = r.m.now()
	c.UpdatedAt = c.CreatedAt
	r.m.st.bookings[c.ID] = c
	return &c, nil
}

func (r memBookings) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	b, ok := r.m.st.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r memBookings) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r memBookings) view(b domain.Booking) domain.BookingView {
	v := domain.BookingView{Booking: b}
	if rm, ok := r.m.st.rooms[b.RoomID]; ok {
		v.RoomAddress, v.RoomType, v.RoomOwnerID = rm.Address, rm.Type, rm.OwnerID
	}
	if u, ok := r.m.st.users[b.GuestID]; ok {
		v.GuestEmail, v.GuestName = u.Email, u.DisplayName()
	}
	return v
}

func (r memBookings) GetView(_ context.Context, id int64) (*domain.BookingView, error) {
	b, ok := r.m.st.bookings[id]
	if !ok {
		return nil, nil
	}
	v := r.view(b)
	return &v, nil
}

func (r memBookings) UpdateStatus(_ context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	b, ok := r.m.st.bookings[id]
	if !ok {
		return nil, nil
	}
	b.Status = status
	if r.violatesExclusion(b) {
		return nil, domain.ErrRoomUnavailable
	}
	b.UpdatedAt = r.m.now()
	r.m.st.bookings[id] = b
	return &b, nil
}

func (r memBookings) UpdateDates(_ context.Context, id int64, rng domain.DateRange, totalCost float64) (*domain.Booking, error) {
	b, ok := r.m.st.bookings[id]
	if !ok {
		return nil, nil
	}
	b.CheckIn, b.CheckOut, b.TotalCost = rng.CheckIn, rng.CheckOut, totalCost
	if r.violatesExclusion(b) {
		return nil, domain.ErrRoomUnavailable
	}
	b.UpdatedAt = r.m.now()
	r.m.st.bookings[id] = b
	return &b, nil
}

func (r memBookings) ActiveForRoom(_ context.Context, roomID int64, rng domain.DateRange, excludeID int64) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range r.m.st.bookings {
		if b.RoomID == roomID && b.ID != excludeID && b.Status.Active() && b.Range().Overlaps(rng) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r memBookings) ActiveForRooms(_ context.Context, roomIDs []int64, rng domain.DateRange) ([]domain.Booking, error) {
	want := map[int64]bool{}
	for _, id := range roomIDs {
		want[id] = true
	}
	var out []domain.Booking
	for _, b := range r.m.st.bookings {
		if want[b.RoomID] && b.Status.Active() && b.Range().Overlaps(rng) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r memBookings) listViews(match func(domain.BookingView) bool, limit, offset int, status *domain.BookingStatus) []domain.BookingView {
	var out []domain.BookingView
	for _, b := range r.m.st.bookings {
		v := r.view(b)
		if !match(v) || (status != nil && b.Status != *status) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset)
}

func (r memBookings) ListByGuest(_ context.Context, guestID int64, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error) {
	return r.listViews(func(v domain.BookingView) bool { return v.GuestID == guestID }, limit, offset, status), nil
}

func (r memBookings) ListByOwner(_ context.Context, ownerID int64, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error) {
	return r.listViews(func(v domain.BookingView) bool { return v.RoomOwnerID == ownerID }, limit, offset, status), nil
}

func (r memBookings) OwnerStats(_ context.Context, ownerID int64) (domain.OwnerStats, error) {
	var s domain.OwnerStats
	for _, b := range r.m.st.bookings {
		if rm, ok := r.m.st.rooms[b.RoomID]; ok && rm.OwnerID == ownerID {
			s.TotalBookings++
			if b.Status.Active() {
				s.ActiveBookings++
			}
		}
	}
	return s, nil
}

// ---------- history ----------

type memHistory struct{ m *memStore }

func (r memHistory) Append(_ context.Context, e *domain.HistoryEvent) (*domain.HistoryEvent, error) {
	if err := r.m.failHistory; err != nil {
		r.m.failHistory = nil
		return nil, err
	}
	c := *e
	c.ID = r.m.id()
	c.EventID = fmt.Sprintf("evt-%d", c.ID)
	c.ChangedAt = r.m.now()
	r.m.st.history = append(r.m.st.history, c)
	return &c, nil
}

func (r memHistory) ListByBooking(_ context.Context, bookingID int64) ([]domain.HistoryEvent, error) {
	return r.m.historyOf(bookingID), nil
}

// ---------- reviews ----------

type memReviews struct{ m *memStore }

func (r memReviews) Create(_ context.Context, rv *domain.Review) (*domain.Review, error) {
	for _, existing := range r.m.st.reviews {
		if existing.BookingID == rv.BookingID {
			return nil, fmt.Errorf("%w (reviews_booking_id_key)", domain.ErrAlreadyReviewed)
		}
	}
	c := *rv
	c.ID = r.m.id()
	c.CreatedAt = r.m.now()
	r.m.st.reviews[c.ID] = c
	return &c, nil
}

func (r memReviews) GetByID(_ context.Context, id int64) (*domain.Review, error) {
	rv, ok := r.m.st.reviews[id]
	if !ok {
		return nil, nil
	}
	return &rv, nil
}

func (r memReviews) GetByBooking(_ context.Context, bookingID int64) (*domain.Review, error) {
	for _, rv := range r.m.st.reviews {
		if rv.BookingID == bookingID {
			rv := rv
			return &rv, nil
		}
	}
	return nil, nil
}

func (r memReviews) UpdateContent(_ context.Context, id int64, rating int, text string) (*domain.Review, error) {
	rv, ok := r.m.st.reviews[id]
	if !ok {
		return nil, nil
	}
	rv.Rating, rv.Text, rv.Status = rating, text, domain.ReviewPending
	rv.ModeratedBy, rv.ModeratedAt, rv.ModerationComment = nil, nil, ""
	r.m.st.reviews[id] = rv
	return &rv, nil
}

func (r memReviews) SetModeration(_ context.Context, id int64, status domain.ReviewStatus, moderatorID int64, comment string, at time.Time) (*domain.Review, error) {
	rv, ok := r.m.st.reviews[id]
	if !ok {
		return nil, nil
	}
	rv.Status, rv.ModerationComment = status, comment
	rv.ModeratedBy, rv.ModeratedAt = &moderatorID, &at
	r.m.st.reviews[id] = rv
	return &rv, nil
}

func (r memReviews) SetReply(_ context.Context, id int64, reply string, at time.Time) (*domain.Review, error) {
	rv, ok := r.m.st.reviews[id]
	if !ok {
		return nil, nil
	}
	rv.OwnerReply, rv.OwnerReplyAt = reply, &at
	r.m.st.reviews[id] = rv
	return &rv, nil
}

func (r memReviews) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.st.reviews[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.m.st.reviews, id)
	return nil
}

func (r memReviews) List(_ context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	var out []domain.Review
	for _, rv := range r.m.st.reviews {
		if f.RoomID != 0 && rv.RoomID != f.RoomID {
			continue
		}
		if f.GuestID != 0 && rv.GuestID != f.GuestID {
			continue
		}
		if f.OwnerID != 0 && r.m.st.rooms[rv.RoomID].OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && rv.Status != f.Status {
			continue
		}
		out = append(out, rv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (r memReviews) CountByStatus(_ context.Context, status domain.ReviewStatus) (int, error) {
	n := 0
	for _, rv := range r.m.st.reviews {
		if rv.Status == status {
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 || offset >= len(items) {
		if offset > 0 {
			return nil
		}
		offset = 0
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ---------- event bus ----------

type published struct {
	subject string
	data    interface{}
}

type mockBus struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (b *mockBus) Publish(_ context.Context, subject string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{subject, data})
	return b.err
}

func (b *mockBus) Close() error { return nil }

func (b *mockBus) subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		out = append(out, e.subject)
	}
	return out
}

var _ events.Publisher = (*mockBus)(nil)

// ---------- helpers ----------

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(s string) domain.Clock {
	t := day(s).Add(10 * time.Hour)
	return func() time.Time { return t }
}
