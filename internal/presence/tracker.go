package presence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database"
)

// Tracker records attendance and presence in SQLite.
type Tracker struct {
	db     database.Querier
	mapper *RoomMapper
	loc    *time.Location
	now    func() time.Time
}

// NewTracker creates a tracker. Days are computed in loc; a nil loc means UTC.
func NewTracker(db database.Querier, mapper *RoomMapper, loc *time.Location) *Tracker {
	if mapper == nil {
		mapper = NewRoomMapper(nil)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{db: db, mapper: mapper, loc: loc, now: time.Now}
}

// WithClock returns a copy of the tracker using now as its clock.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	cp := *t
	cp.now = now
	return &cp
}

// WithTx returns a copy of the tracker bound to tx.
func (t *Tracker) WithTx(tx *sql.Tx) *Tracker {
	cp := *t
	cp.db = tx
	return &cp
}

// Mapper returns the tracker's position mapper.
func (t *Tracker) Mapper() *RoomMapper {
	return t.mapper
}

// Day returns the site calendar day of ts.
func (t *Tracker) Day(ts time.Time) string {
	return ts.In(t.loc).Format(DayLayout)
}

// RecordCheckIn stamps today's check-in unless one is already recorded.
func (t *Tracker) RecordCheckIn(ctx context.Context, userID string) (*Attendance, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	now := t.now()
	day := t.Day(now)

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO attendance (user_id, day, check_in, check_out) VALUES (?, ?, ?, NULL)
		ON CONFLICT(user_id, day) DO UPDATE SET check_in = COALESCE(attendance.check_in, excluded.check_in)`,
		userID, day, stamp(now))
	if err != nil {
		return nil, fmt.Errorf("recording check-in: %w", err)
	}
	return t.get(ctx, userID, day)
}

// RecordCheckOut stamps today's check-out, overwriting any earlier one.
func (t *Tracker) RecordCheckOut(ctx context.Context, userID string) (*Attendance, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	now := t.now()
	day := t.Day(now)

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO attendance (user_id, day, check_in, check_out) VALUES (?, ?, NULL, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET check_out = excluded.check_out`,
		userID, day, stamp(now))
	if err != nil {
		return nil, fmt.Errorf("recording check-out: %w", err)
	}
	return t.get(ctx, userID, day)
}

// SetOnline marks the user online in roomID (nil for no room).
func (t *Tracker) SetOnline(ctx context.Context, userID string, roomID *int64) error {
	if userID == "" {
		return ErrUserRequired
	}
	var room sql.NullInt64
	if roomID != nil {
		room = sql.NullInt64{Int64: *roomID, Valid: true}
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO presence (user_id, room_id, is_online, last_seen) VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			room_id = excluded.room_id, is_online = 1, last_seen = excluded.last_seen`,
		userID, room, stamp(t.now()))
	if err != nil {
		return fmt.Errorf("setting user online: %w", err)
	}
	return nil
}

// SetOffline marks the user offline. The last known room is kept.
func (t *Tracker) SetOffline(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO presence (user_id, room_id, is_online, last_seen) VALUES (?, NULL, 0, ?)
		ON CONFLICT(user_id) DO UPDATE SET is_online = 0, last_seen = excluded.last_seen`,
		userID, stamp(t.now()))
	if err != nil {
		return fmt.Errorf("setting user offline: %w", err)
	}
	return nil
}

// GetPresence returns the user's presence row.
func (t *Tracker) GetPresence(ctx context.Context, userID string) (*Presence, error) {
	var (
		p        Presence
		room     sql.NullInt64
		online   int
		lastSeen string
	)
	err := t.db.QueryRowContext(ctx,
		"SELECT user_id, room_id, is_online, last_seen FROM presence WHERE user_id = ?", userID,
	).Scan(&p.UserID, &room, &online, &lastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPresenceNotFound
		}
		return nil, fmt.Errorf("querying presence: %w", err)
	}
	if room.Valid {
		p.RoomID = &room.Int64
	}
	p.IsOnline = online != 0
	ts, err := t.parse(lastSeen)
	if err != nil {
		return nil, err
	}
	p.LastSeen = *ts
	return &p, nil
}

// ComputeOccupancy counts users present today whose position maps to roomID.
func (t *Tracker) ComputeOccupancy(ctx context.Context, roomID int64) (int, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT a.user_id, a.day, a.check_in, a.check_out, u.position FROM attendance a
		JOIN users u ON u.id = a.user_id
		WHERE a.day = ? AND a.check_in IS NOT NULL`,
		t.Day(t.now()))
	if err != nil {
		return 0, fmt.Errorf("querying present users: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var position string
		a, err := t.scan(withPosition{s: rows, position: &position})
		if err != nil {
			return 0, err
		}
		if !a.Present() {
			continue
		}
		if id, ok := t.mapper.Map(position); ok && id == roomID {
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating present users: %w", err)
	}
	return count, nil
}

// Today returns the user's attendance for the current day. A user with no
// row gets an empty one for today.
func (t *Tracker) Today(ctx context.Context, userID string) (*Attendance, error) {
	day := t.Day(t.now())
	a, err := t.get(ctx, userID, day)
	if errors.Is(err, sql.ErrNoRows) {
		return &Attendance{UserID: userID, Day: day}, nil
	}
	return a, err
}

// History returns the user's attendance for the last days days including
// today, newest first. days is clamped with ClampDays.
func (t *Tracker) History(ctx context.Context, userID string, days int) ([]Attendance, error) {
	now := t.now().In(t.loc)
	since := now.AddDate(0, 0, -(ClampDays(days) - 1)).Format(DayLayout)

	rows, err := t.db.QueryContext(ctx, `
		SELECT user_id, day, check_in, check_out FROM attendance
		WHERE user_id = ? AND day >= ?
		ORDER BY day DESC`,
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("querying attendance history: %w", err)
	}
	defer rows.Close()

	items := []Attendance{}
	for rows.Next() {
		a, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attendance history: %w", err)
	}
	return items, nil
}

func (t *Tracker) get(ctx context.Context, userID, day string) (*Attendance, error) {
	row := t.db.QueryRowContext(ctx,
		"SELECT user_id, day, check_in, check_out FROM attendance WHERE user_id = ? AND day = ?",
		userID, day)
	return t.scan(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// withPosition appends the joined users.position column to an attendance scan.
type withPosition struct {
	s        rowScanner
	position *string
}

func (w withPosition) Scan(dest ...any) error {
	return w.s.Scan(append(dest, w.position)...)
}

func (t *Tracker) scan(s rowScanner) (*Attendance, error) {
	var (
		a             Attendance
		checkIn, outT sql.NullString
	)
	if err := s.Scan(&a.UserID, &a.Day, &checkIn, &outT); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning attendance: %w", err)
	}
	var err error
	if checkIn.Valid {
		if a.CheckIn, err = t.parse(checkIn.String); err != nil {
			return nil, err
		}
	}
	if outT.Valid {
		if a.CheckOut, err = t.parse(outT.String); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

// parse reads a stored UTC timestamp and presents it in the site zone.
func (t *Tracker) parse(s string) (*time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	ts = ts.In(t.loc)
	return &ts, nil
}

func stamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
