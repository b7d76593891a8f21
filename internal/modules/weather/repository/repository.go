package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vatsalyanallabothula/weather/internal/modules/weather/types"
)

//go:embed sql/insert-session.sql
var insertSessionSQL string

//go:embed sql/get-session.sql
var getSessionSQL string

//go:embed sql/update-session-location.sql
var updateSessionLocationSQL string

//go:embed sql/clear-session-location.sql
var clearSessionLocationSQL string

//go:embed sql/delete-session-reading.sql
var deleteSessionReadingSQL string

//go:embed sql/insert-session-reading.sql
var insertSessionReadingSQL string

//go:embed sql/purge-expired-sessions.sql
var purgeExpiredSessionsSQL string

//go:embed sql/count-live-session.sql
var countLiveSessionSQL string

var (
	// ErrSessionNotFound covers both unknown and expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrReadingExists means the session already holds its one reading.
	ErrReadingExists = errors.New("session already has a reading")
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SessionRepository interface {
	CreateSession(ctx context.Context, id string, now time.Time, ttl time.Duration) (types.Session, error)
	GetSession(ctx context.Context, id string, now time.Time) (types.Session, error)
	SetLocation(ctx context.Context, id string, coords types.Coordinates, now time.Time) error
	ClearLocation(ctx context.Context, id string, now time.Time) error
	SaveReading(ctx context.Context, id string, reading types.WeatherReading, now time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) SessionRepository {
	return &repositoryImpl{db: db}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func (r *repositoryImpl) CreateSession(ctx context.Context, id string, now time.Time, ttl time.Duration) (types.Session, error) {
	if id == "" {
		return types.Session{}, errors.New("session id is empty")
	}
	if ttl <= 0 {
		return types.Session{}, fmt.Errorf("session ttl must be positive, got %v", ttl)
	}
	created := now.UTC()
	expires := created.Add(ttl)
	if _, err := r.db.ExecContext(ctx, insertSessionSQL, id, formatTime(created), formatTime(expires)); err != nil {
		return types.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return types.Session{ID: id, CreatedAt: created, ExpiresAt: expires}, nil
}

func (r *repositoryImpl) GetSession(ctx context.Context, id string, now time.Time) (types.Session, error) {
	var (
		s                          types.Session
		createdAt, expiresAt       string
		lat, lon                   sql.NullFloat64
		fetchedAt, name, desc, ico sql.NullString
		temp, humidity, wind       sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, getSessionSQL, id, formatTime(now)).Scan(
		&s.ID, &createdAt, &expiresAt, &lat, &lon,
		&fetchedAt, &name, &desc, &ico,
		&temp, &humidity, &wind,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("get session: %w", err)
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.Session{}, err
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return types.Session{}, err
	}
	if lat.Valid && lon.Valid {
		s.Coordinates = &types.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	if fetchedAt.Valid {
		fetched, err := parseTime(fetchedAt.String)
		if err != nil {
			return types.Session{}, err
		}
		s.Reading = &types.WeatherReading{
			LocationName: name.String,
			Description:  desc.String,
			IconCode:     ico.String,
			TemperatureC: floatPtr(temp),
			HumidityPct:  floatPtr(humidity),
			WindSpeedMps: floatPtr(wind),
			FetchedAt:    fetched,
		}
	}
	return s, nil
}

// SetLocation stores the coordinates and drops any cached reading, since it
// described the previous position.
func (r *repositoryImpl) SetLocation(ctx context.Context, id string, coords types.Coordinates, now time.Time) error {
	if err := coords.Validate(); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updateSessionLocationSQL,
			coords.Latitude, coords.Longitude, formatTime(now), id, formatTime(now))
		if err != nil {
			return fmt.Errorf("update session location: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteSessionReadingSQL, id); err != nil {
			return fmt.Errorf("delete session reading: %w", err)
		}
		return nil
	})
}

func (r *repositoryImpl) ClearLocation(ctx context.Context, id string, now time.Time) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, clearSessionLocationSQL, id, formatTime(now))
		if err != nil {
			return fmt.Errorf("clear session location: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteSessionReadingSQL, id); err != nil {
			return fmt.Errorf("delete session reading: %w", err)
		}
		return nil
	})
}

// SaveReading stores the session's reading unless one is already cached.
func (r *repositoryImpl) SaveReading(ctx context.Context, id string, reading types.WeatherReading, now time.Time) error {
	nowStr := formatTime(now)
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertSessionReadingSQL,
			id,
			formatTime(reading.FetchedAt),
			reading.LocationName,
			reading.Description,
			reading.IconCode,
			nullable(reading.TemperatureC),
			nullable(reading.HumidityPct),
			nullable(reading.WindSpeedMps),
			id,
			nowStr,
		)
		if err != nil {
			return fmt.Errorf("insert session reading: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert session reading: %w", err)
		}
		if n == 1 {
			return nil
		}

		var exists int
		err = tx.QueryRowContext(ctx, countLiveSessionSQL, id, nowStr).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if exists == 0 {
			return ErrSessionNotFound
		}
		return ErrReadingExists
	})
}

func (r *repositoryImpl) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, purgeExpiredSessionsSQL, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

func (r *repositoryImpl) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rollback", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
