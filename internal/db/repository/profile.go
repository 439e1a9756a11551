package repository

import (
	"context"
	"database/sql"

	"github.com/ad-tracker/upload-scheduler-go/internal/db"
	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
)

// ProfileRepository defines operations for managing profiles.
type ProfileRepository interface {
	// Create inserts a profile and sets its ID.
	Create(ctx context.Context, profile *models.Profile) error

	// GetByID retrieves a single profile by ID.
	GetByID(ctx context.Context, id int64) (*models.Profile, error)

	// List retrieves all profiles ordered by ID.
	List(ctx context.Context) ([]*models.Profile, error)

	// Update writes every column of an existing profile.
	Update(ctx context.Context, profile *models.Profile) error

	// Delete deletes a profile by ID. Its videos go with it.
	Delete(ctx context.Context, id int64) error
}

type profileRepository struct {
	q DBTX
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(q DBTX) ProfileRepository {
	return &profileRepository{q: q}
}

const profileColumns = `id, name, channel_name, channel_link, daily_push_count, last_push_reset`

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (name, channel_name, channel_link, daily_push_count, last_push_reset)
		VALUES (?, ?, ?, ?, ?)
	`

	res, err := r.q.ExecContext(ctx, query,
		profile.Name,
		profile.ChannelName,
		profile.ChannelLink,
		profile.DailyPushCount,
		nullTime(profile.LastPushReset),
	)
	if err != nil {
		return db.WrapError(err, "create profile")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return db.WrapError(err, "create profile")
	}
	profile.ID = id
	if profile.LastPushReset != nil {
		profile.LastPushReset = timePtr(nullTime(profile.LastPushReset))
	}

	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`

	profile, err := scanProfile(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get profile by id")
	}

	return profile, nil
}

func (r *profileRepository) List(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, db.WrapError(err, "list profiles")
	}
	defer rows.Close()

	return scanProfiles(rows)
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	query := `
		UPDATE profiles
		SET name = ?, channel_name = ?, channel_link = ?, daily_push_count = ?, last_push_reset = ?
		WHERE id = ?
	`

	res, err := r.q.ExecContext(ctx, query,
		profile.Name,
		profile.ChannelName,
		profile.ChannelLink,
		profile.DailyPushCount,
		nullTime(profile.LastPushReset),
		profile.ID,
	)
	if err != nil {
		return db.WrapError(err, "update profile")
	}

	return db.WrapError(requireAffected(res), "update profile")
}

func (r *profileRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return db.WrapError(err, "delete profile")
	}

	return db.WrapError(requireAffected(res), "delete profile")
}

func scanProfile(s scanner) (*models.Profile, error) {
	var (
		profile   models.Profile
		lastReset sql.NullTime
	)

	err := s.Scan(
		&profile.ID,
		&profile.Name,
		&profile.ChannelName,
		&profile.ChannelLink,
		&profile.DailyPushCount,
		&lastReset,
	)
	if err != nil {
		return nil, err
	}

	profile.LastPushReset = timePtr(lastReset)
	return &profile, nil
}

func scanProfiles(rows *sql.Rows) ([]*models.Profile, error) {
	profiles := make([]*models.Profile, 0)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, db.WrapError(err, "scan profile")
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate profiles")
	}

	return profiles, nil
}
