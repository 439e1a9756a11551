package store

import (
	"context"

	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/internal/metrics"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"go.uber.org/zap"
)

// GetProfiles returns every profile ordered by id.
func (s *Store) GetProfiles(ctx context.Context) ([]*models.Profile, error) {
	repo, err := s.profiles()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx)
}

// GetProfile returns the profile, or nil when it does not exist.
func (s *Store) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	repo, err := s.profiles()
	if err != nil {
		return nil, err
	}
	return notFoundAsNil(repo.GetByID(ctx, id))
}

// CreateProfile inserts a profile and returns it with its id.
func (s *Store) CreateProfile(ctx context.Context, in *models.ProfileInput) (*models.Profile, error) {
	repo, err := s.profiles()
	if err != nil {
		return nil, err
	}

	profile := models.NewProfile(in)
	if err := repo.Create(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile applies patch to an existing profile and returns the result.
func (s *Store) UpdateProfile(ctx context.Context, id int64, patch *models.ProfilePatch) (*models.Profile, error) {
	return s.mutateProfile(ctx, id, func(p *models.Profile) error {
		patch.Apply(p)
		return nil
	})
}

// DeleteProfile removes a profile. The database cascades to its videos; the
// caller is responsible for their files.
func (s *Store) DeleteProfile(ctx context.Context, id int64) error {
	repo, err := s.profiles()
	if err != nil {
		return err
	}
	return repo.Delete(ctx, id)
}

// IncrementProfilePushCount records one push at the store clock's now. See
// models.Profile.RecordPush for the window rule.
func (s *Store) IncrementProfilePushCount(ctx context.Context, id int64) (*models.Profile, error) {
	now := s.now()
	profile, err := s.mutateProfile(ctx, id, func(p *models.Profile) error {
		p.RecordPush(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PushesRecorded.Inc()
	logger.Log.Debug("Profile push recorded",
		zap.Int64("profileId", id),
		zap.Int("dailyPushCount", profile.DailyPushCount),
	)
	return profile, nil
}

// ResetProfilePushCount zeroes the push count and restarts the window now.
func (s *Store) ResetProfilePushCount(ctx context.Context, id int64) (*models.Profile, error) {
	now := s.now()
	return s.mutateProfile(ctx, id, func(p *models.Profile) error {
		p.ResetPushes(now)
		return nil
	})
}

// mutateProfile loads, changes and writes a profile in one transaction.
func (s *Store) mutateProfile(ctx context.Context, id int64, fn func(*models.Profile) error) (*models.Profile, error) {
	var profile *models.Profile
	err := s.withTx(ctx, func(r *repos) error {
		p, err := r.profiles.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		p.ID = id
		if err := r.profiles.Update(ctx, p); err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}
