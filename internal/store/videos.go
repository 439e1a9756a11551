package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
)

// GetVideos returns every video, latest schedule first.
func (s *Store) GetVideos(ctx context.Context) ([]*models.Video, error) {
	repo, err := s.videos()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx)
}

// GetVideosByProfile returns a profile's videos, latest schedule first.
func (s *Store) GetVideosByProfile(ctx context.Context, profileID int64) ([]*models.Video, error) {
	repo, err := s.videos()
	if err != nil {
		return nil, err
	}
	return repo.ListByProfile(ctx, profileID)
}

// GetVideosByStatus returns videos in status, latest schedule first.
func (s *Store) GetVideosByStatus(ctx context.Context, status models.VideoStatus) ([]*models.Video, error) {
	repo, err := s.videos()
	if err != nil {
		return nil, err
	}
	return repo.ListByStatus(ctx, status)
}

// GetVideosByDate returns the videos scheduled on date's calendar day, in
// date's location, earliest first.
func (s *Store) GetVideosByDate(ctx context.Context, date time.Time) ([]*models.Video, error) {
	repo, err := s.videos()
	if err != nil {
		return nil, err
	}

	start, end := DayBounds(date)
	return repo.ListScheduledBetween(ctx, start, end)
}

// DayBounds returns [midnight, next midnight) of t's calendar day in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// GetVideo returns the video, or nil when it does not exist.
func (s *Store) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	repo, err := s.videos()
	if err != nil {
		return nil, err
	}
	return notFoundAsNil(repo.GetByID(ctx, id))
}

// CreateVideo inserts a video and returns it with its id. Status defaults to pending.
func (s *Store) CreateVideo(ctx context.Context, in *models.VideoInput) (*models.Video, error) {
	repo, err := s.videos()
	if err != nil {
		return nil, err
	}

	video := models.NewVideo(in)
	if err := video.CheckInvariants(); err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

// UpdateVideo applies patch to an existing video. Status changes must follow
// the allowed transitions.
func (s *Store) UpdateVideo(ctx context.Context, id int64, patch *models.VideoPatch) (*models.Video, error) {
	return s.MutateVideo(ctx, id, func(v *models.Video) error {
		if err := patch.CheckTransition(v); err != nil {
			return err
		}
		patch.Apply(v)
		return nil
	})
}

// MutateVideo loads a video, lets fn change it and writes it back in one
// transaction. The result must satisfy the status invariants.
func (s *Store) MutateVideo(ctx context.Context, id int64, fn func(*models.Video) error) (*models.Video, error) {
	var video *models.Video
	err := s.withTx(ctx, func(r *repos) error {
		v, err := r.videos.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		v.ID = id
		if err := v.CheckInvariants(); err != nil {
			return err
		}
		if err := r.videos.Update(ctx, v); err != nil {
			return err
		}
		video = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

// DeleteVideo removes the video record. Files are the caller's concern.
func (s *Store) DeleteVideo(ctx context.Context, id int64) error {
	repo, err := s.videos()
	if err != nil {
		return err
	}
	return repo.Delete(ctx, id)
}

// ListPendingBefore returns pending videos scheduled before t, earliest first.
func (s *Store) ListPendingBefore(ctx context.Context, t time.Time) ([]*models.Video, error) {
	repo, err := s.videos()
	if err != nil {
		return nil, err
	}
	return repo.ListByStatusBefore(ctx, models.VideoStatusPending, t)
}

// VideosReferencing returns the videos that reference any of paths as their
// file, original file or thumbnail, each once.
func (s *Store) VideosReferencing(ctx context.Context, paths ...string) ([]*models.Video, error) {
	repo, err := s.videos()
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var out []*models.Video
	for _, p := range paths {
		if p == "" {
			continue
		}
		videos, err := repo.ListByPath(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			if !seen[v.ID] {
				seen[v.ID] = true
				out = append(out, v)
			}
		}
	}
	return out, nil
}

// MarkMissedSchedules moves every pending video scheduled before now to
// missed-schedule and returns the changed videos.
func (s *Store) MarkMissedSchedules(ctx context.Context, now time.Time) ([]*models.Video, error) {
	var changed []*models.Video
	err := s.withTx(ctx, func(r *repos) error {
		overdue, err := r.videos.ListByStatusBefore(ctx, models.VideoStatusPending, now)
		if err != nil {
			return err
		}

		changed = make([]*models.Video, 0, len(overdue))
		for _, v := range overdue {
			v.Status = models.VideoStatusMissedSchedule
			if err := r.videos.Update(ctx, v); err != nil {
				return fmt.Errorf("mark video %d missed: %w", v.ID, err)
			}
			changed = append(changed, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}
