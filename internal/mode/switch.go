package mode

import (
	"context"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/internal/service"
)

var _ service.Service = (*Switch)(nil)

// Switch implements service.Service by routing every operation to the remote
// or offline variant through the controller.
type Switch struct {
	c       *Controller
	remote  service.Service
	offline service.Service
}

// NewSwitch creates a Switch. offline may be nil, in which case offline
// operations fail with ErrNoOfflineHandler and remote failures propagate.
func NewSwitch(c *Controller, remote, offline service.Service) *Switch {
	return &Switch{c: c, remote: remote, offline: offline}
}

// Controller returns the mode controller.
func (s *Switch) Controller() *Controller {
	return s.c
}

// route dispatches op with fn applied to each variant.
func route[T any](ctx context.Context, s *Switch, op string, fn func(context.Context, service.Service) (T, error)) (T, error) {
	online := func(ctx context.Context) (T, error) {
		return fn(ctx, s.remote)
	}
	var offline func(context.Context) (T, error)
	if s.offline != nil {
		offline = func(ctx context.Context) (T, error) {
			return fn(ctx, s.offline)
		}
	}
	return Call(ctx, s.c, op, online, offline)
}

// routeErr is route for operations without a result.
func routeErr(ctx context.Context, s *Switch, op string, fn func(context.Context, service.Service) error) error {
	_, err := route(ctx, s, op, func(ctx context.Context, svc service.Service) (struct{}, error) {
		return struct{}{}, fn(ctx, svc)
	})
	return err
}

func (s *Switch) GetProfiles(ctx context.Context) ([]*models.Profile, error) {
	return route(ctx, s, "GetProfiles", func(ctx context.Context, svc service.Service) ([]*models.Profile, error) {
		return svc.GetProfiles(ctx)
	})
}

func (s *Switch) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	return route(ctx, s, "GetProfile", func(ctx context.Context, svc service.Service) (*models.Profile, error) {
		return svc.GetProfile(ctx, id)
	})
}

func (s *Switch) CreateProfile(ctx context.Context, in *models.ProfileInput) (*models.Profile, error) {
	return route(ctx, s, "CreateProfile", func(ctx context.Context, svc service.Service) (*models.Profile, error) {
		return svc.CreateProfile(ctx, in)
	})
}

func (s *Switch) UpdateProfile(ctx context.Context, id int64, patch *models.ProfilePatch) (*models.Profile, error) {
	return route(ctx, s, "UpdateProfile", func(ctx context.Context, svc service.Service) (*models.Profile, error) {
		return svc.UpdateProfile(ctx, id, patch)
	})
}

func (s *Switch) DeleteProfile(ctx context.Context, id int64) error {
	return routeErr(ctx, s, "DeleteProfile", func(ctx context.Context, svc service.Service) error {
		return svc.DeleteProfile(ctx, id)
	})
}

func (s *Switch) IncrementProfilePushCount(ctx context.Context, id int64) (*models.Profile, error) {
	return route(ctx, s, "IncrementProfilePushCount", func(ctx context.Context, svc service.Service) (*models.Profile, error) {
		return svc.IncrementProfilePushCount(ctx, id)
	})
}

func (s *Switch) ResetProfilePushCount(ctx context.Context, id int64) (*models.Profile, error) {
	return route(ctx, s, "ResetProfilePushCount", func(ctx context.Context, svc service.Service) (*models.Profile, error) {
		return svc.ResetProfilePushCount(ctx, id)
	})
}

func (s *Switch) GetVideos(ctx context.Context) ([]*models.Video, error) {
	return route(ctx, s, "GetVideos", func(ctx context.Context, svc service.Service) ([]*models.Video, error) {
		return svc.GetVideos(ctx)
	})
}

func (s *Switch) GetVideosByProfile(ctx context.Context, profileID int64) ([]*models.Video, error) {
	return route(ctx, s, "GetVideosByProfile", func(ctx context.Context, svc service.Service) ([]*models.Video, error) {
		return svc.GetVideosByProfile(ctx, profileID)
	})
}

func (s *Switch) GetVideosByStatus(ctx context.Context, status models.VideoStatus) ([]*models.Video, error) {
	return route(ctx, s, "GetVideosByStatus", func(ctx context.Context, svc service.Service) ([]*models.Video, error) {
		return svc.GetVideosByStatus(ctx, status)
	})
}

func (s *Switch) GetVideosByDate(ctx context.Context, date time.Time) ([]*models.Video, error) {
	return route(ctx, s, "GetVideosByDate", func(ctx context.Context, svc service.Service) ([]*models.Video, error) {
		return svc.GetVideosByDate(ctx, date)
	})
}

func (s *Switch) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	return route(ctx, s, "GetVideo", func(ctx context.Context, svc service.Service) (*models.Video, error) {
		return svc.GetVideo(ctx, id)
	})
}

func (s *Switch) CreateVideo(ctx context.Context, in *models.VideoInput) (*models.Video, error) {
	return route(ctx, s, "CreateVideo", func(ctx context.Context, svc service.Service) (*models.Video, error) {
		return svc.CreateVideo(ctx, in)
	})
}

func (s *Switch) UpdateVideo(ctx context.Context, id int64, patch *models.VideoPatch) (*models.Video, error) {
	return route(ctx, s, "UpdateVideo", func(ctx context.Context, svc service.Service) (*models.Video, error) {
		return svc.UpdateVideo(ctx, id, patch)
	})
}

func (s *Switch) DeleteVideo(ctx context.Context, id int64) error {
	return routeErr(ctx, s, "DeleteVideo", func(ctx context.Context, svc service.Service) error {
		return svc.DeleteVideo(ctx, id)
	})
}

func (s *Switch) MarkVideoAsUploaded(ctx context.Context, id int64, link string) (*models.Video, error) {
	return route(ctx, s, "MarkVideoAsUploaded", func(ctx context.Context, svc service.Service) (*models.Video, error) {
		return svc.MarkVideoAsUploaded(ctx, id, link)
	})
}

func (s *Switch) RevertVideoUpload(ctx context.Context, id int64) (*models.Video, error) {
	return route(ctx, s, "RevertVideoUpload", func(ctx context.Context, svc service.Service) (*models.Video, error) {
		return svc.RevertVideoUpload(ctx, id)
	})
}

func (s *Switch) RescheduleVideo(ctx context.Context, id int64, when time.Time) (*models.Video, error) {
	return route(ctx, s, "RescheduleVideo", func(ctx context.Context, svc service.Service) (*models.Video, error) {
		return svc.RescheduleVideo(ctx, id, when)
	})
}

func (s *Switch) MarkMissedSchedules(ctx context.Context, now time.Time) ([]*models.Video, error) {
	return route(ctx, s, "MarkMissedSchedules", func(ctx context.Context, svc service.Service) ([]*models.Video, error) {
		return svc.MarkMissedSchedules(ctx, now)
	})
}

func (s *Switch) UploadVideoFile(ctx context.Context, videoID int64, path string) (*models.Video, error) {
	return route(ctx, s, "UploadVideoFile", func(ctx context.Context, svc service.Service) (*models.Video, error) {
		return svc.UploadVideoFile(ctx, videoID, path)
	})
}

func (s *Switch) ExportData(ctx context.Context) (*models.ExportData, error) {
	return route(ctx, s, "ExportData", func(ctx context.Context, svc service.Service) (*models.ExportData, error) {
		return svc.ExportData(ctx)
	})
}

func (s *Switch) ImportData(ctx context.Context, data *models.ExportData) (*models.ImportResult, error) {
	return route(ctx, s, "ImportData", func(ctx context.Context, svc service.Service) (*models.ImportResult, error) {
		return svc.ImportData(ctx, data)
	})
}
