// Package service defines the scheduler operations and their on-device
// implementation.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
)

// ErrInvalidImportFormat is returned when an import document lacks the
// profiles or videos array.
var ErrInvalidImportFormat = errors.New("invalid import format: profiles and videos arrays are required")

// Service is the full set of scheduler operations. The remote API client and
// the offline facade both implement it, and the mode switch picks one per call.
type Service interface {
	GetProfiles(ctx context.Context) ([]*models.Profile, error)
	// GetProfile returns nil without error when the profile does not exist.
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	CreateProfile(ctx context.Context, in *models.ProfileInput) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id int64, patch *models.ProfilePatch) (*models.Profile, error)
	DeleteProfile(ctx context.Context, id int64) error
	IncrementProfilePushCount(ctx context.Context, id int64) (*models.Profile, error)
	ResetProfilePushCount(ctx context.Context, id int64) (*models.Profile, error)

	GetVideos(ctx context.Context) ([]*models.Video, error)
	GetVideosByProfile(ctx context.Context, profileID int64) ([]*models.Video, error)
	GetVideosByStatus(ctx context.Context, status models.VideoStatus) ([]*models.Video, error)
	GetVideosByDate(ctx context.Context, date time.Time) ([]*models.Video, error)
	// GetVideo returns nil without error when the video does not exist.
	GetVideo(ctx context.Context, id int64) (*models.Video, error)
	CreateVideo(ctx context.Context, in *models.VideoInput) (*models.Video, error)
	UpdateVideo(ctx context.Context, id int64, patch *models.VideoPatch) (*models.Video, error)
	DeleteVideo(ctx context.Context, id int64) error

	MarkVideoAsUploaded(ctx context.Context, id int64, link string) (*models.Video, error)
	RevertVideoUpload(ctx context.Context, id int64) (*models.Video, error)
	RescheduleVideo(ctx context.Context, id int64, when time.Time) (*models.Video, error)
	MarkMissedSchedules(ctx context.Context, now time.Time) ([]*models.Video, error)
	UploadVideoFile(ctx context.Context, videoID int64, path string) (*models.Video, error)

	ExportData(ctx context.Context) (*models.ExportData, error)
	ImportData(ctx context.Context, data *models.ExportData) (*models.ImportResult, error)
}
