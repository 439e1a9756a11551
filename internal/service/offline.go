package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db"
	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/internal/files"
	"github.com/ad-tracker/upload-scheduler-go/internal/media"
	"github.com/ad-tracker/upload-scheduler-go/internal/metrics"
	"github.com/ad-tracker/upload-scheduler-go/internal/store"
	"github.com/ad-tracker/upload-scheduler-go/internal/validation"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"go.uber.org/zap"
)

// Offline serves every operation from the local store and file area.
type Offline struct {
	store     *store.Store
	files     *files.Manager
	inspector media.Inspector
	validator *validation.Validator
}

var _ Service = (*Offline)(nil)

// NewOffline creates the offline facade. inspector may be nil, in which case
// thumbnails and durations are never derived.
func NewOffline(st *store.Store, fm *files.Manager, inspector media.Inspector, validator *validation.Validator) *Offline {
	if validator == nil {
		validator = validation.New(0, 0, true)
	}
	return &Offline{
		store:     st,
		files:     fm,
		inspector: inspector,
		validator: validator,
	}
}

// Initialize opens the store and creates the file areas.
func (o *Offline) Initialize(ctx context.Context) error {
	if err := o.store.Initialize(ctx); err != nil {
		return err
	}
	return o.files.Init()
}

// Close closes the store.
func (o *Offline) Close() error {
	return o.store.Close()
}

// Store returns the underlying store.
func (o *Offline) Store() *store.Store {
	return o.store
}

// Files returns the underlying file area.
func (o *Offline) Files() *files.Manager {
	return o.files
}

func (o *Offline) GetProfiles(ctx context.Context) ([]*models.Profile, error) {
	return o.store.GetProfiles(ctx)
}

func (o *Offline) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	return o.store.GetProfile(ctx, id)
}

func (o *Offline) CreateProfile(ctx context.Context, in *models.ProfileInput) (*models.Profile, error) {
	if err := o.validator.ValidateProfileInput(in); err != nil {
		return nil, err
	}
	return o.store.CreateProfile(ctx, in)
}

func (o *Offline) UpdateProfile(ctx context.Context, id int64, patch *models.ProfilePatch) (*models.Profile, error) {
	if err := o.validator.ValidateProfilePatch(patch); err != nil {
		return nil, err
	}
	return o.store.UpdateProfile(ctx, id, patch)
}

// DeleteProfile removes the files of every video the profile owns, then the
// profile. The database cascade removes the video rows.
func (o *Offline) DeleteProfile(ctx context.Context, id int64) error {
	videos, err := o.store.GetVideosByProfile(ctx, id)
	if err != nil {
		return err
	}

	deleting := make(map[int64]bool, len(videos))
	for _, v := range videos {
		deleting[v.ID] = true
	}
	for _, v := range videos {
		o.removeMedia(ctx, v, deleting)
	}

	if err := o.store.DeleteProfile(ctx, id); err != nil {
		return err
	}

	logger.Log.Info("Profile deleted",
		zap.Int64("profileId", id),
		zap.Int("videos", len(videos)),
	)
	return nil
}

func (o *Offline) IncrementProfilePushCount(ctx context.Context, id int64) (*models.Profile, error) {
	return o.store.IncrementProfilePushCount(ctx, id)
}

func (o *Offline) ResetProfilePushCount(ctx context.Context, id int64) (*models.Profile, error) {
	return o.store.ResetProfilePushCount(ctx, id)
}

func (o *Offline) GetVideos(ctx context.Context) ([]*models.Video, error) {
	return o.store.GetVideos(ctx)
}

func (o *Offline) GetVideosByProfile(ctx context.Context, profileID int64) ([]*models.Video, error) {
	return o.store.GetVideosByProfile(ctx, profileID)
}

func (o *Offline) GetVideosByStatus(ctx context.Context, status models.VideoStatus) ([]*models.Video, error) {
	return o.store.GetVideosByStatus(ctx, status)
}

func (o *Offline) GetVideosByDate(ctx context.Context, date time.Time) ([]*models.Video, error) {
	return o.store.GetVideosByDate(ctx, date)
}

func (o *Offline) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	return o.store.GetVideo(ctx, id)
}

// CreateVideo derives a thumbnail and duration for a supplied file when they
// are missing. Derivation failures are logged and do not block the insert.
func (o *Offline) CreateVideo(ctx context.Context, in *models.VideoInput) (*models.Video, error) {
	if err := o.validator.ValidateVideoInput(in); err != nil {
		return nil, err
	}

	if in.FilePath != nil && *in.FilePath != "" {
		derived := *in
		if derived.ThumbnailPath == nil {
			derived.ThumbnailPath = o.generateThumbnail(ctx, *in.FilePath)
		}
		if derived.Duration == nil {
			derived.Duration = o.probeDuration(ctx, *in.FilePath)
		}
		in = &derived
	}

	return o.store.CreateVideo(ctx, in)
}

func (o *Offline) UpdateVideo(ctx context.Context, id int64, patch *models.VideoPatch) (*models.Video, error) {
	if err := o.validator.ValidateVideoPatch(patch); err != nil {
		return nil, err
	}
	return o.store.UpdateVideo(ctx, id, patch)
}

// DeleteVideo removes the video's files and then its record. The record goes
// even when a file cannot be removed.
func (o *Offline) DeleteVideo(ctx context.Context, id int64) error {
	v, err := o.store.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("delete video %d: %w", id, db.ErrNotFound)
	}

	o.removeMedia(ctx, v, map[int64]bool{id: true})
	return o.store.DeleteVideo(ctx, id)
}

func (o *Offline) MarkVideoAsUploaded(ctx context.Context, id int64, link string) (*models.Video, error) {
	if err := o.validator.ValidateLink(link); err != nil {
		return nil, err
	}

	now := o.store.Now()
	v, err := o.store.MutateVideo(ctx, id, func(v *models.Video) error {
		return v.MarkUploaded(now, link)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.Int64("videoId", id), zap.String("youtubeLink", link)}
	if platformID, ok := o.validator.VideoIDFromLink(link); ok {
		fields = append(fields, zap.String("platformVideoId", platformID))
	}
	logger.Log.Info("Video marked as uploaded", fields...)
	return v, nil
}

func (o *Offline) RevertVideoUpload(ctx context.Context, id int64) (*models.Video, error) {
	return o.store.MutateVideo(ctx, id, func(v *models.Video) error {
		return v.RevertUpload()
	})
}

// RescheduleVideo moves a pending or missed video to a new slot as pending.
func (o *Offline) RescheduleVideo(ctx context.Context, id int64, when time.Time) (*models.Video, error) {
	if when.IsZero() {
		return nil, &validation.ValidationError{Field: "scheduleDate", Message: "is required"}
	}

	return o.store.MutateVideo(ctx, id, func(v *models.Video) error {
		if v.Status == models.VideoStatusCompleted {
			return fmt.Errorf("%w: cannot reschedule a %s video", models.ErrInvalidTransition, v.Status)
		}
		v.Status = models.VideoStatusPending
		v.ScheduleDate = when
		return nil
	})
}

func (o *Offline) MarkMissedSchedules(ctx context.Context, now time.Time) ([]*models.Video, error) {
	changed, err := o.store.MarkMissedSchedules(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		logger.Log.Info("Marked overdue videos as missed", zap.Int("count", len(changed)))
	}
	return changed, nil
}

// UploadVideoFile brings path into the videos area (a managed path is used
// as-is unless another video references it, then it is copied), fills a
// missing thumbnail and duration, and marks the file present.
func (o *Offline) UploadVideoFile(ctx context.Context, videoID int64, path string) (*models.Video, error) {
	existing, err := o.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("upload video file %d: %w", videoID, db.ErrNotFound)
	}

	logical, size, created, err := o.importVideoFile(ctx, videoID, path)
	if err != nil {
		return nil, err
	}

	var thumbnail, duration *string
	if existing.ThumbnailPath == nil {
		thumbnail = o.generateThumbnail(ctx, logical)
	}
	if existing.Duration == nil {
		duration = o.probeDuration(ctx, logical)
	}

	var replaced *string
	v, err := o.store.MutateVideo(ctx, videoID, func(v *models.Video) error {
		if v.FilePath != nil && *v.FilePath != logical {
			replaced = v.FilePath
		}
		original := path
		v.FilePath = &logical
		v.OriginalFilePath = &original
		v.FileSize = &size
		v.OriginalFileSize = &size
		if v.ThumbnailPath == nil {
			v.ThumbnailPath = thumbnail
		}
		if v.Duration == nil {
			v.Duration = duration
		}
		v.IsFileUploaded = true
		v.IsPlaceholder = false
		return nil
	})
	if err != nil {
		if created {
			o.removeFile(ctx, videoID, logical, nil)
		}
		if thumbnail != nil {
			o.removeFile(ctx, videoID, *thumbnail, nil)
		}
		return nil, err
	}

	if replaced != nil {
		o.removeFile(ctx, videoID, *replaced, map[int64]bool{videoID: true})
	}

	logger.Log.Info("Video file attached",
		zap.Int64("videoId", videoID),
		zap.String("path", logical),
		zap.Int64("size", size),
	)
	return v, nil
}

func (o *Offline) ExportData(ctx context.Context) (*models.ExportData, error) {
	profiles, err := o.store.GetProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("export profiles: %w", err)
	}
	videos, err := o.store.GetVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("export videos: %w", err)
	}
	return &models.ExportData{Profiles: profiles, Videos: videos}, nil
}

// ImportData inserts every profile and then every video under new ids,
// pointing videos at their profile's new id. It stops at the first failing
// record; records inserted before it stay.
func (o *Offline) ImportData(ctx context.Context, data *models.ExportData) (*models.ImportResult, error) {
	if err := CheckExport(data); err != nil {
		return nil, err
	}

	result := &models.ImportResult{}
	idMap := make(map[int64]int64, len(data.Profiles))

	for i, p := range data.Profiles {
		if p == nil {
			return result, fmt.Errorf("import profile %d: %w", i, ErrInvalidImportFormat)
		}
		created, err := o.store.CreateProfile(ctx, p.Input())
		if err != nil {
			return result, fmt.Errorf("import profile %d (id %d): %w", i, p.ID, err)
		}
		idMap[p.ID] = created.ID
		result.ProfilesImported++
	}

	for i, v := range data.Videos {
		if v == nil {
			return result, fmt.Errorf("import video %d: %w", i, ErrInvalidImportFormat)
		}
		newID, ok := idMap[v.ProfileID]
		if !ok {
			return result, fmt.Errorf("import video %d: profile %d not in document: %w", i, v.ProfileID, ErrInvalidImportFormat)
		}
		in := v.Input()
		in.ProfileID = newID
		if _, err := o.store.CreateVideo(ctx, in); err != nil {
			return result, fmt.Errorf("import video %d (id %d): %w", i, v.ID, err)
		}
		result.VideosImported++
	}

	logger.Log.Info("Import completed",
		zap.Int("profiles", result.ProfilesImported),
		zap.Int("videos", result.VideosImported),
	)
	return result, nil
}

// importVideoFile brings path into the videos area for videoID. A managed
// file that another video references is copied so every video owns its
// files. created reports whether a new file was made in the area.
func (o *Offline) importVideoFile(ctx context.Context, videoID int64, path string) (string, int64, bool, error) {
	source, err := o.files.Logical(path)
	if err != nil {
		logical, size, err := o.files.Import(files.AreaVideos, path)
		return logical, size, err == nil, err
	}

	if o.inUse(ctx, path, map[int64]bool{videoID: true}) {
		logical, size, err := o.files.Copy(files.AreaVideos, source)
		return logical, size, err == nil, err
	}

	logical, size, err := o.files.Import(files.AreaVideos, path)
	return logical, size, err == nil && logical != source, err
}

// removeMedia deletes the managed files a video references, skipping files
// that a video outside deleting still references. Failures are logged and
// counted.
func (o *Offline) removeMedia(ctx context.Context, v *models.Video, deleting map[int64]bool) {
	for _, p := range []*string{v.FilePath, v.ThumbnailPath, v.OriginalFilePath} {
		if p == nil || *p == "" {
			continue
		}
		o.removeFile(ctx, v.ID, *p, deleting)
	}
}

// removeFile deletes a managed file. With a non-nil deleting set the file is
// kept while a video outside the set references it.
func (o *Offline) removeFile(ctx context.Context, videoID int64, path string, deleting map[int64]bool) {
	if !o.files.IsManaged(path) {
		return
	}
	if deleting != nil && o.inUse(ctx, path, deleting) {
		logger.Log.Debug("Keeping file referenced by another video",
			zap.Int64("videoId", videoID),
			zap.String("path", path),
		)
		return
	}
	if err := o.files.Delete(path); err != nil {
		metrics.FileCleanupFailures.Inc()
		logger.Log.Warn("Failed to delete video file",
			zap.Error(err),
			zap.Int64("videoId", videoID),
			zap.String("path", path),
		)
	}
}

// inUse reports whether a video not in except references the managed file
// at path, under its logical or absolute form. A failed lookup counts as in
// use.
func (o *Offline) inUse(ctx context.Context, path string, except map[int64]bool) bool {
	candidates := []string{path}
	if logical, err := o.files.Logical(path); err == nil {
		candidates = append(candidates, logical)
		if abs, err := o.files.AbsPath(logical); err == nil {
			candidates = append(candidates, abs)
		}
	}

	owners, err := o.store.VideosReferencing(ctx, candidates...)
	if err != nil {
		logger.Log.Warn("Failed to check file references",
			zap.Error(err),
			zap.String("path", path),
		)
		return true
	}
	for _, v := range owners {
		if !except[v.ID] {
			return true
		}
	}
	return false
}

// generateThumbnail returns the logical path of a new thumbnail for the
// video at path, or nil when none could be made.
func (o *Offline) generateThumbnail(ctx context.Context, path string) *string {
	if o.inspector == nil {
		return nil
	}

	src := o.sourcePath(path)
	logical := o.files.NewName(files.AreaThumbnails, ".jpg")
	out, err := o.files.AbsPath(logical)
	if err == nil {
		err = o.files.EnsureArea(files.AreaThumbnails)
	}
	if err == nil {
		err = o.inspector.Thumbnail(ctx, src, out)
	}
	if err != nil {
		logger.Log.Warn("Thumbnail generation failed",
			zap.Error(err),
			zap.String("path", path),
		)
		return nil
	}
	return &logical
}

func (o *Offline) probeDuration(ctx context.Context, path string) *string {
	if o.inspector == nil {
		return nil
	}

	d, err := o.inspector.Duration(ctx, o.sourcePath(path))
	if err != nil {
		logger.Log.Warn("Duration probe failed",
			zap.Error(err),
			zap.String("path", path),
		)
		return nil
	}
	formatted := media.FormatDuration(d)
	return &formatted
}

// sourcePath resolves a managed path to disk and leaves external paths alone.
func (o *Offline) sourcePath(path string) string {
	if abs, err := o.files.AbsPath(path); err == nil {
		return abs
	}
	return path
}
