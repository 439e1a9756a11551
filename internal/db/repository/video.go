package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db"
	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
)

// VideoRepository defines operations for managing videos.
type VideoRepository interface {
	// Create inserts a video and sets its ID.
	Create(ctx context.Context, video *models.Video) error

	// GetByID retrieves a single video by ID.
	GetByID(ctx context.Context, id int64) (*models.Video, error)

	// List retrieves all videos, latest schedule first.
	List(ctx context.Context) ([]*models.Video, error)

	// ListByProfile retrieves a profile's videos, latest schedule first.
	ListByProfile(ctx context.Context, profileID int64) ([]*models.Video, error)

	// ListByStatus retrieves videos in one status, latest schedule first.
	ListByStatus(ctx context.Context, status models.VideoStatus) ([]*models.Video, error)

	// ListScheduledBetween retrieves videos scheduled in [from, to), earliest first.
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]*models.Video, error)

	// ListByStatusBefore retrieves videos in one status scheduled before t, earliest first.
	ListByStatusBefore(ctx context.Context, status models.VideoStatus, t time.Time) ([]*models.Video, error)

	// ListByPath retrieves videos whose file, original file or thumbnail is path.
	ListByPath(ctx context.Context, path string) ([]*models.Video, error)

	// Update writes every column of an existing video.
	Update(ctx context.Context, video *models.Video) error

	// Delete deletes a video by ID.
	Delete(ctx context.Context, id int64) error
}

type videoRepository struct {
	q DBTX
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(q DBTX) VideoRepository {
	return &videoRepository{q: q}
}

const videoColumns = `id, profile_id, title, description, file_path, original_file_path, file_size,
	original_file_size, thumbnail_path, duration, schedule_date, status, uploaded_date, youtube_link,
	is_file_uploaded, is_placeholder`

func (r *videoRepository) Create(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (profile_id, title, description, file_path, original_file_path, file_size,
			original_file_size, thumbnail_path, duration, schedule_date, status, uploaded_date, youtube_link,
			is_file_uploaded, is_placeholder)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.q.ExecContext(ctx, query,
		video.ProfileID,
		video.Title,
		video.Description,
		nullString(video.FilePath),
		nullString(video.OriginalFilePath),
		nullInt64(video.FileSize),
		nullInt64(video.OriginalFileSize),
		nullString(video.ThumbnailPath),
		nullString(video.Duration),
		utc(video.ScheduleDate),
		string(video.Status),
		nullTime(video.UploadedDate),
		nullString(video.YoutubeLink),
		video.IsFileUploaded,
		video.IsPlaceholder,
	)
	if err != nil {
		return db.WrapError(err, "create video")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return db.WrapError(err, "create video")
	}
	video.ID = id
	video.ScheduleDate = utc(video.ScheduleDate)
	video.UploadedDate = timePtr(nullTime(video.UploadedDate))

	return nil
}

func (r *videoRepository) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = ?`

	video, err := scanVideo(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get video by id")
	}

	return video, nil
}

func (r *videoRepository) List(ctx context.Context) ([]*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY schedule_date DESC, id DESC`

	return r.query(ctx, "list videos", query)
}

func (r *videoRepository) ListByProfile(ctx context.Context, profileID int64) ([]*models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE profile_id = ?
		ORDER BY schedule_date DESC, id DESC
	`

	return r.query(ctx, "list videos by profile", query, profileID)
}

func (r *videoRepository) ListByStatus(ctx context.Context, status models.VideoStatus) ([]*models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE status = ?
		ORDER BY schedule_date DESC, id DESC
	`

	return r.query(ctx, "list videos by status", query, string(status))
}

func (r *videoRepository) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]*models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE schedule_date >= ? AND schedule_date < ?
		ORDER BY schedule_date ASC, id ASC
	`

	return r.query(ctx, "list videos by date", query, utc(from), utc(to))
}

func (r *videoRepository) ListByStatusBefore(ctx context.Context, status models.VideoStatus, t time.Time) ([]*models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE status = ? AND schedule_date < ?
		ORDER BY schedule_date ASC, id ASC
	`

	return r.query(ctx, "list videos by status before", query, string(status), utc(t))
}

func (r *videoRepository) ListByPath(ctx context.Context, path string) ([]*models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE file_path = ? OR original_file_path = ? OR thumbnail_path = ?
		ORDER BY id ASC
	`

	return r.query(ctx, "list videos by path", query, path, path, path)
}

func (r *videoRepository) Update(ctx context.Context, video *models.Video) error {
	query := `
		UPDATE videos
		SET profile_id = ?, title = ?, description = ?, file_path = ?, original_file_path = ?,
			file_size = ?, original_file_size = ?, thumbnail_path = ?, duration = ?, schedule_date = ?,
			status = ?, uploaded_date = ?, youtube_link = ?, is_file_uploaded = ?, is_placeholder = ?
		WHERE id = ?
	`

	res, err := r.q.ExecContext(ctx, query,
		video.ProfileID,
		video.Title,
		video.Description,
		nullString(video.FilePath),
		nullString(video.OriginalFilePath),
		nullInt64(video.FileSize),
		nullInt64(video.OriginalFileSize),
		nullString(video.ThumbnailPath),
		nullString(video.Duration),
		utc(video.ScheduleDate),
		string(video.Status),
		nullTime(video.UploadedDate),
		nullString(video.YoutubeLink),
		video.IsFileUploaded,
		video.IsPlaceholder,
		video.ID,
	)
	if err != nil {
		return db.WrapError(err, "update video")
	}

	return db.WrapError(requireAffected(res), "update video")
}

func (r *videoRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return db.WrapError(err, "delete video")
	}

	return db.WrapError(requireAffected(res), "delete video")
}

func (r *videoRepository) query(ctx context.Context, op, query string, args ...any) ([]*models.Video, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.WrapError(err, op)
	}
	defer rows.Close()

	return scanVideos(rows)
}

func scanVideo(s scanner) (*models.Video, error) {
	var (
		video            models.Video
		status           string
		filePath         sql.NullString
		originalFilePath sql.NullString
		fileSize         sql.NullInt64
		originalFileSize sql.NullInt64
		thumbnailPath    sql.NullString
		duration         sql.NullString
		uploadedDate     sql.NullTime
		youtubeLink      sql.NullString
	)

	err := s.Scan(
		&video.ID,
		&video.ProfileID,
		&video.Title,
		&video.Description,
		&filePath,
		&originalFilePath,
		&fileSize,
		&originalFileSize,
		&thumbnailPath,
		&duration,
		&video.ScheduleDate,
		&status,
		&uploadedDate,
		&youtubeLink,
		&video.IsFileUploaded,
		&video.IsPlaceholder,
	)
	if err != nil {
		return nil, err
	}

	video.ScheduleDate = video.ScheduleDate.UTC()
	video.Status = models.VideoStatus(status)
	video.FilePath = stringPtr(filePath)
	video.OriginalFilePath = stringPtr(originalFilePath)
	video.FileSize = int64Ptr(fileSize)
	video.OriginalFileSize = int64Ptr(originalFileSize)
	video.ThumbnailPath = stringPtr(thumbnailPath)
	video.Duration = stringPtr(duration)
	video.UploadedDate = timePtr(uploadedDate)
	video.YoutubeLink = stringPtr(youtubeLink)

	return &video, nil
}

func scanVideos(rows *sql.Rows) ([]*models.Video, error) {
	videos := make([]*models.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, db.WrapError(err, "scan video")
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate videos")
	}

	return videos, nil
}
