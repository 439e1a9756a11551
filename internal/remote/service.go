package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/internal/service"
)

var _ service.Service = (*Service)(nil)

// Service implements service.Service against the REST API.
type Service struct {
	r Requester
}

// NewService creates a Service that sends every call through r.
func NewService(r Requester) *Service {
	return &Service{r: r}
}

// Requester returns the underlying requester.
func (s *Service) Requester() Requester {
	return s.r
}

// do sends one call and decodes the response into T. A null response
// decodes to the zero value.
func do[T any](ctx context.Context, r Requester, endpoint string, opts RequestOptions) (T, error) {
	var out T
	raw, err := r.Request(ctx, endpoint, opts)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return out, nil
}

// getOrNil maps a 404 onto a nil result.
func getOrNil[T any](ctx context.Context, r Requester, endpoint string) (*T, error) {
	v, err := do[*T](ctx, r, endpoint, RequestOptions{})
	if IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

func nonNil[T any](items []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = make([]T, 0)
	}
	return items, nil
}

func profilePath(id int64, suffix string) string {
	return "/profiles/" + strconv.FormatInt(id, 10) + suffix
}

func videoPath(id int64, suffix string) string {
	return "/videos/" + strconv.FormatInt(id, 10) + suffix
}

func (s *Service) GetProfiles(ctx context.Context) ([]*models.Profile, error) {
	return nonNil(do[[]*models.Profile](ctx, s.r, "/profiles", RequestOptions{}))
}

func (s *Service) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	return getOrNil[models.Profile](ctx, s.r, profilePath(id, ""))
}

func (s *Service) CreateProfile(ctx context.Context, in *models.ProfileInput) (*models.Profile, error) {
	return do[*models.Profile](ctx, s.r, "/profiles", RequestOptions{Method: http.MethodPost, Body: in})
}

func (s *Service) UpdateProfile(ctx context.Context, id int64, patch *models.ProfilePatch) (*models.Profile, error) {
	return do[*models.Profile](ctx, s.r, profilePath(id, ""), RequestOptions{Method: http.MethodPatch, Body: patch})
}

func (s *Service) DeleteProfile(ctx context.Context, id int64) error {
	_, err := s.r.Request(ctx, profilePath(id, ""), RequestOptions{Method: http.MethodDelete})
	return err
}

func (s *Service) IncrementProfilePushCount(ctx context.Context, id int64) (*models.Profile, error) {
	return do[*models.Profile](ctx, s.r, profilePath(id, "/push"), RequestOptions{Method: http.MethodPost})
}

func (s *Service) ResetProfilePushCount(ctx context.Context, id int64) (*models.Profile, error) {
	return do[*models.Profile](ctx, s.r, profilePath(id, "/push/reset"), RequestOptions{Method: http.MethodPost})
}

func (s *Service) GetVideos(ctx context.Context) ([]*models.Video, error) {
	return s.listVideos(ctx, nil)
}

func (s *Service) GetVideosByProfile(ctx context.Context, profileID int64) ([]*models.Video, error) {
	return s.listVideos(ctx, url.Values{"profileId": {strconv.FormatInt(profileID, 10)}})
}

func (s *Service) GetVideosByStatus(ctx context.Context, status models.VideoStatus) ([]*models.Video, error) {
	return s.listVideos(ctx, url.Values{"status": {string(status)}})
}

// GetVideosByDate sends the full timestamp so the server can take the day
// boundaries in the caller's offset.
func (s *Service) GetVideosByDate(ctx context.Context, date time.Time) ([]*models.Video, error) {
	return s.listVideos(ctx, url.Values{"date": {date.Format(time.RFC3339)}})
}

func (s *Service) listVideos(ctx context.Context, query url.Values) ([]*models.Video, error) {
	return nonNil(do[[]*models.Video](ctx, s.r, "/videos", RequestOptions{Query: query}))
}

func (s *Service) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	return getOrNil[models.Video](ctx, s.r, videoPath(id, ""))
}

func (s *Service) CreateVideo(ctx context.Context, in *models.VideoInput) (*models.Video, error) {
	return do[*models.Video](ctx, s.r, "/videos", RequestOptions{Method: http.MethodPost, Body: in})
}

func (s *Service) UpdateVideo(ctx context.Context, id int64, patch *models.VideoPatch) (*models.Video, error) {
	return do[*models.Video](ctx, s.r, videoPath(id, ""), RequestOptions{Method: http.MethodPatch, Body: patch})
}

func (s *Service) DeleteVideo(ctx context.Context, id int64) error {
	_, err := s.r.Request(ctx, videoPath(id, ""), RequestOptions{Method: http.MethodDelete})
	return err
}

// UploadedRequest is the body of POST /videos/:id/uploaded.
type UploadedRequest struct {
	YoutubeLink string `json:"youtubeLink"`
}

// RescheduleRequest is the body of POST /videos/:id/reschedule.
type RescheduleRequest struct {
	ScheduleDate time.Time `json:"scheduleDate"`
}

// MissedRequest is the body of POST /videos/missed. A zero Now means the
// server's current time.
type MissedRequest struct {
	Now time.Time `json:"now,omitzero"`
}

func (s *Service) MarkVideoAsUploaded(ctx context.Context, id int64, link string) (*models.Video, error) {
	return do[*models.Video](ctx, s.r, videoPath(id, "/uploaded"), RequestOptions{
		Method: http.MethodPost,
		Body:   UploadedRequest{YoutubeLink: link},
	})
}

func (s *Service) RevertVideoUpload(ctx context.Context, id int64) (*models.Video, error) {
	return do[*models.Video](ctx, s.r, videoPath(id, "/revert"), RequestOptions{Method: http.MethodPost})
}

func (s *Service) RescheduleVideo(ctx context.Context, id int64, when time.Time) (*models.Video, error) {
	return do[*models.Video](ctx, s.r, videoPath(id, "/reschedule"), RequestOptions{
		Method: http.MethodPost,
		Body:   RescheduleRequest{ScheduleDate: when},
	})
}

func (s *Service) MarkMissedSchedules(ctx context.Context, now time.Time) ([]*models.Video, error) {
	return nonNil(do[[]*models.Video](ctx, s.r, "/videos/missed", RequestOptions{
		Method: http.MethodPost,
		Body:   MissedRequest{Now: now},
	}))
}

// UploadVideoFile streams the local file as the multipart field "file".
func (s *Service) UploadVideoFile(ctx context.Context, videoID int64, path string) (*models.Video, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	v, err := do[*models.Video](ctx, s.r, videoPath(videoID, "/file"), RequestOptions{
		Method:      http.MethodPost,
		RawBody:     pr,
		ContentType: mw.FormDataContentType(),
	})
	// unblocks the writer if the request never drained the pipe
	pr.Close()
	return v, err
}

func (s *Service) ExportData(ctx context.Context) (*models.ExportData, error) {
	return do[*models.ExportData](ctx, s.r, "/export", RequestOptions{})
}

func (s *Service) ImportData(ctx context.Context, data *models.ExportData) (*models.ImportResult, error) {
	if err := service.CheckExport(data); err != nil {
		return nil, err
	}
	return do[*models.ImportResult](ctx, s.r, "/import", RequestOptions{Method: http.MethodPost, Body: data})
}
