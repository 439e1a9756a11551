package mode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/metrics"
	"github.com/ad-tracker/upload-scheduler-go/internal/preferences"
	"github.com/ad-tracker/upload-scheduler-go/internal/remote"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRequester struct {
	mock.Mock
}

func (m *mockRequester) Request(ctx context.Context, endpoint string, opts remote.RequestOptions) (json.RawMessage, error) {
	args := m.Called(endpoint, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return json.RawMessage(args.String(0)), args.Error(1)
}

// failingPrefs errors on every call.
type failingPrefs struct{}

func (failingPrefs) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (failingPrefs) Set(string, string) error         { return errors.New("disk gone") }
func (failingPrefs) Delete(string) error              { return errors.New("disk gone") }

var nativeOnline = Platform{Native: true, NetworkCapable: true}

func failovers(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.Failovers.Write(&m))
	return m.GetCounter().GetValue()
}

func offlineX(_ context.Context) (json.RawMessage, error) {
	return json.RawMessage(`"X"`), nil
}

func TestController_Detect(t *testing.T) {
	tests := []struct {
		name     string
		platform Platform
		pref     string
		want     Mode
	}{
		{name: "web platform is online", platform: Platform{NetworkCapable: true}, pref: PrefForcedOffline, want: Online},
		{name: "native without preference", platform: nativeOnline, want: Offline},
		{name: "native forced offline", platform: nativeOnline, pref: PrefForcedOffline, want: Offline},
		{name: "native auto offline", platform: nativeOnline, pref: PrefAutoOffline, want: Offline},
		{name: "native online preference", platform: nativeOnline, pref: PrefOnline, want: Online},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := preferences.NewMemory()
			if tt.pref != "" {
				require.NoError(t, prefs.Set(preferences.KeyOfflineMode, tt.pref))
			}
			c := NewController(new(mockRequester), prefs, tt.platform)
			assert.Equal(t, Detecting, c.Mode())

			got, err := c.Detect(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, c.Mode())
		})
	}
}

func TestController_Detect_PreferenceError(t *testing.T) {
	c := NewController(new(mockRequester), failingPrefs{}, nativeOnline)

	got, err := c.Detect(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Offline, got)
}

func TestController_Force(t *testing.T) {
	ctx := context.Background()
	prefs := preferences.NewMemory()
	c := NewController(new(mockRequester), prefs, nativeOnline)

	require.NoError(t, c.ForceOffline(ctx))
	assert.Equal(t, Offline, c.Mode())
	v, _, _ := prefs.Get(preferences.KeyOfflineMode)
	assert.Equal(t, PrefForcedOffline, v)

	require.NoError(t, c.ForceOnline(ctx))
	assert.Equal(t, Online, c.Mode())
	v, _, _ = prefs.Get(preferences.KeyOfflineMode)
	assert.Equal(t, PrefOnline, v)

	noNetwork := NewController(new(mockRequester), prefs, Platform{Native: true})
	require.NoError(t, noNetwork.ForceOffline(ctx))
	err := noNetwork.ForceOnline(ctx)
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
	assert.Equal(t, Offline, noNetwork.Mode())
}

func TestController_APIRequest_OfflineNeedsHandler(t *testing.T) {
	ctx := context.Background()
	r := new(mockRequester)
	c := NewController(r, preferences.NewMemory(), nativeOnline)
	require.NoError(t, c.ForceOffline(ctx))

	_, err := c.APIRequest(ctx, "/profiles", remote.RequestOptions{}, nil)
	assert.ErrorIs(t, err, ErrNoOfflineHandler)

	got, err := c.APIRequest(ctx, "/profiles", remote.RequestOptions{}, offlineX)
	require.NoError(t, err)
	assert.JSONEq(t, `"X"`, string(got))
	r.AssertNotCalled(t, "Request", mock.Anything, mock.Anything)
}

func TestController_APIRequest_Online(t *testing.T) {
	ctx := context.Background()
	r := new(mockRequester)
	r.On("Request", "/profiles", remote.RequestOptions{}).Return(`[]`, nil)
	c := NewController(r, preferences.NewMemory(), nativeOnline)
	require.NoError(t, c.ForceOnline(ctx))

	got, err := c.APIRequest(ctx, "/profiles", remote.RequestOptions{}, offlineX)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(got))
	assert.Equal(t, Online, c.Mode())
	r.AssertExpectations(t)
}

func TestController_APIRequest_Failover(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		handler      Handler
		wantFailover bool
	}{
		{
			name:         "network error with handler",
			err:          &remote.NetworkError{Endpoint: "/videos", Err: errors.New("connection refused")},
			handler:      offlineX,
			wantFailover: true,
		},
		{
			name:         "server error with handler",
			err:          &remote.HTTPError{Endpoint: "/videos", StatusCode: http.StatusServiceUnavailable},
			handler:      offlineX,
			wantFailover: true,
		},
		{
			name:    "network error without handler",
			err:     &remote.NetworkError{Endpoint: "/videos", Err: errors.New("connection refused")},
			handler: nil,
		},
		{
			name:    "client error is not a failover",
			err:     &remote.HTTPError{Endpoint: "/videos", StatusCode: http.StatusBadRequest},
			handler: offlineX,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			prefs := preferences.NewMemory()
			r := new(mockRequester)
			r.On("Request", "/videos", remote.RequestOptions{}).Return(nil, tt.err)

			c := NewController(r, prefs, nativeOnline)
			require.NoError(t, c.ForceOnline(ctx))

			var seen []Mode
			c.Subscribe(func(m Mode) { seen = append(seen, m) })
			before := failovers(t)

			got, err := c.APIRequest(ctx, "/videos", remote.RequestOptions{}, tt.handler)

			pref, _, _ := prefs.Get(preferences.KeyOfflineMode)
			if tt.wantFailover {
				require.NoError(t, err)
				assert.JSONEq(t, `"X"`, string(got))
				assert.Equal(t, Offline, c.Mode())
				assert.Equal(t, PrefAutoOffline, pref)
				assert.Equal(t, []Mode{Offline}, seen)
				assert.Equal(t, before+1, failovers(t))
			} else {
				assert.Same(t, tt.err, err)
				assert.Equal(t, Online, c.Mode())
				assert.Equal(t, PrefOnline, pref)
				assert.Empty(t, seen)
				assert.Equal(t, before, failovers(t))
			}
			r.AssertExpectations(t)
		})
	}
}

func TestController_CallerCancelIsNotFailover(t *testing.T) {
	tests := []struct {
		name   string
		cancel func() (context.Context, context.CancelFunc)
		cause  error
	}{
		{
			name:   "canceled",
			cancel: func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			cause:  context.Canceled,
		},
		{
			name: "deadline exceeded",
			cancel: func() (context.Context, context.CancelFunc) {
				return context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
			},
			cause: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := preferences.NewMemory()
			netErr := &remote.NetworkError{Endpoint: "/videos", Err: tt.cause}
			r := new(mockRequester)
			r.On("Request", "/videos", remote.RequestOptions{}).Return(nil, netErr)

			c := NewController(r, prefs, nativeOnline)
			require.NoError(t, c.ForceOnline(context.Background()))
			before := failovers(t)

			ctx, cancel := tt.cancel()
			cancel()

			handlerCalled := false
			_, err := c.APIRequest(ctx, "/videos", remote.RequestOptions{}, func(context.Context) (json.RawMessage, error) {
				handlerCalled = true
				return json.RawMessage(`"X"`), nil
			})

			assert.ErrorIs(t, err, tt.cause)
			assert.False(t, handlerCalled)
			assert.Equal(t, Online, c.Mode())
			pref, _, _ := prefs.Get(preferences.KeyOfflineMode)
			assert.Equal(t, PrefOnline, pref)
			assert.Equal(t, before, failovers(t))
		})
	}
}

func TestController_FailoverPersistError(t *testing.T) {
	ctx := context.Background()
	r := new(mockRequester)
	r.On("Request", "/videos", remote.RequestOptions{}).
		Return(nil, &remote.NetworkError{Endpoint: "/videos", Err: errors.New("timeout")})

	c := NewController(r, failingPrefs{}, Platform{NetworkCapable: true})
	_, err := c.Detect(ctx)
	require.NoError(t, err)

	got, err := c.APIRequest(ctx, "/videos", remote.RequestOptions{}, offlineX)
	require.NoError(t, err)
	assert.JSONEq(t, `"X"`, string(got))
	assert.Equal(t, Offline, c.Mode())
}

func TestController_RequestBeforeDetect(t *testing.T) {
	c := NewController(new(mockRequester), preferences.NewMemory(), nativeOnline)

	got, err := c.APIRequest(context.Background(), "/profiles", remote.RequestOptions{}, offlineX)
	require.NoError(t, err)
	assert.JSONEq(t, `"X"`, string(got))
	assert.Equal(t, Offline, c.Mode())
}

func TestController_Subscribe(t *testing.T) {
	ctx := context.Background()
	c := NewController(new(mockRequester), preferences.NewMemory(), nativeOnline)

	var mu sync.Mutex
	var seen []Mode
	unsubscribe := c.Subscribe(func(m Mode) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, m)
	})

	require.NoError(t, c.ForceOffline(ctx))
	require.NoError(t, c.ForceOffline(ctx))
	require.NoError(t, c.ForceOnline(ctx))
	unsubscribe()
	require.NoError(t, c.ForceOffline(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Mode{Offline, Online}, seen)
}

func TestIsFailoverError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "network", err: &remote.NetworkError{Err: errors.New("x")}, want: true},
		{name: "wrapped network", err: errors.Join(errors.New("ctx"), &remote.NetworkError{Err: errors.New("x")}), want: true},
		{name: "500", err: &remote.HTTPError{StatusCode: 500}, want: true},
		{name: "404", err: &remote.HTTPError{StatusCode: 404}, want: false},
		{name: "401", err: &remote.HTTPError{StatusCode: 401}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFailoverError(tt.err))
		})
	}
}
