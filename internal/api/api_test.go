package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Crazyka51/AudioCleaner/internal/media"
	"github.com/Crazyka51/AudioCleaner/internal/models"
	"github.com/Crazyka51/AudioCleaner/internal/session"
	"github.com/Crazyka51/AudioCleaner/internal/spectrogram"
	"github.com/Crazyka51/AudioCleaner/internal/testutil"
	"github.com/Crazyka51/AudioCleaner/internal/upload"
)

// testEnv wires the real session and upload managers to in-memory fakes.
type testEnv struct {
	e        *echo.Echo
	store    *testutil.MockStorage
	sessions *session.Manager
	uploads  *upload.Manager
	history  *testutil.MemoryHistory
	media    *testutil.FakeTranscoder
	handlers *Handlers
}

func newTestEnv(t *testing.T, mutate ...func(*Dependencies)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	uploadDir := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploadDir, 0755))

	store := testutil.NewMockStorageWithTempDir(uploadDir)
	hist := &testutil.MemoryHistory{}
	fakeMedia := &testutil.FakeTranscoder{}

	mgr, err := session.NewManager(fakeMedia, &testutil.FakeEnhancer{}, hist, session.Options{
		TempDir:     filepath.Join(dir, "work"),
		Spectrogram: spectrogram.Options{FFTSize: 256, HopLength: 128, MelBands: 32},
		Render:      spectrogram.RenderOptions{PanelWidth: 64, PanelHeight: 32},
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	formats := media.NewFormats(nil, nil)
	jobs := upload.NewManager(store, formats.Check, zap.NewNop())

	deps := &Dependencies{
		Store:           store,
		Sessions:        mgr,
		Uploads:         jobs,
		History:         hist,
		FFmpeg:          fakeMedia,
		Formats:         formats,
		AllowFileDelete: true,
		Version:         "test",
		Logger:          zap.NewNop(),
	}
	for _, fn := range mutate {
		fn(deps)
	}

	e := echo.New()
	SetupMiddleware(e, MiddlewareConfig{}, zap.NewNop())
	h := NewHandlers(deps)
	RegisterRoutes(e, h)
	RegisterWebSocketRoutes(e, h)

	return &testEnv{
		e:        e,
		store:    store,
		sessions: mgr,
		uploads:  jobs,
		history:  hist,
		media:    fakeMedia,
		handlers: h,
	}
}

func (env *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// startReadySession uploads a tone under name and waits for conversion.
func (env *testEnv) startReadySession(t *testing.T, name string) *models.CleanSession {
	t.Helper()
	info := env.store.AddFile("file-"+name, name, testutil.ToneWAV(8000, 1.0))

	rec := env.do(t, http.MethodPost, "/api/sessions", map[string]string{"fileId": info.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sess models.CleanSession
	decodeJSON(t, rec, &sess)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ready, err := env.sessions.Wait(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusReady, ready.Status, ready.Error)
	return ready
}

func (env *testEnv) waitComplete(t *testing.T, id string) *models.CleanSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done, err := env.sessions.Wait(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusComplete, done.Status, done.Error)
	return done
}

func requireAPIError(t *testing.T, err error, status int) *APIError {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	require.Equal(t, status, apiErr.Status)
	return apiErr
}
