package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/dfryer1193/photolog/api"
	"github.com/dfryer1193/photolog/photos/application"
	"github.com/dfryer1193/photolog/photos/domain"
	"github.com/dfryer1193/photolog/photos/persistence"
	"github.com/dfryer1193/photolog/shared/db/sqlite"
	"github.com/gin-gonic/gin"
)

func setupTestRouter(t *testing.T, kind domain.PayloadKind) *gin.Engine {
	t.Helper()
	database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "photos.db"),
		PayloadKind: kind,
	})
	if err := database.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	svc := application.NewPhotoService(persistence.NewPhotoRepository(database.DB(), kind), nil)
	return newRouter(svc, kind)
}

func newRouter(catalog PhotoCatalog, kind domain.PayloadKind) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewApi(router, catalog, kind)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestPhotosApi_CreateListGet(t *testing.T) {
	router := setupTestRouter(t, domain.PayloadReference)

	w := doRequest(t, router, http.MethodPost, "/photos/v1/", api.PhotoProto{
		Reference:   "content://media/7",
		Description: "Low *tide*",
		CreatedAt:   "2026-03-01T10:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	created := decode[api.Created](t, w)
	if created.ID <= 0 {
		t.Fatalf("created id = %d, want positive", created.ID)
	}

	w = doRequest(t, router, http.MethodGet, "/photos/v1/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	list := decode[[]api.Photo](t, w)
	if len(list) != 1 {
		t.Fatalf("list length = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != created.ID || got.Reference != "content://media/7" {
		t.Errorf("listed photo = %+v", got)
	}
	if got.DisplayTitle != "Untitled Photo" || got.Title != "" {
		t.Errorf("titles = %q / %q", got.Title, got.DisplayTitle)
	}
	if got.CreatedAt != "2026-03-01T10:00:00Z" {
		t.Errorf("created_at = %q", got.CreatedAt)
	}
	if !strings.Contains(got.DescriptionHTML, "<em>tide</em>") {
		t.Errorf("description_html = %q", got.DescriptionHTML)
	}

	w = doRequest(t, router, http.MethodGet, got.PayloadURL, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("payload status = %d", w.Code)
	}
	if w.Body.String() != "content://media/7" {
		t.Errorf("payload = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("payload content type = %q", ct)
	}
}

func TestPhotosApi_UpdateAndDelete(t *testing.T) {
	router := setupTestRouter(t, domain.PayloadReference)

	w := doRequest(t, router, http.MethodPost, "/photos/v1/", api.PhotoProto{Reference: "content://media/1"})
	created := decode[api.Created](t, w)
	path := "/photos/v1/" + strconv.FormatInt(created.ID, 10)

	w = doRequest(t, router, http.MethodPut, path, api.PhotoEdit{Title: "Pier"})
	if w.Code != http.StatusOK || decode[api.RowsAffected](t, w).RowsAffected != 1 {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, router, http.MethodGet, path, nil)
	if got := decode[api.Photo](t, w); got.Title != "Pier" {
		t.Errorf("title after update = %q", got.Title)
	}

	w = doRequest(t, router, http.MethodDelete, path, nil)
	if decode[api.RowsAffected](t, w).RowsAffected != 1 {
		t.Errorf("first delete body = %s", w.Body.String())
	}
	w = doRequest(t, router, http.MethodDelete, path, nil)
	if w.Code != http.StatusOK || decode[api.RowsAffected](t, w).RowsAffected != 0 {
		t.Errorf("second delete = %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, router, http.MethodGet, path, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}

	w = doRequest(t, router, http.MethodPut, path, api.PhotoEdit{Title: "Gone"})
	if w.Code != http.StatusOK || decode[api.RowsAffected](t, w).RowsAffected != 0 {
		t.Errorf("update missing = %d %s", w.Code, w.Body.String())
	}
}

func TestPhotosApi_DeleteAll(t *testing.T) {
	router := setupTestRouter(t, domain.PayloadReference)

	for _, ref := range []string{"content://a", "content://b", "content://c"} {
		doRequest(t, router, http.MethodPost, "/photos/v1/", api.PhotoProto{Reference: ref})
	}

	w := doRequest(t, router, http.MethodDelete, "/photos/v1/", nil)
	if got := decode[api.RowsAffected](t, w).RowsAffected; got != 3 {
		t.Errorf("rows_affected = %d, want 3", got)
	}

	w = doRequest(t, router, http.MethodGet, "/photos/v1/", nil)
	if list := decode[[]api.Photo](t, w); len(list) != 0 {
		t.Errorf("list after delete all = %d photos", len(list))
	}
}

func TestPhotosApi_BlobPayload(t *testing.T) {
	router := setupTestRouter(t, domain.PayloadBlob)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	w := doRequest(t, router, http.MethodPost, "/photos/v1/", api.PhotoProto{Image: png, Title: "Scan"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	created := decode[api.Created](t, w)

	w = doRequest(t, router, http.MethodGet, "/photos/v1/"+strconv.FormatInt(created.ID, 10), nil)
	if got := decode[api.Photo](t, w); got.Reference != "" {
		t.Errorf("blob photo exposes reference %q", got.Reference)
	}

	w = doRequest(t, router, http.MethodGet, "/photos/v1/"+strconv.FormatInt(created.ID, 10)+"/payload", nil)
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
	if !bytes.Equal(w.Body.Bytes(), png) {
		t.Errorf("payload = %v, want %v", w.Body.Bytes(), png)
	}
}

func TestPhotosApi_BadRequests(t *testing.T) {
	router := setupTestRouter(t, domain.PayloadReference)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "empty reference", method: http.MethodPost, path: "/photos/v1/", body: api.PhotoProto{Title: "nothing"}},
		{name: "bad created_at", method: http.MethodPost, path: "/photos/v1/", body: api.PhotoProto{Reference: "x", CreatedAt: "yesterday"}},
		{name: "malformed body", method: http.MethodPost, path: "/photos/v1/", body: "not an object"},
		{name: "non numeric id", method: http.MethodGet, path: "/photos/v1/abc", body: nil},
		{name: "zero id", method: http.MethodDelete, path: "/photos/v1/0", body: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, tt.method, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

type stubCatalog struct {
	err error
}

func (s *stubCatalog) AddPhoto(context.Context, *domain.Photo) (int64, error) { return 0, s.err }
func (s *stubCatalog) EditPhoto(context.Context, int64, string, string) (bool, error) {
	return false, s.err
}
func (s *stubCatalog) RemovePhoto(context.Context, int64) (bool, error) { return false, s.err }
func (s *stubCatalog) ClearCatalog(context.Context) (int64, error)      { return 0, s.err }
func (s *stubCatalog) ListPhotos(context.Context) ([]domain.Photo, error) {
	return nil, s.err
}
func (s *stubCatalog) GetPhoto(context.Context, int64) (domain.Photo, error) {
	return domain.Photo{}, s.err
}
func (s *stubCatalog) Present(p domain.Photo) (application.PhotoView, error) {
	return application.PhotoView{Photo: p}, nil
}

func TestPhotosApi_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: domain.NewValidationError("insert photo", "bad"), want: http.StatusBadRequest},
		{name: "not found", err: domain.Wrap(domain.KindNotFound, "get photo", "missing", nil), want: http.StatusNotFound},
		{name: "constraint", err: domain.Wrap(domain.KindStorageConstraint, "insert photo", "dup", errors.New("UNIQUE")), want: http.StatusConflict},
		{name: "unavailable", err: domain.Wrap(domain.KindStorageUnavailable, "list photos", "down", errors.New("closed")), want: http.StatusServiceUnavailable},
		{name: "unclassified", err: errors.New("disk on fire"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&stubCatalog{err: tt.err}, domain.PayloadReference)

			w := doRequest(t, router, http.MethodGet, "/photos/v1/", nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if body := decode[api.Error](t, w); body.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestStatusFor_Unwrapped(t *testing.T) {
	err := errors.Join(errors.New("context"), domain.ErrStorageUnavailable)
	if got := statusFor(err); got != http.StatusServiceUnavailable {
		t.Errorf("statusFor = %d, want 503", got)
	}
}
