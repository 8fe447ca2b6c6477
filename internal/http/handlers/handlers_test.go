package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/employee"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/http/middleware"
	"github.com/tbourn/go-attendance-bot/internal/risk"
	"github.com/tbourn/go-attendance-bot/internal/services"
)

//
// Fakes
//

type convCall struct {
	userID, displayID, text string
	reading                 domain.LocationReading
}

type fakeConv struct {
	mu    sync.Mutex
	calls []convCall
	reply services.Reply
	err   error
}

func (f *fakeConv) HandleText(_ context.Context, userID, displayID, text string) (services.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, convCall{userID: userID, displayID: displayID, text: text})
	if f.err != nil {
		return services.Reply{}, f.err
	}
	r := f.reply
	if r.Text == "" {
		r.Text = fmt.Sprintf("reply #%d", len(f.calls))
	}
	return r, nil
}

func (f *fakeConv) HandleLocation(_ context.Context, userID, displayID string, rd domain.LocationReading) (services.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, convCall{userID: userID, displayID: displayID, reading: rd})
	if f.err != nil {
		return services.Reply{}, f.err
	}
	if _, _, ok := rd.Coordinates(); !ok {
		v := services.Verdict{
			Status:  domain.StatusInvalid,
			Reasons: []domain.Reason{{Code: domain.ReasonMissingCoordinates, Message: "sin coordenadas"}},
		}
		return services.Reply{Text: "Comparte tu ubicación actual.", Command: services.CommandLocation, Verdict: &v}, nil
	}
	v := services.Verdict{Status: domain.StatusValid, Accepted: true}
	return services.Reply{Text: "Entrada registrada.", Command: services.CommandLocation, Verdict: &v}, nil
}

func (f *fakeConv) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeReceipts struct {
	mu      sync.Mutex
	byKey   map[string]domain.EventReceipt
	lookErr error
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{byKey: map[string]domain.EventReceipt{}}
}

func (f *fakeReceipts) Lookup(_ context.Context, userID, key string) (*domain.EventReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookErr != nil {
		return nil, f.lookErr
	}
	r, ok := f.byKey[userID+"|"+key]
	if !ok {
		return nil, services.ErrReceiptNotFound
	}
	return &r, nil
}

func (f *fakeReceipts) Save(_ context.Context, userID, key, kind, reply, payload string, status int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := userID + "|" + key
	if _, ok := f.byKey[k]; ok {
		return services.ErrDuplicateReceipt
	}
	f.byKey[k] = domain.EventReceipt{
		ID: uuid.NewString(), UserID: userID, Key: key, Kind: kind,
		Reply: reply, Payload: payload, Status: status,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return nil
}

type fakeEmployees struct {
	state   employee.State
	pending *employee.Pending
}

func (f fakeEmployees) State(context.Context, string) employee.State { return f.state }
func (f fakeEmployees) Pending(string) (employee.Pending, bool) {
	if f.pending == nil {
		return employee.Pending{}, false
	}
	return *f.pending, true
}

type fakeRisk struct{ rec risk.Record }

func (f fakeRisk) Snapshot(string) risk.Record { return f.rec }

type fakeZones struct{ zones []geofence.Zone }

func (f fakeZones) Zones() []geofence.Zone { return f.zones }

//
// Router
//

func newTestRouter(s Services) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Identity())
	r.Use(middleware.EventKey(middleware.EventKeyOptions{}, nil))

	h := New(s)
	r.POST("/events/text", h.PostTextEvent)
	r.POST("/events/location", h.PostLocationEvent)
	r.GET("/employees/:id/state", h.GetEmployeeState)
	r.GET("/employees/:id/attendance", h.ListAttendance)
	r.GET("/zones", h.ListZones)
	return r
}

func postJSON(r http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func assertCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body %s)", w.Code, status, w.Body.String())
	}
	if code != "" && !strings.Contains(w.Body.String(), `"code":"`+code+`"`) {
		t.Fatalf("expected code %q in body %s", code, w.Body.String())
	}
}

// errBoom is a non-sentinel service failure.
var errBoom = errors.New("boom")
