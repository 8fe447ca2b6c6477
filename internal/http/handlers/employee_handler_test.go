package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/employee"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/repo"
	"github.com/tbourn/go-attendance-bot/internal/risk"
	"github.com/tbourn/go-attendance-bot/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGetEmployeeState(t *testing.T) {
	at := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	emp := fakeEmployees{
		state: employee.State{Status: employee.StatusIn, TodayEntries: 1, CanExit: true},
		pending: &employee.Pending{
			Action: domain.ActionSalida, At: at, ExpiresAt: at.Add(10 * time.Minute),
		},
	}
	rk := fakeRisk{rec: risk.Record{WarningCount: 2}}
	r := newTestRouter(Services{Employees: emp, Risk: rk})

	w := get(r, "/employees/u1/state", nil)
	assertCode(t, w, http.StatusOK, "")

	var got EmployeeStateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got.UserID != "u1" || got.State.Status != employee.StatusIn || got.State.TodayEntries != 1 {
		t.Fatalf("unexpected state %+v", got)
	}
	if got.Pending == nil || got.Pending.Action != domain.ActionSalida {
		t.Fatalf("expected pending salida, got %+v", got.Pending)
	}
	if got.Risk.WarningCount != 2 {
		t.Fatalf("risk warning count = %d; want 2", got.Risk.WarningCount)
	}

	// No pending action -> field omitted.
	r = newTestRouter(Services{Employees: fakeEmployees{}, Risk: rk})
	w = get(r, "/employees/u1/state", nil)
	assertCode(t, w, http.StatusOK, "")
	if strings.Contains(w.Body.String(), `"pending"`) {
		t.Fatalf("pending must be omitted, got %s", w.Body.String())
	}

	w = get(r, "/employees/"+strings.Repeat("x", maxUserIDLen+1)+"/state", nil)
	assertCode(t, w, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestListAttendance_PaginationAndETag(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := &domain.AttendanceRecord{
			UserID: "u1", ActionType: domain.ActionEntrada, ValidationStatus: domain.StatusValid,
			Latitude: 19.4327, Longitude: -99.1332, RecordedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.InsertAttendance(ctx, db, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	r := newTestRouter(Services{Attendance: services.NewAttendanceService(db)})

	w := get(r, "/employees/u1/attendance?page=1&page_size=2", nil)
	assertCode(t, w, http.StatusOK, "")
	etag := w.Header().Get("ETag")
	want := fmt.Sprintf(`W/"attendance:u1:3:%d"`, base.Add(2*time.Hour).Unix())
	if etag != want {
		t.Fatalf("ETag = %q; want %q", etag, want)
	}

	var got ListAttendanceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(got.Records) != 2 || got.Pagination.Total != 3 || got.Pagination.TotalPages != 2 || !got.Pagination.HasNext {
		t.Fatalf("unexpected page %+v", got.Pagination)
	}
	if !got.Records[0].RecordedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expected newest first, got %v", got.Records[0].RecordedAt)
	}

	w = get(r, "/employees/u1/attendance", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	// Another user has no records.
	w = get(r, "/employees/u2/attendance", nil)
	assertCode(t, w, http.StatusOK, "")
	if w.Header().Get("ETag") != `W/"attendance:u2:0:0"` || !strings.Contains(w.Body.String(), `"records":[]`) {
		t.Fatalf("unexpected empty listing: %s %s", w.Header().Get("ETag"), w.Body.String())
	}
}

type failingAttendance struct{}

func (failingAttendance) ListPage(context.Context, string, int, int) ([]domain.AttendanceRecord, int64, error) {
	return nil, 0, errBoom
}

func TestListAttendance_ServiceError(t *testing.T) {
	r := newTestRouter(Services{Attendance: failingAttendance{}})
	w := get(r, "/employees/u1/attendance", nil)
	assertCode(t, w, http.StatusInternalServerError, ErrCodeListFailed)
	if w.Header().Get("ETag") != "" {
		t.Fatalf("no ETag without a database")
	}
}

func TestListZones(t *testing.T) {
	zones := []geofence.Zone{
		{ID: "hq", Name: "Oficina Central", Lat: 19.432608, Lng: -99.133209, RadiusMeters: 150},
		{ID: "wh", Name: "Almacén", Lat: 19.5047, Lng: -99.1469, RadiusMeters: 250},
	}
	r := newTestRouter(Services{Zones: fakeZones{zones: zones}})

	w := get(r, "/zones", nil)
	assertCode(t, w, http.StatusOK, "")
	var got ZonesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(got.Zones) != 2 || got.Zones[0].ID != "hq" || got.Zones[1].RadiusMeters != 250 {
		t.Fatalf("unexpected zones %+v", got.Zones)
	}
}
