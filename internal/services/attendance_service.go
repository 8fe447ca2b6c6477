// Package services – AttendanceService
//
// AttendanceService is the read side of the attendance log: paginated record
// listing for the employee history endpoint.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/repo"
	"github.com/tbourn/go-attendance-bot/internal/sysutil"
)

// AttendanceService lists persisted attendance records.
type AttendanceService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewAttendanceService returns an AttendanceService bound to db.
func NewAttendanceService(db *gorm.DB) *AttendanceService {
	return &AttendanceService{DB: db}
}

// ListPage returns a page of the user's records, newest first, and the
// user's total record count.
func (s *AttendanceService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.AttendanceRecord, int64, error) {
	tr := otel.Tracer("services/AttendanceService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.fingerprint", sysutil.UserFingerprint(userID)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, 0, ErrEmptyUserID
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountAttendance(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.AttendanceRecord{}, 0, nil
	}

	items, err := repo.ListAttendancePage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}
