package httpapi

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-bot/internal/config"
	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/employee"
	"github.com/tbourn/go-attendance-bot/internal/fraud"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/help"
	"github.com/tbourn/go-attendance-bot/internal/kv"
	"github.com/tbourn/go-attendance-bot/internal/observability"
	"github.com/tbourn/go-attendance-bot/internal/repo"
	"github.com/tbourn/go-attendance-bot/internal/risk"
	"github.com/tbourn/go-attendance-bot/internal/services"
)

// Deps are the process resources the application services are built on.
type Deps struct {
	DB *gorm.DB
	// Zones are matched in order. Empty uses geofence.DefaultZones.
	Zones []geofence.Zone
	// Help topics for "ayuda <tema>". Empty uses help.DefaultTopics.
	Help []help.Topic
	// Events receives every verdict; nil disables publishing.
	Events services.VerdictPublisher
	Log    zerolog.Logger
}

// App is the wired service graph shared by the router and the background
// sweeper.
type App struct {
	Fence        *geofence.Fence
	Tracker      *employee.Tracker
	Risk         *risk.Manager
	Validation   *services.ValidationService
	Conversation *services.ConversationService
	Receipts     *services.ReceiptService
	Attendance   *services.AttendanceService
	Sweeper      *services.Sweeper
}

// NewApp builds the service graph from cfg. All per-user state lives in
// in-memory stores; attendance records and event receipts go to d.DB.
func NewApp(d Deps, cfg config.Config) (*App, error) {
	zones := d.Zones
	if len(zones) == 0 {
		zones = geofence.DefaultZones()
	}
	fence, err := geofence.New(zones)
	if err != nil {
		return nil, fmt.Errorf("geofence: %w", err)
	}

	topics := d.Help
	if len(topics) == 0 {
		topics = help.DefaultTopics()
	}

	store := services.NewGuardedStore(repo.AttendanceStore{DB: d.DB}, cfg.Store.Timeout, cfg.Store.Retries,
		d.Log.With().Str("component", "record_store").Logger())

	a := cfg.Attendance
	tracker := employee.NewTracker(store,
		kv.NewMemory[employee.Session](),
		kv.NewMemory[employee.CachedState](),
		employee.Policy{
			WorkdayStartHour: a.WorkdayStartHour,
			WorkdayEndHour:   a.WorkdayEndHour,
			MaxDailyEntries:  a.MaxDailyEntries,
			MinActionGap:     a.MinActionGap,
			MaxWorkingHours:  a.MaxWorkingHours,
			MissingExitGrace: a.MissingExitGrace,
			PendingTTL:       a.PendingTTL,
			StateCacheTTL:    a.StateCacheTTL,
			Location:         a.Location,
		})
	tracker.Log = d.Log.With().Str("component", "employee").Logger()
	tracker.OnExpire = func(string, domain.ActionType) { observability.ObservePendingExpired() }

	riskMgr := risk.NewManager(kv.NewMemory[risk.Record](), risk.Policy{
		WarningLimit:  cfg.Fraud.WarningLimit,
		BlockDuration: cfg.Fraud.BlockDuration,
	})
	detector := fraud.NewDetector(kv.NewMemory[[]fraud.HistoryEntry]())

	validation := services.NewValidationService(fence, detector, riskMgr, tracker, store)
	validation.Log = d.Log.With().Str("component", "validation").Logger()
	if d.Events != nil {
		validation.Events = d.Events
	}
	if cfg.Fraud.MaxReadingAge > 0 {
		validation.MaxReadingAge = cfg.Fraud.MaxReadingAge
	}
	if cfg.Fraud.MaxAccuracyMeters > 0 {
		validation.MaxAccuracyMeters = cfg.Fraud.MaxAccuracyMeters
	}

	conversation := services.NewConversationService(validation, help.New(topics))
	conversation.Log = d.Log.With().Str("component", "conversation").Logger()

	receipts := services.NewReceiptService(d.DB, cfg.ReceiptTTL)

	return &App{
		Fence:        fence,
		Tracker:      tracker,
		Risk:         riskMgr,
		Validation:   validation,
		Conversation: conversation,
		Receipts:     receipts,
		Attendance:   services.NewAttendanceService(d.DB),
		Sweeper: &services.Sweeper{
			Tracker:  tracker,
			Receipts: receipts,
			Interval: a.SweepInterval,
			Log:      d.Log.With().Str("component", "sweeper").Logger(),
		},
	}, nil
}
