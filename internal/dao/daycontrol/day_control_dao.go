package daycontrol

import (
	"context"
	"errors"
	"fmt"
	"log"

	"marketsimulator/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotInitialized means the singleton row does not exist yet.
	ErrNotInitialized = errors.New("day control not initialized")
	// ErrVersionConflict means another writer committed since the row was read.
	ErrVersionConflict = errors.New("day control was modified concurrently")
)

// DayControlDAOInterface defines the contract for the day control store.
// Every mutation of simulation lifecycle state goes through it.
type DayControlDAOInterface interface {
	Get(ctx context.Context) (*models.DayControl, error)
	// Update writes next if the stored version still equals next.Version,
	// then bumps next.Version. When the event moves the day forward, the
	// prices and reports up to the new day are published in the same
	// transaction.
	Update(ctx context.Context, next *models.DayControl, event *models.DayEvent) error
	// Reset runs the destructive cascade and upserts defaults, all or nothing.
	Reset(ctx context.Context, defaults *models.DayControl, event *models.DayEvent) (*models.DayControl, error)
	EnsureSingleton(ctx context.Context, defaults *models.DayControl) (*models.DayControl, error)
	RecentEvents(ctx context.Context, limit int) ([]models.DayEvent, error)
}

// DayControlDAO handles database operations for the day control singleton
type DayControlDAO struct {
	db *gorm.DB
}

// NewDayControlDAO creates a new day control DAO instance
func NewDayControlDAO(db *gorm.DB) DayControlDAOInterface {
	return &DayControlDAO{
		db: db,
	}
}

// Get reads the singleton row
func (d *DayControlDAO) Get(ctx context.Context) (*models.DayControl, error) {
	var dc models.DayControl
	err := d.db.WithContext(ctx).First(&dc, models.DayControlID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day control: %w", err)
	}
	return &dc, nil
}

// Update performs a single optimistic update keyed by the singleton id
func (d *DayControlDAO) Update(ctx context.Context, next *models.DayControl, event *models.DayEvent) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.DayControl{}).
			Where("id = ? AND version = ?", models.DayControlID, next.Version).
			Updates(stateColumns(next, gorm.Expr("version + 1")))
		if result.Error != nil {
			return fmt.Errorf("failed to update day control: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		if event != nil && event.ToDay > event.FromDay {
			if err := publishThrough(tx, event.ToDay); err != nil {
				return err
			}
		}
		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("failed to record day event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	next.Version++
	return nil
}

type resetStep struct {
	name string
	run  func(tx *gorm.DB) error
}

// Reset clears trading history and returns the simulation to NotStarted.
// The steps run in order inside one transaction.
func (d *DayControlDAO) Reset(ctx context.Context, defaults *models.DayControl, event *models.DayEvent) (*models.DayControl, error) {
	global := &gorm.Session{AllowGlobalUpdate: true}
	steps := []resetStep{
		{"delete transactions", func(tx *gorm.DB) error {
			return tx.Session(global).Delete(&models.Transaction{}).Error
		}},
		{"delete holdings", func(tx *gorm.DB) error {
			return tx.Session(global).Delete(&models.PortfolioHolding{}).Error
		}},
		{"restore cash balances", func(tx *gorm.DB) error {
			return tx.Session(global).Model(&models.Participant{}).
				Update("cash_balance", gorm.Expr("starting_balance")).Error
		}},
		{"deactivate stock prices", func(tx *gorm.DB) error {
			return tx.Session(global).Model(&models.StockPrice{}).Update("is_active", false).Error
		}},
		{"hide financial reports", func(tx *gorm.DB) error {
			return tx.Session(global).Model(&models.FinancialReport{}).Update("is_available", false).Error
		}},
		{"reset day control", func(tx *gorm.DB) error {
			defaults.ID = models.DayControlID
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(resettableColumns),
			}).Create(defaults).Error
		}},
		{"record reset event", func(tx *gorm.DB) error {
			if event == nil {
				return nil
			}
			return tx.Create(event).Error
		}},
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range steps {
			if err := step.run(tx); err != nil {
				return fmt.Errorf("reset step %q failed: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Simulation reset committed (%d steps)", len(steps))
	return defaults, nil
}

// EnsureSingleton creates the day control row if it is absent
func (d *DayControlDAO) EnsureSingleton(ctx context.Context, defaults *models.DayControl) (*models.DayControl, error) {
	var dc models.DayControl
	seed := *defaults
	seed.ID = models.DayControlID
	err := d.db.WithContext(ctx).
		Where(models.DayControl{ID: models.DayControlID}).
		Attrs(seed).
		FirstOrCreate(&dc).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure day control: %w", err)
	}
	return &dc, nil
}

// RecentEvents returns the newest audit events first
func (d *DayControlDAO) RecentEvents(ctx context.Context, limit int) ([]models.DayEvent, error) {
	var events []models.DayEvent
	query := d.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to get day events: %w", err)
	}
	return events, nil
}

var resettableColumns = []string{
	"current_day", "total_days", "is_simulation_active", "is_paused", "remaining_ms",
	"paused_at", "last_day_change", "simulation_start_date", "auto_advance_enabled",
	"auto_advance_interval_ms", "version", "updated_at",
}

func stateColumns(dc *models.DayControl, version interface{}) map[string]interface{} {
	return map[string]interface{}{
		"current_day":              dc.CurrentDay,
		"total_days":               dc.TotalDays,
		"is_simulation_active":     dc.IsSimulationActive,
		"is_paused":                dc.IsPaused,
		"remaining_ms":             dc.RemainingMs,
		"paused_at":                dc.PausedAt,
		"last_day_change":          dc.LastDayChange,
		"simulation_start_date":    dc.SimulationStartDate,
		"auto_advance_enabled":     dc.AutoAdvanceEnabled,
		"auto_advance_interval_ms": dc.AutoAdvanceIntervalMs,
		"version":                  version,
	}
}

// publishThrough makes every price and report up to day visible
func publishThrough(tx *gorm.DB, day int) error {
	if err := tx.Model(&models.StockPrice{}).
		Where("day_number <= ? AND is_active = ?", day, false).
		Update("is_active", true).Error; err != nil {
		return fmt.Errorf("failed to activate stock prices: %w", err)
	}
	if err := tx.Model(&models.FinancialReport{}).
		Where("day_number <= ? AND is_available = ?", day, false).
		Update("is_available", true).Error; err != nil {
		return fmt.Errorf("failed to publish financial reports: %w", err)
	}
	return nil
}
