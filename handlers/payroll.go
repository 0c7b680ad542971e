package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
)

// Payroll tuning. Allowance is paid per resolved ticket; the bonus kicks in
// once a technician clears bonusThreshold resolutions in one day.
var (
	allowancePerTicket = decimal.NewFromInt(150)
	bonusAmount        = decimal.NewFromInt(500)
	bonusThreshold     = 5
	standardDayHours   = 8.0
)

type runPayrollReq struct {
	Date string `json:"date"` // "2026-08-29"; defaults to yesterday
}

// RunPayroll computes the daily payroll for every technician who clocked in
// on the given date. Upserts on technician+date, so re-running after a
// correction is safe.
func RunPayroll(w http.ResponseWriter, r *http.Request) {
	var req runPayrollReq
	json.NewDecoder(r.Body).Decode(&req) // body optional
	if req.Date == "" {
		req.Date = time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)

	var techs []models.User
	if err := config.DB.
		Where("role = ? AND is_deleted = ? AND is_active = ?", models.RoleTechnician, false, true).
		Find(&techs).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var computed []models.PayrollLog
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		for _, tech := range techs {
			log, err := computeDay(tx, &tech, req.Date, dayStart, dayEnd)
			if err != nil {
				return err
			}
			if log == nil {
				continue // no attendance that day
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "technician_id"}, {Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"hours_worked", "tickets_resolved", "base_pay", "allowance", "bonus", "total", "updated_at",
				}),
			}).Create(log).Error; err != nil {
				return err
			}
			computed = append(computed, *log)
		}
		return nil
	})
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"date":      req.Date,
		"processed": len(computed),
		"logs":      computed,
	})
}

// computeDay builds one technician's payroll row for the day, or nil when
// there was no attendance.
func computeDay(tx *gorm.DB, tech *models.User, date string, dayStart, dayEnd time.Time) (*models.PayrollLog, error) {
	var records []models.TechnicianAttendance
	if err := tx.
		Where("technician_id = ? AND is_deleted = ?", tech.ID, false).
		Where("clock_in_at >= ? AND clock_in_at < ?", dayStart, dayEnd).
		Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var hours float64
	for _, rec := range records {
		end := dayEnd
		if rec.ClockOutAt != nil {
			end = *rec.ClockOutAt
		}
		hours += end.Sub(rec.ClockInAt).Hours()
	}
	if hours > 24 {
		hours = 24
	}

	var resolved int64
	if err := tx.Model(&models.MissionLog{}).
		Where("technician_id = ? AND action = ?", tech.ID, models.TicketResolved).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Count(&resolved).Error; err != nil {
		return nil, err
	}

	fraction := hours / standardDayHours
	if fraction > 1 {
		fraction = 1
	}
	basePay := decimal.NewFromFloat(tech.BaseDailyPay).Mul(decimal.NewFromFloat(fraction)).Round(2)
	allowance := allowancePerTicket.Mul(decimal.NewFromInt(resolved))
	bonus := decimal.Zero
	if int(resolved) >= bonusThreshold {
		bonus = bonusAmount
	}

	return &models.PayrollLog{
		TechnicianID:    tech.ID,
		Date:            date,
		HoursWorked:     hours,
		TicketsResolved: int(resolved),
		BasePay:         basePay,
		Allowance:       allowance,
		Bonus:           bonus,
		Total:           basePay.Add(allowance).Add(bonus),
	}, nil
}

// MyPayroll lists the caller's own payroll rows, newest first.
func MyPayroll(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var logs []models.PayrollLog
	if err := config.DB.
		Where("technician_id = ? AND is_deleted = ?", user.ID, false).
		Order("date DESC").Limit(62).
		Find(&logs).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(logs)
}
