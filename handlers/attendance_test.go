package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusretail/fixhub/models"
)

// unit square around the origin
const testFence = `{"coordinates":[{"lat":0,"lng":0},{"lat":0,"lng":1},{"lat":1,"lng":1},{"lat":1,"lng":0}]}`

func (e *testEnv) fenceBranch(t *testing.T) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Branch{}).
		Where("id = ?", e.branch).Update("geofence", testFence).Error)
}

func TestClockInGeofence(t *testing.T) {
	env := newTestEnv(t)
	env.fenceBranch(t)

	rec := env.do(t, "POST", "/api/v1/attendance/clock-in", env.techToken,
		map[string]float64{"lat": 10, "lng": 10})
	requireStatus(t, rec, http.StatusForbidden)

	rec = env.do(t, "POST", "/api/v1/attendance/clock-in", env.techToken,
		map[string]float64{"lat": 0.5, "lng": 0.5})
	requireStatus(t, rec, http.StatusCreated)
	record := decode[models.TechnicianAttendance](t, rec)
	assert.Equal(t, env.tech.ID, record.TechnicianID)
	assert.Nil(t, record.ClockOutAt)
}

func TestClockInOutPairing(t *testing.T) {
	env := newTestEnv(t)

	// No geofence on the branch: any position clocks in.
	rec := env.do(t, "POST", "/api/v1/attendance/clock-in", env.techToken,
		map[string]float64{"lat": 48.2, "lng": 16.4})
	requireStatus(t, rec, http.StatusCreated)

	// Clocking in twice without clocking out is a conflict.
	rec = env.do(t, "POST", "/api/v1/attendance/clock-in", env.techToken,
		map[string]float64{"lat": 48.2, "lng": 16.4})
	requireStatus(t, rec, http.StatusConflict)

	rec = env.do(t, "POST", "/api/v1/attendance/clock-out", env.techToken,
		map[string]float64{"lat": 48.3, "lng": 16.5})
	requireStatus(t, rec, http.StatusOK)
	record := decode[models.TechnicianAttendance](t, rec)
	require.NotNil(t, record.ClockOutAt)
	assert.Equal(t, 48.3, record.ClockOutLat)

	rec = env.do(t, "POST", "/api/v1/attendance/clock-out", env.techToken,
		map[string]float64{})
	requireStatus(t, rec, http.StatusConflict)

	// A fresh record can open once the previous one closed.
	rec = env.do(t, "POST", "/api/v1/attendance/clock-in", env.techToken,
		map[string]float64{"lat": 48.2, "lng": 16.4})
	requireStatus(t, rec, http.StatusCreated)
}

func TestClockInIsTechnicianOnly(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/v1/attendance/clock-in", env.branchMgrToken,
		map[string]float64{"lat": 0, "lng": 0})
	requireStatus(t, rec, http.StatusForbidden)
}
