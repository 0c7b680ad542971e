package rbac

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stratusretail/fixhub/models"
)

type scopeFixture struct {
	db *gorm.DB

	brandA, brandZ     uuid.UUID
	sector1            uuid.UUID
	area1, area2       uuid.UUID
	branch1, branch2   uuid.UUID
	branch3, branchZ   uuid.UUID
	tech1, tech3       uuid.UUID
}

// newScopeFixture builds two brands: brand A holds sector 1 with areas 1
// (branches 1, 2) and 2 (branch 3); brand Z holds one branch of its own.
// Each branch gets one ticket; techs at branches 1 and 3 get payroll rows.
func newScopeFixture(t *testing.T) *scopeFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Brand{}, &models.Sector{}, &models.Area{}, &models.Branch{},
		&models.User{}, &models.Ticket{}, &models.PayrollLog{},
	))

	f := &scopeFixture{db: db}

	brandA := models.Brand{Name: "Brand A", Code: "BR-A"}
	brandZ := models.Brand{Name: "Brand Z", Code: "BR-Z"}
	require.NoError(t, db.Create(&brandA).Error)
	require.NoError(t, db.Create(&brandZ).Error)
	f.brandA, f.brandZ = brandA.ID, brandZ.ID

	sector1 := models.Sector{Name: "North", Code: "SEC-1", BrandID: brandA.ID}
	sectorZ := models.Sector{Name: "ZNorth", Code: "SEC-Z", BrandID: brandZ.ID}
	require.NoError(t, db.Create(&sector1).Error)
	require.NoError(t, db.Create(&sectorZ).Error)
	f.sector1 = sector1.ID

	area1 := models.Area{Name: "Downtown", Code: "AR-1", SectorID: sector1.ID}
	area2 := models.Area{Name: "Uptown", Code: "AR-2", SectorID: sector1.ID}
	areaZ := models.Area{Name: "ZDowntown", Code: "AR-Z", SectorID: sectorZ.ID}
	require.NoError(t, db.Create(&area1).Error)
	require.NoError(t, db.Create(&area2).Error)
	require.NoError(t, db.Create(&areaZ).Error)
	f.area1, f.area2 = area1.ID, area2.ID

	branches := []*models.Branch{
		{Name: "Main St", Code: "BN-1", AreaID: area1.ID},
		{Name: "Oak Ave", Code: "BN-2", AreaID: area1.ID},
		{Name: "Hilltop", Code: "BN-3", AreaID: area2.ID},
		{Name: "Z Plaza", Code: "BN-Z", AreaID: areaZ.ID},
	}
	for _, b := range branches {
		require.NoError(t, db.Create(b).Error)
	}
	f.branch1, f.branch2 = branches[0].ID, branches[1].ID
	f.branch3, f.branchZ = branches[2].ID, branches[3].ID

	reporter := models.User{
		Name: "Reporter", Email: "reporter@fixhub.test", Phone: "1000",
		PasswordHash: "x", Role: models.RoleBranchManager, BranchID: &f.branch1,
	}
	require.NoError(t, db.Create(&reporter).Error)

	for i, branchID := range []uuid.UUID{f.branch1, f.branch2, f.branch3, f.branchZ} {
		ticket := models.Ticket{
			Title:     "Fault " + string(rune('A'+i)),
			Status:    models.TicketOpen,
			Priority:  models.PriorityNormal,
			BranchID:  branchID,
			CreatedBy: reporter.ID,
		}
		require.NoError(t, db.Create(&ticket).Error)
	}

	tech1 := models.User{
		Name: "Tech One", Email: "t1@fixhub.test", Phone: "2001",
		PasswordHash: "x", Role: models.RoleTechnician, BranchID: &f.branch1,
	}
	tech3 := models.User{
		Name: "Tech Three", Email: "t3@fixhub.test", Phone: "2003",
		PasswordHash: "x", Role: models.RoleTechnician, BranchID: &f.branch3,
	}
	require.NoError(t, db.Create(&tech1).Error)
	require.NoError(t, db.Create(&tech3).Error)
	f.tech1, f.tech3 = tech1.ID, tech3.ID

	for _, techID := range []uuid.UUID{tech1.ID, tech3.ID} {
		log := models.PayrollLog{TechnicianID: techID, Date: "2026-08-01", HoursWorked: 8}
		require.NoError(t, db.Create(&log).Error)
	}

	return f
}

func (f *scopeFixture) ticketCount(t *testing.T, user *models.User) int64 {
	t.Helper()
	var n int64
	q := ApplyScope(f.db.Model(&models.Ticket{}), user, "tickets")
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestApplyScopeGlobalRolesSeeEverything(t *testing.T) {
	f := newScopeFixture(t)

	// Hierarchy ids on a global profile must not narrow anything.
	for _, role := range []string{models.RoleAdmin, models.RoleMaintManager, models.RoleDeputyMaintMgr} {
		user := &models.User{Role: role, BranchID: &f.branch1, BrandID: &f.brandZ}
		assert.EqualValues(t, 4, f.ticketCount(t, user), "role %s", role)
	}
}

func TestApplyScopeMostSpecificWins(t *testing.T) {
	f := newScopeFixture(t)

	tests := []struct {
		name string
		user models.User
		want int64
	}{
		{
			name: "branch manager sees own branch only",
			user: models.User{Role: models.RoleBranchManager, BranchID: &f.branch1},
			want: 1,
		},
		{
			name: "area manager sees both branches of the area",
			user: models.User{Role: models.RoleAreaManager, AreaID: &f.area1},
			want: 2,
		},
		{
			name: "sector manager sees all three brand A branches",
			user: models.User{Role: models.RoleSectorManager, SectorID: &f.sector1},
			want: 3,
		},
		{
			name: "brand manager excludes the other brand",
			user: models.User{Role: models.RoleBrandManager, BrandID: &f.brandA},
			want: 3,
		},
		{
			name: "branch id beats a wider area id on the same profile",
			user: models.User{Role: models.RoleAreaManager, AreaID: &f.area1, BranchID: &f.branch2},
			want: 1,
		},
		{
			name: "area id beats a wider brand id",
			user: models.User{Role: models.RoleBrandManager, BrandID: &f.brandA, AreaID: &f.area2},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualValues(t, tt.want, f.ticketCount(t, &tt.user))
		})
	}
}

func TestApplyScopeJoinPath(t *testing.T) {
	f := newScopeFixture(t)

	// payroll_logs has no branch column; scoping must travel through the
	// technician's user row.
	areaMgr := &models.User{Role: models.RoleAreaManager, AreaID: &f.area1}
	var logs []models.PayrollLog
	q := ApplyScope(f.db.Model(&models.PayrollLog{}), areaMgr, "payroll_logs")
	require.NoError(t, q.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, f.tech1, logs[0].TechnicianID)

	branchMgr3 := &models.User{Role: models.RoleBranchManager, BranchID: &f.branch3}
	logs = nil
	q = ApplyScope(f.db.Model(&models.PayrollLog{}), branchMgr3, "payroll_logs")
	require.NoError(t, q.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, f.tech3, logs[0].TechnicianID)
}

func TestApplyScopeHierarchyLevels(t *testing.T) {
	f := newScopeFixture(t)

	count := func(user *models.User, model interface{}, table string) int64 {
		var n int64
		q := ApplyScope(f.db.Model(model), user, table)
		require.NoError(t, q.Count(&n).Error)
		return n
	}

	// Listing the upper levels is narrowed the same way row tables are: a
	// scoped user sees only the nodes on the path through their subtree.
	branchMgr := &models.User{Role: models.RoleBranchManager, BranchID: &f.branch1}
	assert.EqualValues(t, 1, count(branchMgr, &models.Area{}, "areas"))
	assert.EqualValues(t, 1, count(branchMgr, &models.Brand{}, "brands"))

	areaMgr := &models.User{Role: models.RoleAreaManager, AreaID: &f.area2}
	assert.EqualValues(t, 1, count(areaMgr, &models.Brand{}, "brands"))
	assert.EqualValues(t, 1, count(areaMgr, &models.Sector{}, "sectors"))

	sectorMgr := &models.User{Role: models.RoleSectorManager, SectorID: &f.sector1}
	assert.EqualValues(t, 2, count(sectorMgr, &models.Area{}, "areas"))

	brandMgr := &models.User{Role: models.RoleBrandManager, BrandID: &f.brandA}
	assert.EqualValues(t, 1, count(brandMgr, &models.Sector{}, "sectors"))
	assert.EqualValues(t, 2, count(brandMgr, &models.Area{}, "areas"))
}

func TestApplyScopeUnknownTablePassesThrough(t *testing.T) {
	f := newScopeFixture(t)

	branchMgr := &models.User{Role: models.RoleBranchManager, BranchID: &f.branch1}
	var n int64
	q := ApplyScope(f.db.Model(&models.Brand{}), branchMgr, "mystery_table")
	require.NoError(t, q.Count(&n).Error)
	assert.EqualValues(t, 2, n)
}
