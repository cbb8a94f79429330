package db

import (
	"testing"

	"github.com/diewo77/go-saas/auth"
	"github.com/diewo77/go-saas/gate"
	"github.com/diewo77/go-saas/internal/config"
	"github.com/diewo77/go-saas/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	log, _ := test.NewNullLogger()
	d, err := Open(config.DatabaseConfig{Driver: "sqlite", SQLitePath: "file:" + t.Name() + "?mode=memory&cache=shared"}, log)
	require.NoError(t, err)
	require.NoError(t, Migrate(d))
	return d
}

func TestSeedIdempotent(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, Seed(d))
	require.NoError(t, Seed(d))

	var users, orgs, members, clients, products, purchases int64
	d.Model(&models.User{}).Count(&users)
	d.Model(&models.Organization{}).Count(&orgs)
	d.Model(&models.Member{}).Count(&members)
	d.Model(&models.Client{}).Count(&clients)
	d.Model(&models.Product{}).Count(&products)
	d.Model(&models.Purchase{}).Count(&purchases)

	assert.EqualValues(t, 3, users)
	assert.EqualValues(t, 3, orgs)
	assert.EqualValues(t, 7, members)
	assert.EqualValues(t, 11, clients)
	assert.EqualValues(t, 9, products)
	assert.EqualValues(t, 6*4+3*2+2*1, purchases)
}

func TestSeed_FirstUserRolesPerOrganization(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, Seed(d))

	var john models.User
	require.NoError(t, d.Where("email = ?", "john@acme.com").First(&john).Error)
	assert.True(t, auth.CheckPassword(john.PasswordHash, SeedPassword))

	want := map[string]gate.Role{
		"acme-admin":   gate.RoleAdmin,
		"acme-member":  gate.RoleMember,
		"acme-billing": gate.RoleBilling,
	}
	for slug, role := range want {
		var m models.Member
		err := d.Joins("JOIN organizations ON organizations.id = members.organization_id").
			Where("organizations.slug = ? AND members.user_id = ?", slug, john.ID).
			First(&m).Error
		require.NoError(t, err, slug)
		assert.Equal(t, role, m.Role, slug)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := Open(config.DatabaseConfig{Driver: "mysql"}, log)
	assert.Error(t, err)
}
