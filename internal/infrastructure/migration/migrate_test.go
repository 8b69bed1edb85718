package migration

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"hammer/internal/app/server/config"
)

// MockMigrator: мок для интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Down() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		DB: config.DB{DatabaseURI: "postgres://test", Migrations: "migrations"},
	}
}

func engineFor(m Migrator) MigrationEngine {
	return func(source, db string) (Migrator, error) {
		return m, nil
	}
}

func TestMigration_Up_Success(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Close").Return(nil, nil)

	var gotSource, gotDB string
	engine := func(source, db string) (Migrator, error) {
		gotSource, gotDB = source, db
		return mockM, nil
	}

	err := NewMigration(testConfig(), engine).Up()

	assert.NoError(t, err)
	assert.Equal(t, "file://migrations", gotSource)
	assert.Equal(t, "postgres://test", gotDB)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_NoChange(t *testing.T) {
	mockM := new(MockMigrator)

	// ErrNoChange не должна считаться ошибкой в методе Up()
	mockM.On("Up").Return(migrate.ErrNoChange)
	mockM.On("Close").Return(nil, nil)

	err := NewMigration(testConfig(), engineFor(mockM)).Up()

	assert.NoError(t, err)
}

func TestMigration_Up_Failure(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(errors.New("bad sql"))
	mockM.On("Close").Return(nil, nil)

	err := NewMigration(testConfig(), engineFor(mockM)).Up()

	assert.ErrorContains(t, err, "bad sql")
}

func TestMigration_CloseErrorsAreReported(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Close").Return(errors.New("source closed"), errors.New("db closed"))

	err := NewMigration(testConfig(), engineFor(mockM)).Up()

	assert.ErrorContains(t, err, "source closed")
	assert.ErrorContains(t, err, "db closed")
}

func TestMigration_Up_EngineError(t *testing.T) {
	// Ошибка на этапе создания мигратора (например, неверный драйвер)
	engine := func(source, db string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	err := NewMigration(testConfig(), engine).Up()

	assert.Error(t, err)
	assert.Equal(t, "engine crash", err.Error())
}

func TestMigration_Down(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Down").Return(migrate.ErrNoChange)
	mockM.On("Close").Return(nil, nil)

	assert.NoError(t, NewMigration(testConfig(), engineFor(mockM)).Down())
	mockM.AssertExpectations(t)
}

func TestMigration_Version_EmptyDatabase(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Version").Return(uint(0), false, migrate.ErrNilVersion)
	mockM.On("Close").Return(nil, nil)

	version, dirty, err := NewMigration(testConfig(), engineFor(mockM)).Version()

	assert.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}
