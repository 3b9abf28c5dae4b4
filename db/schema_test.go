package db

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSchema(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS editor_drafts").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, InitSchema(database))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSchemaWrapsError(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	boom := errors.New("permission denied")
	mock.ExpectExec("CREATE TABLE").WillReturnError(boom)
	err = InitSchema(database)
	assert.ErrorIs(t, err, boom)
}
