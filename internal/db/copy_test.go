package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifier(t *testing.T) {
	assert.Equal(t, pgx.Identifier{"zip_county_crosswalk"}, Identifier("zip_county_crosswalk"))
	assert.Equal(t, pgx.Identifier{"warehouse", "zip_county_crosswalk"}, Identifier("warehouse.zip_county_crosswalk"))
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "zip_county_crosswalk", []string{"zip", "county_fips"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zip_county_crosswalk"}, []string{"zip", "county_fips"}).WillReturnResult(2)

	rows := [][]any{{"90001", "06037"}, {"96161", "06061"}}
	n, err := CopyFrom(context.Background(), mock, "zip_county_crosswalk", []string{"zip", "county_fips"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"warehouse", "zip_county_crosswalk"}, []string{"zip"}).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "warehouse.zip_county_crosswalk", []string{"zip"}, [][]any{{"90001"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zip_county_crosswalk"}, []string{"zip"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "zip_county_crosswalk", []string{"zip"}, [][]any{{"90001"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO zip_county_crosswalk")
	assert.NoError(t, mock.ExpectationsWereMet())
}
