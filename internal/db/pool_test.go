package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFromEmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "tracts", []string{"geoid", "name"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"tracts"}, []string{"geoid", "name", "geom"}).WillReturnResult(2)

	rows := [][]any{
		{"53033000100", "Census Tract 1", []byte{0x01}},
		{"53033000200", "Census Tract 2", []byte{0x02}},
	}
	n, err := CopyFrom(context.Background(), mock, "tracts", []string{"geoid", "name", "geom"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"tracts"}, []string{"geoid"}).WillReturnError(fmt.Errorf("connection reset"))

	_, err = CopyFrom(context.Background(), mock, "tracts", []string{"geoid"}, [][]any{{"53033000100"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO tracts")
	assert.NoError(t, mock.ExpectationsWereMet())
}
