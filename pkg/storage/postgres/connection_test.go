package postgres

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitReplicaURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"single", "postgres://r1/db", []string{"postgres://r1/db"}},
		{
			"multiple with spaces",
			"postgres://r1/db, postgres://r2/db ,postgres://r3/db",
			[]string{"postgres://r1/db", "postgres://r2/db", "postgres://r3/db"},
		},
		{"trailing comma", "postgres://r1/db,", []string{"postgres://r1/db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitReplicaURLs(tt.input))
		})
	}
}

func TestReplica_RoundRobin(t *testing.T) {
	primary, _, err := sqlmock.New()
	require.NoError(t, err)
	defer primary.Close()
	r1, _, err := sqlmock.New()
	require.NoError(t, err)
	defer r1.Close()
	r2, _, err := sqlmock.New()
	require.NoError(t, err)
	defer r2.Close()

	cm := &ConnectionManager{primary: primary}

	t.Run("falls back to primary without replicas", func(t *testing.T) {
		assert.Same(t, primary, cm.Replica())
	})

	t.Run("alternates across replicas", func(t *testing.T) {
		cm.replicas = append(cm.replicas, r1, r2)

		seen := map[interface{}]int{}
		for i := 0; i < 4; i++ {
			seen[cm.Replica()]++
		}
		assert.Equal(t, 2, seen[r1])
		assert.Equal(t, 2, seen[r2])
	})

	assert.Same(t, primary, cm.Primary())
}
