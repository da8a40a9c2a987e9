package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRejectsMalformedDSN(t *testing.T) {
	store, err := New("://not-a-dsn")

	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "failed to parse database DSN")
}
