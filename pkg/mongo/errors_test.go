package mongo_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	drv "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/billable/pkg/mongo"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.False(t, mongo.IsNotFoundError(nil))
	assert.False(t, mongo.IsNotFoundError(errors.New("boom")))
	assert.True(t, mongo.IsNotFoundError(drv.ErrNoDocuments))
	assert.True(t, mongo.IsNotFoundError(fmt.Errorf("find: %w", drv.ErrNoDocuments)))
}

func TestIsDuplicateKeyError(t *testing.T) {
	t.Parallel()

	assert.False(t, mongo.IsDuplicateKeyError(nil))
	assert.False(t, mongo.IsDuplicateKeyError(errors.New("boom")))
	assert.True(t, mongo.IsDuplicateKeyError(drv.WriteException{
		WriteErrors: []drv.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}},
	}))
}
