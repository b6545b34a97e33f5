package awg

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUndoLog_RollbackRunsInReverse(t *testing.T) {
	log := newUndoLog()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		log.push("undo "+name, func() error {
			order = append(order, name)
			return nil
		})
	}

	errs := log.rollback()
	assert.Empty(t, errs)
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Zero(t, log.depth(), "rollback consumes the log")
}

func TestUndoLog_CommitDiscardsSteps(t *testing.T) {
	log := newUndoLog()

	ran := false
	log.push("never runs", func() error {
		ran = true
		return nil
	})
	log.commit()

	assert.Empty(t, log.rollback())
	assert.False(t, ran)
}

func TestUndoLog_RollbackIsBestEffort(t *testing.T) {
	log := newUndoLog()

	var order []string
	log.push("a", func() error {
		order = append(order, "a")
		return nil
	})
	log.push("b", func() error {
		order = append(order, "b")
		return fmt.Errorf("device went away")
	})
	log.push("c", func() error {
		order = append(order, "c")
		return nil
	})

	errs := log.rollback()
	require.Len(t, errs, 1, "the failing compensation is reported")
	assert.Equal(t, []string{"c", "b", "a"}, order, "later compensations still run")
}

func TestUndoLog_TokenIsUUIDv7(t *testing.T) {
	log := newUndoLog()
	parsed, err := uuid.Parse(log.Token())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	assert.NotEqual(t, log.Token(), newUndoLog().Token())
}
