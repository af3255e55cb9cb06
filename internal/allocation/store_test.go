// internal/allocation/store_test.go
package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCurrentReturnsCopy(t *testing.T) {
	store := NewStore(defaultSet())

	snapshot := store.Current()
	snapshot[0].Percentage = 99

	assert.Equal(t, defaultSet(), store.Current())
}

func TestStoreReplaceNotifiesSubscribers(t *testing.T) {
	store := NewStore(defaultSet())

	var got Set
	unsubscribe := store.Subscribe(func(set Set) { got = set })

	next := changedSet()
	store.Replace(next)

	require.Equal(t, next, got)
	assert.Equal(t, next, store.Current())

	unsubscribe()
	store.Replace(defaultSet())
	assert.Equal(t, next, got, "unsubscribed callback must not fire")
}
