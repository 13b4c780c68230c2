package webhooks

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryLogStore_AddGetUpdate(t *testing.T) {
	store := NewDeliveryLogStore(10)

	store.Add(DeliveryLog{ID: "d-1", WebhookID: "w-1", Status: DeliveryStatusPending})
	log, ok := store.Get("d-1")
	require.True(t, ok)
	assert.Equal(t, DeliveryStatusPending, log.Status)

	log.Status = DeliveryStatusSuccess
	stored, _ := store.Get("d-1")
	assert.Equal(t, DeliveryStatusPending, stored.Status, "callers hold copies")

	store.Update(log)
	stored, _ = store.Get("d-1")
	assert.Equal(t, DeliveryStatusSuccess, stored.Status)

	store.Update(DeliveryLog{ID: "evicted"})
	_, ok = store.Get("evicted")
	assert.False(t, ok)
}

func TestDeliveryLogStore_DefaultCapacity(t *testing.T) {
	assert.Equal(t, 1000, NewDeliveryLogStore(0).maxLogs)
	assert.Equal(t, 1000, NewDeliveryLogStore(-5).maxLogs)
}

func TestDeliveryLogStore_GetByWebhookNewestFirst(t *testing.T) {
	store := NewDeliveryLogStore(10)
	base := time.Now()

	store.Add(DeliveryLog{ID: "old", WebhookID: "w-1", CreatedAt: base.Add(-2 * time.Minute)})
	store.Add(DeliveryLog{ID: "new", WebhookID: "w-1", CreatedAt: base})
	store.Add(DeliveryLog{ID: "mid", WebhookID: "w-1", CreatedAt: base.Add(-time.Minute)})
	store.Add(DeliveryLog{ID: "other", WebhookID: "w-2", CreatedAt: base})

	logs := store.GetByWebhook("w-1", 0)
	require.Len(t, logs, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{logs[0].ID, logs[1].ID, logs[2].ID})

	limited := store.GetByWebhook("w-1", 2)
	assert.Len(t, limited, 2)

	assert.NotNil(t, store.GetByWebhook("w-9", 10))
	assert.Empty(t, store.GetByWebhook("w-9", 10))
}

func TestDeliveryLogStore_GetByEvent(t *testing.T) {
	store := NewDeliveryLogStore(10)
	store.Add(DeliveryLog{ID: "d-1", WebhookID: "w-1", EventID: "e-1"})
	store.Add(DeliveryLog{ID: "d-2", WebhookID: "w-2", EventID: "e-1"})
	store.Add(DeliveryLog{ID: "d-3", WebhookID: "w-1", EventID: "e-2"})

	assert.Len(t, store.GetByEvent("e-1"), 2)
	assert.Len(t, store.GetByEvent("e-2"), 1)
	assert.Empty(t, store.GetByEvent("e-3"))
}

func TestDeliveryLogStore_GetPendingRetries(t *testing.T) {
	store := NewDeliveryLogStore(10)
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	store.Add(DeliveryLog{ID: "due", Status: DeliveryStatusRetrying, NextRetryAt: &past})
	store.Add(DeliveryLog{ID: "exact", Status: DeliveryStatusRetrying, NextRetryAt: &now})
	store.Add(DeliveryLog{ID: "later", Status: DeliveryStatusRetrying, NextRetryAt: &future})
	store.Add(DeliveryLog{ID: "unscheduled", Status: DeliveryStatusRetrying})
	store.Add(DeliveryLog{ID: "done", Status: DeliveryStatusSuccess, NextRetryAt: &past})

	pending := store.GetPendingRetries(now)
	ids := make([]string, 0, len(pending))
	for _, log := range pending {
		ids = append(ids, log.ID)
	}
	assert.ElementsMatch(t, []string{"due", "exact"}, ids)
}

func TestDeliveryLogStore_GetStats(t *testing.T) {
	store := NewDeliveryLogStore(10)
	store.Add(DeliveryLog{ID: "1", WebhookID: "w-1", Status: DeliveryStatusSuccess, Duration: 100 * time.Millisecond})
	store.Add(DeliveryLog{ID: "2", WebhookID: "w-1", Status: DeliveryStatusSuccess, Duration: 300 * time.Millisecond})
	store.Add(DeliveryLog{ID: "3", WebhookID: "w-1", Status: DeliveryStatusFailed, Duration: time.Second})
	store.Add(DeliveryLog{ID: "4", WebhookID: "w-1", Status: DeliveryStatusRetrying})
	store.Add(DeliveryLog{ID: "5", WebhookID: "w-2", Status: DeliveryStatusSuccess})

	stats := store.GetStats("w-1")
	assert.Equal(t, "w-1", stats.WebhookID)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Retrying)
	assert.Equal(t, 0.5, stats.SuccessRate)
	assert.Equal(t, 200*time.Millisecond, stats.AverageDuration)

	empty := store.GetStats("w-9")
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.SuccessRate)
}

func TestDeliveryLogStore_EvictsOldestTenth(t *testing.T) {
	store := NewDeliveryLogStore(10)
	base := time.Now()
	for i := 0; i < 10; i++ {
		store.Add(DeliveryLog{ID: fmt.Sprintf("d-%d", i), WebhookID: "w-1", CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	store.Add(DeliveryLog{ID: "d-10", WebhookID: "w-1", CreatedAt: base.Add(time.Minute)})

	_, ok := store.Get("d-0")
	assert.False(t, ok)
	_, ok = store.Get("d-1")
	assert.True(t, ok)
	assert.Len(t, store.GetByWebhook("w-1", 0), 10)
}

func TestDeliveryLogStore_ConcurrentAccess(t *testing.T) {
	store := NewDeliveryLogStore(100)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				id := fmt.Sprintf("d-%d-%d", n, j)
				store.Add(DeliveryLog{ID: id, WebhookID: "w-1", CreatedAt: time.Now()})
				store.Update(DeliveryLog{ID: id, WebhookID: "w-1", Status: DeliveryStatusSuccess})
				store.GetStats("w-1")
				store.GetByWebhook("w-1", 5)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, len(store.GetByWebhook("w-1", 0)), 100)
}
