package models_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/mosaicwallet/tx-engine/models"
	"github.com/stretchr/testify/require"
)

func Test_Stream(t *testing.T) {

	t.Run("unsubscribe before subscribing", func(t *testing.T) {
		p := models.NewPublisher[models.FinalizedTransaction]()
		s := models.NewSubscription(func(models.FinalizedTransaction) error { return nil })

		require.NotPanics(t, func() {
			p.Unsubscribe(s)
		})
	})

	t.Run("subscribe, publish, unsubscribe, publish", func(t *testing.T) {
		p := models.NewPublisher[models.FinalizedTransaction]()

		var count1, count2 uint64
		s1 := models.NewSubscription(func(models.FinalizedTransaction) error {
			atomic.AddUint64(&count1, 1)
			return nil
		})
		s2 := models.NewSubscription(func(models.FinalizedTransaction) error {
			atomic.AddUint64(&count2, 1)
			return nil
		})

		p.Subscribe(s1)
		p.Subscribe(s2)

		p.Publish(models.FinalizedTransaction{})

		require.Equal(t, uint64(1), atomic.LoadUint64(&count1))
		require.Equal(t, uint64(1), atomic.LoadUint64(&count2))

		p.Unsubscribe(s1)

		p.Publish(models.FinalizedTransaction{})

		require.Equal(t, uint64(1), atomic.LoadUint64(&count1))
		require.Equal(t, uint64(2), atomic.LoadUint64(&count2))
	})

	t.Run("subscriber failure is isolated", func(t *testing.T) {
		p := models.NewPublisher[models.FinalizedTransaction]()

		failing := models.NewSubscription(func(models.FinalizedTransaction) error {
			return fmt.Errorf("subscriber broke")
		})
		var count uint64
		healthy := models.NewSubscription(func(models.FinalizedTransaction) error {
			atomic.AddUint64(&count, 1)
			return nil
		})

		p.Subscribe(failing)
		p.Subscribe(healthy)

		p.Publish(models.FinalizedTransaction{})

		require.Equal(t, uint64(1), atomic.LoadUint64(&count))
		select {
		case err := <-failing.Error():
			require.EqualError(t, err, "subscriber broke")
		default:
			t.Fatal("expected subscriber error")
		}
	})
}
