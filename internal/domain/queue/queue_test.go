package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInbox_DrainRunsInOrder(t *testing.T) {
	q := NewInbox()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		q.Push(func() { got = append(got, i) })
	}
	q.Push(nil)

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, 0, q.Len())
}

func TestInbox_TasksPushedWhileDrainingWait(t *testing.T) {
	q := NewInbox()
	ran := 0
	q.Push(func() {
		ran++
		q.Push(func() { ran++ })
	})

	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, q.Len())

	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, 2, ran)
}

func TestInbox_ConcurrentPush(t *testing.T) {
	q := NewInbox()
	var wg sync.WaitGroup
	total := 0
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(func() { total++ })
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, q.Drain())
	assert.Equal(t, 800, total)
}
