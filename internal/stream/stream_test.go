package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReplaysLatest(t *testing.T) {
	s := New[int]()
	s.Publish(1)
	s.Publish(2)

	ch, cancel := s.Subscribe()
	defer cancel()

	require.Equal(t, 2, <-ch)
}

func TestSlowSubscriberSeesNewestValue(t *testing.T) {
	s := New[string]()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Publish("a")
	s.Publish("b")
	s.Publish("c")

	assert.Equal(t, "c", <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %q", v)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	s := New[int]()
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	s.Publish(5)
	v, ok := s.Latest()
	assert.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	s := New[int]()
	ch, _ := s.Subscribe()
	s.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}
