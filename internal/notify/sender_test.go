package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("content-type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(2*time.Second, 0)
	err := s.Notify(context.Background(), srv.URL, Event{
		JobID:     "1",
		State:     "completed",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(2*time.Second, 5)
	err := s.Notify(context.Background(), srv.URL, Event{JobID: "2", State: "failed"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(3))
}

func TestNotifyExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSender(500*time.Millisecond, 1)
	err := s.Notify(context.Background(), srv.URL, Event{JobID: "3", State: "completed"})
	require.Error(t, err)
}

func TestNotifyContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(5*time.Second, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := s.Notify(ctx, srv.URL, Event{JobID: "4", State: "timed_out"})
	require.Error(t, err)
}
