package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasksphere/sphere-client/internal/dto"
	apierrors "github.com/tasksphere/sphere-client/internal/errors"
	"github.com/tasksphere/sphere-client/internal/store"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *store.Store, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(st.Teardown)

	return NewClient(srv.URL, st), st, srv
}

func TestRequestAttachesBearer(t *testing.T) {
	var gotAuth string
	client, st, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	require.NoError(t, st.SetTokens("access-1", "refresh-1"))

	_, err := client.Request(context.Background(), http.MethodGet, "/profile", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-1", gotAuth)
}

func TestRequestStringBodyPassthrough(t *testing.T) {
	var gotBody string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{}`))
	}))

	_, err := client.Request(context.Background(), http.MethodPost, "/echo", `{"pre":"serialised"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pre":"serialised"}`, gotBody)
}

func TestRefreshOn403RetriesOnce(t *testing.T) {
	var taskCalls, refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/7", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&taskCalls, 1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"needsRefresh":true}`))
			return
		}
		assert.Equal(t, "Bearer access-2", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "name": "updated"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		var body dto.RefreshRequest
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "refresh-1", body.RefreshToken)
		json.NewEncoder(w).Encode(map[string]string{"token": "access-2", "refreshToken": "refresh-2"})
	})

	client, st, _ := newTestClient(t, mux)
	require.NoError(t, st.SetTokens("access-1", "refresh-1"))

	raw, err := client.Request(context.Background(), http.MethodPut, "/tasks/7", map[string]string{"name": "updated"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "updated")
	assert.EqualValues(t, 2, atomic.LoadInt32(&taskCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))

	// Storage now holds the new pair.
	access, refresh := st.Tokens()
	assert.Equal(t, "access-2", access)
	assert.Equal(t, "refresh-2", refresh)
}

func TestSecond403SurfacesForbidden(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/9", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"needsRefresh":true}`))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		json.NewEncoder(w).Encode(map[string]string{"token": "access-2", "refreshToken": "refresh-2"})
	})

	client, st, _ := newTestClient(t, mux)
	require.NoError(t, st.SetTokens("access-1", "refresh-1"))

	_, err := client.Request(context.Background(), http.MethodPut, "/tasks/9", nil)
	assert.True(t, apierrors.IsForbidden(err))
	// The retried 403 must not trigger a second refresh.
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))
}

func TestFinal403WithoutRefreshToken(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"owner only"}`))
	}))

	_, err := client.Request(context.Background(), http.MethodDelete, "/task-lists/3", nil)
	require.True(t, apierrors.IsForbidden(err))
	assert.EqualError(t, err, "owner only")
}

func TestUnauthorizedInvokesAuthLoss(t *testing.T) {
	client, st, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	require.NoError(t, st.SetTokens("stale", "stale"))

	var gotReason string
	client.OnAuthLoss(func(reason string) { gotReason = reason })

	_, err := client.Request(context.Background(), http.MethodGet, "/notifications", nil)
	assert.True(t, apierrors.IsAuthRequired(err))
	assert.Equal(t, "unauthorized", gotReason)
}

func TestFailedReactiveRefreshLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"needsRefresh":true}`))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"refresh token revoked"}`))
	})

	client, st, _ := newTestClient(t, mux)
	require.NoError(t, st.SetTokens("access-1", "refresh-1"))

	var gotReason string
	client.OnAuthLoss(func(reason string) { gotReason = reason })

	_, err := client.Request(context.Background(), http.MethodPut, "/tasks/1", nil)
	assert.True(t, apierrors.IsAuthRequired(err))
	assert.Equal(t, "expired", gotReason)
}

func TestServerErrorCarriesMessage(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"queue reorder failed"}`))
	}))

	_, err := client.Request(context.Background(), http.MethodPut, "/users/1/queue/reorder", nil)
	require.Error(t, err)
	assert.EqualError(t, err, "queue reorder failed")
	assert.True(t, apierrors.IsKind(err, apierrors.ErrCodeServerError))
}

func TestFinishedRequestDoesNotClearNewerCancelHandle(t *testing.T) {
	aArrived := make(chan struct{})
	bArrived := make(chan struct{})
	releaseB := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		close(aArrived)
		// A finishes only after B's handle has replaced A's, so A's
		// deferred cleanup runs against the newer registration.
		<-bArrived
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		close(bArrived)
		select {
		case <-releaseB:
		case <-r.Context().Done():
		}
	})

	client, _, _ := newTestClient(t, mux)

	aDone := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), http.MethodGet, "/a", nil)
		aDone <- err
	}()
	<-aArrived

	bDone := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), http.MethodGet, "/b", nil)
		bDone <- err
	}()
	<-bArrived

	require.NoError(t, <-aDone)
	client.CancelPending()

	select {
	case err := <-bDone:
		assert.True(t, apierrors.IsCancelled(err))
	case <-time.After(2 * time.Second):
		close(releaseB)
		t.Fatal("cancel handle was cleared by the finished request")
	}
}

func TestCancelPendingYieldsCancelled(t *testing.T) {
	started := make(chan struct{})
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), http.MethodGet, "/task-lists", nil)
		errCh <- err
	}()

	<-started
	client.CancelPending()

	select {
	case err := <-errCh:
		assert.True(t, apierrors.IsCancelled(err))
	case <-time.After(2 * time.Second):
		t.Fatal("request did not observe cancellation")
	}
}
