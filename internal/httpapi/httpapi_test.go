package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdietrich/caniot-controller/internal/api"
)

func TestHandleGetDevicesRepliesFromMailbox(t *testing.T) {
	inbox := make(chan any, 4)
	s := NewServer(inbox)
	router := s.Router()

	go func() {
		msg := <-inbox
		m, ok := msg.(api.GetDevices)
		require.True(t, ok)
		m.Reply <- api.GetDevicesResult{Devices: nil}
	}()

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetDeviceRejectsInvalidID(t *testing.T) {
	inbox := make(chan any, 4)
	s := NewServer(inbox)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/devices/9/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetDevicesTimesOutWithoutCoreReply(t *testing.T) {
	inbox := make(chan any, 4)
	s := NewServer(inbox)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	case <-time.After(3 * time.Second):
		t.Fatal("handler did not return within expected timeout window")
	}
}
