// Package httpapi is a thin gorilla/mux-routed JSON façade over the core's
// API mailbox, grounded on kennedn-restate-go's router/common helpers:
// one small Response envelope and a jsonResponse writer shared by every
// handler.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lucasdietrich/caniot-controller/internal/api"
	"github.com/lucasdietrich/caniot-controller/internal/caniot"
)

// Response is the envelope every endpoint replies with.
type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func jsonResponse(w http.ResponseWriter, httpCode int, message string, data any) {
	body, _ := json.Marshal(&Response{Message: message, Data: data})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	w.Write(body)
}

// Server wires the API mailbox to an HTTP mux.
type Server struct {
	inbox   chan<- any
	metrics http.Handler
}

// NewServer returns a Server sending mailbox messages to inbox.
func NewServer(inbox chan<- any) *Server {
	return &Server{inbox: inbox}
}

// WithMetrics mounts h at /metrics. Omit the call to leave metrics
// unexposed.
func (s *Server) WithMetrics(h http.Handler) *Server {
	s.metrics = h
	return s
}

// Router builds the gorilla/mux router exposing the device surface.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/devices", s.handleGetDevices).Methods(http.MethodGet)
	r.HandleFunc("/devices/{class}/{subid}", s.handleGetDevice).Methods(http.MethodGet)
	r.HandleFunc("/devices/reset-measures", s.handleResetMeasures).Methods(http.MethodPost)
	r.HandleFunc("/devices/reset-settings", s.handleResetSettings).Methods(http.MethodPost)
	r.HandleFunc("/emulator/event", s.handleEmulatorEvent).Methods(http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) handleGetDevices(w http.ResponseWriter, r *http.Request) {
	filter := api.Filter{Kind: api.FilterAll}
	if r.URL.Query().Get("alert") != "" {
		filter.Kind = api.FilterWithActiveAlert
	}

	reply := make(chan api.GetDevicesResult, 1)
	s.inbox <- api.GetDevices{Filter: filter, Reply: reply}

	select {
	case res := <-reply:
		if res.Err != nil {
			jsonResponse(w, http.StatusInternalServerError, res.Err.Error(), nil)
			return
		}
		jsonResponse(w, http.StatusOK, "ok", res.Devices)
	case <-time.After(2 * time.Second):
		jsonResponse(w, http.StatusGatewayTimeout, "timeout", nil)
	}
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	did, ok := parseDid(vars["class"], vars["subid"])
	if !ok {
		jsonResponse(w, http.StatusBadRequest, "invalid device id", nil)
		return
	}

	reply := make(chan api.GetDevicesResult, 1)
	s.inbox <- api.GetDevices{Filter: api.Filter{Kind: api.FilterByDid, Did: did}, Reply: reply}

	select {
	case res := <-reply:
		if res.Err != nil {
			jsonResponse(w, http.StatusInternalServerError, res.Err.Error(), nil)
			return
		}
		if len(res.Devices) == 0 {
			jsonResponse(w, http.StatusNotFound, "no such device", nil)
			return
		}
		jsonResponse(w, http.StatusOK, "ok", res.Devices[0])
	case <-time.After(2 * time.Second):
		jsonResponse(w, http.StatusGatewayTimeout, "timeout", nil)
	}
}

func (s *Server) handleResetMeasures(w http.ResponseWriter, r *http.Request) {
	s.inbox <- api.DevicesResetMeasuresStats{}
	jsonResponse(w, http.StatusAccepted, "ok", nil)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	reply := make(chan error, 1)
	s.inbox <- api.DevicesResetSettings{Reply: reply}

	select {
	case err := <-reply:
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		jsonResponse(w, http.StatusOK, "ok", nil)
	case <-time.After(2 * time.Second):
		jsonResponse(w, http.StatusGatewayTimeout, "timeout", nil)
	}
}

type emulatorEventBody struct {
	Event uint32 `json:"event"`
}

func (s *Server) handleEmulatorEvent(w http.ResponseWriter, r *http.Request) {
	var body emulatorEventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonResponse(w, http.StatusBadRequest, "invalid body", nil)
		return
	}

	reply := make(chan error, 1)
	s.inbox <- api.EmulatorRequest{Event: body.Event, Reply: reply}

	select {
	case err := <-reply:
		if err != nil {
			jsonResponse(w, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		jsonResponse(w, http.StatusOK, "ok", nil)
	case <-time.After(2 * time.Second):
		jsonResponse(w, http.StatusGatewayTimeout, "timeout", nil)
	}
}

func parseDid(classStr, subidStr string) (caniot.DeviceId, bool) {
	class, err := strconv.Atoi(classStr)
	if err != nil {
		return caniot.DeviceId{}, false
	}
	subid, err := strconv.Atoi(subidStr)
	if err != nil {
		return caniot.DeviceId{}, false
	}
	did, err := caniot.NewDeviceId(uint8(class), uint8(subid))
	if err != nil {
		return caniot.DeviceId{}, false
	}
	return did, true
}
