package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// @title ADS HTTP/WebSocket Gateway API
// @version 1.0
// @description REST API for interacting with TwinCAT PLCs over the ADS protocol.
// @description
// @description ## Features
// @description - Read and write PLC variables with type conversion from the target's own type tables
// @description - Batch reads as single ADS sum commands
// @description - PLC runtime and TwinCAT system control
// @description - WebSocket streaming backed by ADS device notifications
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
//
// @tag.name values
// @tag.description Variable read/write operations
// @tag.name symbols
// @tag.description Symbol table metadata
// @tag.name system
// @tag.description Health, state and control endpoints

// Handler contains the HTTP request handlers.
type Handler struct {
	gateway  *Gateway
	upgrader *websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(gateway *Gateway) *Handler {
	return &Handler{
		gateway: gateway,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleReadValue handles GET /api/v1/values/{name}
// @Summary Read variable value
// @Description Read the current value of a PLC variable, converted using the target's type description
// @Tags values
// @Produce json
// @Param name path string true "Variable path" example("GVL.Temperature")
// @Success 200 {object} ValueResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /values/{name} [get]
func (h *Handler) HandleReadValue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		WriteError(w, NewInvalidRequestError("variable path is required"))
		return
	}

	result := h.gateway.ReadValue(r.Context(), name)
	if !result.Success {
		WriteError(w, NewSymbolNotFoundError(name))
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleWriteValue handles POST /api/v1/values/{name}
// @Summary Write variable value
// @Description Write a value to a PLC variable. Set auto_fill to merge partial structures over the current PLC state.
// @Tags values
// @Accept json
// @Produce json
// @Param name path string true "Variable path" example("GVL.Temperature")
// @Param body body WriteValueRequest true "Value to write"
// @Success 200 {object} WriteValueResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /values/{name} [post]
func (h *Handler) HandleWriteValue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		WriteError(w, NewInvalidRequestError("variable path is required"))
		return
	}

	var req WriteValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid JSON body"))
		return
	}

	result := h.gateway.WriteValue(r.Context(), name, req.Value, req.AutoFill)
	if !result.Success {
		WriteError(w, NewWriteFailedError(name, result.Error))
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleBatchRead handles POST /api/v1/values/read
// @Summary Batch read
// @Description Read multiple variables in one ADS sum command round-trip
// @Tags values
// @Accept json
// @Produce json
// @Param body body BatchReadRequest true "Variables to read"
// @Success 200 {object} BatchReadResponse
// @Failure 400 {object} ErrorResponse
// @Router /values/read [post]
func (h *Handler) HandleBatchRead(w http.ResponseWriter, r *http.Request) {
	var req BatchReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid JSON body"))
		return
	}
	if len(req.Symbols) == 0 {
		WriteError(w, NewInvalidRequestError("symbols list is empty"))
		return
	}

	result, err := h.gateway.BatchRead(r.Context(), req.Symbols)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleBatchWrite handles POST /api/v1/values/write
// @Summary Batch write
// @Description Write multiple variables
// @Tags values
// @Accept json
// @Produce json
// @Param body body BatchWriteRequest true "Variables and values to write"
// @Success 200 {object} BatchWriteResponse
// @Failure 400 {object} ErrorResponse
// @Router /values/write [post]
func (h *Handler) HandleBatchWrite(w http.ResponseWriter, r *http.Request) {
	var req BatchWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid JSON body"))
		return
	}
	if len(req.Writes) == 0 {
		WriteError(w, NewInvalidRequestError("writes map is empty"))
		return
	}

	result, err := h.gateway.BatchWrite(r.Context(), req.Writes, req.AutoFill)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleGetSymbolTable handles GET /api/v1/symbols
// @Summary Get symbol table
// @Description Enumerate all symbols of the target
// @Tags symbols
// @Produce json
// @Success 200 {object} SymbolTableResponse
// @Router /symbols [get]
func (h *Handler) HandleGetSymbolTable(w http.ResponseWriter, r *http.Request) {
	result, err := h.gateway.GetSymbolTable(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleGetSymbolInfo handles GET /api/v1/symbols/{name}
// @Summary Get symbol metadata
// @Tags symbols
// @Produce json
// @Param name path string true "Variable path"
// @Success 200 {object} SymbolInfo
// @Failure 404 {object} ErrorResponse
// @Router /symbols/{name} [get]
func (h *Handler) HandleGetSymbolInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		WriteError(w, NewInvalidRequestError("variable path is required"))
		return
	}

	info, err := h.gateway.GetSymbolInfo(r.Context(), name)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// HandleHealth handles GET /api/v1/health
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.gateway.GetHealth())
}

// HandleInfo handles GET /api/v1/info
// @Summary Gateway and connection information
// @Tags system
// @Produce json
// @Success 200 {object} InfoResponse
// @Router /info [get]
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.gateway.GetInfo())
}

// HandleGetState handles GET /api/v1/state
// @Summary PLC and TwinCAT system state
// @Tags system
// @Produce json
// @Success 200 {object} StateResponse
// @Router /state [get]
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.gateway.GetState(r.Context()))
}

// HandleControl handles POST /api/v1/control
// @Summary PLC control
// @Description Execute a control command: start, stop, reset, restart, system-run, system-config
// @Tags system
// @Accept json
// @Produce json
// @Param body body ControlRequest true "Command"
// @Success 200 {object} ControlResponse
// @Failure 400 {object} ErrorResponse
// @Router /control [post]
func (h *Handler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid JSON body"))
		return
	}

	result := h.gateway.Control(r.Context(), req.Command)
	if !result.Success {
		WriteJSON(w, http.StatusBadRequest, result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleWebSocket handles GET /ws/subscribe
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.gateway.HandleWebSocket(conn)
}
