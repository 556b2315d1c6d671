package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shaiso/Remora/internal/contracts"
)

// Services — реализации контрактов, публикуемые сервером.
// Маршруты регистрируются только для заданных (non-nil) сервисов.
type Services struct {
	V1           contracts.ScriptServiceV1
	V2           contracts.ScriptServiceV2
	V3           contracts.ScriptServiceV3
	Capabilities contracts.CapabilitiesService
}

// NewHandler создаёт http.Handler, публикующий сервисы.
func NewHandler(services Services, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(Recovery(logger), Logging(logger))

	if s := services.Capabilities; s != nil {
		r.HandleFunc(pathCapabilities, func(w http.ResponseWriter, req *http.Request) {
			resp, err := s.GetCapabilities(req.Context())
			if err != nil {
				HandleServiceError(w, logger, err)
				return
			}
			Success(w, resp)
		}).Methods(http.MethodGet)
	}

	if s := services.V1; s != nil {
		r.HandleFunc(pathV1Start, handle(logger, s.StartScript)).Methods(http.MethodPost)
		r.HandleFunc(pathV1Status, handle(logger, s.GetStatus)).Methods(http.MethodPost)
		r.HandleFunc(pathV1Complete, handle(logger, s.CompleteScript)).Methods(http.MethodPost)
	}

	if s := services.V2; s != nil {
		r.HandleFunc(pathV2Start, handle(logger, s.StartScript)).Methods(http.MethodPost)
		r.HandleFunc(pathV2Status, handle(logger, s.GetStatus)).Methods(http.MethodPost)
		r.HandleFunc(pathV2Cancel, handle(logger, s.CancelScript)).Methods(http.MethodPost)
		r.HandleFunc(pathV2Complete, handleVoid(logger, s.CompleteScript)).Methods(http.MethodPost)
	}

	if s := services.V3; s != nil {
		r.HandleFunc(pathV3Start, handle(logger, s.StartScript)).Methods(http.MethodPost)
		r.HandleFunc(pathV3Status, handle(logger, s.GetStatus)).Methods(http.MethodPost)
		r.HandleFunc(pathV3Cancel, handle(logger, s.CancelScript)).Methods(http.MethodPost)
		r.HandleFunc(pathV3Complete, handleVoid(logger, s.CompleteScript)).Methods(http.MethodPost)
	}

	return r
}

// handle декодирует команду, вызывает сервис и отправляет ответ.
func handle[Req, Resp any](logger *slog.Logger, call func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid JSON: "+err.Error())
			return
		}

		resp, err := call(r.Context(), req)
		if err != nil {
			HandleServiceError(w, logger, err)
			return
		}
		Success(w, resp)
	}
}

// handleVoid — как handle, для вызовов без результата.
func handleVoid[Req any](logger *slog.Logger, call func(context.Context, Req) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid JSON: "+err.Error())
			return
		}

		if err := call(r.Context(), req); err != nil {
			HandleServiceError(w, logger, err)
			return
		}
		NoContent(w)
	}
}
