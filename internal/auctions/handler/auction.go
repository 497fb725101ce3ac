package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"carbid/internal/auctions/service"
	httputil "carbid/pkg/http"
	"carbid/pkg/logger"
	"carbid/pkg/model"
)

type AuctionHandler struct {
	service service.AuctionService
	log     *logger.Logger
}

func NewAuctionHandler(service service.AuctionService, log *logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		service: service,
		log:     log,
	}
}

func (h *AuctionHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auctions", h.CreateAuction)
	router.GET("/api/v1/auctions", h.ListAuctions)
	router.GET("/api/v1/auctions/:id", h.GetAuction)

	router.POST("/api/v1/cars", h.CreateCar)
	router.GET("/api/v1/cars", h.ListCars)
	router.GET("/api/v1/cars/:id", h.GetCar)

	router.POST("/api/v1/users", h.CreateUser)
	router.GET("/api/v1/users", h.ListUsers)
	router.GET("/api/v1/users/:id", h.GetUser)
	router.DELETE("/api/v1/users/:id", h.DeleteUser)
}

func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var auction model.Auction
	if err := json.NewDecoder(r.Body).Decode(&auction); err != nil {
		h.writeJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"}, "CreateAuction")
		return
	}

	if err := h.service.CreateAuction(r.Context(), &auction); err != nil {
		h.writeError(w, err, "CreateAuction")
		return
	}

	if err := httputil.WriteCreated(w, auction); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateAuction", "error", err)
	}
}

func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.ExtractID(ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "GetAuction")
		return
	}

	auction, err := h.service.GetAuction(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "GetAuction")
		return
	}

	if err := httputil.WriteSuccess(w, auction); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAuction", "error", err)
	}
}

func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err, "ListAuctions")
		return
	}

	auctions, total, err := h.service.ListAuctions(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err, "ListAuctions")
		return
	}

	if err := httputil.WritePaginated(w, auctions, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListAuctions", "error", err)
	}
}

func (h *AuctionHandler) CreateCar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var car model.Car
	if err := json.NewDecoder(r.Body).Decode(&car); err != nil {
		h.writeJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"}, "CreateCar")
		return
	}

	if err := h.service.CreateCar(r.Context(), &car); err != nil {
		h.writeError(w, err, "CreateCar")
		return
	}

	if err := httputil.WriteCreated(w, car); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateCar", "error", err)
	}
}

func (h *AuctionHandler) GetCar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.ExtractID(ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "GetCar")
		return
	}

	car, err := h.service.GetCar(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "GetCar")
		return
	}

	if err := httputil.WriteSuccess(w, car); err != nil {
		h.log.Error("failed to write success response", "handler", "GetCar", "error", err)
	}
}

func (h *AuctionHandler) ListCars(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err, "ListCars")
		return
	}

	cars, err := h.service.ListCars(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err, "ListCars")
		return
	}

	if err := httputil.WriteSuccess(w, cars); err != nil {
		h.log.Error("failed to write success response", "handler", "ListCars", "error", err)
	}
}

func (h *AuctionHandler) ListUsers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err, "ListUsers")
		return
	}

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err, "ListUsers")
		return
	}

	if err := httputil.WriteSuccess(w, users); err != nil {
		h.log.Error("failed to write success response", "handler", "ListUsers", "error", err)
	}
}

func (h *AuctionHandler) CreateUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var user model.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		h.writeJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"}, "CreateUser")
		return
	}

	if err := h.service.CreateUser(r.Context(), &user); err != nil {
		h.writeError(w, err, "CreateUser")
		return
	}

	if err := httputil.WriteCreated(w, user); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateUser", "error", err)
	}
}

func (h *AuctionHandler) GetUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.ExtractID(ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "GetUser")
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "GetUser")
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "GetUser", "error", err)
	}
}

func (h *AuctionHandler) DeleteUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.ExtractID(ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "DeleteUser")
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, err, "DeleteUser")
		return
	}

	if err := httputil.WriteMessage(w, "User deleted"); err != nil {
		h.log.Error("failed to write message response", "handler", "DeleteUser", "error", err)
	}
}

func (h *AuctionHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *AuctionHandler) writeJSON(w http.ResponseWriter, status int, body any, handler string) {
	if err := httputil.WriteJSON(w, status, body); err != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "error", err)
	}
}
