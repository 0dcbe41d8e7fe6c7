package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dinetab/dinetab-backend/internal/identity"
	"github.com/dinetab/dinetab-backend/internal/pricing"
	"github.com/dinetab/dinetab-backend/internal/receipts"
	"github.com/dinetab/dinetab-backend/internal/settlement"
	"github.com/dinetab/dinetab-backend/internal/storage"
	"github.com/dinetab/dinetab-backend/pkg/models"
)

// Handler exposes the order core over HTTP. Identity is resolved upstream
// and read from the request context; routing of the legacy "empty lines
// means delete" update shape happens here, at the boundary.
type Handler struct {
	service    *Service
	settlement *settlement.Engine
	receipts   *receipts.Service
	logger     *logrus.Logger
}

func NewHandler(service *Service, engine *settlement.Engine, receiptSvc *receipts.Service, logger *logrus.Logger) *Handler {
	return &Handler{
		service:    service,
		settlement: engine,
		receipts:   receiptSvc,
		logger:     logger,
	}
}

// Routes registers all order endpoints. Literal paths are registered before
// the {orderId} patterns they would otherwise shadow.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/orders/fifo", h.ListFIFO).Methods("GET")
	r.HandleFunc("/orders/confirm-payment", h.ConfirmPayments).Methods("PUT")
	r.HandleFunc("/orders/confirm-products-payment", h.ConfirmProductsPayments).Methods("PUT")
	r.HandleFunc("/orders/cancelled", h.DeleteCancelled).Methods("DELETE")
	r.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	r.HandleFunc("/orders", h.ListOrders).Methods("GET")
	r.HandleFunc("/orders/{orderId}", h.GetOrder).Methods("GET")
	r.HandleFunc("/orders/{orderId}", h.UpdateOrder).Methods("PUT")
	r.HandleFunc("/orders/{orderId}", h.DeleteOrder).Methods("DELETE")
	r.HandleFunc("/orders/{orderId}/status", h.UpdateStatus).Methods("PATCH")
	r.HandleFunc("/orders/{orderId}/rate", h.RateOrder).Methods("POST")
	r.HandleFunc("/orders/{orderId}/tip", h.TipOrder).Methods("PUT")
	r.HandleFunc("/receipts/archived", h.ArchivedReceipts).Methods("GET")
	r.HandleFunc("/receipts/close", h.CloseReceipts).Methods("POST")
}

type createOrderRequest struct {
	Lines   []pricing.LineInput `json:"lines"`
	TableID string              `json:"table_id"`
	Comment string              `json:"comment"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode order request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ident, _ := identity.FromContext(r.Context())
	if ident.TableID == "" {
		// Table clients carry the table in their token; staff may
		// address one explicitly.
		ident.TableID = req.TableID
	}

	order, err := h.service.Create(r.Context(), ident, CreateOrderInput{
		Lines:   req.Lines,
		Comment: req.Comment,
	})
	if err != nil {
		h.handleError(w, err, "Failed to create order")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Order created successfully",
		"order":   order,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]
	order, err := h.service.Get(r.Context(), orderID)
	if err != nil {
		h.handleError(w, err, "Failed to fetch order")
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())
	tableID := ident.TableID
	if tableID == "" {
		tableID = r.URL.Query().Get("table")
	}

	orders, err := h.service.ListByTable(r.Context(), tableID)
	if err != nil {
		h.handleError(w, err, "Failed to list orders")
		return
	}
	if len(orders) == 0 {
		h.respondWithError(w, http.StatusNotFound, "No orders found for this table")
		return
	}
	h.respondWithJSON(w, http.StatusOK, orders)
}

func (h *Handler) ListFIFO(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())
	orders, err := h.service.ListTenantFIFO(r.Context(), ident.TenantID)
	if err != nil {
		h.handleError(w, err, "Failed to list tenant orders")
		return
	}
	h.respondWithJSON(w, http.StatusOK, orders)
}

type updateOrderRequest struct {
	Lines   []pricing.LineInput `json:"lines"`
	TableID *string             `json:"table_id"`
	Status  *models.OrderStatus `json:"status"`
	Payed   *bool               `json:"payed"`
	Comment *string             `json:"comment"`
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode order update request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ident, _ := identity.FromContext(r.Context())
	in := UpdateOrderInput{
		Lines:   req.Lines,
		TableID: req.TableID,
		Status:  req.Status,
		Payed:   req.Payed,
		Comment: req.Comment,
	}

	// Legacy client behavior: an explicit empty line list is a deletion
	// request, not an update.
	if IsDeletionRequest(in) {
		if err := h.service.Delete(r.Context(), orderID); err != nil {
			h.handleError(w, err, "Failed to delete order")
			return
		}
		h.respondWithJSON(w, http.StatusOK, map[string]string{
			"message": "Order deleted successfully",
		})
		return
	}

	order, err := h.service.Update(r.Context(), ident, orderID, in)
	if err != nil {
		h.handleError(w, err, "Failed to update order")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Order updated successfully",
		"order":   order,
	})
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]
	if err := h.service.Delete(r.Context(), orderID); err != nil {
		h.handleError(w, err, "Failed to delete order")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Order deleted successfully",
	})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ident, _ := identity.FromContext(r.Context())
	order, err := h.service.UpdateStatus(r.Context(), ident, orderID, req.Status)
	if err != nil {
		h.handleError(w, err, "Failed to update order status")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

func (h *Handler) ConfirmPayments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderIDs []string `json:"order_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ident, _ := identity.FromContext(r.Context())
	result, err := h.settlement.ConfirmOrders(r.Context(), req.OrderIDs, ident.ActingUserID)
	if err != nil {
		h.handleError(w, err, "Failed to confirm payments")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Selected orders confirmed as paid, and relevant orders archived",
		"result":  result,
	})
}

func (h *Handler) ConfirmProductsPayments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID    string   `json:"order_id"`
		ProductIDs []string `json:"product_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ident, _ := identity.FromContext(r.Context())
	order, err := h.settlement.ConfirmProducts(r.Context(), req.OrderID, req.ProductIDs, ident.ActingUserID)
	if err != nil {
		h.handleError(w, err, "Failed to confirm product payments")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Selected products confirmed as paid, and table orders archived if needed",
		"updated_order": order,
	})
}

func (h *Handler) RateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	var req struct {
		Ratings map[string]float64 `json:"ratings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RateProducts(r.Context(), orderID, req.Ratings); err != nil {
		h.handleError(w, err, "Failed to rate order products")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Ratings submitted successfully",
	})
}

func (h *Handler) TipOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	var req struct {
		SelectedTip float64 `json:"selected_tip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.Tip(r.Context(), orderID, req.SelectedTip); err != nil {
		h.handleError(w, err, "Failed to add tip")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Tip submitted successfully",
	})
}

func (h *Handler) DeleteCancelled(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())
	deleted, err := h.service.DeleteCancelled(r.Context(), ident)
	if err != nil {
		h.handleError(w, err, "Failed to delete cancelled orders")
		return
	}
	if deleted == 0 {
		h.respondWithError(w, http.StatusNotFound, "No cancelled orders found")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Cancelled orders deleted successfully",
		"deleted": deleted,
	})
}

func (h *Handler) ArchivedReceipts(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())
	receipt, err := h.receipts.ArchivedOpen(r.Context(), ident.ActingUserID)
	if err != nil {
		h.handleError(w, err, "Failed to list archived orders")
		return
	}
	h.respondWithJSON(w, http.StatusOK, receipt)
}

func (h *Handler) CloseReceipts(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())
	receipt, err := h.receipts.Close(r.Context(), ident.ActingUserID)
	if err != nil {
		h.handleError(w, err, "Failed to close orders")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "All matching orders have been successfully closed",
		"closed_orders": receipt,
	})
}

// handleError translates the typed domain errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, err error, logMsg string) {
	var unavailable *pricing.ProductUnavailableError
	var productNotFound *pricing.ProductNotFoundError
	var invalidTransition *InvalidTransitionError

	switch {
	case errors.As(err, &unavailable):
		h.logger.WithError(err).Warn(logMsg)
		h.respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":                "One or more products are not available",
			"unavailable_products": unavailable.Items,
		})
	case errors.As(err, &productNotFound):
		h.logger.WithError(err).Warn(logMsg)
		h.respondWithError(w, http.StatusNotFound, "One or more products not found")
	case errors.As(err, &invalidTransition):
		h.logger.WithError(err).Warn(logMsg)
		h.respondWithError(w, http.StatusBadRequest, "Invalid status transition")
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, settlement.ErrNoUnpaidOrders),
		errors.Is(err, receipts.ErrNoOpenOrders):
		h.logger.WithError(err).Warn(logMsg)
		h.respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrVersionConflict):
		h.logger.WithError(err).Warn(logMsg)
		h.respondWithError(w, http.StatusConflict, "Order was modified concurrently, retry the request")
	case errors.Is(err, ErrNoLines),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrTableRequired),
		errors.Is(err, ErrOrderArchived),
		errors.Is(err, ErrTipAlreadySet),
		errors.Is(err, ErrNoRatings),
		errors.Is(err, settlement.ErrNoOrderIDs),
		errors.Is(err, settlement.ErrNoSelectors),
		errors.Is(err, settlement.ErrOrderIDRequired):
		h.logger.WithError(err).Warn(logMsg)
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error(logMsg)
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"error": message,
	})
}
