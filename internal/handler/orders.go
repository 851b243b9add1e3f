package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/petitplat/api/internal/database"
	"github.com/petitplat/api/internal/edit"
	"github.com/petitplat/api/internal/enum"
	"github.com/petitplat/api/internal/middleware"
	"github.com/petitplat/api/internal/service"
	"github.com/shopspring/decimal"
)

// EditServicer defines the service methods needed by order edit handlers.
// Satisfied by *service.OrderEditService; narrow interface for testability.
type EditServicer interface {
	LoadEditableOrder(ctx context.Context, orderID int64, customerID uuid.UUID) (*service.EditableOrder, error)
	SaveEdits(ctx context.Context, req service.SaveEditsRequest) (*service.SaveResult, error)
}

// OrderStore defines the database methods needed by order read/update handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (database.Order, error)
	ListOrdersByCustomer(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error)
	ListOrderLines(ctx context.Context, orderID int64) ([]database.OrderLine, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	GetDish(ctx context.Context, id int64) (database.Dish, error)
	GetExtra(ctx context.Context, id int64) (database.Extra, error)
}

// EventSink receives order lifecycle events; satisfied by *ws.Hub, nil-ok.
type EventSink interface {
	OrderEvent(eventType string, orderID int64)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    EditServicer
	store  OrderStore
	events EventSink
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc EditServicer, store OrderStore, events EventSink) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, events: events}
}

// RegisterRoutes registers customer order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
	r.Get("/orders/{id}/edit", h.LoadEdit)
	r.Put("/orders/{id}/edits", h.SaveEdits)
}

// RegisterStaffRoutes registers staff-only order endpoints.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Patch("/orders/{id}/status", h.UpdateStatus)
	r.Delete("/orders/{id}", h.Cancel)
}

// --- Request / Response types ---

type orderResponse struct {
	ID            int64               `json:"id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	PickupAt      time.Time           `json:"pickup_at"`
	Note          *string             `json:"note"`
	DeliveryType  string              `json:"delivery_type"`
	PaymentStatus string              `json:"payment_status"`
	Status        string              `json:"status"`
	Editable      bool                `json:"editable"`
	Total         string              `json:"total"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Lines         []orderLineResponse `json:"lines,omitempty"`
}

type orderLineResponse struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	CatalogID int64  `json:"catalog_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
	LineTotal string `json:"line_total"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type editSessionResponse struct {
	OrderID int64       `json:"order_id"`
	Status  string      `json:"status"`
	Items   []edit.Item `json:"items"`
	Date    string      `json:"date"`
	Time    string      `json:"time"`
	Note    string      `json:"note"`
	Total   string      `json:"total"`
}

type saveEditsRequest struct {
	Items []saveEditItemRequest `json:"items"`
	Date  string                `json:"date"`
	Time  string                `json:"time"`
	Note  string                `json:"note"`
}

type saveEditItemRequest struct {
	Key       string    `json:"key"`
	CatalogID int64     `json:"catalog_id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int32     `json:"quantity"`
	PickupAt  time.Time `json:"pickup_at"`
	Legacy    bool      `json:"legacy"`
}

type saveEditsResponse struct {
	Unchanged     bool `json:"unchanged,omitempty"`
	CancelledOnly bool `json:"cancelled_only,omitempty"`
	// OrderID is set when the edit produced exactly one replacement order,
	// which is the common case; multi-date carts report the full list.
	OrderID         int64   `json:"order_id,omitempty"`
	CreatedOrderIDs []int64 `json:"created_order_ids,omitempty"`
}

type partialSaveResponse struct {
	Error           string  `json:"error"`
	Code            string  `json:"code"`
	OriginalOrderID int64   `json:"original_order_id"`
	CreatedOrderIDs []int64 `json:"created_order_ids"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// List handles GET /orders: the caller's own orders, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	// Parse pagination
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.store.ListOrdersByCustomer(r.Context(), database.ListOrdersByCustomerParams{
		CustomerID: claims.CustomerID,
		Limit:      int32(limit),
		Offset:     int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = h.dbOrderToResponse(r.Context(), o, false)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}: one order with its lines.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := parseOrderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Customers only see their own orders; staff see all.
	if claims.Role != enum.RoleStaff && order.CustomerID != claims.CustomerID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
		return
	}

	writeJSON(w, http.StatusOK, h.dbOrderToResponse(r.Context(), order, true))
}

// LoadEdit handles GET /orders/{id}/edit: opens an editing session by
// materializing the order into a cart.
func (h *OrderHandler) LoadEdit(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := parseOrderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	eo, err := h.svc.LoadEditableOrder(r.Context(), orderID, claims.CustomerID)
	if err != nil {
		h.writeEditError(w, err, "load editable order")
		return
	}

	writeJSON(w, http.StatusOK, editSessionResponse{
		OrderID: eo.OrderID,
		Status:  eo.Status,
		Items:   eo.Cart,
		Date:    eo.Original.Date,
		Time:    eo.Original.Time,
		Note:    eo.Original.Note,
		Total:   edit.CartTotal(eo.Cart).StringFixed(2),
	})
}

// SaveEdits handles PUT /orders/{id}/edits: commits an editing session.
func (h *OrderHandler) SaveEdits(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := parseOrderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req saveEditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]edit.Item, len(req.Items))
	for i, it := range req.Items {
		kind, err := edit.ParseKey(it.Key)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, err.Error()),
			})
			return
		}
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "invalid unit_price"),
			})
			return
		}
		items[i] = edit.Item{
			Key:       it.Key,
			Kind:      kind,
			CatalogID: it.CatalogID,
			Name:      it.Name,
			UnitPrice: price,
			Quantity:  it.Quantity,
			PickupAt:  it.PickupAt,
			Legacy:    it.Legacy,
		}
	}

	result, err := h.svc.SaveEdits(r.Context(), service.SaveEditsRequest{
		OrderID:    orderID,
		CustomerID: claims.CustomerID,
		Items:      items,
		Date:       req.Date,
		Time:       req.Time,
		Note:       req.Note,
	})
	if err != nil {
		h.writeEditError(w, err, "save edits")
		return
	}

	status := http.StatusOK
	if len(result.CreatedOrderIDs) > 0 {
		status = http.StatusCreated
	}
	resp := saveEditsResponse{
		Unchanged:       result.Unchanged,
		CancelledOnly:   result.CancelledOnly,
		CreatedOrderIDs: result.CreatedOrderIDs,
	}
	if len(result.CreatedOrderIDs) == 1 {
		resp.OrderID = result.CreatedOrderIDs[0]
	}
	writeJSON(w, status, resp)
}

// UpdateStatus handles PATCH /orders/{id}/status (staff only).
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseOrderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	if !edit.IsValidStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	// Fetch current order to validate transition
	current, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for status update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := edit.ValidateTransition(current.Status, req.Status); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:         orderID,
		Status:     req.Status,
		PrevStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// If no rows were updated, the status changed between our read and write (race condition)
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order status changed, please retry"})
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.events != nil {
		h.events.OrderEvent("order.status_changed", updated.ID)
	}

	writeJSON(w, http.StatusOK, h.dbOrderToResponse(r.Context(), updated, false))
}

// Cancel handles DELETE /orders/{id} (staff only).
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseOrderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	// The SQL query enforces the precondition atomically: no row comes back
	// unless the order was still PENDING or CONFIRMED.
	cancelled, err := h.store.CancelOrder(r.Context(), database.CancelOrderParams{
		ID:           orderID,
		InternalNote: "annulée par le restaurant",
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No rows updated means either: order doesn't exist, or it is past
			// the cancellable statuses. Fetch to give a better error message.
			current, fetchErr := h.store.GetOrder(r.Context(), orderID)
			if fetchErr != nil {
				if errors.Is(fetchErr, pgx.ErrNoRows) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
					return
				}
				log.Printf("ERROR: get order for cancel: %v", fetchErr)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			if current.Status == enum.OrderStatusCancelled {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "order is already cancelled"})
				return
			}
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order cannot be cancelled in status " + current.Status})
			return
		}
		log.Printf("ERROR: cancel order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.events != nil {
		h.events.OrderEvent("order.cancelled", cancelled.ID)
	}

	writeJSON(w, http.StatusOK, h.dbOrderToResponse(r.Context(), cancelled, false))
}

// --- Helpers ---

func parseOrderID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// writeEditError maps the edit flow's errors to HTTP responses. The partial
// save case carries its own payload so clients can surface exactly which
// orders exist.
func (h *OrderHandler) writeEditError(w http.ResponseWriter, err error, op string) {
	var partial *service.PartialSaveError
	if errors.As(err, &partial) {
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusBadGateway, partialSaveResponse{
			Error:           "the original order was cancelled but some replacements could not be created",
			Code:            "PARTIAL_SAVE",
			OriginalOrderID: partial.OriginalOrderID,
			CreatedOrderIDs: partial.CreatedOrderIDs,
		})
		return
	}

	var notEditable *service.NotEditableError
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
	case errors.As(err, &notEditable):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "order can no longer be edited",
			"status": notEditable.Status,
		})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isValidationError checks if the error is a known validation error
// from the edit flow that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, edit.ErrPickupRequired) ||
		errors.Is(err, edit.ErrEmptyItemName) ||
		errors.Is(err, edit.ErrNegativePrice) ||
		errors.Is(err, edit.ErrInvalidQuantity)
}

// dbOrderToResponse converts a database.Order to an orderResponse, resolving
// line display fields when withLines is set.
func (h *OrderHandler) dbOrderToResponse(ctx context.Context, o database.Order, withLines bool) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		PickupAt:      o.PickupAt,
		DeliveryType:  o.DeliveryType,
		PaymentStatus: o.PaymentStatus,
		Status:        o.Status,
		Editable:      edit.Editable(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.Note.Valid {
		resp.Note = &o.Note.String
	}

	lines, err := h.store.ListOrderLines(ctx, o.ID)
	if err != nil {
		log.Printf("ERROR: list order lines for %d: %v", o.ID, err)
		resp.Total = "0.00"
		return resp
	}

	total := decimal.Zero
	lineResps := make([]orderLineResponse, 0, len(lines))
	for _, l := range lines {
		lr := h.dbLineToResponse(ctx, l)
		price, _ := decimal.NewFromString(lr.UnitPrice)
		total = total.Add(price.Mul(decimal.NewFromInt32(l.Quantity)))
		lr.LineTotal = price.Mul(decimal.NewFromInt32(l.Quantity)).StringFixed(2)
		lineResps = append(lineResps, lr)
	}
	resp.Total = total.StringFixed(2)
	if withLines {
		resp.Lines = lineResps
	}
	return resp
}

// dbLineToResponse resolves one stored line into display fields using the
// same classification the edit flow uses.
func (h *OrderHandler) dbLineToResponse(ctx context.Context, l database.OrderLine) orderLineResponse {
	line := edit.Line{
		Ref:         l.ItemRef,
		TypeTag:     l.LineType.String,
		InlineName:  l.Name.String,
		InlinePrice: numericToDecimal(l.UnitPrice),
		Quantity:    l.Quantity,
	}
	if line.TypeTag != enum.LineTypeExtra {
		if dish, err := h.store.GetDish(ctx, l.ItemRef); err == nil {
			line.DishKnown = true
			line.DishName = dish.Name
		}
	}
	ref := edit.Classify(line)

	lr := orderLineResponse{
		ID:        l.ID,
		Kind:      ref.Kind.String(),
		CatalogID: ref.CatalogID,
		Quantity:  l.Quantity,
	}
	if ref.Legacy || l.Name.Valid {
		// Extras carry their display fields inline.
		lr.Name = l.Name.String
		lr.UnitPrice = numericToDecimal(l.UnitPrice).StringFixed(2)
		return lr
	}
	if ref.Kind == edit.KindExtra {
		// Tagged extra without inline fields: the reference is an extra
		// catalog id, never a dish id.
		extra, err := h.store.GetExtra(ctx, l.ItemRef)
		if err != nil {
			lr.UnitPrice = "0.00"
			return lr
		}
		lr.Name = extra.Name
		lr.UnitPrice = numericToString(extra.Price)
		return lr
	}
	dish, err := h.store.GetDish(ctx, l.ItemRef)
	if err != nil {
		lr.UnitPrice = "0.00"
		return lr
	}
	lr.Name = dish.Name
	lr.UnitPrice = numericToString(dish.Price)
	return lr
}

func numericToString(n pgtype.Numeric) string {
	return numericToDecimal(n).StringFixed(2)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}
