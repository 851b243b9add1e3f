package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/petitplat/api/internal/auth"
	"github.com/petitplat/api/internal/database"
	"github.com/petitplat/api/internal/edit"
	"github.com/petitplat/api/internal/enum"
	"github.com/petitplat/api/internal/handler"
	"github.com/petitplat/api/internal/middleware"
	"github.com/petitplat/api/internal/service"
	"github.com/shopspring/decimal"
)

// --- Mock EditServicer ---

type mockEditService struct {
	loadFn func(ctx context.Context, orderID int64, customerID uuid.UUID) (*service.EditableOrder, error)
	saveFn func(ctx context.Context, req service.SaveEditsRequest) (*service.SaveResult, error)
}

func (m *mockEditService) LoadEditableOrder(ctx context.Context, orderID int64, customerID uuid.UUID) (*service.EditableOrder, error) {
	return m.loadFn(ctx, orderID, customerID)
}

func (m *mockEditService) SaveEdits(ctx context.Context, req service.SaveEditsRequest) (*service.SaveResult, error) {
	return m.saveFn(ctx, req)
}

// --- Mock OrderStore ---

type mockOrderStore struct {
	getOrderFn          func(ctx context.Context, id int64) (database.Order, error)
	listOrdersFn        func(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error)
	listOrderLinesFn    func(ctx context.Context, orderID int64) ([]database.OrderLine, error)
	updateOrderStatusFn func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	cancelOrderFn       func(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	getDishFn           func(ctx context.Context, id int64) (database.Dish, error)
	getExtraFn          func(ctx context.Context, id int64) (database.Extra, error)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id int64) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrdersByCustomer(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrderLines(ctx context.Context, orderID int64) ([]database.OrderLine, error) {
	if m.listOrderLinesFn != nil {
		return m.listOrderLinesFn(ctx, orderID)
	}
	return []database.OrderLine{}, nil
}

func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if m.updateOrderStatusFn != nil {
		return m.updateOrderStatusFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error) {
	if m.cancelOrderFn != nil {
		return m.cancelOrderFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) GetDish(ctx context.Context, id int64) (database.Dish, error) {
	if m.getDishFn != nil {
		return m.getDishFn(ctx, id)
	}
	return database.Dish{}, pgx.ErrNoRows
}

func (m *mockOrderStore) GetExtra(ctx context.Context, id int64) (database.Extra, error) {
	if m.getExtraFn != nil {
		return m.getExtraFn(ctx, id)
	}
	return database.Extra{}, pgx.ErrNoRows
}

type recordingSink struct {
	events []string
}

func (s *recordingSink) OrderEvent(eventType string, orderID int64) {
	s.events = append(s.events, eventType)
}

// --- Test helpers ---

const testJWTSecret = "test-secret-for-orders"

var (
	testCustomerID = uuid.MustParse("7f0cf8e9-27a6-4f25-9b5c-3da7cbe60001")
	testPickupAt   = time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC)
)

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func setupOrderRouter(svc *mockEditService, store *mockOrderStore, sink *recordingSink) *chi.Mux {
	var events handler.EventSink
	if sink != nil {
		events = sink
	}
	h := handler.NewOrderHandler(svc, store, events)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Group(h.RegisterRoutes)
	r.Group(func(staff chi.Router) {
		staff.Use(middleware.RequireRole(enum.RoleStaff))
		h.RegisterStaffRoutes(staff)
	})
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, customerID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, customerID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func pendingOrder() database.Order {
	return database.Order{
		ID:            42,
		CustomerID:    testCustomerID,
		PickupAt:      testPickupAt,
		DeliveryType:  enum.DeliveryTypePickup,
		PaymentStatus: enum.PaymentStatusPending,
		Status:        enum.OrderStatusPending,
	}
}

func orderLines() []database.OrderLine {
	return []database.OrderLine{
		{ID: 1, OrderID: 42, ItemRef: 12, Quantity: 2},
		{
			ID: 2, OrderID: 42, ItemRef: 0,
			LineType:  pgtype.Text{String: enum.LineTypeExtra, Valid: true},
			Name:      pgtype.Text{String: "Riz parfumé thaï", Valid: true},
			UnitPrice: makeNumeric("3.50"),
			Quantity:  1,
		},
	}
}

// --- Read endpoints ---

func TestGetOrder_OwnerSeesLines(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id int64) (database.Order, error) {
			if id == 42 {
				return pendingOrder(), nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
		listOrderLinesFn: func(ctx context.Context, orderID int64) ([]database.OrderLine, error) {
			return orderLines(), nil
		},
		getDishFn: func(ctx context.Context, id int64) (database.Dish, error) {
			if id == 12 {
				return database.Dish{ID: 12, Name: "Poulet basquaise", Price: makeNumeric("12.90")}, nil
			}
			return database.Dish{}, pgx.ErrNoRows
		},
	}
	r := setupOrderRouter(&mockEditService{}, store, nil)

	rr := doAuthRequest(t, r, "GET", "/orders/42", nil, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["total"] != "29.30" {
		t.Errorf("total: got %v, want 29.30", resp["total"])
	}
	if resp["editable"] != true {
		t.Error("pending order should be editable")
	}
	lines, ok := resp["lines"].([]interface{})
	if !ok || len(lines) != 2 {
		t.Fatalf("lines: got %v", resp["lines"])
	}
	first := lines[0].(map[string]interface{})
	if first["kind"] != "dish" || first["name"] != "Poulet basquaise" {
		t.Errorf("first line: %v", first)
	}
	second := lines[1].(map[string]interface{})
	if second["kind"] != "extra" || second["unit_price"] != "3.50" {
		t.Errorf("second line: %v", second)
	}
}

func TestGetOrder_TaggedExtraResolvesFromExtraCatalog(t *testing.T) {
	// A tagged extra line with NULL inline fields must resolve through the
	// extra catalog, even when a dish row shares the same id.
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id int64) (database.Order, error) {
			return pendingOrder(), nil
		},
		listOrderLinesFn: func(ctx context.Context, orderID int64) ([]database.OrderLine, error) {
			return []database.OrderLine{
				{
					ID: 1, OrderID: 42, ItemRef: 7,
					LineType: pgtype.Text{String: enum.LineTypeExtra, Valid: true},
					Quantity: 1,
				},
			}, nil
		},
		getDishFn: func(ctx context.Context, id int64) (database.Dish, error) {
			return database.Dish{ID: 7, Name: "Gratin dauphinois", Price: makeNumeric("9.80")}, nil
		},
		getExtraFn: func(ctx context.Context, id int64) (database.Extra, error) {
			if id == 7 {
				return database.Extra{ID: 7, Name: "Sauce piquante", Price: makeNumeric("4.00")}, nil
			}
			return database.Extra{}, pgx.ErrNoRows
		},
	}
	r := setupOrderRouter(&mockEditService{}, store, nil)

	rr := doAuthRequest(t, r, "GET", "/orders/42", nil, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["total"] != "4.00" {
		t.Errorf("total: got %v, want 4.00", resp["total"])
	}
	lines := resp["lines"].([]interface{})
	line := lines[0].(map[string]interface{})
	if line["kind"] != "extra" || line["name"] != "Sauce piquante" || line["unit_price"] != "4.00" {
		t.Errorf("line resolved against the wrong catalog: %v", line)
	}
}

func TestGetOrder_OtherCustomerForbidden(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id int64) (database.Order, error) {
			return pendingOrder(), nil
		},
	}
	r := setupOrderRouter(&mockEditService{}, store, nil)

	rr := doAuthRequest(t, r, "GET", "/orders/42", nil, uuid.New(), enum.RoleCustomer)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	r := setupOrderRouter(&mockEditService{}, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, r, "GET", "/orders/999", nil, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestListOrders_ScopedToCaller(t *testing.T) {
	var captured database.ListOrdersByCustomerParams
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error) {
			captured = arg
			return []database.Order{pendingOrder()}, nil
		},
	}
	r := setupOrderRouter(&mockEditService{}, store, nil)

	rr := doAuthRequest(t, r, "GET", "/orders?limit=5", nil, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != testCustomerID {
		t.Errorf("query customer: got %s, want caller", captured.CustomerID)
	}
	if captured.Limit != 5 {
		t.Errorf("limit: got %d, want 5", captured.Limit)
	}
}

// --- Edit session endpoints ---

func TestLoadEdit_ReturnsSession(t *testing.T) {
	items := []edit.Item{
		{
			Key: "dish-12", InstanceID: "i-1", Kind: edit.KindDish, CatalogID: 12,
			Name: "Poulet basquaise", UnitPrice: decimal.RequireFromString("12.90"),
			Quantity: 2, PickupAt: testPickupAt,
		},
	}
	svc := &mockEditService{
		loadFn: func(ctx context.Context, orderID int64, customerID uuid.UUID) (*service.EditableOrder, error) {
			if orderID != 42 || customerID != testCustomerID {
				t.Errorf("unexpected load args: %d %s", orderID, customerID)
			}
			return &service.EditableOrder{
				OrderID:  42,
				Status:   enum.OrderStatusPending,
				Cart:     items,
				Original: edit.TakeSnapshot(items, testPickupAt, ""),
			}, nil
		},
	}
	r := setupOrderRouter(svc, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, r, "GET", "/orders/42/edit", nil, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["total"] != "25.80" {
		t.Errorf("total: got %v, want 25.80", resp["total"])
	}
	if resp["date"] != "2025-01-10" || resp["time"] != "19:00" {
		t.Errorf("date/time: got %v %v", resp["date"], resp["time"])
	}
}

func TestLoadEdit_FrozenOrderConflict(t *testing.T) {
	svc := &mockEditService{
		loadFn: func(ctx context.Context, orderID int64, customerID uuid.UUID) (*service.EditableOrder, error) {
			return nil, &service.NotEditableError{Status: enum.OrderStatusPreparing}
		},
	}
	r := setupOrderRouter(svc, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, r, "GET", "/orders/42/edit", nil, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
	resp := decodeResponse(t, rr)
	if resp["status"] != enum.OrderStatusPreparing {
		t.Errorf("frozen status in body: got %v", resp["status"])
	}
}

func TestSaveEdits_Created(t *testing.T) {
	var captured service.SaveEditsRequest
	svc := &mockEditService{
		saveFn: func(ctx context.Context, req service.SaveEditsRequest) (*service.SaveResult, error) {
			captured = req
			return &service.SaveResult{CreatedOrderIDs: []int64{101}}, nil
		},
	}
	r := setupOrderRouter(svc, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, r, "PUT", "/orders/42/edits", map[string]any{
		"items": []map[string]any{
			{
				"key": "extra-7", "catalog_id": 7, "name": "Sauce piquante",
				"unit_price": "4.00", "quantity": 1, "pickup_at": testPickupAt,
			},
		},
		"date": "2025-01-10",
		"time": "19:00",
	}, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	ids, ok := resp["created_order_ids"].([]interface{})
	if !ok || len(ids) != 1 || ids[0].(float64) != 101 {
		t.Errorf("created_order_ids: got %v", resp["created_order_ids"])
	}
	if got, _ := resp["order_id"].(float64); got != 101 {
		t.Errorf("order_id: got %v, want 101", resp["order_id"])
	}

	if captured.OrderID != 42 || captured.CustomerID != testCustomerID {
		t.Errorf("service request ids: %+v", captured)
	}
	if len(captured.Items) != 1 {
		t.Fatalf("service items: got %d", len(captured.Items))
	}
	it := captured.Items[0]
	if it.Kind != edit.KindExtra || it.CatalogID != 7 || !it.UnitPrice.Equal(decimal.RequireFromString("4.00")) {
		t.Errorf("parsed item: %+v", it)
	}
}

func TestSaveEdits_EmptyCart(t *testing.T) {
	svc := &mockEditService{
		saveFn: func(ctx context.Context, req service.SaveEditsRequest) (*service.SaveResult, error) {
			if len(req.Items) != 0 {
				t.Errorf("expected empty items, got %d", len(req.Items))
			}
			return &service.SaveResult{CancelledOnly: true}, nil
		},
	}
	r := setupOrderRouter(svc, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, r, "PUT", "/orders/42/edits", map[string]any{
		"items": []map[string]any{},
	}, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["cancelled_only"] != true {
		t.Errorf("cancelled_only: got %v", resp["cancelled_only"])
	}
}

func TestSaveEdits_BadItemKey(t *testing.T) {
	r := setupOrderRouter(&mockEditService{}, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, r, "PUT", "/orders/42/edits", map[string]any{
		"items": []map[string]any{
			{"key": "combo-3", "quantity": 1, "unit_price": "4.00", "pickup_at": testPickupAt},
		},
	}, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSaveEdits_PartialFailure(t *testing.T) {
	svc := &mockEditService{
		saveFn: func(ctx context.Context, req service.SaveEditsRequest) (*service.SaveResult, error) {
			return nil, &service.PartialSaveError{
				OriginalOrderID: 42,
				CreatedOrderIDs: []int64{101},
				Err:             context.DeadlineExceeded,
			}
		},
	}
	r := setupOrderRouter(svc, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, r, "PUT", "/orders/42/edits", map[string]any{
		"items": []map[string]any{
			{"key": "dish-12", "catalog_id": 12, "name": "Poulet basquaise",
				"unit_price": "12.90", "quantity": 1, "pickup_at": testPickupAt},
		},
	}, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadGateway, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["code"] != "PARTIAL_SAVE" {
		t.Errorf("code: got %v, want PARTIAL_SAVE", resp["code"])
	}
	if resp["original_order_id"].(float64) != 42 {
		t.Errorf("original_order_id: got %v", resp["original_order_id"])
	}
	ids := resp["created_order_ids"].([]interface{})
	if len(ids) != 1 || ids[0].(float64) != 101 {
		t.Errorf("created_order_ids: got %v", ids)
	}
}

// --- Staff endpoints ---

func TestUpdateStatus_ValidTransition(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id int64) (database.Order, error) {
			return pendingOrder(), nil
		},
		updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
			if arg.PrevStatus != enum.OrderStatusPending {
				t.Errorf("prev status: got %s, want PENDING", arg.PrevStatus)
			}
			o := pendingOrder()
			o.Status = arg.Status
			return o, nil
		},
	}
	sink := &recordingSink{}
	r := setupOrderRouter(&mockEditService{}, store, sink)

	rr := doAuthRequest(t, r, "PATCH", "/orders/42/status", map[string]string{
		"status": enum.OrderStatusConfirmed,
	}, uuid.New(), enum.RoleStaff)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.OrderStatusConfirmed {
		t.Errorf("order status: got %v", resp["status"])
	}
	if len(sink.events) != 1 || sink.events[0] != "order.status_changed" {
		t.Errorf("events: got %v", sink.events)
	}
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id int64) (database.Order, error) {
			return pendingOrder(), nil
		},
	}
	r := setupOrderRouter(&mockEditService{}, store, nil)

	// PENDING cannot jump straight to READY_FOR_PICKUP.
	rr := doAuthRequest(t, r, "PATCH", "/orders/42/status", map[string]string{
		"status": enum.OrderStatusReadyForPickup,
	}, uuid.New(), enum.RoleStaff)
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestUpdateStatus_CustomerForbidden(t *testing.T) {
	r := setupOrderRouter(&mockEditService{}, &mockOrderStore{}, nil)

	rr := doAuthRequest(t, r, "PATCH", "/orders/42/status", map[string]string{
		"status": enum.OrderStatusConfirmed,
	}, testCustomerID, enum.RoleCustomer)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestCancel_AlreadyCancelledConflict(t *testing.T) {
	store := &mockOrderStore{
		cancelOrderFn: func(ctx context.Context, arg database.CancelOrderParams) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
		getOrderFn: func(ctx context.Context, id int64) (database.Order, error) {
			o := pendingOrder()
			o.Status = enum.OrderStatusCancelled
			return o, nil
		},
	}
	r := setupOrderRouter(&mockEditService{}, store, nil)

	rr := doAuthRequest(t, r, "DELETE", "/orders/42", nil, uuid.New(), enum.RoleStaff)
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCancel_Succeeds(t *testing.T) {
	store := &mockOrderStore{
		cancelOrderFn: func(ctx context.Context, arg database.CancelOrderParams) (database.Order, error) {
			o := pendingOrder()
			o.Status = enum.OrderStatusCancelled
			return o, nil
		},
	}
	sink := &recordingSink{}
	r := setupOrderRouter(&mockEditService{}, store, sink)

	rr := doAuthRequest(t, r, "DELETE", "/orders/42", nil, uuid.New(), enum.RoleStaff)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["status"] != enum.OrderStatusCancelled {
		t.Errorf("order status: got %v", resp["status"])
	}
	if len(sink.events) != 1 || sink.events[0] != "order.cancelled" {
		t.Errorf("events: got %v", sink.events)
	}
}
