package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lutong-bahay/api/internal/auth"
	"github.com/lutong-bahay/api/internal/database"
	"github.com/lutong-bahay/api/internal/enum"
	"github.com/lutong-bahay/api/internal/handler"
	"github.com/lutong-bahay/api/internal/middleware"
	"github.com/lutong-bahay/api/internal/service"
)

const testJWTSecret = "test-secret-key"

// --- Mocks ---

type mockOrderService struct {
	createFn func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	updateFn func(ctx context.Context, req service.UpdateOrderRequest) (*service.CreateOrderResult, error)
	cancelFn func(ctx context.Context, orderID, customerID uuid.UUID) (*database.Order, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockOrderService) UpdateOrder(ctx context.Context, req service.UpdateOrderRequest) (*service.CreateOrderResult, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, req)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockOrderService) CancelOrder(ctx context.Context, orderID, customerID uuid.UUID) (*database.Order, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, orderID, customerID)
	}
	return nil, service.ErrOrderNotFound
}

type mockOrderReadStore struct {
	getOrderFn          func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrdersFn        func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listOrderItemsFn    func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	updateOrderStatusFn func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

func (m *mockOrderReadStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderReadStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderReadStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsFn != nil {
		return m.listOrderItemsFn(ctx, orderID)
	}
	return []database.OrderItem{}, nil
}

func (m *mockOrderReadStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if m.updateOrderStatusFn != nil {
		return m.updateOrderStatusFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}

// --- Helpers ---

func setupOrderRouter(t *testing.T, svc *mockOrderService, store *mockOrderReadStore, strictFlow bool) chi.Router {
	t.Helper()
	h := handler.NewOrderHandler(svc, store, strictFlow)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		h.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enum.UserRoleAdmin))
			h.RegisterAdminRoutes(r)
		})
	})
	return r
}

func doAuthRequest(t *testing.T, router chi.Router, method, path string, body interface{}, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	token, err := auth.GenerateToken(testJWTSecret, userID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeOrderResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func mustNumeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		t.Fatalf("scan numeric %q: %v", s, err)
	}
	return n
}

func sampleOrder(orderID, customerID uuid.UUID) database.Order {
	return database.Order{
		ID:            orderID,
		OrderNumber:   "LB-00042",
		CustomerID:    customerID,
		Fullname:      "Maria Clara Santos",
		Contact:       "09171234567",
		Address:       "45 Katipunan Ave, Quezon City",
		Status:        database.OrderStatusPENDING,
		PaymentMethod: database.PaymentMethodCASH,
		PaymentStatus: database.PaymentStatusPAID,
		RefundStatus:  database.RefundStatusNONE,
	}
}

// --- Create ---

func TestCreateOrderEndpoint(t *testing.T) {
	customerID := uuid.New()
	orderID := uuid.New()
	itemID := uuid.New()

	body := map[string]interface{}{
		"fullname":       "Maria Clara Santos",
		"contact":        "09171234567",
		"address":        "45 Katipunan Ave, Quezon City",
		"payment_method": "CASH",
		"items": []map[string]interface{}{
			{"menu_item_id": itemID.String(), "quantity": 2},
		},
	}

	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			if req.CustomerID != customerID {
				t.Errorf("customer ID from claims: got %v, want %v", req.CustomerID, customerID)
			}
			if len(req.Items) != 1 || req.Items[0].Quantity != 2 {
				t.Errorf("items: got %+v", req.Items)
			}
			order := sampleOrder(orderID, customerID)
			order.Subtotal = mustNumeric(t, "240.00")
			order.DeliveryFee = mustNumeric(t, "10.00")
			order.TotalAmount = mustNumeric(t, "250.00")
			return &service.CreateOrderResult{
				Order: order,
				Items: []database.OrderItem{
					{ID: uuid.New(), OrderID: orderID, MenuItemID: itemID, Name: "Chicken Adobo", UnitPrice: mustNumeric(t, "120.00"), Quantity: 2, Subtotal: mustNumeric(t, "240.00")},
				},
			}, nil
		},
	}

	router := setupOrderRouter(t, svc, &mockOrderReadStore{}, true)
	rec := doAuthRequest(t, router, http.MethodPost, "/orders", body, customerID, enum.UserRoleCustomer)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201: %s", rec.Code, rec.Body.String())
	}

	resp := decodeOrderResponse(t, rec)
	if resp["order_number"] != "LB-00042" {
		t.Errorf("order number: got %v", resp["order_number"])
	}
	if resp["total_amount"] != "250.00" {
		t.Errorf("total: got %v, want 250.00", resp["total_amount"])
	}
	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("items: got %v", resp["items"])
	}
}

func TestCreateOrderEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		svcErr     error
		wantStatus int
	}{
		{
			name:       "no items",
			body:       map[string]interface{}{"fullname": "Maria Clara Santos", "contact": "09171234567", "address": "x", "payment_method": "CASH"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "validation error from service",
			body: map[string]interface{}{
				"fullname": "Maria", "contact": "09171234567", "address": "x", "payment_method": "CASH",
				"items": []map[string]interface{}{{"menu_item_id": uuid.New().String(), "quantity": 1}},
			},
			svcErr:     service.ErrInvalidFullName,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "insufficient stock",
			body: map[string]interface{}{
				"fullname": "Maria Clara Santos", "contact": "09171234567", "address": "x", "payment_method": "CASH",
				"items": []map[string]interface{}{{"menu_item_id": uuid.New().String(), "quantity": 99}},
			},
			svcErr:     fmt.Errorf("items[0]: %w", service.ErrInsufficientStock),
			wantStatus: http.StatusConflict,
		},
		{
			name: "unknown menu item",
			body: map[string]interface{}{
				"fullname": "Maria Clara Santos", "contact": "09171234567", "address": "x", "payment_method": "CASH",
				"items": []map[string]interface{}{{"menu_item_id": uuid.New().String(), "quantity": 1}},
			},
			svcErr:     service.ErrItemNotFound,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
					return nil, tt.svcErr
				},
			}
			router := setupOrderRouter(t, svc, &mockOrderReadStore{}, true)
			rec := doAuthRequest(t, router, http.MethodPost, "/orders", tt.body, uuid.New(), enum.UserRoleCustomer)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestCreateOrderEndpoint_RequiresAuth(t *testing.T) {
	router := setupOrderRouter(t, &mockOrderService{}, &mockOrderReadStore{}, true)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

// --- Get ---

func TestGetOrderEndpoint_Ownership(t *testing.T) {
	orderID := uuid.New()
	ownerID := uuid.New()

	store := &mockOrderReadStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return sampleOrder(orderID, ownerID), nil
		},
		listOrderItemsFn: func(ctx context.Context, id uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{{ID: uuid.New(), OrderID: orderID, Name: "Chicken Adobo", UnitPrice: mustNumeric(t, "120.00"), Quantity: 1, Subtotal: mustNumeric(t, "120.00")}}, nil
		},
	}
	router := setupOrderRouter(t, &mockOrderService{}, store, true)

	t.Run("owner sees the order with items", func(t *testing.T) {
		rec := doAuthRequest(t, router, http.MethodGet, "/orders/"+orderID.String(), nil, ownerID, enum.UserRoleCustomer)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeOrderResponse(t, rec)
		if items, ok := resp["items"].([]interface{}); !ok || len(items) != 1 {
			t.Errorf("items: got %v", resp["items"])
		}
	})

	t.Run("another customer gets 404", func(t *testing.T) {
		rec := doAuthRequest(t, router, http.MethodGet, "/orders/"+orderID.String(), nil, uuid.New(), enum.UserRoleCustomer)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status: got %d, want 404", rec.Code)
		}
	})

	t.Run("admin sees any order", func(t *testing.T) {
		rec := doAuthRequest(t, router, http.MethodGet, "/orders/"+orderID.String(), nil, uuid.New(), enum.UserRoleAdmin)
		if rec.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200", rec.Code)
		}
	})
}

// --- List ---

func TestListOrdersEndpoint_ScopedToCustomer(t *testing.T) {
	customerID := uuid.New()

	store := &mockOrderReadStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			if !arg.CustomerID.Valid || uuid.UUID(arg.CustomerID.Bytes) != customerID {
				t.Errorf("customer filter: got %+v, want %v", arg.CustomerID, customerID)
			}
			if arg.Limit != 20 || arg.Offset != 0 {
				t.Errorf("pagination: limit %d offset %d", arg.Limit, arg.Offset)
			}
			return []database.Order{sampleOrder(uuid.New(), customerID)}, nil
		},
	}
	router := setupOrderRouter(t, &mockOrderService{}, store, true)

	rec := doAuthRequest(t, router, http.MethodGet, "/orders", nil, customerID, enum.UserRoleCustomer)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeOrderResponse(t, rec)
	orders, ok := resp["orders"].([]interface{})
	if !ok || len(orders) != 1 {
		t.Errorf("orders: got %v", resp["orders"])
	}
}

func TestAdminListOrdersEndpoint(t *testing.T) {
	store := &mockOrderReadStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			if arg.CustomerID.Valid {
				t.Errorf("admin list should not filter by customer: %+v", arg.CustomerID)
			}
			if !arg.Status.Valid || arg.Status.String != enum.OrderStatusPreparing {
				t.Errorf("status filter: got %+v", arg.Status)
			}
			return []database.Order{}, nil
		},
	}
	router := setupOrderRouter(t, &mockOrderService{}, store, true)

	rec := doAuthRequest(t, router, http.MethodGet, "/admin/orders?status=PREPARING", nil, uuid.New(), enum.UserRoleAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminListOrdersEndpoint_CustomerForbidden(t *testing.T) {
	router := setupOrderRouter(t, &mockOrderService{}, &mockOrderReadStore{}, true)
	rec := doAuthRequest(t, router, http.MethodGet, "/admin/orders", nil, uuid.New(), enum.UserRoleCustomer)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", rec.Code)
	}
}

// --- Cancel ---

func TestCancelOrderEndpoint(t *testing.T) {
	orderID := uuid.New()
	customerID := uuid.New()

	svc := &mockOrderService{
		cancelFn: func(ctx context.Context, id, cid uuid.UUID) (*database.Order, error) {
			if id != orderID {
				t.Errorf("order ID: got %v", id)
			}
			if cid != customerID {
				t.Errorf("customer ID: got %v, want %v", cid, customerID)
			}
			order := sampleOrder(orderID, customerID)
			order.Status = database.OrderStatusCANCELLED
			order.RefundStatus = database.RefundStatusPENDING
			return &order, nil
		},
	}
	router := setupOrderRouter(t, svc, &mockOrderReadStore{}, true)

	rec := doAuthRequest(t, router, http.MethodDelete, "/orders/"+orderID.String(), nil, customerID, enum.UserRoleCustomer)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeOrderResponse(t, rec)
	if resp["status"] != enum.OrderStatusCancelled {
		t.Errorf("status: got %v, want CANCELLED", resp["status"])
	}
	if resp["refund_status"] != enum.RefundStatusPending {
		t.Errorf("refund status: got %v, want PENDING", resp["refund_status"])
	}
}

func TestCancelOrderEndpoint_NotPending(t *testing.T) {
	svc := &mockOrderService{
		cancelFn: func(ctx context.Context, id, cid uuid.UUID) (*database.Order, error) {
			return nil, service.ErrOrderNotPending
		},
	}
	router := setupOrderRouter(t, svc, &mockOrderReadStore{}, true)

	rec := doAuthRequest(t, router, http.MethodDelete, "/orders/"+uuid.New().String(), nil, uuid.New(), enum.UserRoleCustomer)
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

// --- UpdateStatus ---

func TestUpdateStatusEndpoint(t *testing.T) {
	orderID := uuid.New()

	t.Run("valid transition is CAS'd against the read status", func(t *testing.T) {
		store := &mockOrderReadStore{
			getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
				order := sampleOrder(orderID, uuid.New())
				order.Status = database.OrderStatusPENDING
				return order, nil
			},
			updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
				if arg.Status != database.OrderStatusPREPARING {
					t.Errorf("new status: got %s", arg.Status)
				}
				if arg.PrevStatus != database.OrderStatusPENDING {
					t.Errorf("prev status: got %s", arg.PrevStatus)
				}
				order := sampleOrder(orderID, uuid.New())
				order.Status = arg.Status
				return order, nil
			},
		}
		router := setupOrderRouter(t, &mockOrderService{}, store, true)

		rec := doAuthRequest(t, router, http.MethodPatch, "/admin/orders/"+orderID.String()+"/status",
			map[string]string{"status": "PREPARING"}, uuid.New(), enum.UserRoleAdmin)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("illegal transition is 409 in strict mode", func(t *testing.T) {
		store := &mockOrderReadStore{
			getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
				order := sampleOrder(orderID, uuid.New())
				order.Status = database.OrderStatusPENDING
				return order, nil
			},
		}
		router := setupOrderRouter(t, &mockOrderService{}, store, true)

		rec := doAuthRequest(t, router, http.MethodPatch, "/admin/orders/"+orderID.String()+"/status",
			map[string]string{"status": "DELIVERED"}, uuid.New(), enum.UserRoleAdmin)
		if rec.Code != http.StatusConflict {
			t.Errorf("status: got %d, want 409: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("same skip is allowed in permissive mode", func(t *testing.T) {
		store := &mockOrderReadStore{
			getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
				order := sampleOrder(orderID, uuid.New())
				order.Status = database.OrderStatusPENDING
				return order, nil
			},
			updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
				order := sampleOrder(orderID, uuid.New())
				order.Status = arg.Status
				return order, nil
			},
		}
		router := setupOrderRouter(t, &mockOrderService{}, store, false)

		rec := doAuthRequest(t, router, http.MethodPatch, "/admin/orders/"+orderID.String()+"/status",
			map[string]string{"status": "DELIVERED"}, uuid.New(), enum.UserRoleAdmin)
		if rec.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("concurrent change loses the CAS and returns 409", func(t *testing.T) {
		store := &mockOrderReadStore{
			getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
				order := sampleOrder(orderID, uuid.New())
				order.Status = database.OrderStatusPENDING
				return order, nil
			},
			updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
				return database.Order{}, pgx.ErrNoRows
			},
		}
		router := setupOrderRouter(t, &mockOrderService{}, store, true)

		rec := doAuthRequest(t, router, http.MethodPatch, "/admin/orders/"+orderID.String()+"/status",
			map[string]string{"status": "PREPARING"}, uuid.New(), enum.UserRoleAdmin)
		if rec.Code != http.StatusConflict {
			t.Errorf("status: got %d, want 409", rec.Code)
		}
	})

	t.Run("cancellation goes through the order service", func(t *testing.T) {
		cancelCalled := false
		svc := &mockOrderService{
			cancelFn: func(ctx context.Context, id, cid uuid.UUID) (*database.Order, error) {
				cancelCalled = true
				if cid != uuid.Nil {
					t.Errorf("admin cancel should pass uuid.Nil, got %v", cid)
				}
				order := sampleOrder(orderID, uuid.New())
				order.Status = database.OrderStatusCANCELLED
				return &order, nil
			},
		}
		router := setupOrderRouter(t, svc, &mockOrderReadStore{}, true)

		rec := doAuthRequest(t, router, http.MethodPatch, "/admin/orders/"+orderID.String()+"/status",
			map[string]string{"status": "CANCELLED"}, uuid.New(), enum.UserRoleAdmin)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
		}
		if !cancelCalled {
			t.Error("cancel service was not called")
		}
	})

	t.Run("unknown status is 400", func(t *testing.T) {
		router := setupOrderRouter(t, &mockOrderService{}, &mockOrderReadStore{}, true)
		rec := doAuthRequest(t, router, http.MethodPatch, "/admin/orders/"+orderID.String()+"/status",
			map[string]string{"status": "SHIPPED"}, uuid.New(), enum.UserRoleAdmin)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", rec.Code)
		}
	})
}

// --- Update ---

func TestUpdateOrderEndpoint(t *testing.T) {
	orderID := uuid.New()
	customerID := uuid.New()
	itemID := uuid.New()

	svc := &mockOrderService{
		updateFn: func(ctx context.Context, req service.UpdateOrderRequest) (*service.CreateOrderResult, error) {
			if req.OrderID != orderID {
				t.Errorf("order ID: got %v", req.OrderID)
			}
			if req.CustomerID != customerID {
				t.Errorf("customer ID: got %v, want %v", req.CustomerID, customerID)
			}
			order := sampleOrder(orderID, customerID)
			return &service.CreateOrderResult{Order: order}, nil
		},
	}
	router := setupOrderRouter(t, svc, &mockOrderReadStore{}, true)

	body := map[string]interface{}{
		"fullname": "Maria Clara Santos",
		"contact":  "09171234567",
		"address":  "45 Katipunan Ave, Quezon City",
		"items":    []map[string]interface{}{{"menu_item_id": itemID.String(), "quantity": 1}},
	}
	rec := doAuthRequest(t, router, http.MethodPut, "/orders/"+orderID.String(), body, customerID, enum.UserRoleCustomer)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}
}
