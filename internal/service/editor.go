package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/petitplat/api/internal/database"
	"github.com/petitplat/api/internal/edit"
	"github.com/petitplat/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Internal-note markers written on cancelled orders. Kept in the customers'
// language because staff read them on the back-office screens.
const (
	noteCancelledEmptied    = "annulée : panier vidé par le client"
	noteCancelledSuperseded = "annulée : remplacée suite à modification client"
)

// Errors returned by the order edit service.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNotOwner      = errors.New("order does not belong to caller")
)

// NotEditableError reports the status that froze the order so the caller can
// show it and fall back to a read-only view.
type NotEditableError struct {
	Status string
}

func (e *NotEditableError) Error() string {
	return fmt.Sprintf("order is not editable in status %s", e.Status)
}

// PartialSaveError is the high-severity outcome where the original order was
// cancelled but creating its replacements failed partway. There is no
// compensating transaction; both id sets are carried so a human can
// reconcile. It must never be collapsed into a generic save failure.
type PartialSaveError struct {
	OriginalOrderID int64
	CreatedOrderIDs []int64
	Err             error
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("order %d cancelled but recreation incomplete (%d replacement(s) created): %v",
		e.OriginalOrderID, len(e.CreatedOrderIDs), e.Err)
}

func (e *PartialSaveError) Unwrap() error { return e.Err }

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EditStore defines the DB methods the edit flow needs.
// Satisfied by *database.Queries (and its WithTx variant).
type EditStore interface {
	GetOrder(ctx context.Context, id int64) (database.Order, error)
	ListOrderLines(ctx context.Context, orderID int64) ([]database.OrderLine, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	GetDish(ctx context.Context, id int64) (database.Dish, error)
}

// NewEditStore creates an EditStore from a DBTX (pool or tx), so the service
// can run the per-group creation inside its own transaction.
type NewEditStore func(db database.DBTX) EditStore

// EventSink receives order lifecycle events for the staff screens.
// Satisfied by *ws.Hub; nil disables broadcasting.
type EventSink interface {
	OrderEvent(eventType string, orderID int64)
}

// EditableOrder is what an editing session starts from.
type EditableOrder struct {
	OrderID  int64
	Status   string
	Cart     []edit.Item
	Original edit.Snapshot
}

// SaveEditsRequest carries the full edited session state. Date, Time and Note
// mirror the session's selector values and feed the change detection; each
// item carries its own pickup timestamp for grouping.
type SaveEditsRequest struct {
	OrderID    int64
	CustomerID uuid.UUID
	Items      []edit.Item
	Date       string
	Time       string
	Note       string
}

// SaveResult is the outcome of a save: nothing to do, cancel-only, or one or
// more replacement orders.
type SaveResult struct {
	Unchanged       bool
	CancelledOnly   bool
	CreatedOrderIDs []int64
}

// OrderEditService implements the order revision flow: authorize, gate on
// status, materialize, and on save run the cancel-and-recreate protocol.
type OrderEditService struct {
	pool     TxBeginner
	store    EditStore
	newStore NewEditStore
	resolver edit.CatalogResolver
	events   EventSink
}

func NewOrderEditService(pool TxBeginner, store EditStore, newStore NewEditStore, resolver edit.CatalogResolver, events EventSink) *OrderEditService {
	return &OrderEditService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		resolver: resolver,
		events:   events,
	}
}

// LoadEditableOrder fetches the order, checks ownership and editability, and
// materializes its lines into an editable cart plus the session snapshot.
func (s *OrderEditService) LoadEditableOrder(ctx context.Context, orderID int64, customerID uuid.UUID) (*EditableOrder, error) {
	order, err := s.fetchOwnedEditable(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.ListOrderLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines %d: %w", orderID, err)
	}

	lines := make([]edit.Line, len(rows))
	for i, row := range rows {
		lines[i], err = s.toEditLine(ctx, row)
		if err != nil {
			return nil, err
		}
	}

	m, err := edit.Materialize(ctx, edit.OrderInfo{PickupAt: order.PickupAt, Note: order.Note.String}, lines, s.resolver)
	if err != nil {
		return nil, fmt.Errorf("materialize order %d: %w", orderID, err)
	}

	return &EditableOrder{
		OrderID:  order.ID,
		Status:   order.Status,
		Cart:     m.Items,
		Original: edit.TakeSnapshot(m.Items, order.PickupAt, order.Note.String),
	}, nil
}

// SaveEdits commits an editing session. Empty cart cancels the original
// outright; otherwise the original is cancelled, the cancellation is read
// back to confirm visibility, and one replacement order is created per
// pickup-timestamp group. A failure after the cancellation surfaces as
// *PartialSaveError.
func (s *OrderEditService) SaveEdits(ctx context.Context, req SaveEditsRequest) (*SaveResult, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	// Re-check ownership and the status guard right before committing; the
	// load-time check may be minutes old.
	order, err := s.fetchOwnedEditable(ctx, req.OrderID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	// Empty-cart path: cancel outright, create nothing.
	if len(req.Items) == 0 {
		if err := s.cancelOriginal(ctx, order.ID, noteCancelledEmptied); err != nil {
			return nil, err
		}
		s.emit("order.cancelled", order.ID)
		return &SaveResult{CancelledOnly: true}, nil
	}

	// Meaningless saves stop here, before any store mutation.
	dirty, err := s.isDirty(ctx, order, req)
	if err != nil {
		return nil, err
	}
	if !dirty {
		return &SaveResult{Unchanged: true}, nil
	}

	// Cancellation must be complete and visible before any creation, so a
	// concurrent order-list read never sees original and replacement both
	// active.
	if err := s.cancelOriginal(ctx, order.ID, noteCancelledSuperseded); err != nil {
		return nil, err
	}
	if err := s.confirmCancelled(ctx, order.ID); err != nil {
		return nil, &PartialSaveError{OriginalOrderID: order.ID, Err: err}
	}

	groups := edit.Plan(req.Items)

	var created []int64
	for _, g := range groups {
		id, err := s.createGroupTx(ctx, order, g, req.Note)
		if err != nil {
			// The original is already cancelled; report exactly what
			// exists so a human can reconcile. No automatic retry.
			return nil, &PartialSaveError{
				OriginalOrderID: order.ID,
				CreatedOrderIDs: created,
				Err:             err,
			}
		}
		created = append(created, id)
	}

	s.emit("order.cancelled", order.ID)
	for _, id := range created {
		s.emit("order.created", id)
	}

	return &SaveResult{CreatedOrderIDs: created}, nil
}

// IsCartDirty re-runs the change detection for the session endpoints.
func (s *OrderEditService) IsCartDirty(original edit.Snapshot, rev edit.Revision) bool {
	return edit.IsDirty(original, rev)
}

// --- internals ---

// fetchOwnedEditable loads the order and applies the authorization and
// status-guard checks shared by load and save.
func (s *OrderEditService) fetchOwnedEditable(ctx context.Context, orderID int64, customerID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if order.CustomerID != customerID {
		return database.Order{}, ErrNotOwner
	}
	if !edit.Editable(order.Status) {
		return database.Order{}, &NotEditableError{Status: order.Status}
	}
	return order, nil
}

// toEditLine enriches a stored line with what its raw reference resolves to
// in the dish catalog, which the classifier needs for rules 2 and 3. Lines
// already tagged as extras skip the lookup; rule 1 decides without it.
func (s *OrderEditService) toEditLine(ctx context.Context, row database.OrderLine) (edit.Line, error) {
	line := edit.Line{
		Ref:         row.ItemRef,
		TypeTag:     row.LineType.String,
		InlineName:  row.Name.String,
		InlinePrice: numericToDecimal(row.UnitPrice),
		Quantity:    row.Quantity,
	}
	if line.TypeTag == enum.LineTypeExtra {
		return line, nil
	}

	dish, err := s.store.GetDish(ctx, row.ItemRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return line, nil
		}
		return edit.Line{}, fmt.Errorf("get dish %d: %w", row.ItemRef, err)
	}
	line.DishKnown = true
	line.DishName = dish.Name
	return line, nil
}

// isDirty rebuilds the original snapshot from the persisted order and
// compares the submitted session against it.
func (s *OrderEditService) isDirty(ctx context.Context, order database.Order, req SaveEditsRequest) (bool, error) {
	rows, err := s.store.ListOrderLines(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("list order lines %d: %w", order.ID, err)
	}
	lines := make([]edit.Line, len(rows))
	for i, row := range rows {
		lines[i], err = s.toEditLine(ctx, row)
		if err != nil {
			return false, err
		}
	}
	m, err := edit.Materialize(ctx, edit.OrderInfo{PickupAt: order.PickupAt, Note: order.Note.String}, lines, s.resolver)
	if err != nil {
		return false, fmt.Errorf("materialize order %d: %w", order.ID, err)
	}

	original := edit.TakeSnapshot(m.Items, order.PickupAt, order.Note.String)
	current := edit.Revision{Items: req.Items, Date: req.Date, Time: req.Time, Note: req.Note}
	return edit.IsDirty(original, current), nil
}

func (s *OrderEditService) cancelOriginal(ctx context.Context, orderID int64, note string) error {
	_, err := s.store.CancelOrder(ctx, database.CancelOrderParams{ID: orderID, InternalNote: note})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Status moved between our check and the update; report the
			// fresh status rather than a generic failure.
			current, fetchErr := s.store.GetOrder(ctx, orderID)
			if fetchErr != nil {
				return fmt.Errorf("cancel order %d: %w", orderID, err)
			}
			return &NotEditableError{Status: current.Status}
		}
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	return nil
}

// confirmCancelled reads the order back and checks that the cancellation is
// visible. Postgres is strongly consistent, so this replaces the fixed
// settling delay a weaker store would need before creation starts.
func (s *OrderEditService) confirmCancelled(ctx context.Context, orderID int64) error {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("confirm cancellation of order %d: %w", orderID, err)
	}
	if order.Status != enum.OrderStatusCancelled {
		return fmt.Errorf("order %d cancellation not visible (status %s)", orderID, order.Status)
	}
	return nil
}

// createGroupTx creates one replacement order with all of its lines in a
// single transaction: a replacement either exists completely or not at all.
func (s *OrderEditService) createGroupTx(ctx context.Context, original database.Order, g edit.Group, note string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	orderNote := pgtype.Text{}
	if note != "" {
		orderNote = pgtype.Text{String: note, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerID:    original.CustomerID,
		PickupAt:      g.PickupAt,
		Note:          orderNote,
		DeliveryType:  original.DeliveryType,
		PaymentStatus: enum.PaymentStatusPending,
		Status:        enum.OrderStatusPending,
	})
	if err != nil {
		return 0, fmt.Errorf("create order for %s: %w", g.Key, err)
	}

	for i, it := range g.Items {
		params := database.CreateOrderLineParams{
			OrderID:  order.ID,
			Quantity: it.Quantity,
		}
		switch it.Kind {
		case edit.KindDish:
			// Plain catalog reference; display fields resolve at read time.
			params.ItemRef = it.CatalogID
		case edit.KindExtra:
			// Always written in the current extra encoding: explicit tag,
			// extra catalog id (zero for legacy items that have none), and
			// an inline copy of name/price for audit and display.
			params.ItemRef = it.CatalogID
			params.LineType = pgtype.Text{String: enum.LineTypeExtra, Valid: true}
			params.Name = pgtype.Text{String: it.Name, Valid: true}
			params.UnitPrice = decimalToNumeric(it.UnitPrice)
		}
		if _, err := store.CreateOrderLine(ctx, params); err != nil {
			return 0, fmt.Errorf("create order line [%d] for %s: %w", i, g.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx for %s: %w", g.Key, err)
	}

	return order.ID, nil
}

func (s *OrderEditService) emit(eventType string, orderID int64) {
	if s.events != nil {
		s.events.OrderEvent(eventType, orderID)
	}
}

func validateItems(items []edit.Item) error {
	for i, it := range items {
		if it.PickupAt.IsZero() {
			return fmt.Errorf("items[%d]: %w", i, edit.ErrPickupRequired)
		}
		if it.Name == "" {
			return fmt.Errorf("items[%d]: %w", i, edit.ErrEmptyItemName)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("items[%d]: %w", i, edit.ErrNegativePrice)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("items[%d]: %w", i, edit.ErrInvalidQuantity)
		}
	}
	return nil
}

// --- Helpers ---

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

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
