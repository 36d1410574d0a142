package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/pagination"
	ppostgres "github.com/personaliza/api/internal/platform/postgres"
	"github.com/personaliza/api/internal/platform/textutil"
	"github.com/personaliza/api/internal/repositories"
)

const orderColumns = `id, number, user_id, customer_name, customer_email, phone, status, currency,
	subtotal, shipping, total, shipping_code, shipping_name, shipping_days, pickup, address_id,
	shipping_address, payment_method, payment_id, payment_detail, tracking_code, tracking_company,
	tracking_url, refund_state, refund_reason, refund_requested_at, refund_processed_at,
	refund_decided_by, created_at, updated_at, paid_at, shipped_at, delivered_at, cancelled_at`

// OrderRepository persists orders and their item snapshots in Postgres.
type OrderRepository struct {
	db *ppostgres.DB
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs the repository.
func NewOrderRepository(db *ppostgres.DB) (*OrderRepository, error) {
	if db == nil {
		return nil, errors.New("order repository requires postgres db")
	}
	return &OrderRepository{db: db}, nil
}

// Insert writes the order row and its items. Callers wanting atomicity with other writes run it
// inside UnitOfWork.RunInTx; otherwise it opens its own transaction.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		q := r.db.Querier(ctx)
		address, err := encodeAddress(order.ShippingAddress)
		if err != nil {
			return err
		}
		tracking := trackingColumns(order.Tracking)
		_, err = q.Exec(ctx, `INSERT INTO orders (`+orderColumns+`, search_text)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,
			$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35)`,
			order.ID, order.Number, order.UserID, order.CustomerName, order.CustomerEmail, order.Phone,
			string(order.Status), order.Currency, order.Subtotal, order.Shipping, order.Total,
			order.ShippingMethod.Code, order.ShippingMethod.Name, order.ShippingMethod.EstimatedDays,
			order.ShippingMethod.Pickup, order.AddressID, address, string(order.PaymentMethod),
			order.PaymentID, order.PaymentDetail, tracking[0], tracking[1], tracking[2],
			refundState(order.Refund.State), order.Refund.Reason, order.Refund.RequestedAt,
			order.Refund.ProcessedAt, order.Refund.DecidedBy, order.CreatedAt, order.UpdatedAt,
			order.PaidAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt, searchText(order),
		)
		if err != nil {
			return ppostgres.WrapError("orders.insert", err)
		}

		batch := &pgx.Batch{}
		for i, item := range order.Items {
			batch.Queue(`INSERT INTO order_items (id, order_id, position, product_id, product_name,
				image_url, unit_price, quantity, line_total, size_id, size_name, color_id, color_name,
				personalization_text) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
				item.ID, order.ID, i, item.ProductID, item.ProductName, item.ImageURL, item.UnitPrice,
				item.Quantity, item.LineTotal, item.SizeID, item.SizeName, item.ColorID, item.ColorName,
				item.PersonalizationText,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		tx, ok := q.(pgx.Tx)
		if !ok {
			return errors.New("orders.insert: items require a transaction")
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return ppostgres.WrapError("order_items.insert", err)
		}
		return nil
	})
}

// Update rewrites the mutable columns of the order. Items are immutable after creation.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	tracking := trackingColumns(order.Tracking)
	tag, err := r.db.Querier(ctx).Exec(ctx, `UPDATE orders SET
		status = $2, payment_id = $3, payment_detail = $4, tracking_code = $5, tracking_company = $6,
		tracking_url = $7, refund_state = $8, refund_reason = $9, refund_requested_at = $10,
		refund_processed_at = $11, refund_decided_by = $12, updated_at = $13, paid_at = $14,
		shipped_at = $15, delivered_at = $16, cancelled_at = $17
		WHERE id = $1`,
		order.ID, string(order.Status), order.PaymentID, order.PaymentDetail, tracking[0], tracking[1],
		tracking[2], refundState(order.Refund.State), order.Refund.Reason, order.Refund.RequestedAt,
		order.Refund.ProcessedAt, order.Refund.DecidedBy, order.UpdatedAt, order.PaidAt,
		order.ShippedAt, order.DeliveredAt, order.CancelledAt,
	)
	if err != nil {
		return ppostgres.WrapError("orders.update", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("orders.update")
	}
	return nil
}

// FindByID loads the order with its items.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.findOne(ctx, "orders.get", `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

// FindByIDForUpdate locks the row until the transaction in ctx ends.
func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	if !ppostgres.InTx(ctx) {
		return domain.Order{}, errors.New("orders.get_for_update: requires a transaction")
	}
	return r.findOne(ctx, "orders.get_for_update", `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
}

// FindByPaymentID resolves the order a gateway payment belongs to.
func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error) {
	return r.findOne(ctx, "orders.get_by_payment", `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1 AND payment_id <> ''`, paymentID)
}

// List returns orders newest first using keyset pagination over (created_at, id).
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	pageSize := pagination.Clamp(filter.Pagination.PageSize)
	sql, args := buildListQuery(filter, cursor, pageSize+1)

	rows, err := r.db.Querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, ppostgres.WrapError("orders.list", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, ppostgres.WrapError("orders.list", err)
	}

	page := domain.CursorPage[domain.Order]{}
	if len(orders) > pageSize {
		orders = orders[:pageSize]
		last := orders[len(orders)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	page.Items = orders
	return page, nil
}

// ListAwaitingPayment returns pending orders with a gateway payment created before the cutoff.
func (r *OrderRepository) ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND payment_id <> '' AND created_at < $2
		ORDER BY created_at ASC LIMIT $3`,
		string(domain.OrderStatusPending), createdBefore, limit,
	)
	if err != nil {
		return nil, ppostgres.WrapError("orders.list_awaiting_payment", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, ppostgres.WrapError("orders.list_awaiting_payment", err)
	}
	return orders, nil
}

func (r *OrderRepository) findOne(ctx context.Context, op, sql string, arg string) (domain.Order, error) {
	if strings.TrimSpace(arg) == "" {
		return domain.Order{}, ppostgres.NotFound(op)
	}
	rows, err := r.db.Querier(ctx).Query(ctx, sql, arg)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError(op, err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError(op, err)
	}
	if len(orders) == 0 {
		return domain.Order{}, ppostgres.NotFound(op)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
		index[order.ID] = i
	}
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT order_id, id, product_id, product_name, image_url,
		unit_price, quantity, line_total, size_id, size_name, color_id, color_name, personalization_text
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return ppostgres.WrapError("order_items.list", err)
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.ProductName, &item.ImageURL,
			&item.UnitPrice, &item.Quantity, &item.LineTotal, &item.SizeID, &item.SizeName,
			&item.ColorID, &item.ColorName, &item.PersonalizationText); err != nil {
			return ppostgres.WrapError("order_items.scan", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return ppostgres.WrapError("order_items.list", rows.Err())
}

func buildListQuery(filter domain.OrderListFilter, cursor pagination.Cursor, limit int) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if uid := strings.TrimSpace(filter.UserID); uid != "" {
		clauses = append(clauses, "user_id = "+arg(uid))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		clauses = append(clauses, "status = ANY("+arg(statuses)+")")
	}
	if q := textutil.Fold(filter.Query); q != "" {
		clauses = append(clauses, "search_text LIKE "+arg("%"+escapeLike(q)+"%")+` ESCAPE '\'`)
	}
	if !cursor.IsZero() {
		clauses = append(clauses, fmt.Sprintf("(created_at, id) < (%s, %s)", arg(cursor.CreatedAt), arg(cursor.ID)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + orderColumns + " FROM orders")
	if len(clauses) > 0 {
		sb.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT " + arg(limit))
	return sb.String(), args
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func searchText(order domain.Order) string {
	return textutil.Fold(strings.Join([]string{order.ID, order.Number, order.CustomerName}, " "))
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		order                             domain.Order
		status, paymentMethod, refund     string
		address                           []byte
		trackCode, trackCompany, trackURL *string
	)
	err := row.Scan(&order.ID, &order.Number, &order.UserID, &order.CustomerName, &order.CustomerEmail,
		&order.Phone, &status, &order.Currency, &order.Subtotal, &order.Shipping, &order.Total,
		&order.ShippingMethod.Code, &order.ShippingMethod.Name, &order.ShippingMethod.EstimatedDays,
		&order.ShippingMethod.Pickup, &order.AddressID, &address, &paymentMethod, &order.PaymentID,
		&order.PaymentDetail, &trackCode, &trackCompany, &trackURL, &refund, &order.Refund.Reason,
		&order.Refund.RequestedAt, &order.Refund.ProcessedAt, &order.Refund.DecidedBy,
		&order.CreatedAt, &order.UpdatedAt, &order.PaidAt, &order.ShippedAt, &order.DeliveredAt,
		&order.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentMethod = domain.PaymentMethod(paymentMethod)
	order.Refund.State = domain.RefundState(refund)
	if trackCode != nil || trackCompany != nil || trackURL != nil {
		order.Tracking = &domain.Tracking{Code: deref(trackCode), Company: deref(trackCompany), URL: deref(trackURL)}
	}
	if len(address) > 0 {
		snapshot, err := decodeAddress(address)
		if err != nil {
			return domain.Order{}, err
		}
		order.ShippingAddress = snapshot
	}
	return order, nil
}

type addressJSON struct {
	Recipient    string `json:"recipient"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

func encodeAddress(snapshot *domain.AddressSnapshot) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	data, err := json.Marshal(addressJSON(*snapshot))
	if err != nil {
		return nil, fmt.Errorf("orders: encode address: %w", err)
	}
	return data, nil
}

func decodeAddress(data []byte) (*domain.AddressSnapshot, error) {
	var payload addressJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("orders: decode address: %w", err)
	}
	snapshot := domain.AddressSnapshot(payload)
	return &snapshot, nil
}

func trackingColumns(tracking *domain.Tracking) [3]*string {
	if tracking == nil {
		return [3]*string{}
	}
	return [3]*string{&tracking.Code, &tracking.Company, &tracking.URL}
}

func refundState(state domain.RefundState) string {
	if state == "" {
		return string(domain.RefundStateNone)
	}
	return string(state)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
