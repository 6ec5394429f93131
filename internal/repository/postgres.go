// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/storefront-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProductExists возвращается при добавлении товара с занятым идентификатором.
	ErrProductExists = errors.New("product already exists")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrNotProductOwner возвращается при попытке удалить чужой товар.
	ErrNotProductOwner = errors.New("product listed by another seller")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderOwnedByAnother возвращается, если заказ принадлежит другому пользователю.
	ErrOrderOwnedByAnother = errors.New("order belongs to another user")
	// ErrInvalidStatusTransition возвращается при недопустимом переходе статуса заказа.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	// ErrReviewNotFound возвращается, если отзыв не найден.
	ErrReviewNotFound = errors.New("review not found")
	// ErrNotReviewOwner возвращается при попытке изменить чужой отзыв.
	ErrNotReviewOwner = errors.New("review written by another user")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
// Подключение к базе ожидается с экспоненциальной паузой: при старте всего
// стека база может подниматься дольше сервиса.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure и Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя вместе с пустым профилем.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO profiles (user_id) VALUES ($1)`, id); err != nil {
		return 0, fmt.Errorf("create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// GetProfile возвращает профиль пользователя.
func (r *PostgresRepository) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT user_id, first_name, last_name, email, phone, address, city, state, postal_code, updated_at
		 FROM profiles
		 WHERE user_id = $1`,
		userID,
	)

	var p model.Profile
	err := row.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.Address, &p.City, &p.State, &p.PostalCode, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

// UpdateProfile перезаписывает профиль пользователя.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, p model.Profile) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE profiles
		 SET first_name = $2, last_name = $3, email = $4, phone = $5,
		     address = $6, city = $7, state = $8, postal_code = $9, updated_at = now()
		 WHERE user_id = $1`,
		p.UserID, p.FirstName, p.LastName, p.Email, p.Phone,
		p.Address, p.City, p.State, p.PostalCode,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ListProducts возвращает все выставленные товары, новые первыми.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, slug, name, price, discount, rating, stock, seller_id, images, category, created_at
		 FROM products
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.PriceCents, &p.DiscountCents,
		&p.Rating, &p.Stock, &p.SellerID, &p.Images, &p.Category, &p.CreatedAt)
	if err != nil {
		return model.Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, slug, name, price, discount, rating, stock, seller_id, images, category, created_at
		 FROM products
		 WHERE id = $1`,
		id,
	)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	return &p, nil
}

// AddProduct сохраняет новую карточку товара.
func (r *PostgresRepository) AddProduct(ctx context.Context, p model.Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, slug, name, price, discount, rating, stock, seller_id, images, category)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Slug, p.Name, p.PriceCents, p.DiscountCents,
		p.Rating, p.Stock, p.SellerID, p.Images, p.Category,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrProductExists, p.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// DeleteProduct удаляет товар продавца. Чужой товар удалить нельзя.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, productID string, sellerID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM products WHERE id = $1 AND seller_id = $2`,
		productID, sellerID,
	)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if cmdTag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`,
		productID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if exists {
		return ErrNotProductOwner
	}
	return ErrProductNotFound
}

// CreateOrder сохраняет заказ вместе с позициями в одной транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, status, shipping_method, subtotal, shipping_cost, tax, total,
		                     recipient, address, city, state, postal_code, phone, card_holder, card_last4)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.UserID, string(o.Status), o.ShippingMethod,
		o.SubtotalCents, o.ShippingCents, o.TaxCents, o.TotalCents,
		o.Shipping.Recipient, o.Shipping.Address, o.Shipping.City, o.Shipping.State,
		o.Shipping.PostalCode, o.Shipping.Phone, o.CardHolder, o.CardLast4,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, item.ProductID, item.Name, item.UnitPriceCents, item.Quantity, item.LineTotalCents,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetOrdersByUser возвращает заказы пользователя с позициями, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, status, shipping_method, subtotal, shipping_cost, tax, total,
		        recipient, address, city, state, postal_code, phone, card_holder, card_last4,
		        created_at, updated_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	index := make(map[string]int)
	for rows.Next() {
		var o model.Order
		var status string
		err := rows.Scan(&o.ID, &o.UserID, &status, &o.ShippingMethod,
			&o.SubtotalCents, &o.ShippingCents, &o.TaxCents, &o.TotalCents,
			&o.Shipping.Recipient, &o.Shipping.Address, &o.Shipping.City, &o.Shipping.State,
			&o.Shipping.PostalCode, &o.Shipping.Phone, &o.CardHolder, &o.CardLast4,
			&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT oi.order_id, oi.product_id, oi.name, oi.unit_price, oi.quantity, oi.line_total
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.user_id = $1
		 ORDER BY oi.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID string
		var item model.OrderItem
		err := itemRows.Scan(&orderID, &item.ProductID, &item.Name,
			&item.UnitPriceCents, &item.Quantity, &item.LineTotalCents)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus выполняет переход статуса заказа по таблице допустимых
// переходов. Строка заказа блокируется для сериализации конкурентных
// переходов одного заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID string, userID int64, next model.OrderStatus) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var current string
		var ownerID int64
		err = tx.QueryRow(ctx,
			`SELECT status, user_id FROM orders WHERE id = $1 FOR UPDATE`,
			orderID,
		).Scan(&current, &ownerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("select order: %w", err)
		}

		if ownerID != userID {
			return ErrOrderOwnedByAnother
		}

		if !model.OrderStatus(current).CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, next)
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
			orderID, string(next),
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// CountOrdersByStatus возвращает число заказов пользователя по статусам.
func (r *PostgresRepository) CountOrdersByStatus(ctx context.Context, userID int64) (map[model.OrderStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM orders WHERE user_id = $1 GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	defer rows.Close()

	res := make(map[model.OrderStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		res[model.OrderStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateReview сохраняет новый отзыв.
func (r *PostgresRepository) CreateReview(ctx context.Context, rev model.Review) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO reviews (id, product_id, user_id, rating, comment)
		 VALUES ($1, $2, $3, $4, $5)`,
		rev.ID, rev.ProductID, rev.UserID, rev.Rating, rev.Comment,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%w: %s", ErrProductNotFound, rev.ProductID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// UpdateReview изменяет оценку и текст отзыва. Редактировать может только автор.
func (r *PostgresRepository) UpdateReview(ctx context.Context, reviewID string, userID int64, rating int, comment string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE reviews SET rating = $3, comment = $4, updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		reviewID, userID, rating, comment,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if cmdTag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE id = $1)`,
		reviewID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check review: %w", err)
	}
	if exists {
		return ErrNotReviewOwner
	}
	return ErrReviewNotFound
}

// IncrementHelpful увеличивает счётчик полезности отзыва.
func (r *PostgresRepository) IncrementHelpful(ctx context.Context, reviewID string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE reviews SET helpful = helpful + 1 WHERE id = $1`,
		reviewID,
	)
	if err != nil {
		return fmt.Errorf("increment helpful: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}

	return nil
}

func scanReviews(rows pgx.Rows) ([]model.Review, error) {
	defer rows.Close()

	var res []model.Review
	for rows.Next() {
		var rev model.Review
		err := rows.Scan(&rev.ID, &rev.ProductID, &rev.UserID, &rev.Rating,
			&rev.Comment, &rev.Helpful, &rev.CreatedAt, &rev.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		res = append(res, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetReviewsByProduct возвращает отзывы на товар, новые первыми.
func (r *PostgresRepository) GetReviewsByProduct(ctx context.Context, productID string) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, user_id, rating, comment, helpful, created_at, updated_at
		 FROM reviews
		 WHERE product_id = $1
		 ORDER BY created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}

	return scanReviews(rows)
}

// GetReviewsByAuthor возвращает отзывы, написанные пользователем.
func (r *PostgresRepository) GetReviewsByAuthor(ctx context.Context, userID int64) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, user_id, rating, comment, helpful, created_at, updated_at
		 FROM reviews
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}

	return scanReviews(rows)
}

// GetReviewsForSeller возвращает отзывы, полученные на товары продавца.
func (r *PostgresRepository) GetReviewsForSeller(ctx context.Context, sellerID int64) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT rv.id, rv.product_id, rv.user_id, rv.rating, rv.comment, rv.helpful, rv.created_at, rv.updated_at
		 FROM reviews rv
		 JOIN products p ON p.id = rv.product_id
		 WHERE p.seller_id = $1
		 ORDER BY rv.created_at DESC`,
		sellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}

	return scanReviews(rows)
}
