package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"offerwatch/internal/model"
	"offerwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

const offerColumns = `id, url, title, category, sub_category, city, region, photos,
	price, price_currency, rent, rent_currency, area, floor, room_number,
	has_furniture, description, created_at`

const filterColumns = `id, user_id, category, sub_category, building_type,
	price_min, price_max, area_min, area_max, rooms, furniture, floor, query,
	active, created_at`

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
// A single connection is used, which serializes concurrent writers.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveOffers upserts offers by URL in a single transaction.
func (s *SQLite) SaveOffers(ctx context.Context, offers []model.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO offers (url, title, category, sub_category, city, region, photos,
		     price, price_currency, rent, rent_currency, area, floor, room_number,
		     has_furniture, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		     title = excluded.title,
		     category = excluded.category,
		     sub_category = excluded.sub_category,
		     city = excluded.city,
		     region = excluded.region,
		     photos = excluded.photos,
		     price = excluded.price,
		     price_currency = excluded.price_currency,
		     rent = excluded.rent,
		     rent_currency = excluded.rent_currency,
		     area = excluded.area,
		     floor = excluded.floor,
		     room_number = excluded.room_number,
		     has_furniture = excluded.has_furniture,
		     description = excluded.description,
		     updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC().Format(timeLayout)
	for _, o := range offers {
		photos := o.Photos
		if photos == nil {
			photos = []string{}
		}
		photosJSON, err := json.Marshal(photos)
		if err != nil {
			return fmt.Errorf("encode photos: %w", err)
		}

		var city, region any
		if o.Location != nil {
			city = nullString(o.Location.City)
			region = o.Location.Region
		}
		price, priceCur := moneyArgs(o.Price)
		rent, rentCur := moneyArgs(o.Rent)

		if _, err := stmt.ExecContext(ctx,
			o.URL, o.Title, o.Category, o.SubCategory, city, region, string(photosJSON),
			price, priceCur, rent, rentCur, nullFloat(o.Area), nullInt(o.Floor), nullInt(o.RoomCount),
			nullBool(o.HasFurniture), nullString(o.Description), now, now,
		); err != nil {
			return fmt.Errorf("upsert offer %s: %w", o.URL, err)
		}
	}
	return tx.Commit()
}

// QueryOffers returns offers of the given category, newest first.
// An empty category matches every offer.
func (s *SQLite) QueryOffers(ctx context.Context, category string, page Page) ([]model.Offer, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = -1
	}

	var (
		rows *sql.Rows
		err  error
	)
	if category == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+offerColumns+` FROM offers ORDER BY id DESC LIMIT ? OFFSET ?`,
			limit, page.Offset)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+offerColumns+` FROM offers WHERE category = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
			category, limit, page.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var offers []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// CountOffers returns the number of stored offers.
func (s *SQLite) CountOffers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count offers: %w", err)
	}
	return n, nil
}

// CreateFilter inserts a new filter and populates its ID and CreatedAt.
func (s *SQLite) CreateFilter(ctx context.Context, f *model.NotificationFilter) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_filters (user_id, category, sub_category, building_type,
		     price_min, price_max, area_min, area_max, rooms, furniture, floor, query, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.UserID, nullString(f.Category), nullString(f.SubCategory), nullString(f.BuildingType),
		nullFloat(f.PriceMin), nullFloat(f.PriceMax), nullFloat(f.AreaMin), nullFloat(f.AreaMax),
		nullInt(f.Rooms), nullBool(f.Furniture), nullInt(f.Floor), nullString(f.Query),
		boolToInt(f.Active), now,
	)
	if err != nil {
		return fmt.Errorf("insert filter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	f.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListActiveFilters returns all active filters ordered by ID.
func (s *SQLite) ListActiveFilters(ctx context.Context) ([]model.NotificationFilter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+filterColumns+` FROM notification_filters WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var filters []model.NotificationFilter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// CreateNotification inserts a notification and populates its ID and CreatedAt.
// Offer ids are attached separately with AttachOfferIDs.
func (s *SQLite) CreateNotification(ctx context.Context, n *model.Notification) error {
	id := uuid.NewString()
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, filter_id, title, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, n.UserID, n.FilterID, n.Title, n.Message, now,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	n.ID = id
	n.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// AttachOfferIDs links offers to a notification, preserving their order.
func (s *SQLite) AttachOfferIDs(ctx context.Context, notificationID string, offerIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE id = ?`, notificationID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check notification: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}

	for i, id := range offerIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO notification_offers (notification_id, offer_id, position) VALUES (?, ?, ?)`,
			notificationID, id, i,
		); err != nil {
			return fmt.Errorf("attach offer %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetNotification returns a notification with its attached offer ids.
func (s *SQLite) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filter_id, title, message, created_at FROM notifications WHERE id = ?`, id,
	).Scan(&n.ID, &n.UserID, &n.FilterID, &n.Title, &n.Message, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.CreatedAt, _ = time.Parse(timeLayout, created)

	rows, err := s.db.QueryContext(ctx,
		`SELECT offer_id FROM notification_offers WHERE notification_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query notification offers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	n.OfferIDs = []int64{}
	for rows.Next() {
		var offerID int64
		if err := rows.Scan(&offerID); err != nil {
			return nil, fmt.Errorf("scan offer id: %w", err)
		}
		n.OfferIDs = append(n.OfferIDs, offerID)
	}
	return &n, rows.Err()
}

// UpsertRecipient stores the delivery addresses of a user.
func (s *SQLite) UpsertRecipient(ctx context.Context, r model.Recipient) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recipients (user_id, email, telegram_chat_id) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET email = excluded.email, telegram_chat_id = excluded.telegram_chat_id`,
		r.UserID, r.Email, r.TelegramChatID,
	)
	if err != nil {
		return fmt.Errorf("upsert recipient: %w", err)
	}
	return nil
}

// GetRecipient returns the delivery addresses of a user.
func (s *SQLite) GetRecipient(ctx context.Context, userID string) (*model.Recipient, error) {
	var r model.Recipient
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, email, telegram_chat_id FROM recipients WHERE user_id = ?`, userID,
	).Scan(&r.UserID, &r.Email, &r.TelegramChatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recipient %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan recipient: %w", err)
	}
	return &r, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOffer(row scannable) (model.Offer, error) {
	var (
		o                         model.Offer
		city, region, photos      sql.NullString
		priceCur, rentCur, desc   sql.NullString
		price, rent, floor, rooms sql.NullInt64
		furniture                 sql.NullInt64
		area                      sql.NullFloat64
		created                   string
	)
	err := row.Scan(&o.ID, &o.URL, &o.Title, &o.Category, &o.SubCategory, &city, &region, &photos,
		&price, &priceCur, &rent, &rentCur, &area, &floor, &rooms, &furniture, &desc, &created)
	if err != nil {
		return o, fmt.Errorf("scan offer: %w", err)
	}

	if region.Valid {
		o.Location = &model.Location{Region: region.String, City: stringPtr(city)}
	}
	o.Photos = []string{}
	if photos.Valid && photos.String != "" {
		if err := json.Unmarshal([]byte(photos.String), &o.Photos); err != nil {
			return o, fmt.Errorf("decode photos: %w", err)
		}
	}
	if price.Valid {
		o.Price = &model.Money{Amount: int(price.Int64), Currency: priceCur.String}
	}
	if rent.Valid {
		o.Rent = &model.Money{Amount: int(rent.Int64), Currency: rentCur.String}
	}
	if area.Valid {
		o.Area = &area.Float64
	}
	o.Floor = intPtr(floor)
	o.RoomCount = intPtr(rooms)
	if furniture.Valid {
		v := furniture.Int64 == 1
		o.HasFurniture = &v
	}
	o.Description = stringPtr(desc)
	o.CreatedAt, _ = time.Parse(timeLayout, created)
	return o, nil
}

func scanFilter(row scannable) (model.NotificationFilter, error) {
	var (
		f                                          model.NotificationFilter
		category, subCategory, buildingType, query sql.NullString
		priceMin, priceMax, areaMin, areaMax       sql.NullFloat64
		rooms, furniture, floor                    sql.NullInt64
		active                                     int
		created                                    string
	)
	err := row.Scan(&f.ID, &f.UserID, &category, &subCategory, &buildingType,
		&priceMin, &priceMax, &areaMin, &areaMax, &rooms, &furniture, &floor, &query,
		&active, &created)
	if err != nil {
		return f, fmt.Errorf("scan filter: %w", err)
	}
	f.Category = stringPtr(category)
	f.SubCategory = stringPtr(subCategory)
	f.BuildingType = stringPtr(buildingType)
	f.PriceMin = floatPtr(priceMin)
	f.PriceMax = floatPtr(priceMax)
	f.AreaMin = floatPtr(areaMin)
	f.AreaMax = floatPtr(areaMax)
	f.Rooms = intPtr(rooms)
	if furniture.Valid {
		v := furniture.Int64 == 1
		f.Furniture = &v
	}
	f.Floor = intPtr(floor)
	f.Query = stringPtr(query)
	f.Active = active == 1
	f.CreatedAt, _ = time.Parse(timeLayout, created)
	return f, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func moneyArgs(m *model.Money) (any, any) {
	if m == nil {
		return nil, nil
	}
	return m.Amount, m.Currency
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
