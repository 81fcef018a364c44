package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"barberbook/internal/booking"
	"barberbook/internal/model"
)

// ShopRepository reads shops and their service catalogs.
type ShopRepository struct {
	pool *pgxpool.Pool
}

func NewShopRepository(pool *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{pool: pool}
}

func (r *ShopRepository) GetShop(ctx context.Context, id string) (model.Shop, error) {
	return r.getShop(ctx, "id", id)
}

func (r *ShopRepository) GetShopByOwner(ctx context.Context, ownerID string) (model.Shop, error) {
	return r.getShop(ctx, "owner_id", ownerID)
}

func (r *ShopRepository) getShop(ctx context.Context, column, value string) (model.Shop, error) {
	query := fmt.Sprintf(`
		SELECT id::text, owner_id::text, name, phone, address, open_time, close_time, created_at
		FROM shops WHERE %s = $1`, column)

	var shop model.Shop
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&shop.ID, &shop.OwnerID, &shop.Name, &shop.Phone, &shop.Address,
		&shop.OpenTime, &shop.CloseTime, &shop.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Shop{}, booking.E(booking.KindNotFound, "shop not found")
		}
		return model.Shop{}, fmt.Errorf("get shop: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, shop_id::text, name, description, price, duration, active
		FROM shop_services
		WHERE shop_id = $1
		ORDER BY name`, shop.ID)
	if err != nil {
		return model.Shop{}, fmt.Errorf("list shop services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var svc model.ShopService
		if err := rows.Scan(&svc.ID, &svc.ShopID, &svc.Name, &svc.Description, &svc.Price, &svc.Duration, &svc.Active); err != nil {
			return model.Shop{}, fmt.Errorf("scan shop service: %w", err)
		}
		shop.Services = append(shop.Services, svc)
	}
	return shop, rows.Err()
}
