package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AmanCH3/hamro-grocery-backend/models"
)

// ProductRepository is read access to the catalog plus the upserts used by
// the seed tool.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	UpsertCategory(ctx context.Context, name string) (*models.Category, error)
	UpsertProduct(ctx context.Context, product *models.Product) error
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return &product, nil
}

// FindByIDs loads the given products in one query, keyed by id. Missing ids
// are simply absent from the result.
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// UpsertCategory returns the category with the given name, creating it if
// needed.
func (r *GormProductRepository) UpsertCategory(ctx context.Context, name string) (*models.Category, error) {
	category := models.Category{Name: name}
	err := r.db.WithContext(ctx).
		Where(models.Category{Name: name}).
		FirstOrCreate(&category).Error
	if err != nil {
		return nil, fmt.Errorf("upsert category %q: %w", name, err)
	}
	return &category, nil
}

// UpsertProduct inserts a product keyed by name, leaving an existing row
// untouched.
func (r *GormProductRepository) UpsertProduct(ctx context.Context, product *models.Product) error {
	var existing models.Product
	err := r.db.WithContext(ctx).Where("name = ?", product.Name).First(&existing).Error
	switch {
	case err == nil:
		*product = existing
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("find product %q: %w", product.Name, err)
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("create product %q: %w", product.Name, err)
	}
	return nil
}
