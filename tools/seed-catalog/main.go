// Command seed-catalog loads categories, products and an optional demo user
// into the grocery database. Products are matched by name, so running it
// twice changes nothing.
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AmanCH3/hamro-grocery-backend/config"
	"github.com/AmanCH3/hamro-grocery-backend/database"
	"github.com/AmanCH3/hamro-grocery-backend/models"
	"github.com/AmanCH3/hamro-grocery-backend/pkg/logger"
	"github.com/AmanCH3/hamro-grocery-backend/repository"
)

//go:embed catalog.json
var defaultCatalog []byte

type catalogEntry struct {
	Category    string  `json:"category"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	ImageURL    string  `json:"imageUrl"`
}

var validate = validator.New()

func main() {
	var (
		file         string
		demoEmail    string
		demoPassword string
		demoPoints   int
	)
	flag.StringVar(&file, "file", "", "catalog JSON file (defaults to the built-in catalog)")
	flag.StringVar(&demoEmail, "demo-email", os.Getenv("SEED_DEMO_EMAIL"), "create a demo customer with this email")
	flag.StringVar(&demoPassword, "demo-password", "password123", "demo customer password")
	flag.IntVar(&demoPoints, "demo-points", 200, "demo customer starting Grocery Points")
	flag.Parse()

	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	entries, err := loadCatalog(file)
	if err != nil {
		log.Fatal("Failed to read catalog", zap.Error(err))
	}

	cfg := config.FromEnv()
	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	products := repository.NewGormProductRepository(db)
	if err := seedCatalog(ctx, products, entries); err != nil {
		log.Fatal("Catalog seed failed", zap.Error(err))
	}
	log.Info("Catalog seeded", zap.Int("products", len(entries)))

	if demoEmail != "" {
		users := repository.NewGormUserRepository(db)
		if err := seedDemoUser(ctx, users, demoEmail, demoPassword, demoPoints); err != nil {
			log.Fatal("Demo user seed failed", zap.Error(err))
		}
		log.Info("Demo user ready", zap.String("email", demoEmail), zap.Int("grocery_points", demoPoints))
	}
}

func loadCatalog(path string) ([]catalogEntry, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = b
	}

	var entries []catalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range entries {
		if err := validate.Struct(&entries[i]); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}
	return entries, nil
}

func seedCatalog(ctx context.Context, repo repository.ProductRepository, entries []catalogEntry) error {
	for _, e := range entries {
		product := &models.Product{
			Name:        e.Name,
			Description: e.Description,
			Price:       e.Price,
			Stock:       e.Stock,
			ImageURL:    e.ImageURL,
		}
		if e.Category != "" {
			category, err := repo.UpsertCategory(ctx, e.Category)
			if err != nil {
				return err
			}
			product.CategoryID = &category.ID
		}
		if err := repo.UpsertProduct(ctx, product); err != nil {
			return err
		}
	}
	return nil
}

func seedDemoUser(ctx context.Context, repo repository.UserRepository, email, password string, points int) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = repo.Create(ctx, &models.User{
		FullName:      "Demo Customer",
		Email:         email,
		Password:      string(hashed),
		Role:          models.RoleNormal,
		GroceryPoints: points,
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil
	}
	return err
}
