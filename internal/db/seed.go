package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"autoparts/internal/model"
)

var seedCategories = []model.Category{
	{Name: "Engine", Slug: "engine", Description: "Engine parts"},
	{Name: "Brakes", Slug: "brakes", Description: "Brake systems and components"},
	{Name: "Suspension", Slug: "suspension", Description: "Shock absorbers, springs and suspension components"},
	{Name: "Electrical", Slug: "electrical", Description: "Electrical and electronic components"},
	{Name: "Filters", Slug: "filters", Description: "Air, oil, fuel and cabin filters"},
	{Name: "Tires", Slug: "tires", Description: "Tires and wheel accessories"},
}

type seedProduct struct {
	categorySlug string
	product      model.Product
}

var seedProducts = []seedProduct{
	{"brakes", model.Product{
		Name:         "Front Brake Pad",
		Description:  "Premium brake pad for Honda Civic 2012-2016.",
		Price:        decimal.RequireFromString("89.90"),
		Stock:        25,
		Brand:        "Honda",
		VehicleModel: "Civic",
		PartNumber:   "HB001",
	}},
	{"filters", model.Product{
		Name:         "Oil Filter",
		Description:  "High quality oil filter for 1.6 engines. One year warranty.",
		Price:        decimal.RequireFromString("35.50"),
		Stock:        50,
		Brand:        "Toyota",
		VehicleModel: "Corolla",
		PartNumber:   "FL001",
	}},
	{"engine", model.Product{
		Name:         "Spark Plug",
		Description:  "Iridium spark plug for better engine performance.",
		Price:        decimal.RequireFromString("45.00"),
		Stock:        100,
		Brand:        "Universal",
		VehicleModel: "Various",
		PartNumber:   "VI001",
	}},
	{"brakes", model.Product{
		Name:         "Vented Brake Disc",
		Description:  "Vented brake disc for better heat dissipation.",
		Price:        decimal.RequireFromString("150.00"),
		Stock:        15,
		Brand:        "Ford",
		VehicleModel: "Focus",
		PartNumber:   "DF001",
	}},
}

// SeedResult counts the rows a seed run inserted.
type SeedResult struct {
	Categories int
	Products   int
}

// SeedCatalog inserts the default categories and sample products. Rows that
// already exist (by slug or part number) are left untouched, so it is safe to
// run repeatedly.
func SeedCatalog(ctx context.Context, gdb *gorm.DB) (SeedResult, error) {
	var res SeedResult
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make(map[string]uint, len(seedCategories))
		for _, c := range seedCategories {
			var existing model.Category
			err := tx.Where("slug = ?", c.Slug).First(&existing).Error
			switch {
			case err == nil:
				ids[c.Slug] = existing.ID
				continue
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("seed category %s: %w", c.Slug, err)
			}

			category := c
			category.Active = true
			if err := tx.Create(&category).Error; err != nil {
				return fmt.Errorf("seed category %s: %w", c.Slug, err)
			}
			ids[c.Slug] = category.ID
			res.Categories++
		}

		for _, sp := range seedProducts {
			var count int64
			if err := tx.Model(&model.Product{}).Where("part_number = ?", sp.product.PartNumber).Count(&count).Error; err != nil {
				return fmt.Errorf("seed product %s: %w", sp.product.PartNumber, err)
			}
			if count > 0 {
				continue
			}

			product := sp.product
			product.CategoryID = ids[sp.categorySlug]
			product.Active = true
			if err := tx.Create(&product).Error; err != nil {
				return fmt.Errorf("seed product %s: %w", sp.product.PartNumber, err)
			}
			res.Products++
		}
		return nil
	})
	return res, err
}
