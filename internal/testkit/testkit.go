// Package testkit holds fixtures shared by package tests: an in-memory SQLite
// database with the full schema, and helpers that insert catalog rows.
package testkit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"autoparts/internal/db"
	"autoparts/internal/model"
)

// NewDB opens a private in-memory SQLite database and migrates it.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(db.Options{Driver: "sqlite", DSN: ":memory:", Silent: true})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// CreateCategory inserts an active category.
func CreateCategory(t *testing.T, gdb *gorm.DB, name, slug string) *model.Category {
	t.Helper()

	c := &model.Category{Name: name, Slug: slug, Active: true}
	require.NoError(t, gdb.Create(c).Error)
	return c
}

// CreateProduct inserts an active product in category.
func CreateProduct(t *testing.T, gdb *gorm.DB, categoryID uint, name, price string, stock int) *model.Product {
	t.Helper()

	p := &model.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		CategoryID: categoryID,
		Active:     true,
	}
	require.NoError(t, gdb.Create(p).Error)
	return p
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t *testing.T, gdb *gorm.DB, email string, role model.Role) *model.User {
	t.Helper()

	u := &model.User{Name: "Test User", Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, gdb.Create(u).Error)
	return u
}
