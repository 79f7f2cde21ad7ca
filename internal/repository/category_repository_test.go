package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"autoparts/internal/model"
	"autoparts/internal/testkit"
)

func TestCategoryRepository_ListActiveCountsActiveProducts(t *testing.T) {
	gdb := testkit.NewDB(t)
	repo := NewCategoryRepository(gdb)
	products := NewProductRepository(gdb)
	ctx := context.Background()

	tires := testkit.CreateCategory(t, gdb, "Tires", "tires")
	brakes := testkit.CreateCategory(t, gdb, "Brakes", "brakes")
	retired := testkit.CreateCategory(t, gdb, "Retired", "retired")
	require.NoError(t, gdb.Model(retired).Update("active", false).Error)

	testkit.CreateProduct(t, gdb, brakes.ID, "Pad", "10.00", 1)
	gone := testkit.CreateProduct(t, gdb, brakes.ID, "Old Pad", "10.00", 1)
	require.NoError(t, products.Deactivate(ctx, gone.ID))

	categories, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)

	assert.Equal(t, "brakes", categories[0].Slug)
	assert.EqualValues(t, 1, categories[0].ProductCount)
	assert.Equal(t, tires.ID, categories[1].ID)
	assert.Zero(t, categories[1].ProductCount)

	_, err = repo.FindActiveBySlug(ctx, "retired")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	exists, err := repo.Exists(ctx, retired.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, 999)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepository(t *testing.T) {
	gdb := testkit.NewDB(t)
	repo := NewUserRepository(gdb)
	ctx := context.Background()

	u := &model.User{Name: "Ana", Email: "ana@example.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, u))

	exists, err := repo.ExistsByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.Create(ctx, &model.User{Name: "Dup", Email: "ana@example.com", PasswordHash: "hash"})
	assert.Error(t, err)

	found, err := repo.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
