package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

func TestWithTxCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.WithTx(ctx, func(r repo.Repos) error {
		_, err := r.Categories.Create(ctx, "Shoes")
		return err
	})
	require.NoError(t, err)

	cats, err := s.Repos().Categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.Equal(t, "Shoes", cats[0].Name)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(r repo.Repos) error {
		if _, err := r.Categories.Create(ctx, "Shoes"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	cats, err := s.Repos().Categories.List(ctx)
	require.NoError(t, err)
	require.Empty(t, cats)
}

func TestWithTxCommitFailureLeavesStateIntact(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, err := s.Repos().Categories.Create(ctx, "Hats")
	require.NoError(t, err)

	s.SetCommitHook(func() error { return errors.New("disk full") })
	err = s.WithTx(ctx, func(r repo.Repos) error {
		cats, _ := r.Categories.List(ctx)
		for _, c := range cats {
			if err := r.Categories.Delete(ctx, c.ID); err != nil {
				return err
			}
		}
		return nil
	})
	require.ErrorIs(t, err, repo.ErrCommit)

	cats, err := s.Repos().Categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
}

func TestNameTakenModes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := s.Repos()
	_, err := r.Users.Create(ctx, "bobby", "hash", false)
	require.NoError(t, err)

	taken, err := r.Users.UsernameTaken(ctx, "bob", repo.NameMatch{Substring: true}, 0)
	require.NoError(t, err)
	require.True(t, taken)

	taken, err = r.Users.UsernameTaken(ctx, "bob", repo.NameMatch{}, 0)
	require.NoError(t, err)
	require.False(t, taken)

	taken, err = r.Users.UsernameTaken(ctx, "BOBBY", repo.NameMatch{FoldCase: true}, 0)
	require.NoError(t, err)
	require.True(t, taken)
}

func TestCategoryDeleteRefusedWhileReferenced(t *testing.T) {
	ctx := context.Background()
	r := NewStore().Repos()
	c, err := r.Categories.Create(ctx, "Tools")
	require.NoError(t, err)
	_, err = r.Products.Create(ctx, models.Product{Name: "Hammer", Price: decimal.RequireFromString("9.50"), ImagePath: "h.png", CategoryID: c.ID})
	require.NoError(t, err)

	require.ErrorIs(t, r.Categories.Delete(ctx, c.ID), repo.ErrReferenced)
}

func TestItemsKeepStorageOrder(t *testing.T) {
	ctx := context.Background()
	r := NewStore().Repos()
	u, err := r.Users.Create(ctx, "ann", "hash", false)
	require.NoError(t, err)
	cart, err := r.Carts.Create(ctx, u.ID)
	require.NoError(t, err)

	for _, pid := range []int64{30, 10, 20} {
		_, err := r.Carts.CreateItem(ctx, models.CartItem{CartID: cart.ID, ProductID: pid, Quantity: 1})
		require.NoError(t, err)
	}
	items, err := r.Carts.Items(ctx, cart.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{30, 10, 20}, []int64{items[0].ProductID, items[1].ProductID, items[2].ProductID})

	_, err = r.Carts.CreateItem(ctx, models.CartItem{CartID: cart.ID, ProductID: 10, Quantity: 1})
	require.ErrorIs(t, err, repo.ErrDuplicate)
}

func TestListWindow(t *testing.T) {
	ctx := context.Background()
	r := NewStore().Repos()
	c, err := r.Categories.Create(ctx, "Misc")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := r.Products.Create(ctx, models.Product{Name: "p", Price: decimal.NewFromInt(1), ImagePath: "x.txt", CategoryID: c.ID})
		require.NoError(t, err)
	}

	page, err := r.Products.List(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)

	page, err = r.Products.List(ctx, 2, 10)
	require.NoError(t, err)
	require.Empty(t, page)

	page, err = r.Products.List(ctx, 2, -4)
	require.NoError(t, err)
	require.Empty(t, page)
}
