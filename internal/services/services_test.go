package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/spatialdeez/microstore/internal/api/validate"
	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/config"
	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
	"github.com/spatialdeez/microstore/internal/repository/memory"
	"github.com/spatialdeez/microstore/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		PageSize:              20,
		NameMatch:             "substring",
		CategoryCaseSensitive: true,
		CartRemoveFloor:       1,
	}
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	files   *storage.Files
	catalog *CatalogService
	users   *UserService
	carts   *CartService

	admin *auth.Principal
	alice *auth.Principal
	cat   models.Category
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.files = storage.NewFilesFs(afero.NewMemMapFs())
	cfg := testConfig()
	s.catalog = NewCatalogService(s.store, s.files, cfg)
	s.users = NewUserService(s.store, cfg)
	s.carts = NewCartService(s.store, cfg)

	root, err := s.users.Seed(s.ctx, UserInput{Username: "root", Password: "rootpw", Admin: true})
	s.Require().NoError(err)
	s.admin, err = s.users.Principal(s.ctx, root.ID)
	s.Require().NoError(err)

	alice, err := s.users.Register(s.ctx, "alice", "alicepw")
	s.Require().NoError(err)
	s.alice, err = s.users.Principal(s.ctx, alice.ID)
	s.Require().NoError(err)

	s.cat, err = s.catalog.CreateCategory(s.ctx, s.admin, "Apparel")
	s.Require().NoError(err)
}

func upload(name string) *Upload {
	return &Upload{Filename: name, Body: strings.NewReader("image-bytes")}
}

func (s *ServiceSuite) product(name, price string) models.Product {
	p, err := s.catalog.CreateProduct(s.ctx, s.admin, ProductInput{
		Name: name, Price: price, CategoryID: s.cat.ID, Image: upload(name + ".png"),
	})
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) requireValidation(err error, field string) {
	var errs validate.Errs
	s.Require().True(errors.As(err, &errs), "want validation error, got %v", err)
	for _, f := range errs {
		if f.Field == field {
			return
		}
	}
	s.Failf("missing field error", "field %q not in %v", field, errs)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// ----------------- Cart -----------------

func (s *ServiceSuite) TestAddMergesIntoOneLine() {
	p := s.product("Tee", "19.99")

	_, err := s.carts.AddItem(s.ctx, s.alice, p.ID, 1)
	s.Require().NoError(err)
	v, err := s.carts.AddItem(s.ctx, s.alice, p.ID, 2)
	s.Require().NoError(err)

	s.Require().Len(v.Items, 1)
	s.Equal(3, v.Items[0].Quantity)
	s.True(v.Items[0].Subtotal.Equal(dec("59.97")), v.Items[0].Subtotal.String())
	s.True(v.Total.Equal(dec("59.97")))
}

func (s *ServiceSuite) TestTotalIsSumOfSubtotals() {
	a := s.product("Cap", "1.10")
	b := s.product("Sock", "2.20")

	_, err := s.carts.AddItem(s.ctx, s.alice, a.ID, 3)
	s.Require().NoError(err)
	v, err := s.carts.AddItem(s.ctx, s.alice, b.ID, 1)
	s.Require().NoError(err)
	s.True(v.Total.Equal(dec("5.50")), v.Total.String())

	// storage order
	s.Equal(a.ID, v.Items[0].ProductID)
	s.Equal(b.ID, v.Items[1].ProductID)

	v, err = s.carts.RemoveItem(s.ctx, s.alice, a.ID, 1)
	s.Require().NoError(err)
	s.True(v.Total.Equal(dec("4.40")), v.Total.String())
}

func (s *ServiceSuite) TestRemoveSingleUnitDeletesItem() {
	p := s.product("Tee", "10")
	_, err := s.carts.AddItem(s.ctx, s.alice, p.ID, 1)
	s.Require().NoError(err)

	v, err := s.carts.RemoveItem(s.ctx, s.alice, p.ID, 1)
	s.Require().NoError(err)
	s.Empty(v.Items)
	s.True(v.Total.IsZero())
}

func (s *ServiceSuite) TestRemoveDeletesAtFloor() {
	p := s.product("Tee", "10")
	_, err := s.carts.AddItem(s.ctx, s.alice, p.ID, 3)
	s.Require().NoError(err)

	v, err := s.carts.RemoveItem(s.ctx, s.alice, p.ID, 1)
	s.Require().NoError(err)
	s.Require().Len(v.Items, 1)
	s.Equal(2, v.Items[0].Quantity)

	// 2 - 1 leaves 1, which is at the floor
	v, err = s.carts.RemoveItem(s.ctx, s.alice, p.ID, 1)
	s.Require().NoError(err)
	s.Empty(v.Items)
}

func (s *ServiceSuite) TestRemoveWithZeroFloorKeepsLastUnit() {
	cfg := testConfig()
	cfg.CartRemoveFloor = 0
	carts := NewCartService(s.store, cfg)
	p := s.product("Tee", "10")

	_, err := carts.AddItem(s.ctx, s.alice, p.ID, 2)
	s.Require().NoError(err)
	v, err := carts.RemoveItem(s.ctx, s.alice, p.ID, 1)
	s.Require().NoError(err)
	s.Require().Len(v.Items, 1)
	s.Equal(1, v.Items[0].Quantity)
}

func (s *ServiceSuite) TestRemoveMissingIsNoop() {
	p := s.product("Tee", "10")

	v, err := s.carts.RemoveItem(s.ctx, s.alice, p.ID, 1)
	s.Require().NoError(err)
	s.Empty(v.Items)

	other := s.product("Mug", "4")
	_, err = s.carts.AddItem(s.ctx, s.alice, other.ID, 1)
	s.Require().NoError(err)
	v, err = s.carts.RemoveItem(s.ctx, s.alice, p.ID, 5)
	s.Require().NoError(err)
	s.Require().Len(v.Items, 1)
	s.Equal(1, v.Items[0].Quantity)
}

func (s *ServiceSuite) TestAddRejectsBadInput() {
	_, err := s.carts.AddItem(s.ctx, s.alice, 9999, 1)
	s.ErrorIs(err, ErrNotFound)

	p := s.product("Tee", "10")
	_, err = s.carts.AddItem(s.ctx, s.alice, p.ID, 0)
	s.requireValidation(err, "quantity")

	_, err = s.carts.AddItem(s.ctx, nil, p.ID, 1)
	s.ErrorIs(err, auth.ErrUnauthenticated)
}

func (s *ServiceSuite) TestAddCapsQuantity() {
	p := s.product("Tee", "10")
	_, err := s.carts.AddItem(s.ctx, s.alice, p.ID, math.MaxInt32+1)
	s.requireValidation(err, "quantity")

	_, err = s.carts.AddItem(s.ctx, s.alice, p.ID, math.MaxInt32)
	s.Require().NoError(err)
	_, err = s.carts.AddItem(s.ctx, s.alice, p.ID, 1)
	s.requireValidation(err, "quantity")

	v, err := s.carts.View(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Require().Len(v.Items, 1)
	s.Equal(math.MaxInt32, v.Items[0].Quantity)
	s.True(v.Total.IsPositive(), v.Total.String())
}

func (s *ServiceSuite) TestMissingProductHasZeroSubtotal() {
	keep := s.product("Cap", "2.50")
	gone := s.product("Tee", "10")
	_, err := s.carts.AddItem(s.ctx, s.alice, keep.ID, 2)
	s.Require().NoError(err)
	_, err = s.carts.AddItem(s.ctx, s.alice, gone.ID, 1)
	s.Require().NoError(err)

	s.Require().NoError(s.catalog.DeleteProduct(s.ctx, s.admin, gone.ID))

	v, err := s.carts.View(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Require().Len(v.Items, 2)
	s.Nil(v.Items[1].Product)
	s.True(v.Items[1].Subtotal.IsZero())
	s.True(v.Total.Equal(dec("5.00")), v.Total.String())
}

func (s *ServiceSuite) TestPurchaseEmptiesCart() {
	p := s.product("Tee", "19.99")
	_, err := s.carts.AddItem(s.ctx, s.alice, p.ID, 3)
	s.Require().NoError(err)

	rc, err := s.carts.Purchase(s.ctx, s.alice)
	s.Require().NoError(err)
	s.True(rc.Total.Equal(dec("59.97")))
	s.Len(rc.Items, 1)
	s.False(rc.PurchasedAt.IsZero())

	v, err := s.carts.View(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Empty(v.Items)

	_, err = s.carts.Purchase(s.ctx, s.alice)
	s.requireValidation(err, "cart")

	logs, err := s.store.Repos().AuditLogs.List(s.ctx, 1, 0)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal("purchase", logs[0].Action)
	s.Equal("59.97", logs[0].Details["total"])
}

func (s *ServiceSuite) TestConcurrentAddsSum() {
	p := s.product("Tee", "1")

	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			_, err := s.carts.AddItem(s.ctx, s.alice, p.ID, 2)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	v, err := s.carts.View(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Require().Len(v.Items, 1)
	s.Equal(50, v.Items[0].Quantity)
}

func (s *ServiceSuite) TestFailedCommitLeavesCartIntact() {
	p := s.product("Tee", "10")
	_, err := s.carts.AddItem(s.ctx, s.alice, p.ID, 1)
	s.Require().NoError(err)

	s.store.SetCommitHook(func() error { return errors.New("disk full") })
	_, err = s.carts.AddItem(s.ctx, s.alice, p.ID, 4)
	s.ErrorIs(err, ErrPersistence)
	s.store.SetCommitHook(nil)

	v, err := s.carts.View(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(1, v.Items[0].Quantity)
}

// ----------------- Catalog -----------------

func (s *ServiceSuite) TestDeleteCategory() {
	empty, err := s.catalog.CreateCategory(s.ctx, s.admin, "Garden")
	s.Require().NoError(err)
	s.Require().NoError(s.catalog.DeleteCategory(s.ctx, s.admin, empty.ID))
	_, err = s.catalog.GetCategory(s.ctx, empty.ID)
	s.ErrorIs(err, ErrNotFound)

	s.product("Tee", "10")
	err = s.catalog.DeleteCategory(s.ctx, s.admin, s.cat.ID)
	var ce *ConflictError
	s.Require().ErrorAs(err, &ce)
	s.ErrorIs(err, ErrConflict)
	s.Equal(1, ce.Count)

	detail, err := s.catalog.GetCategory(s.ctx, s.cat.ID)
	s.Require().NoError(err)
	s.Len(detail.Products, 1)
}

func (s *ServiceSuite) TestDuplicateCategoryNames() {
	_, err := s.catalog.CreateCategory(s.ctx, s.admin, "Apparel")
	s.requireValidation(err, "name")
	// substring of an existing name
	_, err = s.catalog.CreateCategory(s.ctx, s.admin, "Appar")
	s.requireValidation(err, "name")
	// case-sensitive by default
	_, err = s.catalog.CreateCategory(s.ctx, s.admin, "apparel")
	s.NoError(err)

	_, err = s.catalog.CreateCategory(s.ctx, s.admin, "")
	s.requireValidation(err, "name")
	_, err = s.catalog.CreateCategory(s.ctx, s.admin, strings.Repeat("x", 101))
	s.requireValidation(err, "name")
}

func (s *ServiceSuite) TestExactCaseInsensitiveCategoryMatch() {
	cfg := testConfig()
	cfg.NameMatch = "exact"
	cfg.CategoryCaseSensitive = false
	catalog := NewCatalogService(s.store, s.files, cfg)

	_, err := catalog.CreateCategory(s.ctx, s.admin, "Appar")
	s.NoError(err)
	_, err = catalog.CreateCategory(s.ctx, s.admin, "APPAREL")
	s.requireValidation(err, "name")
}

func (s *ServiceSuite) TestRenameCategory() {
	other, err := s.catalog.CreateCategory(s.ctx, s.admin, "Garden")
	s.Require().NoError(err)

	c, err := s.catalog.RenameCategory(s.ctx, s.admin, s.cat.ID, "Clothing")
	s.Require().NoError(err)
	s.Equal("Clothing", c.Name)

	_, err = s.catalog.RenameCategory(s.ctx, s.admin, other.ID, "Clothing")
	s.requireValidation(err, "name")
	// renaming to its own name is not a duplicate
	_, err = s.catalog.RenameCategory(s.ctx, s.admin, other.ID, "Garden")
	s.NoError(err)

	_, err = s.catalog.RenameCategory(s.ctx, s.admin, 9999, "Nope")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestNonAdminCannotCreateProduct() {
	_, err := s.catalog.CreateProduct(s.ctx, s.alice, ProductInput{
		Name: "Tee", Price: "10", CategoryID: s.cat.ID, Image: upload("tee.png"),
	})
	s.ErrorIs(err, auth.ErrForbidden)

	page, err := s.catalog.ListProducts(s.ctx, 1, 10)
	s.Require().NoError(err)
	s.Zero(page.Total)
	ok, err := s.files.Exists("tee.png")
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.catalog.CreateCategory(s.ctx, nil, "Garden")
	s.ErrorIs(err, auth.ErrUnauthenticated)
}

func (s *ServiceSuite) TestCreateProductValidation() {
	_, err := s.catalog.CreateProduct(s.ctx, s.admin, ProductInput{Price: "0", CategoryID: s.cat.ID})
	s.requireValidation(err, "name")
	s.requireValidation(err, "price")
	s.requireValidation(err, "image")

	_, err = s.catalog.CreateProduct(s.ctx, s.admin, ProductInput{
		Name: "Tee", Price: "abc", CategoryID: s.cat.ID, Image: upload("tee.exe"),
	})
	s.requireValidation(err, "price")
	s.requireValidation(err, "image")

	_, err = s.catalog.CreateProduct(s.ctx, s.admin, ProductInput{
		Name: "Tee", Price: "10", CategoryID: 9999, Image: upload("tee.png"),
	})
	s.requireValidation(err, "category_id")
	ok, _ := s.files.Exists("tee.png")
	s.False(ok)
}

func (s *ServiceSuite) TestImageCollisionIsConflict() {
	s.product("Tee", "10")
	_, err := s.catalog.CreateProduct(s.ctx, s.admin, ProductInput{
		Name: "Other tee", Price: "12", CategoryID: s.cat.ID, Image: upload("Tee.png"),
	})
	s.ErrorIs(err, ErrConflict)

	page, err := s.catalog.ListProducts(s.ctx, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, page.Total)
}

func (s *ServiceSuite) TestFailedProductCommitRemovesImage() {
	s.store.SetCommitHook(func() error { return errors.New("connection reset") })
	_, err := s.catalog.CreateProduct(s.ctx, s.admin, ProductInput{
		Name: "Tee", Price: "10", CategoryID: s.cat.ID, Image: upload("tee.png"),
	})
	s.store.SetCommitHook(nil)
	s.ErrorIs(err, ErrPersistence)

	ok, err := s.files.Exists("tee.png")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ServiceSuite) TestUpdateProductReplacesImage() {
	p := s.product("Tee", "10")

	up, err := s.catalog.UpdateProduct(s.ctx, s.admin, p.ID, ProductInput{
		Name: "Tee v2", Price: "12.50", CategoryID: s.cat.ID, Image: upload("tee-v2.png"),
	})
	s.Require().NoError(err)
	s.Equal("Tee v2", up.Name)
	s.Equal("tee-v2.png", up.ImagePath)
	s.True(up.Price.Equal(dec("12.50")))

	oldThere, _ := s.files.Exists("Tee.png")
	newThere, _ := s.files.Exists("tee-v2.png")
	s.False(oldThere)
	s.True(newThere)

	// image is optional on update
	up, err = s.catalog.UpdateProduct(s.ctx, s.admin, p.ID, ProductInput{
		Name: "Tee v3", Price: "12.50", CategoryID: s.cat.ID,
	})
	s.Require().NoError(err)
	s.Equal("tee-v2.png", up.ImagePath)
}

func (s *ServiceSuite) TestDeleteProductRemovesImage() {
	p := s.product("Tee", "10")
	s.Require().NoError(s.catalog.DeleteProduct(s.ctx, s.admin, p.ID))

	ok, _ := s.files.Exists(p.ImagePath)
	s.False(ok)
	_, err := s.catalog.GetProduct(s.ctx, p.ID)
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.catalog.DeleteProduct(s.ctx, s.admin, p.ID), ErrNotFound)
}

func (s *ServiceSuite) TestListProductsPaginates() {
	for _, n := range []string{"A", "B", "C", "D", "E"} {
		s.product(n, "1")
	}
	page, err := s.catalog.ListProducts(s.ctx, 2, 2)
	s.Require().NoError(err)
	s.Equal(5, page.Total)
	s.Equal(3, page.TotalPages)
	s.Require().Len(page.Items, 2)
	s.Equal("C", page.Items[0].Name)

	page, err = s.catalog.ListProducts(s.ctx, 9, 2)
	s.Require().NoError(err)
	s.Empty(page.Items)

	page, err = s.catalog.ListProducts(s.ctx, math.MaxInt/50, 100)
	s.Require().NoError(err)
	s.Empty(page.Items)
	s.Equal(5, page.Total)
}

// ----------------- Users -----------------

func (s *ServiceSuite) TestRegisterSubstringUsername() {
	_, err := s.users.Register(s.ctx, "bobby", "pw")
	s.Require().NoError(err)
	_, err = s.users.Register(s.ctx, "bob", "pw")
	s.requireValidation(err, "username")

	exact := NewUserService(s.store, config.Config{NameMatch: "exact", PageSize: 20})
	_, err = exact.Register(s.ctx, "bob", "pw")
	s.NoError(err)
	_, err = exact.Register(s.ctx, "bob", "pw")
	s.requireValidation(err, "username")
}

func (s *ServiceSuite) TestRegisterValidation() {
	_, err := s.users.Register(s.ctx, "", "")
	s.requireValidation(err, "username")
	s.requireValidation(err, "password")

	_, err = s.users.Register(s.ctx, "zed", strings.Repeat("p", 73))
	s.requireValidation(err, "password")
	_, err = s.users.Register(s.ctx, "zed", strings.Repeat("p", 72))
	s.NoError(err)
}

func (s *ServiceSuite) TestAuthenticate() {
	u, err := s.users.Authenticate(s.ctx, "alice", "alicepw")
	s.Require().NoError(err)
	s.Equal(s.alice.UserID, u.ID)

	_, err = s.users.Authenticate(s.ctx, "alice", "nope")
	s.ErrorIs(err, auth.ErrInvalidCredentials)
	_, err = s.users.Authenticate(s.ctx, "nobody", "alicepw")
	s.ErrorIs(err, auth.ErrInvalidCredentials)
}

func (s *ServiceSuite) TestAdminUserManagement() {
	_, err := s.users.List(s.ctx, s.alice, 1, 10)
	s.ErrorIs(err, auth.ErrForbidden)

	carol, err := s.users.Create(s.ctx, s.admin, UserInput{Username: "carol", Password: "pw"})
	s.Require().NoError(err)
	s.False(carol.Admin)

	up, err := s.users.Update(s.ctx, s.admin, carol.ID, UserInput{Username: "carol", Admin: true, Password: "newpw"})
	s.Require().NoError(err)
	s.True(up.Admin)
	_, err = s.users.Authenticate(s.ctx, "carol", "newpw")
	s.NoError(err)

	_, err = s.users.Update(s.ctx, s.admin, carol.ID, UserInput{Username: "alice"})
	s.requireValidation(err, "username")

	_, err = s.users.Update(s.ctx, s.admin, carol.ID, UserInput{Username: "carol", Password: strings.Repeat("é", 40)})
	s.requireValidation(err, "password")

	page, err := s.users.List(s.ctx, s.admin, 1, 10)
	s.Require().NoError(err)
	s.Equal(3, page.Total)

	page, err = s.users.List(s.ctx, s.admin, math.MaxInt/2, 10)
	s.Require().NoError(err)
	s.Empty(page.Items)
}

func (s *ServiceSuite) TestDeleteUserRemovesCart() {
	p := s.product("Tee", "10")
	v, err := s.carts.AddItem(s.ctx, s.alice, p.ID, 2)
	s.Require().NoError(err)

	s.Require().NoError(s.users.Delete(s.ctx, s.admin, s.alice.UserID))

	r := s.store.Repos()
	_, err = r.Users.GetByID(s.ctx, s.alice.UserID)
	s.ErrorIs(err, repo.ErrNotFound)
	_, err = r.Carts.ForUser(s.ctx, s.alice.UserID)
	s.ErrorIs(err, repo.ErrNotFound)
	items, err := r.Carts.Items(s.ctx, v.CartID)
	s.Require().NoError(err)
	s.Empty(items)

	// a user without a cart is deletable too
	bob, err := s.users.Register(s.ctx, "bob", "pw")
	s.Require().NoError(err)
	s.NoError(s.users.Delete(s.ctx, s.admin, bob.ID))
}
