package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spatialdeez/microstore/internal/api/validate"
	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/config"
	"github.com/spatialdeez/microstore/internal/metrics"
	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
	"github.com/spatialdeez/microstore/internal/storage"
)

const (
	maxCategoryName = 100
	maxProductName  = 255
	maxPerPage      = 100
)

var minPrice = decimal.RequireFromString("0.01")

type Upload struct {
	Filename string
	Body     io.Reader
}

// ProductInput is a create or update request. Price is kept as text so a
// malformed value is reported against its field.
type ProductInput struct {
	Name       string
	Price      string
	CategoryID int64
	Image      *Upload
}

type CatalogService struct {
	st       repo.Store
	files    *storage.Files
	match    repo.NameMatch
	pageSize int
}

func NewCatalogService(st repo.Store, files *storage.Files, c config.Config) *CatalogService {
	return &CatalogService{
		st:       st,
		files:    files,
		match:    repo.NameMatch{Substring: c.NameMatch != "exact", FoldCase: !c.CategoryCaseSensitive},
		pageSize: c.PageSize,
	}
}

// ----------------- Categories -----------------

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	cs, err := s.st.Repos().Categories.List(ctx)
	if cs == nil {
		cs = []models.Category{}
	}
	return cs, err
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (models.CategoryDetail, error) {
	r := s.st.Repos()
	c, err := r.Categories.GetByID(ctx, id)
	if err != nil {
		return models.CategoryDetail{}, err
	}
	ps, err := r.Products.ListByCategory(ctx, id)
	if err != nil {
		return models.CategoryDetail{}, err
	}
	if ps == nil {
		ps = []models.Product{}
	}
	return models.CategoryDetail{Category: c, Products: ps}, nil
}

func categoryNameErrs(name string) error {
	var errs validate.Errs
	errs.Add(validate.Required("name", name), validate.MaxLen("name", name, maxCategoryName))
	return errs.Err()
}

func (s *CatalogService) CreateCategory(ctx context.Context, p *auth.Principal, name string) (models.Category, error) {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return models.Category{}, err
	}
	name = strings.TrimSpace(name)
	if err := categoryNameErrs(name); err != nil {
		return models.Category{}, err
	}

	var c models.Category
	err := inTx(ctx, s.st, func(r repo.Repos) error {
		taken, err := r.Categories.NameTaken(ctx, name, s.match, 0)
		if err != nil {
			return err
		}
		if taken {
			return validate.Errs{{Field: "name", Msg: "category already exists"}}
		}
		if c, err = r.Categories.Create(ctx, name); err != nil {
			return err
		}
		return audit(ctx, r, p, "category", c.ID, "create", map[string]any{"name": name})
	})
	if err != nil {
		return models.Category{}, err
	}
	metrics.MutationsTotal.WithLabelValues("category", "create").Inc()
	return c, nil
}

func (s *CatalogService) RenameCategory(ctx context.Context, p *auth.Principal, id int64, name string) (models.Category, error) {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return models.Category{}, err
	}
	name = strings.TrimSpace(name)
	if err := categoryNameErrs(name); err != nil {
		return models.Category{}, err
	}

	var c models.Category
	err := inTx(ctx, s.st, func(r repo.Repos) error {
		var err error
		if c, err = r.Categories.GetByID(ctx, id); err != nil {
			return err
		}
		taken, err := r.Categories.NameTaken(ctx, name, s.match, id)
		if err != nil {
			return err
		}
		if taken {
			return validate.Errs{{Field: "name", Msg: "category already exists"}}
		}
		if err := r.Categories.Rename(ctx, id, name); err != nil {
			return err
		}
		old := c.Name
		c.Name = name
		return audit(ctx, r, p, "category", id, "rename", map[string]any{"from": old, "to": name})
	})
	if err != nil {
		return models.Category{}, err
	}
	metrics.MutationsTotal.WithLabelValues("category", "rename").Inc()
	return c, nil
}

// DeleteCategory removes an empty category. A category that still has
// products is left alone and the product count is reported.
func (s *CatalogService) DeleteCategory(ctx context.Context, p *auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return err
	}
	err := inTx(ctx, s.st, func(r repo.Repos) error {
		c, err := r.Categories.GetByID(ctx, id)
		if err != nil {
			return err
		}
		n, err := r.Categories.CountProducts(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &ConflictError{Reason: "category has products", Count: n}
		}
		if err := r.Categories.Delete(ctx, id); err != nil {
			if errors.Is(err, repo.ErrReferenced) {
				return &ConflictError{Reason: "category has products"}
			}
			return err
		}
		return audit(ctx, r, p, "category", id, "delete", map[string]any{"name": c.Name})
	})
	if err != nil {
		return err
	}
	metrics.MutationsTotal.WithLabelValues("category", "delete").Inc()
	return nil
}

// ----------------- Products -----------------

// pastEnd reports whether page lies beyond the last page of total rows. The
// offset of any page it accepts fits in an int.
func pastEnd(page, perPage, total int) bool {
	return page-1 > total/perPage
}

func (s *CatalogService) ListProducts(ctx context.Context, page, perPage int) (models.Page[models.Product], error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.pageSize
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	r := s.st.Repos()
	total, err := r.Products.Count(ctx)
	if err != nil {
		return models.Page[models.Product]{}, err
	}
	if pastEnd(page, perPage, total) {
		return models.NewPage[models.Product](nil, page, perPage, total), nil
	}
	items, err := r.Products.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return models.Page[models.Product]{}, err
	}
	return models.NewPage(items, page, perPage, total), nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	return s.st.Repos().Products.GetByID(ctx, id)
}

// checkProduct validates in and returns the parsed price and the sanitized
// image name ("" when no image was sent).
func checkProduct(in ProductInput, imageRequired bool) (decimal.Decimal, string, error) {
	var errs validate.Errs
	name := strings.TrimSpace(in.Name)
	errs.Add(validate.Required("name", name), validate.MaxLen("name", name, maxProductName))

	price, perr := decimal.NewFromString(strings.TrimSpace(in.Price))
	switch {
	case strings.TrimSpace(in.Price) == "":
		errs.Add(validate.Required("price", ""))
	case perr != nil:
		errs.Add(&validate.ErrField{Field: "price", Msg: "must be a decimal number"})
	default:
		errs.Add(validate.MinDecimal("price", price, minPrice))
	}
	errs.Add(validate.MinInt("category_id", in.CategoryID, 1))

	var image string
	if in.Image == nil || in.Image.Filename == "" {
		if imageRequired {
			errs.Add(validate.Required("image", ""))
		}
	} else if ef := validate.Extension("image", in.Image.Filename, storage.AllowedExtensions); ef != nil {
		errs.Add(ef)
	} else if image = storage.SanitizeName(in.Image.Filename); image == "" {
		errs.Add(&validate.ErrField{Field: "image", Msg: "invalid file name"})
	}
	return price, image, errs.Err()
}

func categoryMissing(err error) error {
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrReferenced) {
		return validate.Errs{{Field: "category_id", Msg: "category does not exist"}}
	}
	return err
}

func (s *CatalogService) saveImage(name string, body io.Reader) error {
	if err := s.files.Save(name, body); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return &ConflictError{Reason: "image " + name + " already exists"}
		}
		return fmt.Errorf("save image: %w", err)
	}
	return nil
}

func (s *CatalogService) dropImage(name string) {
	if err := s.files.Delete(name); err != nil {
		slog.Warn("image cleanup failed", "file", name, "err", err)
	}
}

// CreateProduct stores the uploaded image and then the product row. The
// image is removed again when the row cannot be committed.
func (s *CatalogService) CreateProduct(ctx context.Context, p *auth.Principal, in ProductInput) (models.Product, error) {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return models.Product{}, err
	}
	price, image, err := checkProduct(in, true)
	if err != nil {
		return models.Product{}, err
	}
	if _, err := s.st.Repos().Categories.GetByID(ctx, in.CategoryID); err != nil {
		return models.Product{}, categoryMissing(err)
	}
	if err := s.saveImage(image, in.Image.Body); err != nil {
		return models.Product{}, err
	}

	prod := models.Product{
		Name:       strings.TrimSpace(in.Name),
		Price:      price,
		ImagePath:  image,
		CategoryID: in.CategoryID,
	}
	err = inTx(ctx, s.st, func(r repo.Repos) error {
		var err error
		if prod, err = r.Products.Create(ctx, prod); err != nil {
			return categoryMissing(err)
		}
		return audit(ctx, r, p, "product", prod.ID, "create", map[string]any{
			"name": prod.Name, "price": prod.Price.String(), "image": image,
		})
	})
	if err != nil {
		s.dropImage(image)
		return models.Product{}, err
	}
	metrics.MutationsTotal.WithLabelValues("product", "create").Inc()
	return prod, nil
}

// UpdateProduct rewrites a product. A new image replaces the old one, which
// is removed only after the update committed.
func (s *CatalogService) UpdateProduct(ctx context.Context, p *auth.Principal, id int64, in ProductInput) (models.Product, error) {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return models.Product{}, err
	}
	old, err := s.st.Repos().Products.GetByID(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	price, image, err := checkProduct(in, false)
	if err != nil {
		return models.Product{}, err
	}
	if _, err := s.st.Repos().Categories.GetByID(ctx, in.CategoryID); err != nil {
		return models.Product{}, categoryMissing(err)
	}
	if image != "" {
		if err := s.saveImage(image, in.Image.Body); err != nil {
			return models.Product{}, err
		}
	}

	prod := old
	prod.Name = strings.TrimSpace(in.Name)
	prod.Price = price
	prod.CategoryID = in.CategoryID
	if image != "" {
		prod.ImagePath = image
	}
	err = inTx(ctx, s.st, func(r repo.Repos) error {
		if _, err := r.Categories.GetByID(ctx, prod.CategoryID); err != nil {
			return categoryMissing(err)
		}
		if err := r.Products.Update(ctx, prod); err != nil {
			return err
		}
		return audit(ctx, r, p, "product", id, "update", map[string]any{
			"name": prod.Name, "price": prod.Price.String(), "image": prod.ImagePath,
		})
	})
	if err != nil {
		if image != "" {
			s.dropImage(image)
		}
		return models.Product{}, err
	}
	if image != "" && old.ImagePath != "" {
		s.dropImage(old.ImagePath)
	}
	metrics.MutationsTotal.WithLabelValues("product", "update").Inc()
	return s.st.Repos().Products.GetByID(ctx, id)
}

// DeleteProduct removes the stored image before the row removal commits.
func (s *CatalogService) DeleteProduct(ctx context.Context, p *auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return err
	}
	err := inTx(ctx, s.st, func(r repo.Repos) error {
		prod, err := r.Products.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := r.Products.Delete(ctx, id); err != nil {
			return err
		}
		if err := audit(ctx, r, p, "product", id, "delete", map[string]any{"name": prod.Name}); err != nil {
			return err
		}
		return s.files.Delete(prod.ImagePath)
	})
	if err != nil {
		return err
	}
	metrics.MutationsTotal.WithLabelValues("product", "delete").Inc()
	return nil
}
