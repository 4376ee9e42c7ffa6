package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spatialdeez/microstore/internal/api/validate"
	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/config"
	"github.com/spatialdeez/microstore/internal/metrics"
	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

const (
	maxUsername = 100
	// bcrypt rejects passwords longer than 72 bytes.
	maxPassword = 72
)

type UserInput struct {
	Username string
	Password string // optional on update
	Admin    bool
}

type UserService struct {
	st       repo.Store
	match    repo.NameMatch
	pageSize int
}

func NewUserService(st repo.Store, c config.Config) *UserService {
	return &UserService{
		st:       st,
		match:    repo.NameMatch{Substring: c.NameMatch != "exact"},
		pageSize: c.PageSize,
	}
}

func checkUser(in UserInput, passwordRequired bool) error {
	var errs validate.Errs
	errs.Add(validate.Required("username", in.Username), validate.MaxLen("username", in.Username, maxUsername))
	if passwordRequired {
		errs.Add(validate.Required("password", in.Password))
	}
	errs.Add(validate.MaxBytes("password", in.Password, maxPassword))
	return errs.Err()
}

var errUsernameTaken = validate.Errs{{Field: "username", Msg: "username already taken"}}

func (s *UserService) create(ctx context.Context, actor *auth.Principal, in UserInput, action string) (models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := checkUser(in, true); err != nil {
		return models.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var u models.User
	err = inTx(ctx, s.st, func(r repo.Repos) error {
		taken, err := r.Users.UsernameTaken(ctx, in.Username, s.match, 0)
		if err != nil {
			return err
		}
		if taken {
			return errUsernameTaken
		}
		if u, err = r.Users.Create(ctx, in.Username, hash, in.Admin); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return errUsernameTaken
			}
			return err
		}
		return audit(ctx, r, actor, "user", u.ID, action, map[string]any{"username": u.Username, "admin": u.Admin})
	})
	if err != nil {
		return models.User{}, err
	}
	metrics.MutationsTotal.WithLabelValues("user", action).Inc()
	return u, nil
}

// Register signs up a regular user.
func (s *UserService) Register(ctx context.Context, username, password string) (models.User, error) {
	return s.create(ctx, nil, UserInput{Username: username, Password: password}, "register")
}

// Seed creates a user outside any request, for operator tooling.
func (s *UserService) Seed(ctx context.Context, in UserInput) (models.User, error) {
	return s.create(ctx, nil, in, "seed")
}

// Authenticate checks a username and password. Every failure is reported
// as auth.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	u, err := s.st.Repos().Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return models.User{}, err
	}
	if err != nil || auth.VerifyPassword(password, u.PasswordHash) != nil {
		metrics.LoginAttempts.WithLabelValues("failed").Inc()
		return models.User{}, auth.ErrInvalidCredentials
	}
	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	return u, nil
}

// Principal loads the current state of user id as a request principal.
func (s *UserService) Principal(ctx context.Context, id int64) (*auth.Principal, error) {
	u, err := s.st.Repos().Users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{UserID: u.ID, Username: u.Username, Admin: u.Admin}, nil
}

func (s *UserService) Me(ctx context.Context, p *auth.Principal) (models.User, error) {
	if err := auth.Authorize(p, auth.RoleUser); err != nil {
		return models.User{}, err
	}
	return s.st.Repos().Users.GetByID(ctx, p.UserID)
}

// ----------------- Admin -----------------

func (s *UserService) List(ctx context.Context, p *auth.Principal, page, perPage int) (models.Page[models.User], error) {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return models.Page[models.User]{}, err
	}
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > maxPerPage {
		perPage = s.pageSize
	}
	r := s.st.Repos()
	total, err := r.Users.Count(ctx)
	if err != nil {
		return models.Page[models.User]{}, err
	}
	if pastEnd(page, perPage, total) {
		return models.NewPage[models.User](nil, page, perPage, total), nil
	}
	users, err := r.Users.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return models.Page[models.User]{}, err
	}
	return models.NewPage(users, page, perPage, total), nil
}

func (s *UserService) Create(ctx context.Context, p *auth.Principal, in UserInput) (models.User, error) {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return models.User{}, err
	}
	return s.create(ctx, p, in, "create")
}

// Update changes username and admin flag, and the password when one is
// given.
func (s *UserService) Update(ctx context.Context, p *auth.Principal, id int64, in UserInput) (models.User, error) {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return models.User{}, err
	}
	in.Username = strings.TrimSpace(in.Username)
	if err := checkUser(in, false); err != nil {
		return models.User{}, err
	}
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = auth.HashPassword(in.Password); err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
	}

	var u models.User
	err := inTx(ctx, s.st, func(r repo.Repos) error {
		var err error
		if u, err = r.Users.GetByID(ctx, id); err != nil {
			return err
		}
		taken, err := r.Users.UsernameTaken(ctx, in.Username, s.match, id)
		if err != nil {
			return err
		}
		if taken {
			return errUsernameTaken
		}
		u.Username, u.Admin = in.Username, in.Admin
		if hash != "" {
			u.PasswordHash = hash
		}
		if err := r.Users.Update(ctx, u); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return errUsernameTaken
			}
			return err
		}
		return audit(ctx, r, p, "user", id, "update", map[string]any{
			"username": u.Username, "admin": u.Admin, "password_changed": hash != "",
		})
	})
	if err != nil {
		return models.User{}, err
	}
	metrics.MutationsTotal.WithLabelValues("user", "update").Inc()
	return s.st.Repos().Users.GetByID(ctx, id)
}

// Delete removes a user together with its cart and cart items.
func (s *UserService) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.RoleAdmin); err != nil {
		return err
	}
	err := inTx(ctx, s.st, func(r repo.Repos) error {
		u, err := r.Users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		cart, err := r.Carts.LockForUser(ctx, id)
		switch {
		case err == nil:
			if err := r.Carts.DeleteItems(ctx, cart.ID); err != nil {
				return err
			}
			if err := r.Carts.Delete(ctx, cart.ID); err != nil {
				return err
			}
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}
		if err := r.Users.Delete(ctx, id); err != nil {
			return err
		}
		return audit(ctx, r, p, "user", id, "delete", map[string]any{"username": u.Username})
	})
	if err != nil {
		return err
	}
	metrics.MutationsTotal.WithLabelValues("user", "delete").Inc()
	return nil
}
