package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaidashi/storefront-orders/internal/models"
	apperrors "github.com/vaidashi/storefront-orders/pkg/errors"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// UserRepository handles the account side of the user documents
type UserRepository struct {
	docs userDocuments
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(store DocumentStore, optimisticLocking bool, logger logger.Logger) *UserRepository {
	return &UserRepository{
		docs: userDocuments{store: store, optimisticLocking: optimisticLocking, logger: logger},
	}
}

// Get retrieves a user by id
func (r *UserRepository) Get(ctx context.Context, id models.DocumentID) (*models.User, error) {
	return r.docs.load(ctx, id)
}

// FindByEmail returns the user registered with email. The store filters query
// parameters by exact match, so the whole collection is read and compared here
// ignoring case and surrounding whitespace.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var users []models.User
	if err := r.docs.store.Get(ctx, "/users", &users); err != nil {
		r.docs.logger.Error("Failed to look up user by email", "error", err)
		return nil, err
	}

	email = normaliseEmail(email)
	for i := range users {
		if strings.EqualFold(normaliseEmail(users[i].Email), email) {
			return &users[i], nil
		}
	}

	return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with email %q not found", email)).
		WithContext("email", email)
}

// Create stores a new user with an empty cart and order history
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	doc := *user
	doc.ID = ""
	doc.Email = normaliseEmail(doc.Email)
	doc.Cart = []models.Item{}
	doc.Orders = []models.Order{}

	var created models.User
	if err := r.docs.store.Post(ctx, "/users", &doc, &created); err != nil {
		r.docs.logger.Error("Failed to create user", "error", err, "email", doc.Email)
		return nil, err
	}

	r.docs.logger.Info("User created", "userID", created.ID)
	return &created, nil
}

// UpdateProfile writes the editable profile fields of a document previously read as user
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User, update models.ProfileUpdate) (*models.User, error) {
	return r.docs.write(ctx, user.ID, user.Version, map[string]interface{}{
		"username": update.Username,
		"email":    normaliseEmail(update.Email),
		"phone":    update.Phone,
		"address":  update.Address,
	})
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
