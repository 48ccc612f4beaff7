package users

import (
	"context"
	"errors"
	"fmt"

	"gatherly/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIdentityID(ctx context.Context, identityID uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error
	Anonymize(ctx context.Context, id uuid.UUID) error
	EmailExists(ctx context.Context, email string) (bool, error)
}

type repository struct {
	db     *gorm.DB
	cipher *Cipher
}

func NewRepository(db *gorm.DB, cipher *Cipher) Repository {
	return &repository{
		db:     db,
		cipher: cipher,
	}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	user.EmailIndex = EmailIndex(user.Email)
	r.seal(user)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}
	r.open(user)
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	r.open(&user)
	return &user, nil
}

func (r *repository) GetByIdentityID(ctx context.Context, identityID uuid.UUID) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("identity_id = ?", identityID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	r.open(&user)
	return &user, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("email_index = ?", EmailIndex(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	r.open(&user)
	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	user.EmailIndex = EmailIndex(user.Email)
	r.seal(user)
	err := r.db.WithContext(ctx).Save(user).Error
	r.open(user)
	return err
}

func (r *repository) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("password", hashedPassword)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// Anonymize strips PII in place of a hard delete so registration history
// keeps a valid owner row.
func (r *repository) Anonymize(ctx context.Context, id uuid.UUID) error {
	erasedEmail := fmt.Sprintf("erased+%s@invalid.local", id)
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"first_name":  "Erased",
			"last_name":   "User",
			"email":       r.cipher.Encrypt(erasedEmail),
			"email_index": EmailIndex(erasedEmail),
			"phone":       "",
			"is_active":   false,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&User{}).Where("email_index = ?", EmailIndex(email)).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) seal(user *User) {
	user.Email = r.cipher.Encrypt(user.Email)
	user.FirstName = r.cipher.Encrypt(user.FirstName)
	user.LastName = r.cipher.Encrypt(user.LastName)
	user.Phone = r.cipher.Encrypt(user.Phone)
}

func (r *repository) open(user *User) {
	user.Email = r.cipher.Decrypt(user.Email)
	user.FirstName = r.cipher.Decrypt(user.FirstName)
	user.LastName = r.cipher.Decrypt(user.LastName)
	user.Phone = r.cipher.Decrypt(user.Phone)
}
