package repository

import (
	"curalink/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	err := r.db.Preload("ProviderProfile").First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(u *models.User) error {
	return r.db.Save(u).Error
}

func (r *UserRepository) CreateProviderProfile(p *models.ProviderProfile) error {
	return r.db.Create(p).Error
}

func (r *UserRepository) GetProviderProfile(userID uint) (*models.ProviderProfile, error) {
	var p models.ProviderProfile
	err := r.db.Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProviderRating stores the recomputed aggregate for the provider.
func (r *UserRepository) UpdateProviderRating(userID uint, rating float64, count int) error {
	return r.db.Model(&models.ProviderProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"rating": rating, "rating_count": count}).Error
}
