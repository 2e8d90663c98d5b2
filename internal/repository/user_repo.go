package repository

import (
	"convive/internal/domain"
	"convive/internal/models"

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
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ResolveByRoles returns the ids of active institution members holding any of
// the given roles, minus excludeID. Pure read, no side effects.
func (r *UserRepository) ResolveByRoles(institutionID uint, roles []string, excludeID uint) ([]uint, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	q := r.db.Model(&models.User{}).
		Where("institution_id = ? AND active = ? AND role IN ?", institutionID, true, roles)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	var ids []uint
	err := q.Pluck("id", &ids).Error
	return ids, err
}

// ResolveByCourses returns active student ids enrolled in the given courses.
// An empty course list resolves to an empty set without querying.
func (r *UserRepository) ResolveByCourses(institutionID uint, courseIDs []uint) ([]uint, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.Model(&models.User{}).
		Where("institution_id = ? AND active = ? AND role = ? AND course_id IN ?",
			institutionID, true, domain.RoleEstudiante, courseIDs).
		Pluck("id", &ids).Error
	return ids, err
}

// ResolveAll returns every active institution member, minus excludeID.
func (r *UserRepository) ResolveAll(institutionID uint, excludeID uint) ([]uint, error) {
	q := r.db.Model(&models.User{}).
		Where("institution_id = ? AND active = ?", institutionID, true)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	var ids []uint
	err := q.Pluck("id", &ids).Error
	return ids, err
}
