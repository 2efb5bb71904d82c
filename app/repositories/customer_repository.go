package repositories

import (
	"time"

	"github.com/shashiranjanraj/storefront/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerRepository handles database operations for Customer.
type CustomerRepository struct{}

func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{}
}

// Upsert inserts c or, when the email is taken, updates that row's contact
// fields. It returns the stored row.
func (r *CustomerRepository) Upsert(db *gorm.DB, c models.Customer) (models.Customer, error) {
	c.UpdatedAt = time.Now()
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "phone", "address", "updated_at"}),
	}).Create(&c).Error
	if err != nil {
		return models.Customer{}, err
	}
	return r.FindByEmail(db, c.Email)
}

func (r *CustomerRepository) FindByEmail(db *gorm.DB, email string) (models.Customer, error) {
	var c models.Customer
	err := db.Where("email = ?", email).Take(&c).Error
	return c, err
}
