package models

// Role is what a staff user may do in the fee office.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleBursar  Role = "bursar"
	RoleCashier Role = "cashier"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBursar, RoleCashier:
		return true
	}
	return false
}

// User is a staff member who records payments and manages fees.
// Its ID is the actor stored in CreatedBy and ReceivedBy columns.
type User struct {
	Base
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name     string `gorm:"size:255" json:"name,omitempty"`
	Password string `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Role     Role   `gorm:"size:20;not null;default:bursar" json:"role"`
	Active   bool   `gorm:"not null;default:true" json:"active"`
}
