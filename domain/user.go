package domain

// Roles a user can register with. A user's role never changes after creation.
const (
	RoleCustomer      = "customer"
	RolePharmacyOwner = "pharmacy-owner"
)

type User struct {
	ID           int64  `db:"id" json:"id"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	Role         string `db:"role" json:"role"`
	CreatedAt    string `db:"created_at" json:"created_at,omitempty"`
}

// ValidRole reports whether role is one of the registrable roles.
func ValidRole(role string) bool {
	return role == RoleCustomer || role == RolePharmacyOwner
}
