package models

// User is the per-user document in the store. Cart and Orders are embedded and
// are always written back as whole fields.
type User struct {
	ID       DocumentID `json:"id,omitempty"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Password string     `json:"password,omitempty"`
	Phone    string     `json:"phone"`
	Address  string     `json:"address"`
	Cart     []Item     `json:"cart"`
	Orders   []Order    `json:"orders"`
	// Version is bumped on every write when optimistic locking is enabled
	Version int64 `json:"version,omitempty"`
}

// Profile is the public view of a user, without the password or embedded lists
type Profile struct {
	ID       DocumentID `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	Address  string     `json:"address"`
}

// Profile returns the public view of u
func (u *User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Phone:    u.Phone,
		Address:  u.Address,
	}
}

// ProfileUpdate carries the editable profile fields
type ProfileUpdate struct {
	Username string `json:"username" validate:"notblank"`
	Email    string `json:"email" validate:"notblank,storefront_email"`
	Phone    string `json:"phone" validate:"notblank,phone10"`
	Address  string `json:"address" validate:"notblank"`
}
