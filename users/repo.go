package users

// Repo stores users by ID and email. The client itself never persists users;
// this is the directory behind the fake backend.
type Repo interface {
	Upsert(user *User) error
	Delete(id string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) ([]*User, error)
}
