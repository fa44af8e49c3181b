// ABOUTME: User identity shape consumed by profile sync
// ABOUTME: Validates the optional current-user value in a single step

package analytics

// User is the optional current-user value supplied by upstream
// request-handling code. ID may be an integer or a string depending on
// how the host application models identity.
type User struct {
	ID    any    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// validUser is a User that passed validation. Code past the validation
// step branches on the (validUser, ok) pair instead of re-checking
// fields at each call site.
type validUser struct {
	id    any
	name  string
	email string
}

// validate checks that ID, Name, and Email are all present. A missing
// or malformed user is not an error; callers skip profile sync.
func (u *User) validate() (validUser, bool) {
	if u == nil {
		return validUser{}, false
	}
	if !presentID(u.ID) || u.Name == "" || u.Email == "" {
		return validUser{}, false
	}
	return validUser{id: u.ID, name: u.Name, email: u.Email}, true
}

// presentID reports whether an ID value is usable as a distinct ID.
// nil and empty strings are absent; any other value (int, string,
// json.Number from decoded bodies) is accepted as-is.
func presentID(id any) bool {
	switch v := id.(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return true
	}
}
