package session

// Profile carries the optional account details attached to an identity.
type Profile struct {
	FullName string `json:"full_name"`
	DOB      string `json:"dob"`
	Gender   string `json:"gender"`
	Mobile   string `json:"mobile"`
	Address  string `json:"address"`
}

// Identity is the user record the backend returns on login.
type Identity struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	IsStaff     bool    `json:"is_staff"`
	IsSuperuser bool    `json:"is_superuser"`
	Profile     Profile `json:"profile"`
}

// Session is the authenticated state persisted between runs.
type Session struct {
	Identity     Identity `json:"identity"`
	AccessToken  string   `json:"access"`
	RefreshToken string   `json:"refresh"`
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name"`
	DOB      string `json:"dob"`
	Gender   string `json:"gender"`
	Mobile   string `json:"mobile"`
	Address  string `json:"address"`
}

// loginResponse mirrors the backend token payload.
type loginResponse struct {
	Access      string  `json:"access"`
	Refresh     string  `json:"refresh"`
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	IsStaff     bool    `json:"is_staff"`
	IsSuperuser bool    `json:"is_superuser"`
	Profile     Profile `json:"profile"`
}

func (r loginResponse) session() *Session {
	return &Session{
		Identity: Identity{
			ID:          r.ID,
			Username:    r.Username,
			Email:       r.Email,
			IsStaff:     r.IsStaff,
			IsSuperuser: r.IsSuperuser,
			Profile:     r.Profile,
		},
		AccessToken:  r.Access,
		RefreshToken: r.Refresh,
	}
}
