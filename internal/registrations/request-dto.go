package registrations

type RegisterRequest struct {
	Notes string `json:"notes" binding:"omitempty,max=1000"`
}

// ListQuery filters the admin registration listing.
type ListQuery struct {
	Page   int     `form:"page"`
	Limit  int     `form:"limit"`
	Status *Status `form:"status"`
}
