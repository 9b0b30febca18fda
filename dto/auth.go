package dto

type LoginDTO struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangeMyPasswordDTO struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type CreateUserDTO struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,notblank"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin operacional financeiro pedagogico user"`
}

// UpdateUserDTO - all fields are optional pointers
type UpdateUserDTO struct {
	Name     *string `json:"name" binding:"omitempty,notblank"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin operacional financeiro pedagogico user"`
	IsActive *bool   `json:"isActive"`
}
