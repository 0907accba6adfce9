package converter

import (
	"online-booking-backend/internal/delivery/dto"
	"online-booking-backend/internal/domain/entity"
)

// UserToResponse converts a User entity to UserResponse DTO. Falls back to the
// role ID constants when the Role relationship is not preloaded.
func UserToResponse(user *entity.User) *dto.UserResponse {
	if user == nil {
		return nil
	}

	roleName := user.Role.RoleName
	if roleName == "" {
		roleName = roleNameFromID(user.RoleID)
	}

	return &dto.UserResponse{
		ID:                user.ID,
		Email:             user.Email,
		FullName:          user.FullName,
		Role:              roleName,
		CustomerSupportID: user.CustomerSupportID,
		CreatedAt:         user.CreatedAt,
		UpdatedAt:         user.UpdatedAt,
	}
}

func roleNameFromID(roleID int) string {
	switch roleID {
	case entity.RoleIDAdmin:
		return entity.RoleAdmin
	case entity.RoleIDCustomer:
		return entity.RoleCustomer
	case entity.RoleIDBusiness:
		return entity.RoleBusiness
	}
	return ""
}
