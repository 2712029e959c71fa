package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tradebook/tradebook-backend/pkg/activitylog"
	"github.com/tradebook/tradebook-backend/pkg/database"
)

type Handler struct {
	db    *gorm.DB
	audit *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, audit: activitylog.NewLogger(db)}
}

type CreateStaffRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=admin manager sales"`
}

type UpdateStaffRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin manager sales"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	IsActive *bool   `json:"is_active"`
}

// ListStaff returns all staff accounts
func (h *Handler) ListStaff(c *gin.Context) {
	var users []database.User
	if err := h.db.Order("name ASC").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch staff"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

// CreateStaff creates a staff account (admin only)
func (h *Handler) CreateStaff(c *gin.Context) {
	var req CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := database.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	h.audit.LogCreate(c, "user", user.ID, gin.H{"email": user.Email, "role": user.Role})
	c.JSON(http.StatusCreated, gin.H{"data": user})
}

// UpdateStaff edits a staff account (admin only)
func (h *Handler) UpdateStaff(c *gin.Context) {
	var req UpdateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.User
	if err := h.db.Where("id = ?", c.Param("id")).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		updates["password_hash"] = string(hash)
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	h.audit.LogUpdate(c, "user", user.ID, updates)
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// DeactivateStaff disables a staff account (admin only)
func (h *Handler) DeactivateStaff(c *gin.Context) {
	var user database.User
	if err := h.db.Where("id = ?", c.Param("id")).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err := h.db.Model(&user).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate user"})
		return
	}

	h.audit.LogActivity(c, "deactivate", "user", &user.ID, nil)
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// GetActivityLogs returns the audit trail (admin/manager)
func (h *Handler) GetActivityLogs(c *gin.Context) {
	var logs []database.ActivityLog
	q := h.db.Preload("User").Order("created_at DESC").Limit(200)
	if entityType := c.Query("entity_type"); entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if err := q.Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch activity logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
