package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleOperacional Role = "operacional"
	RoleFinanceiro  Role = "financeiro"
	RolePedagogico  Role = "pedagogico"
	RoleUser        Role = "user"
)

func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string        `bson:"email" json:"email"`
	Name         string        `bson:"name" json:"name"`
	PasswordHash string        `bson:"passwordHash" json:"-"` // never expose
	Role         Role          `bson:"role" json:"role"`
	IsActive     bool          `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
}

type RefreshToken struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	UserID     bson.ObjectID `bson:"userId"`
	TokenHash  string        `bson:"tokenHash"`
	ExpiresAt  time.Time     `bson:"expiresAt"`
	CreatedAt  time.Time     `bson:"createdAt"`
	RevokedAt  *time.Time    `bson:"revokedAt,omitempty"`
	ReplacedBy *string       `bson:"replacedBy,omitempty"`
}

// Actor is the authenticated caller as seen by the services.
type Actor struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

func (a Actor) Can(f Feature) bool {
	return a.Role.Permissions().Has(f)
}
