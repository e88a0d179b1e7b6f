package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Owner identifies who a progression row belongs to: an authenticated user
// or an anonymous guest device. Exactly one of the two ids is set; the two
// nullable columns exist only at the persistence boundary.
type Owner struct {
	UserID   *int64
	ClientID *string
}

// UserOwner returns an Owner for an authenticated account.
func UserOwner(id int64) Owner {
	return Owner{UserID: &id}
}

// GuestOwner returns an Owner for a guest device client id.
func GuestOwner(clientID string) Owner {
	return Owner{ClientID: &clientID}
}

// Valid reports whether exactly one identity is set.
func (o Owner) Valid() bool {
	return (o.UserID != nil) != (o.ClientID != nil)
}

// IsGuest reports whether the owner is a guest device.
func (o Owner) IsGuest() bool {
	return o.ClientID != nil
}

// Key returns a stable string key for cache entries, pub/sub channels and
// the denormalized owner_key uniqueness columns.
func (o Owner) Key() string {
	if o.UserID != nil {
		return fmt.Sprintf("u:%d", *o.UserID)
	}
	if o.ClientID != nil {
		return "g:" + *o.ClientID
	}
	return ""
}

// Scope narrows a query to rows belonging to this owner.
func (o Owner) Scope(tx *gorm.DB) *gorm.DB {
	if o.UserID != nil {
		return tx.Where("user_id = ?", *o.UserID)
	}
	return tx.Where("client_id = ?", *o.ClientID)
}
