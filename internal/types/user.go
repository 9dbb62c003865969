package types

import (
	"time"
)

// User exists only to scope history queries per caller. The id is an
// opaque client-supplied string (Discord user ID or web session ID);
// there is no authentication attached to it.
type User struct {
	ID        string    `gorm:"primaryKey;column:id" json:"id"`
	Source    string    `gorm:"not null;column:source;default:'web'" json:"source"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (User) TableName() string { return "users" }
