package websites

import "time"

// Website represents an analysis target owned by a user.
type Website struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
