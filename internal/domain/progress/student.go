package progress

import (
	"strings"
	"time"
)

// Student is a learner known to the system. Ingestion registers unknown
// students automatically, so Name may be empty.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the name, falling back to the ID.
func (s Student) DisplayName() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return s.ID
}
