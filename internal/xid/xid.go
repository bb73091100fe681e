package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed identifier such as "sale-9f8b1c2d-...". The prefix
// makes IDs self-describing in logs and API payloads.
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
