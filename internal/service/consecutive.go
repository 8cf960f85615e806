package service

import (
	"fmt"
	"time"

	"github.com/pqrs_dashboard/backend/internal/utils"
)

// FormatConsecutiveCode builds {prefix}-{YYYYMMDD}-{n}. Downstream displays
// parse this exact shape.
func FormatConsecutiveCode(prefix string, at time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%d", prefix, utils.CompactDate(at), n)
}
