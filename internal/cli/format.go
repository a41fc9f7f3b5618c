package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price decimal.Decimal) string {
	abs := price.Abs()
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(10)):
		return price.StringFixed(2)
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return price.StringFixed(4)
	}
	return price.StringFixed(6)
}

// FormatIndexes joins sequence indexes into a chain path.
func FormatIndexes(indexes []int64) string {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.FormatInt(idx, 10)
	}
	return strings.Join(parts, " > ")
}

// FormatTags renders instance tags, or a dash when there are none.
func FormatTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ",")
}

// FormatDateTime formats a datetime in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("02-Jan-2006 15:04:05")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// PadRight pads a string to the right.
func PadRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

// PadLeft pads a string to the left.
func PadLeft(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat(" ", length-len(s)) + s
}
