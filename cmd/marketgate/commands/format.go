package commands

import (
	"fmt"
	"time"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const rule = "═══════════════════════════════════════════════════════════"

// PrintHeader prints a formatted command header
func PrintHeader(title string, at time.Time) {
	fmt.Println()
	fmt.Println(rule)
	fmt.Printf("  %s\n", title)
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Time      : %s\n", at.Format(time.RFC3339))
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintField prints one aligned key/value line
func PrintField(key string, value interface{}) {
	fmt.Printf("  %-10s: %v\n", key, value)
}

// PrintCompletion prints the outcome of a command
func PrintCompletion(d time.Duration, err error) {
	fmt.Println()
	if err != nil {
		fmt.Printf("❌ Failed after %.2fs: %v\n", d.Seconds(), err)
	} else {
		fmt.Printf("✅ Completed in %.2fs\n", d.Seconds())
	}
	fmt.Println(rule)
}
