package file

import (
	"fmt"
	"strings"
	"time"
)

// contentWidth is the fixed interior width of the box-drawing frame,
// matching the original writer's 80-column header.
const contentWidth = 80

func boxLine(content string) string {
	pad := contentWidth - len(content) - 1
	if pad < 0 {
		pad = 0
	}
	return "│ " + content + strings.Repeat(" ", pad) + "│"
}

func boxTop() string    { return "┌" + strings.Repeat("─", contentWidth) + "┐" }
func boxBottom() string { return "└" + strings.Repeat("─", contentWidth) + "┘" }

// header renders the LOG FILE START frame written immediately after a
// file is opened.
func header(fileName, project string, startedAt time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(boxTop())
	b.WriteByte('\n')
	b.WriteString(boxLine("LOG FILE START"))
	b.WriteByte('\n')
	b.WriteString(boxLine("File: " + fileName))
	b.WriteByte('\n')
	b.WriteString(boxLine("Project: " + project))
	b.WriteByte('\n')
	b.WriteString(boxLine("Start Date: " + startedAt.In(loc).Format("02:01:2006 15:04:05 -0700")))
	b.WriteByte('\n')
	b.WriteString(boxBottom())
	b.WriteByte('\n')
	return b.String()
}

// footer renders the LOG FILE END frame appended when a file is
// finalized, with the size rendered in human units (base-1024, one
// decimal), matching spec.md §4.3 ("B/KB/MB/GB/TB, base-1024, one
// decimal").
func footer(lineCount int64, sizeBytes int64, loc *time.Location) string {
	var b strings.Builder
	b.WriteByte('\n')
	b.WriteString(boxTop())
	b.WriteByte('\n')
	b.WriteString(boxLine("LOG FILE END"))
	b.WriteByte('\n')
	b.WriteString(boxLine("End Date: " + time.Now().In(loc).Format("02:01:2006 15:04:05 -0700")))
	b.WriteByte('\n')
	b.WriteString(boxLine(fmt.Sprintf("Total Lines: %d", lineCount)))
	b.WriteByte('\n')
	b.WriteString(boxLine("File Size: " + formatSize(sizeBytes)))
	b.WriteByte('\n')
	b.WriteString(boxBottom())
	b.WriteByte('\n')
	return b.String()
}

// formatSize renders byte counts as "<value> <unit>" with one decimal,
// base-1024, capped at TB — the same ladder as the original writer's
// _format_size.
func formatSize(sizeBytes int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(sizeBytes)
	for _, unit := range units {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", size)
}
