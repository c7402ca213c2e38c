package service

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"willcloud/internal/domain"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders bytes in the largest unit up to GB, rounded to two
// decimals with trailing zeros dropped: 1536 -> "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	i, unit := 0, int64(1)
	for i < len(sizeUnits)-1 && bytes >= unit*1024 {
		i++
		unit *= 1024
	}

	value := math.Round(float64(bytes)/float64(unit)*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatStorageGB renders bytes as gigabytes with two decimals.
func FormatStorageGB(bytes int64) string {
	return fmt.Sprintf("%.2f", float64(bytes)/(1024*1024*1024))
}

// FormatRelativeTime renders t relative to now for the file list; anything a
// week old or more is shown as a date.
func FormatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	mins := int(math.Floor(diff.Minutes()))
	hours := int(math.Floor(diff.Hours()))
	days := int(math.Floor(diff.Hours() / 24))

	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	}
	return t.Format("1/2/2006")
}

// Summarize prepares listing rows for display.
func Summarize(files []domain.File, now time.Time) []domain.FileSummary {
	out := make([]domain.FileSummary, 0, len(files))
	for _, f := range files {
		out = append(out, domain.FileSummary{
			File:          f,
			Kind:          domain.KindOf(f.MIMEType),
			SizeLabel:     FormatFileSize(f.FileSize),
			UploadedLabel: FormatRelativeTime(f.UploadedAt, now),
		})
	}
	return out
}
