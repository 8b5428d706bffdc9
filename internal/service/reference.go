package service

import (
	"fmt"
	"time"
)

const referenceSeqModulo = 1_000_000

// FormatReference: {PREFIX}-{YYYYMMDD}-{последние 6 цифр последовательности}.
func FormatReference(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", prefix, at.UTC().Format("20060102"), seq%referenceSeqModulo)
}
