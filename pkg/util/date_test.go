package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDate(t *testing.T) {
	ts := time.Date(2023, 11, 10, 7, 5, 9, 0, time.UTC)

	assert.Equal(t, "2023.11.10", FormatDate(ts, "YYYY.MM.DD"))
	assert.Equal(t, "10/11/23", FormatDate(ts, "DD/MM/YY"))
	assert.Equal(t, "2023-11-10 07:05:09", FormatDate(ts, "YYYY-MM-DD hh:mm:ss"))
	assert.Empty(t, FormatDate(time.Time{}, "YYYY"))
	assert.Empty(t, FormatDate(time.Unix(0, 0), "YYYY"))
}
