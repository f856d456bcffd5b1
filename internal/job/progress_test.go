package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Percent(t *testing.T) {
	tests := []struct {
		name     string
		progress Progress
		want     int
	}{
		{"partial", Progress{Completed: 2, Total: 5}, 40},
		{"done", Progress{Completed: 5, Total: 5}, 100},
		{"zero total", Progress{Completed: 0, Total: 0}, 0},
		{"zero total with completions", Progress{Completed: 3, Total: 0}, 100},
		{"overshoot", Progress{Completed: 7, Total: 5}, 100},
		{"negative", Progress{Completed: -1, Total: 5}, 0},
		{"rounding", Progress{Completed: 1, Total: 3}, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.progress.Percent()
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestProgress_Label(t *testing.T) {
	assert.Equal(t, "2/5", Progress{Completed: 2, Total: 5}.Label())
}
