package console

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestReporterMarkers(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	r := NewReporter(&buf, true)

	r.Success("Got it: %s", "ab")
	r.Warning("Could not parse input data.")
	r.Error("boom")
	r.Notice("note")
	r.Info("plain")

	assert.Equal(t, "[+] Got it: ab\n[?] Could not parse input data.\n[!] boom\n[*] note\nplain\n", buf.String())
}

func TestNilBarIsSafe(t *testing.T) {
	var b *Bar
	b.Set(50, "half")
	b.Finish()
	b.Abandon()
}

func TestBarWritesToReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, true)
	b := r.NewBar("Generating")
	b.Set(100, "")
	b.Finish()
	assert.NotEmpty(t, buf.String())

	assert.Nil(t, NewReporter(&buf, false).NewBar("x"))
}

func TestCount(t *testing.T) {
	assert.Equal(t, "0", Count(nil))
	assert.Equal(t, "1,234,567", Count(big.NewInt(1234567)))
	n, _ := new(big.Int).SetString("100000000000000000000000", 10)
	assert.Equal(t, "100,000,000,000,000,000,000,000", Count(n))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
		{72 * time.Hour, "3d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.d))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
}
