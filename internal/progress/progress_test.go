package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker(t *testing.T) {
	var out bytes.Buffer
	tr := New(&out, 2, map[string]string{"hpd": "Manhattan block 123 lot 45"})

	tr.SiteStarted("hpd")
	assert.Contains(t, tr.spin.Suffix, "hpd Manhattan block 123 lot 45")
	tr.SiteFinished("hpd", nil)
	assert.Equal(t, 0.5, tr.Progress())

	tr.SiteStarted("dobnow")
	assert.Equal(t, " scraping dobnow", tr.spin.Suffix)
	tr.SiteFinished("dobnow", errors.New("timeout"))
	assert.Equal(t, 1.0, tr.Progress())
	assert.Equal(t, 1, tr.failed)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "1/2")
	assert.Contains(t, lines[0], "hpd")
	assert.Contains(t, lines[0], "ok")
	assert.Contains(t, lines[1], "2/2")
	assert.Contains(t, lines[1], "failed")
}

func TestFormatSpinnerMessage(t *testing.T) {
	assert.Equal(t, "BIN 1001234", formatSpinnerMessage("BIN 1001234"))

	long := "https://a810-bisweb.nyc.gov/bisweb/PropertyProfileOverviewServlet?bin=1001234"
	got := formatSpinnerMessage(long)
	assert.True(t, strings.HasPrefix(got, "a810-bisweb.nyc.gov..."), got)
	assert.LessOrEqual(t, len(got), 40)

	plain := strings.Repeat("x", 50)
	assert.Equal(t, "..."+strings.Repeat("x", 40), formatSpinnerMessage(plain))
}
