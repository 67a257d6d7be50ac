package progress

import (
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Tracker shows a spinner while a site is scraped and a progress line when
// it finishes. It satisfies crawler.Observer.
type Tracker struct {
	out     io.Writer
	spin    *spinner.Spinner
	bar     progress.Model
	labels  map[string]string
	total   int
	done    int
	failed  int
	started time.Time
	mu      sync.Mutex
}

// New creates a Tracker for total sites. labels maps a site name to the
// target shown next to the spinner.
func New(out io.Writer, total int, labels map[string]string) *Tracker {
	return &Tracker{
		out:    out,
		spin:   spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(out)),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		labels: labels,
		total:  total,
	}
}

// SiteStarted starts the spinner for site
func (t *Tracker) SiteStarted(site string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.started = time.Now()
	msg := site
	if label := t.labels[site]; label != "" {
		msg += " " + formatSpinnerMessage(label)
	}
	t.spin.Suffix = " scraping " + msg
	t.spin.Start()
}

// SiteFinished stops the spinner and prints the site's outcome
func (t *Tracker) SiteFinished(site string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.spin.Stop()
	t.done++
	status := okStyle.Render(fmt.Sprintf("%-6s", "ok"))
	if err != nil {
		t.failed++
		status = failedStyle.Render(fmt.Sprintf("%-6s", "failed"))
	}

	fmt.Fprintf(t.out, "%s %d/%d %-16s %s %s\n",
		t.bar.ViewAs(t.Progress()),
		t.done, t.total,
		site, status,
		dimStyle.Render(time.Since(t.started).Round(time.Millisecond).String()))
}

// Progress returns the finished fraction of sites
func (t *Tracker) Progress() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.done) / float64(t.total)
}

func formatSpinnerMessage(target string) string {
	// Truncate URL if too long
	maxLen := 40
	if len(target) > maxLen {
		u, err := url.Parse(target)
		if err == nil && u.Host != "" {
			domain := u.Host
			path := u.Path
			if keep := maxLen - len(domain) - 3; keep > 0 && len(path) > keep {
				path = "..." + path[len(path)-keep:]
			}
			return domain + path
		}
		return "..." + target[len(target)-maxLen:]
	}
	return target
}
