package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lotscrape/internal/browser"
	"lotscrape/internal/dom"
	"lotscrape/internal/sites"
	"lotscrape/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	html     string
	navErr   error
	closeErr error
	closed   int
	visited  []string
}

func (s *fakeSession) Navigate(url string) error {
	s.visited = append(s.visited, url)
	return s.navErr
}
func (s *fakeSession) WaitFor(browser.Condition, time.Duration) error { return nil }
func (s *fakeSession) Click(dom.Query) error                          { return nil }
func (s *fakeSession) Fill(dom.Query, string) error                   { return nil }
func (s *fakeSession) Pause(time.Duration) error                      { return nil }
func (s *fakeSession) HTML() (string, error)                          { return s.html, nil }
func (s *fakeSession) Close() error {
	s.closed++
	return s.closeErr
}

// fakeOpener hands out one session per site, keyed by the order they open
type fakeOpener struct {
	sessions []*fakeSession
	opened   int
	err      error
}

func (o *fakeOpener) Open(context.Context) (Session, error) {
	if o.err != nil {
		return nil, o.err
	}
	s := o.sessions[o.opened]
	o.opened++
	return s, nil
}

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) SiteStarted(site string) { r.events = append(r.events, "start "+site) }
func (r *recordingObserver) SiteFinished(site string, err error) {
	if err != nil {
		r.events = append(r.events, "fail "+site)
		return
	}
	r.events = append(r.events, "done "+site)
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "sites", "testdata", name))
	require.NoError(t, err)
	return string(b)
}

func TestScrapeClosesSessionOnEveryPath(t *testing.T) {
	key := types.Key{Kind: types.KeyURL, URL: "https://hpdonline.nyc.gov/hpdonline/building/1/overview"}

	t.Run("success", func(t *testing.T) {
		s := &fakeSession{html: readFixture(t, "hpd_overview.html")}
		rec, err := Scrape(context.Background(), &fakeOpener{sessions: []*fakeSession{s}}, sites.NewHPD(), key)
		require.NoError(t, err)
		assert.Equal(t, 2, rec["A Violations"])
		assert.Equal(t, 1, s.closed)
	})

	t.Run("navigation failure", func(t *testing.T) {
		s := &fakeSession{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
		_, err := Scrape(context.Background(), &fakeOpener{sessions: []*fakeSession{s}}, sites.NewHPD(), key)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hpd: resolve target")
		assert.Equal(t, 1, s.closed)
	})

	t.Run("close failure does not mask result", func(t *testing.T) {
		s := &fakeSession{html: readFixture(t, "hpd_overview.html"), closeErr: browser.ErrClose}
		rec, err := Scrape(context.Background(), &fakeOpener{sessions: []*fakeSession{s}}, sites.NewHPD(), key)
		require.NoError(t, err)
		assert.NotEmpty(t, rec)
	})

	t.Run("open failure", func(t *testing.T) {
		_, err := Scrape(context.Background(), &fakeOpener{err: errors.New("chrome not found")}, sites.NewHPD(), key)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open browser")
	})
}

func TestRunNoSourcesOpensNothing(t *testing.T) {
	opener := &fakeOpener{}
	c := New(opener, sites.All(sites.DefaultConfig()))

	_, err := c.Run(context.Background(), types.ScrapeRequest{})
	assert.ErrorIs(t, err, types.ErrNoSources)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
	assert.Zero(t, opener.opened)
}

func TestRunValidationOpensNothing(t *testing.T) {
	opener := &fakeOpener{}
	c := New(opener, sites.All(sites.DefaultConfig()))

	_, err := c.Run(context.Background(), types.ScrapeRequest{
		HPD:    &types.Target{BuildingID: 314419},
		DOBNOW: &types.Target{BIN: "1001234"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
	assert.ErrorIs(t, err, sites.ErrNoTemplate)
	assert.Zero(t, opener.opened)
}

func TestRunRejectsHPDTargetWithLegacyFields(t *testing.T) {
	opener := &fakeOpener{}
	c := New(opener, sites.All(sites.DefaultConfig()))

	_, err := c.Run(context.Background(), types.ScrapeRequest{
		HPD:     &types.Target{URL: "https://hpdonline.nyc.gov/hpdonline/building/1/overview"},
		Borough: "Queens", Block: 9, Lot: 30,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
	assert.Zero(t, opener.opened)
}

func TestRunSingleSource(t *testing.T) {
	s := &fakeSession{html: readFixture(t, "hpd_overview.html")}
	c := New(&fakeOpener{sessions: []*fakeSession{s}}, sites.All(sites.DefaultConfig()))

	res, err := c.Run(context.Background(), types.ScrapeRequest{Borough: "Manhattan", Block: 123, Lot: 45})
	require.NoError(t, err)
	assert.Equal(t, []string{"hpd"}, res.Sources)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 2, res.Record["HPD_A Violations"])
	assert.Equal(t, 0, res.Record["HPD_B Violations"])
	assert.Equal(t, "6", res.Record["HPD_Stories"])
	for k := range res.Record {
		assert.Regexp(t, `^HPD_`, k)
	}
}

func TestRunSingleSourceFailureIsFatal(t *testing.T) {
	s := &fakeSession{html: readFixture(t, "bisweb_no_units.html")}
	c := New(&fakeOpener{sessions: []*fakeSession{s}}, sites.All(sites.DefaultConfig()))

	_, err := c.Run(context.Background(), types.ScrapeRequest{
		BISWEB: &types.Target{Borough: "Queens", Block: 1, Lot: 2},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sites.ErrMissingField)
	assert.Equal(t, 1, s.closed)
}

func TestRunPartialFailure(t *testing.T) {
	hpd := &fakeSession{navErr: errors.New("timeout")}
	property := &fakeSession{html: readFixture(t, "property_profile.html")}
	obs := &recordingObserver{}
	c := New(&fakeOpener{sessions: []*fakeSession{hpd, property}}, sites.All(sites.DefaultConfig()), WithObserver(obs))

	res, err := c.Run(context.Background(), types.ScrapeRequest{
		HPD:            &types.Target{BuildingID: 314419},
		BISWEBProperty: &types.Target{BIN: "1001234"},
	})
	require.NoError(t, err)

	assert.Equal(t, types.Record{
		"BISWEB_PROPERTY_Landmark Status": "L-LANDMARK",
		"BISWEB_PROPERTY_Additional BINs": "1001235 1001236",
	}, res.Record)
	assert.Equal(t, []string{"bisweb_property"}, res.Sources)
	require.Contains(t, res.Failures, "hpd")
	assert.Contains(t, res.Failures["hpd"].Error(), "timeout")

	assert.Equal(t, []string{"start hpd", "fail hpd", "start bisweb_property", "done bisweb_property"}, obs.events)
	assert.Equal(t, 1, hpd.closed)
	assert.Equal(t, 1, property.closed)
	assert.Equal(t, []string{"https://a810-bisweb.nyc.gov/bisweb/PropertyProfileOverviewServlet?bin=1001234"}, property.visited)
}

func TestRunAllFail(t *testing.T) {
	a := &fakeSession{navErr: errors.New("first down")}
	b := &fakeSession{navErr: errors.New("second down")}
	c := New(&fakeOpener{sessions: []*fakeSession{a, b}}, sites.All(sites.DefaultConfig()))

	_, err := c.Run(context.Background(), types.ScrapeRequest{
		HPD:    &types.Target{BuildingID: 1},
		DOBNOW: &types.Target{URL: "https://a810-dobnow.nyc.gov/publish/"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first down")
	assert.Contains(t, err.Error(), "second down")
}

func TestRunMergesInSiteOrder(t *testing.T) {
	hpd := &fakeSession{html: readFixture(t, "hpd_sparse.html")}
	dobnow := &fakeSession{html: readFixture(t, "dobnow_property.html")}
	c := New(&fakeOpener{sessions: []*fakeSession{hpd, dobnow}}, sites.All(sites.DefaultConfig()))

	res, err := c.Run(context.Background(), types.ScrapeRequest{
		DOBNOW: &types.Target{URL: "https://a810-dobnow.nyc.gov/publish/"},
		HPD:    &types.Target{URL: "https://hpdonline.nyc.gov/hpdonline/building/1/overview"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hpd", "dobnow"}, res.Sources)
	assert.Equal(t, "No", res.Record["DOBNOW_Special Flood Hazard Area Check"])
	assert.Equal(t, 1204, res.Record["HPD_A Violations"])
}

func TestRunCancelled(t *testing.T) {
	opener := &fakeOpener{}
	c := New(opener, sites.All(sites.DefaultConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Run(ctx, types.ScrapeRequest{HPD: &types.Target{BuildingID: 1}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, opener.opened)
}

func TestPlanUnknownSite(t *testing.T) {
	c := New(&fakeOpener{}, []sites.Adapter{sites.NewHPD()})
	_, err := c.Plan(types.ScrapeRequest{BISWEB: &types.Target{URL: "https://example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")
}
