package browser

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eoscraper/pkg/config"
	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/models"
)

const detailFixture = `
<div>
  <dl><dt>Actor identification</dt></dl>
  <dl><dt>Actor ID/SRN</dt><dd>DE-MF-000012345</dd></dl>
  <dl><dt>Organisation name</dt><dd>  Acme Medical GmbH  </dd></dl>
  <dl><dt>Abbreviated name</dt><dd></dd></dl>
  <dl><dt>Actor address</dt></dl>
  <dl>
    <dt>Street name</dt>
    <dd>Hauptstraße 1</dd>
  </dl>
  <dl><dt>Actor contact details</dt></dl>
  <dl><dt>Email</dt><dd>info@acme.example<br>sales@acme.example</dd></dl>
  <dl></dl>
</div>`

func TestParseDetail(t *testing.T) {
	skip := config.DefaultConfig().Browser.SkipHeadings

	rec, err := ParseDetail(detailFixture, "dl", skip)
	require.NoError(t, err)

	want := models.Record{
		{Name: "Actor ID/SRN", Value: "DE-MF-000012345"},
		{Name: "Organisation name", Value: "Acme Medical GmbH"},
		{Name: "Abbreviated name", Value: MissingValue},
		{Name: "Street name", Value: "Hauptstraße 1"},
		{Name: "Email", Value: "info@acme.example"},
	}
	assert.Equal(t, want, rec)
}

func TestParseDetailLaterBlockWins(t *testing.T) {
	html := `<dl><dt>Phone</dt><dd>1</dd></dl><dl><dt>Fax</dt><dd>2</dd></dl><dl><dt>Phone</dt><dd>3</dd></dl>`

	rec, err := ParseDetail(html, "dl", nil)
	require.NoError(t, err)
	assert.Equal(t, models.Record{{Name: "Phone", Value: "3"}, {Name: "Fax", Value: "2"}}, rec)
}

func TestParseDetailEmpty(t *testing.T) {
	_, err := ParseDetail(`<div><p>Loading…</p></div>`, "dl", nil)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeExtraction, errs.Classify(err))
}

func TestParseLastUpdated(t *testing.T) {
	key, value, err := ParseLastUpdated(" Last update date: 21/02/2024 ")
	require.NoError(t, err)
	assert.Equal(t, "Last update date", key)
	assert.Equal(t, "21/02/2024", value)

	key, value, err = ParseLastUpdated("Version: 3: draft")
	require.NoError(t, err)
	assert.Equal(t, "Version", key)
	assert.Equal(t, "3: draft", value)

	_, _, err = ParseLastUpdated("no separator")
	assert.Equal(t, errs.ErrorTypeExtraction, errs.Classify(err))
}

func TestSelectors(t *testing.T) {
	assert.True(t, isXPath("/html/body/div"))
	assert.True(t, isXPath("(//tr)[2]"))
	assert.False(t, isXPath(".p-dropdown-trigger"))
	assert.False(t, isXPath("#actor_information"))

	assert.True(t, hasClassName("p-paginator-next p-disabled p-ripple", "p-disabled"))
	assert.False(t, hasClassName("p-paginator-next p-disabled-soon", "p-disabled"))

	assert.Equal(t, "//tbody/tr[3]/td[1]", config.RowSelector("//tbody/tr[{row}]/td[1]", 3))
}

func TestAllocatorOptions(t *testing.T) {
	cfg := config.DefaultConfig().Browser
	cfg.UserAgent = "eoscraper-test"
	cfg.Flags = append(cfg.Flags, "--lang=de-DE")

	opts := allocatorOptions(cfg)
	// defaults + headless/no-sandbox/dev-shm + window + user agent + flags
	assert.Len(t, opts, len(chromedp.DefaultExecAllocatorOptions)+3+1+1+len(cfg.Flags))
}
