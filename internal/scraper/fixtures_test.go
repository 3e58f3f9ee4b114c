package scraper

import (
	"testing"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const (
	testSearchURL  = "https://tribunal.test/search"
	testResultsURL = "https://tribunal.test/results?bench=10"
	testDetailURL  = "https://tribunal.test/case/1"
)

func testProfile() *config.SiteProfile {
	p := config.DefaultProfile()
	p.SearchURL = testSearchURL
	p.ResultsURL = ""
	p.ResultsURLHint = "/results"
	return p
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := parseHTML(html)
	require.NoError(t, err)
	return doc
}

var nopLog = logger.NewNop()

const searchPageHTML = `<html><body>
<nav><form id="site-search"><input name="q"><button type="submit">Go</button></form></nav>
<form id="case-search" action="/results">
  <select id="bench">
    <option value="">Select Bench</option>
    <option value="10">New Delhi</option>
    <option value="20">Mumbai</option>
  </select>
  <select id="case_type">
    <option value="">Select</option>
    <option value="16">Company Petition IB</option>
    <option value="15">Company Petition</option>
  </select>
  <input id="cp_no" name="cp_no">
  <select id="case_year">
    <option value="">Select</option>
    <option value="2023">2023</option>
    <option value="2022">2022</option>
  </select>
  <span id="captcha-code">A1B2C</span>
  <input id="captcha" name="captcha">
  <button type="submit">Search</button>
</form>
</body></html>`

const searchPageImageCaptchaHTML = `<html><body>
<form id="case-search">
  <select id="bench"><option value="10">New Delhi</option></select>
  <select id="case_type"><option value="15">Company Petition</option></select>
  <input id="cp_no">
  <select id="case_year"><option value="2022">2022</option></select>
  <img id="captcha_image" src="/captcha.png">
  <input name="captcha">
  <button type="submit">Search</button>
</form>
</body></html>`

const resultsPageHTML = `<html><body>
<div class="menu"><a href="/old-orders">Old orders</a></div>
<table class="results">
  <tr><th>S.No</th><th>Filing No</th><th>Case No</th><th>Parties</th><th>Status</th></tr>
  <tr>
    <td>1</td><td>2709138/00123/2022</td><td>CP(IB) 123/2022</td>
    <td>ABC Ltd VS XYZ Ltd</td><td><a href="/case/1">Pending</a></td>
  </tr>
  <tr>
    <td>2</td><td>2709138/00456/2021</td><td>CP(IB) 456/2021</td>
    <td>PQR Ltd VS LMN Ltd</td><td><a href="/case/2">Disposed</a></td>
  </tr>
  <tr><td colspan="5"><a href="?page=2">Next</a></td></tr>
</table>
</body></html>`

const detailPageHTML = `<html><body>
<table class="details">
  <tr><td>Filing Number</td><td>2709138/00123/2022</td></tr>
  <tr><td>Filing Date</td><td>05-01-2022</td></tr>
  <tr><td>Case Number</td><td>CP(IB) - 123/2022</td></tr>
  <tr><td>Party Name</td><td>ABC Limited VS XYZ Limited</td></tr>
  <tr><td>Case Status</td><td>Pending - Listed</td></tr>
  <tr><td>Advocate Name</td><td>R. Sharma</td><td>Registration Date</td><td>10-01-2022</td></tr>
  <tr><td>Next Listing Date</td><td>12-03-2024</td></tr>
</table>
<table class="history">
  <tr><th>S.No</th><th>Date of Listing</th><th>Date of Upload</th><th>Order/Judgement</th></tr>
  <tr>
    <td>1</td><td>01-02-2023</td><td>03-02-2023</td>
    <td><a href="/docs/a.pdf">View</a> <a href="/docs/b.pdf">Download</a></td>
  </tr>
  <tr>
    <td>2</td><td>15-06-2023</td><td>16-06-2023</td>
    <td><a href="/docs/a.pdf">View</a></td>
  </tr>
  <tr><td>3</td><td>20-09-2023</td><td></td><td>Adjourned</td></tr>
</table>
</body></html>`

const noRecordsPageHTML = `<html><body>
<table><tr><td><a href="/">Home</a></td><td><a href="/orders">Old orders</a></td></tr></table>
<div class="alert">No records found</div>
</body></html>`
