package scorer

import (
	"fmt"
	"strconv"
)

const (
	AnalysisFailed = "Analysis Failed"

	failedBadness = 70
)

// Tally holds raw category points. Values may fall outside [0,100] until aggregation.
type Tally struct {
	SEO         int
	Mobile      int
	Security    int
	Performance int
	Design      int
	Content     int
	Contact     int
}

func (t Tally) Add(o Tally) Tally {
	return Tally{
		SEO:         t.SEO + o.SEO,
		Mobile:      t.Mobile + o.Mobile,
		Security:    t.Security + o.Security,
		Performance: t.Performance + o.Performance,
		Design:      t.Design + o.Design,
		Content:     t.Content + o.Content,
		Contact:     t.Contact + o.Contact,
	}
}

// Delta is the contribution of one check.
type Delta struct {
	Points   Tally
	Issues   []string
	Critical []string
	Outdated []string
}

func (d *Delta) issue(format string, args ...any) {
	d.Issues = append(d.Issues, fmt.Sprintf(format, args...))
}

func (d *Delta) critical(msg string) { d.Critical = append(d.Critical, msg) }

func (d *Delta) outdated(format string, args ...any) {
	d.Outdated = append(d.Outdated, fmt.Sprintf(format, args...))
}

// Input is what every check sees: the page signals and the current year.
type Input struct {
	Signals
	Year int
}

type check struct {
	name string
	run  func(in Input) Delta
}

// checks run in this order; issue lists keep it.
var checks = []check{
	{"security", checkSecurity},
	{"seo", checkSEO},
	{"mobile", checkMobile},
	{"performance", checkPerformance},
	{"design", checkDesign},
	{"content", checkContent},
	{"contact", checkContact},
	{"legacy_scripts", checkLegacyScripts},
	{"copyright", checkCopyright},
}

func checkSecurity(in Input) Delta {
	var d Delta
	if in.HTTPS {
		d.Points.Security += 50
	} else {
		d.issue("Not using HTTPS")
		d.critical("No HTTPS encryption")
	}
	if in.HasCSP {
		d.Points.Security += 15
	} else {
		d.issue("Missing Content-Security-Policy header")
	}
	if in.HasContentTypeOptions {
		d.Points.Security += 10
	} else {
		d.issue("Missing X-Content-Type-Options header")
	}
	if in.HasFrameOptions {
		d.Points.Security += 10
	} else {
		d.issue("Missing X-Frame-Options header")
	}
	if in.HasHSTS {
		d.Points.Security += 15
	} else {
		d.issue("Missing Strict-Transport-Security header")
	}
	return d
}

func checkSEO(in Input) Delta {
	var d Delta
	if in.HasTitle {
		d.Points.SEO += 15
	} else {
		d.issue("Missing title tag")
		d.critical("No page title")
	}
	if in.HasMetaDescription {
		d.Points.SEO += 15
	} else {
		d.issue("Missing meta description")
	}
	if in.HasH1 {
		d.Points.SEO += 15
	} else {
		d.issue("Missing H1 heading")
	}
	if in.HasCanonical {
		d.Points.SEO += 15
	} else {
		d.issue("Missing canonical link")
	}
	if in.HasStructuredData {
		d.Points.SEO += 20
	} else {
		d.issue("No structured data (Schema.org)")
	}
	if in.HasOpenGraph {
		d.Points.SEO += 20
	} else {
		d.issue("Missing Open Graph tags")
	}
	return d
}

func checkMobile(in Input) Delta {
	var d Delta
	if in.HasViewport {
		d.Points.Mobile += 30
	} else {
		d.issue("Missing viewport meta tag")
		d.critical("Not mobile-friendly")
	}
	if in.HasMediaQueries {
		d.Points.Mobile += 30
	} else {
		d.issue("No responsive media queries")
	}
	if in.HasTouchIcon {
		d.Points.Mobile += 20
	} else {
		d.issue("Missing touch icon")
	}
	if !in.HasSmallFonts {
		d.Points.Mobile += 20
	} else {
		d.issue("Uses very small font sizes")
	}
	return d
}

const (
	largeHTMLBytes     = 100000
	veryLargeHTMLBytes = 200000
	maxInlineTags      = 15
)

func checkPerformance(in Input) Delta {
	var d Delta
	switch {
	case in.HTMLBytes < largeHTMLBytes:
		d.Points.Performance += 20
	case in.HTMLBytes <= veryLargeHTMLBytes:
		d.Points.Performance += 10
		d.issue("Large HTML size (%d KB)", in.HTMLBytes/1024)
	default:
		d.issue("Very large HTML size (%d KB)", in.HTMLBytes/1024)
		d.critical("Extremely slow loading")
	}
	if in.HasLazyLoading {
		d.Points.Performance += 20
	} else {
		d.issue("No lazy-loaded images")
	}
	if in.HasAsyncScripts {
		d.Points.Performance += 20
	} else {
		d.issue("Render-blocking scripts (no async/defer)")
	}
	if !in.HasUnminifiedCSS {
		d.Points.Performance += 20
	} else {
		d.issue("Unminified CSS")
	}
	if !in.HasUnminifiedJS {
		d.Points.Performance += 20
	} else {
		d.issue("Unminified JavaScript")
	}
	if in.InlineTags > maxInlineTags {
		d.Points.Performance -= 10
		d.issue("Too many inline styles and scripts (%d)", in.InlineTags)
	}
	return d
}

func checkDesign(in Input) Delta {
	var d Delta
	if in.HasFlexbox {
		d.Points.Design += 20
	}
	if in.HasGrid {
		d.Points.Design += 20
	}
	if !in.HasFlexbox && !in.HasGrid {
		d.issue("No modern CSS layout (flexbox or grid)")
	}
	if in.HasFramework {
		d.Points.Design += 20
	} else {
		d.issue("No modern CSS framework detected")
	}
	if !in.HasFlexbox && !in.HasGrid && !in.HasFramework {
		d.outdated("No modern CSS layout or framework")
	}
	if in.HasAnimation {
		d.Points.Design += 20
	} else {
		d.issue("No animations or transitions")
	}
	if in.HasCustomFont {
		d.Points.Design += 20
	} else {
		d.issue("Uses default system fonts")
	}

	if in.HasFrames {
		d.Points.Design -= 20
		d.issue("Uses deprecated HTML frames")
		d.outdated("HTML frames (<frameset>/<frame>)")
	}
	if in.HasMarquee {
		d.Points.Design -= 20
		d.issue("Uses deprecated <marquee> tag")
		d.outdated("<marquee> tag")
	}
	if in.HasBlink {
		d.Points.Design -= 20
		d.issue("Uses deprecated <blink> tag")
		d.outdated("<blink> tag")
	}
	return d
}

func checkContent(in Input) Delta {
	var d Delta
	switch {
	case in.WordCount >= 300:
		d.Points.Content += 40
	case in.WordCount >= 100:
		d.Points.Content += 20
		d.issue("Limited text content (%d words)", in.WordCount)
	default:
		d.issue("Very little text content (%d words)", in.WordCount)
		d.critical("Minimal content")
	}
	if in.HasSocialLinks {
		d.Points.Content += 20
	} else {
		d.issue("No social media links")
	}
	if in.ImageCount > 2 {
		d.Points.Content += 20
	} else {
		d.issue("Few images (%d)", in.ImageCount)
	}
	if in.HasVideo {
		d.Points.Content += 20
	} else {
		d.issue("No video content")
	}
	if in.HasLists {
		d.Points.Content += 20
	} else {
		d.issue("No lists to structure content")
	}
	return d
}

func checkContact(in Input) Delta {
	var d Delta
	if in.HasEmail {
		d.Points.Contact += 20
	} else {
		d.issue("No email address found")
	}
	if in.HasPhone {
		d.Points.Contact += 20
	} else {
		d.issue("No phone number found")
	}
	if in.HasContactForm {
		d.Points.Contact += 20
	} else {
		d.issue("No contact form")
	}
	if !in.HasEmail && !in.HasContactForm {
		d.critical("No email contact method")
	}
	if in.HasAddress {
		d.Points.Contact += 20
	} else {
		d.issue("No physical address found")
	}
	if in.HasMap {
		d.Points.Contact += 20
	} else {
		d.issue("No map or directions")
	}
	return d
}

func checkLegacyScripts(in Input) Delta {
	var d Delta
	if in.UsesDocumentWrite {
		d.Points.Performance -= 20
		d.issue("Uses document.write()")
		d.outdated("document.write() usage")
	}
	if in.JQueryVersion != "" {
		d.Points.Security -= 10
		d.issue("Outdated jQuery version (%s)", in.JQueryVersion)
		d.outdated("jQuery %s", in.JQueryVersion)
	}
	return d
}

const staleCopyrightYears = 3

func checkCopyright(in Input) Delta {
	var d Delta
	year, err := strconv.Atoi(in.CopyrightYear)
	if err != nil {
		return d
	}
	stale := in.Year - year
	if stale > staleCopyrightYears {
		d.Points.Design -= min(30, stale*5)
		d.issue("Copyright year is outdated (%s)", in.CopyrightYear)
		d.outdated("Copyright last updated %d years ago (%s)", stale, in.CopyrightYear)
	}
	return d
}
