package scorer

import (
	"regexp"
	"strings"

	"sitesignal/packages/domain"
)

// Signals is everything the checks look at, extracted from one fetched page.
type Signals struct {
	HTTPS                 bool
	HasCSP                bool
	HasContentTypeOptions bool
	HasFrameOptions       bool
	HasHSTS               bool

	HasTitle           bool
	HasMetaDescription bool
	HasH1              bool
	HasCanonical       bool
	HasStructuredData  bool
	HasOpenGraph       bool

	HasViewport     bool
	HasMediaQueries bool
	HasTouchIcon    bool
	HasSmallFonts   bool

	HTMLBytes        int
	HasLazyLoading   bool
	HasAsyncScripts  bool
	HasUnminifiedCSS bool
	HasUnminifiedJS  bool
	InlineTags       int

	HasFlexbox    bool
	HasGrid       bool
	HasFramework  bool
	HasAnimation  bool
	HasCustomFont bool
	HasFrames     bool
	HasMarquee    bool
	HasBlink      bool

	WordCount      int
	HasSocialLinks bool
	ImageCount     int
	HasVideo       bool
	HasLists       bool

	HasEmail       bool
	HasPhone       bool
	HasContactForm bool
	HasAddress     bool
	HasMap         bool

	UsesDocumentWrite bool
	JQueryVersion     string

	CopyrightYear string
}

var (
	reTitle           = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	reMetaDescription = regexp.MustCompile(`(?i)<meta[^>]+name\s*=\s*["']?description["'\s/>]`)
	reCanonical       = regexp.MustCompile(`(?i)rel\s*=\s*["']?canonical`)
	reOpenGraph       = regexp.MustCompile(`(?i)property\s*=\s*["']?og:`)
	reViewport        = regexp.MustCompile(`(?i)<meta[^>]+name\s*=\s*["']?viewport["'\s/>]`)
	reSmallFont       = regexp.MustCompile(`(?i)font-size\s*:\s*(?:[0-9]|1[01])(?:\.[0-9]+)?px`)
	reLazy            = regexp.MustCompile(`(?i)loading\s*=\s*["']?lazy`)
	reAsyncScript     = regexp.MustCompile(`(?i)<script[^>]*\s(?:async|defer)\b`)
	reStyleBlock      = regexp.MustCompile(`(?is)<style[^>]*>(.*?)</style>`)
	reScriptBlock     = regexp.MustCompile(`(?is)<script([^>]*)>(.*?)</script>`)
	reScriptOpen      = regexp.MustCompile(`(?i)<script\b([^>]*)>`)
	reStyleOpen       = regexp.MustCompile(`(?i)<style\b`)
	reSrcAttr         = regexp.MustCompile(`(?i)\bsrc\s*=`)
	reIndentedCSS     = regexp.MustCompile(`\n[ \t]+[a-zA-Z-]+\s*:`)
	reIndentedJS      = regexp.MustCompile(`\n[ \t]+(?:var|let|const|function|if|for|return)\b`)
	reFlex            = regexp.MustCompile(`(?i)display\s*:\s*(?:inline-)?flex`)
	reGrid            = regexp.MustCompile(`(?i)display\s*:\s*(?:inline-)?grid`)
	reFontFamily      = regexp.MustCompile(`(?i)font-family\s*:\s*["']?([^;"'},]+)`)
	reFrame           = regexp.MustCompile(`(?i)<frame(?:set)?\b`)
	reBlink           = regexp.MustCompile(`(?i)<blink\b`)
	reTag             = regexp.MustCompile(`<[^>]*>`)
	rePhone           = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	reAddress         = regexp.MustCompile(`(?i)\b\d{1,5}\s+(?:[a-z0-9.]+\s+){1,4}(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|way|court|ct|highway|hwy|parkway|pkwy)\b`)
	reJQuery          = regexp.MustCompile(`(?i)jquery[-./@]?v?([12]\.\d+(?:\.\d+)?)`)
	reJQueryVer       = regexp.MustCompile(`(?i)jquery(?:\.min)?\.js\?ver=([12]\.\d+(?:\.\d+)?)`)

	copyrightPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)copyright\s*(?:©|&copy;|&#169;|\(c\))?\s*(\d{4})`),
		regexp.MustCompile(`©\s*(\d{4})`),
		regexp.MustCompile(`(?i)&(?:copy|#169);\s*(\d{4})`),
	}
)

// Detect computes Signals with substring and regular-expression tests only.
func Detect(page *domain.FetchedPage) Signals {
	html := page.HTML
	lower := strings.ToLower(html)

	finalURL := page.FinalURL
	if finalURL == "" {
		finalURL = page.RequestedURL
	}

	var s Signals
	s.HTTPS = strings.HasPrefix(strings.ToLower(finalURL), "https://")
	s.HasCSP = page.Header.Get("Content-Security-Policy") != ""
	s.HasContentTypeOptions = page.Header.Get("X-Content-Type-Options") != ""
	s.HasFrameOptions = page.Header.Get("X-Frame-Options") != ""
	s.HasHSTS = page.Header.Get("Strict-Transport-Security") != ""

	if m := reTitle.FindStringSubmatch(html); m != nil {
		s.HasTitle = strings.TrimSpace(m[1]) != ""
	}
	s.HasMetaDescription = reMetaDescription.MatchString(html)
	s.HasH1 = strings.Contains(lower, "<h1")
	s.HasCanonical = reCanonical.MatchString(html)
	s.HasStructuredData = strings.Contains(lower, "application/ld+json") ||
		strings.Contains(lower, "itemscope") ||
		strings.Contains(lower, "schema.org")
	s.HasOpenGraph = reOpenGraph.MatchString(html)

	s.HasViewport = reViewport.MatchString(html)
	s.HasMediaQueries = strings.Contains(lower, "@media")
	s.HasTouchIcon = strings.Contains(lower, "apple-touch-icon")
	s.HasSmallFonts = reSmallFont.MatchString(html)

	s.HTMLBytes = len(html)
	s.HasLazyLoading = reLazy.MatchString(html) || strings.Contains(lower, "lazyload")
	s.HasAsyncScripts = reAsyncScript.MatchString(html)
	for _, m := range reStyleBlock.FindAllStringSubmatch(html, -1) {
		if reIndentedCSS.MatchString(m[1]) {
			s.HasUnminifiedCSS = true
			break
		}
	}
	for _, m := range reScriptBlock.FindAllStringSubmatch(html, -1) {
		if reIndentedJS.MatchString(m[2]) {
			s.HasUnminifiedJS = true
			break
		}
	}
	s.InlineTags = len(reStyleOpen.FindAllStringIndex(html, -1))
	for _, m := range reScriptOpen.FindAllStringSubmatch(html, -1) {
		if !reSrcAttr.MatchString(m[1]) {
			s.InlineTags++
		}
	}

	s.HasFlexbox = reFlex.MatchString(html) || strings.Contains(lower, "d-flex")
	s.HasGrid = reGrid.MatchString(html)
	s.HasFramework = containsAny(lower, keywords.Frameworks)
	s.HasAnimation = containsAny(lower, keywords.Animations)
	s.HasCustomFont = containsAny(lower, keywords.FontServices) || hasCustomFontFamily(html)
	s.HasFrames = reFrame.MatchString(html)
	s.HasMarquee = strings.Contains(lower, "<marquee")
	s.HasBlink = reBlink.MatchString(html)

	s.WordCount = len(strings.Fields(reTag.ReplaceAllString(html, " ")))
	s.HasSocialLinks = containsAny(lower, keywords.Social)
	s.ImageCount = strings.Count(lower, "<img")
	s.HasVideo = containsAny(lower, keywords.Video)
	s.HasLists = strings.Contains(lower, "<ul") || strings.Contains(lower, "<ol")

	s.HasEmail = strings.Contains(lower, "@") && strings.Contains(lower, ".com")
	s.HasPhone = rePhone.MatchString(html)
	s.HasContactForm = strings.Contains(lower, "contact") &&
		strings.Contains(lower, "<form") &&
		strings.Contains(lower, "<input")
	s.HasAddress = reAddress.MatchString(html) || strings.Contains(lower, "<address")
	s.HasMap = containsAny(lower, keywords.Maps)

	s.UsesDocumentWrite = strings.Contains(lower, "document.write(")
	if m := reJQuery.FindStringSubmatch(html); m != nil {
		s.JQueryVersion = m[1]
	} else if m := reJQueryVer.FindStringSubmatch(html); m != nil {
		s.JQueryVersion = m[1]
	}

	s.CopyrightYear = copyrightYear(html)
	return s
}

func hasCustomFontFamily(html string) bool {
	defaults := make(map[string]struct{}, len(keywords.DefaultFonts))
	for _, f := range keywords.DefaultFonts {
		defaults[f] = struct{}{}
	}
	for _, m := range reFontFamily.FindAllStringSubmatch(html, -1) {
		first := strings.ToLower(strings.TrimSpace(m[1]))
		if first == "" {
			continue
		}
		if _, ok := defaults[first]; !ok {
			return true
		}
	}
	return false
}

// copyrightYear returns the year from the earliest copyright notice in the document.
func copyrightYear(html string) string {
	best, year := -1, ""
	for _, re := range copyrightPatterns {
		loc := re.FindStringSubmatchIndex(html)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best, year = loc[0], html[loc[2]:loc[3]]
		}
	}
	return year
}
