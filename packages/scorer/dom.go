package scorer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"github.com/jaytaylor/html2text"
)

const languageSampleWords = 200

// refineWithDOM re-derives the parser-sensitive signals from a parsed document.
// Signals a parser cannot improve on are kept from the substring pass.
// It also returns the detected ISO 639-3 language, or "" when unsure.
func refineWithDOM(html string, sig Signals) (Signals, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return sig, ""
	}

	sig.HasTitle = strings.TrimSpace(doc.Find("title").First().Text()) != ""
	desc, _ := doc.Find(`meta[name="description"]`).Attr("content")
	sig.HasMetaDescription = strings.TrimSpace(desc) != ""
	sig.HasViewport = doc.Find(`meta[name="viewport"]`).Length() > 0
	sig.HasH1 = doc.Find("h1").Length() > 0
	sig.ImageCount = doc.Find("img").Length()
	sig.HasLists = doc.Find("ul, ol").Length() > 0
	sig.HasContactForm = doc.Find(`form textarea, form input[type="email"]`).Length() > 0

	doc.Find("script, style, noscript, template").Remove()
	text := visibleText(doc)
	words := strings.Fields(text)
	sig.WordCount = len(words)

	return sig, detectLanguage(doc.Find("title").First().Text(), words)
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Text()
	}
	markup, err := body.Html()
	if err != nil {
		return body.Text()
	}
	text, err := html2text.FromString(markup, html2text.Options{OmitLinks: true})
	if err != nil {
		return body.Text()
	}
	return text
}

func detectLanguage(title string, words []string) string {
	if len(words) > languageSampleWords {
		words = words[:languageSampleWords]
	}
	sample := strings.TrimSpace(title + " " + strings.Join(words, " "))
	if sample == "" {
		return ""
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}
