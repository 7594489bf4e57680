package source

import (
	"strings"

	"github.com/R3E-Network/neofeeds/internal/config"
)

// FormatSourceURL substitutes {pair}, {base} and {quote} placeholders in a
// source URL template. The source's own overrides and pair template are
// applied before substitution, so an exchange quoting against USDT can
// remap a USD feed without touching the feed definition.
func FormatSourceURL(tmpl string, feed *config.FeedConfig, src *config.SourceConfig) string {
	base, quote := resolveBaseQuote(feed, src)

	pairValue := ""
	if feed != nil {
		if v := strings.TrimSpace(feed.Pair); v != "" {
			pairValue = v
		} else {
			pairValue = config.NormalizePair(feed.ID)
		}
	}
	if src != nil && strings.TrimSpace(src.PairTemplate) != "" {
		pairValue = strings.TrimSpace(src.PairTemplate)
		pairValue = strings.ReplaceAll(pairValue, "{base}", base)
		pairValue = strings.ReplaceAll(pairValue, "{quote}", quote)
	}

	url := tmpl
	url = strings.ReplaceAll(url, "{pair}", pairValue)
	url = strings.ReplaceAll(url, "{base}", base)
	url = strings.ReplaceAll(url, "{quote}", quote)
	return url
}

// FormatJSONPath substitutes {base} and {quote} placeholders in an
// extraction path. Some sources key their response objects by symbol.
func FormatJSONPath(tmpl string, feed *config.FeedConfig, src *config.SourceConfig) string {
	if tmpl == "" {
		return tmpl
	}

	base, quote := resolveBaseQuote(feed, src)

	path := tmpl
	if base != "" {
		path = strings.ReplaceAll(path, "{base}", base)
	}
	if quote != "" {
		path = strings.ReplaceAll(path, "{quote}", quote)
	}
	return path
}

func resolveBaseQuote(feed *config.FeedConfig, src *config.SourceConfig) (base, quote string) {
	if feed != nil {
		base = strings.TrimSpace(feed.Base)
		quote = strings.TrimSpace(feed.Quote)
		if base == "" || quote == "" {
			parsedBase, parsedQuote := config.ParseBaseQuoteFromPair(feed.ID)
			if base == "" {
				base = parsedBase
			}
			if quote == "" {
				quote = parsedQuote
			}
		}
	}

	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))

	if src != nil {
		if v := strings.TrimSpace(src.BaseOverride); v != "" {
			base = strings.ToUpper(v)
		}
		if v := strings.TrimSpace(src.QuoteOverride); v != "" {
			quote = strings.ToUpper(v)
		}
	}
	return base, quote
}
