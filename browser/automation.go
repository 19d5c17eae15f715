// Package browser defines the automation capability the harvester consumes
// and provides a chromedp-backed implementation of it.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp/kb"
)

// LocatorKind selects how a Locator's query is interpreted.
type LocatorKind int

const (
	ByCSS LocatorKind = iota
	ByXPath
)

// Locator addresses an element in the rendered page.
type Locator struct {
	Kind  LocatorKind
	Query string
}

// CSS builds a CSS selector locator.
func CSS(q string) Locator { return Locator{Kind: ByCSS, Query: q} }

// XPath builds an XPath locator.
func XPath(q string) Locator { return Locator{Kind: ByXPath, Query: q} }

// Element is a handle to a node found by FindElement. Text is the node's
// visible text captured at lookup time.
type Element struct {
	ID   int64
	Text string
}

// Automation is everything the scraper needs from a browser session. All
// calls are expected to be bounded by ctx.
type Automation interface {
	Navigate(ctx context.Context, url string) error
	// RunScript calls the JavaScript function expression fn with args
	// (JSON-encoded) and decodes its JSON result into out. out may be nil.
	RunScript(ctx context.Context, fn string, out any, args ...any) error
	FindElement(ctx context.Context, loc Locator) (Element, bool)
	Click(ctx context.Context, el Element) error
	SendKeys(ctx context.Context, el Element, keys string) error
	CurrentURL(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Keys understood by SendKeys.
const (
	KeyHome     = kb.Home
	KeyEnd      = kb.End
	KeyPageDown = kb.PageDown
)

// CallExpression renders fn applied to JSON-encoded args as a single
// expression suitable for evaluation.
func CallExpression(fn string, args ...any) (string, error) {
	encoded := make([]string, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("browser: encode script arg: %w", err)
		}
		encoded = append(encoded, string(b))
	}
	return "(" + strings.TrimSpace(fn) + ")(" + strings.Join(encoded, ",") + ")", nil
}
