package browser

import (
	"time"

	"lotscrape/internal/dom"

	"github.com/chromedp/chromedp"
)

// ConditionKind selects what a Condition waits for
type ConditionKind int

const (
	CondPresent ConditionKind = iota
	CondClickable
	CondScript
)

// Condition is a readiness check for the current page
type Condition struct {
	Kind   ConditionKind
	Query  dom.Query
	Script string
}

// Present waits until an element matching q is in the DOM
func Present(q dom.Query) Condition {
	return Condition{Kind: CondPresent, Query: q}
}

// Clickable waits until an element matching q is visible and enabled
func Clickable(q dom.Query) Condition {
	return Condition{Kind: CondClickable, Query: q}
}

// Script waits until a JavaScript expression is truthy
func Script(expr string) Condition {
	return Condition{Kind: CondScript, Script: expr}
}

// DocumentComplete waits for document.readyState to be "complete"
func DocumentComplete() Condition {
	return Script(`document.readyState === "complete"`)
}

func (c Condition) String() string {
	switch c.Kind {
	case CondClickable:
		return "clickable " + c.Query.String()
	case CondScript:
		return "script " + c.Script
	}
	return "present " + c.Query.String()
}

func (c Condition) actions(timeout time.Duration) []chromedp.Action {
	switch c.Kind {
	case CondClickable:
		opt := queryOption(c.Query)
		return []chromedp.Action{
			chromedp.WaitVisible(c.Query.Expr, opt),
			chromedp.WaitEnabled(c.Query.Expr, opt),
		}
	case CondScript:
		return []chromedp.Action{
			chromedp.Poll(c.Script, nil, chromedp.WithPollingTimeout(timeout)),
		}
	}
	return []chromedp.Action{chromedp.WaitReady(c.Query.Expr, queryOption(c.Query))}
}
