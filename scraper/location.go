package scraper

import (
	"context"
	"fmt"
	"time"

	"buildbank/browser"
	"buildbank/logger"
)

// LocationSelectors are the ordered candidates for each steering step.
type LocationSelectors struct {
	Triggers     []string
	PostalInputs []string
	StoreButtons []string
}

// StepTimeouts bound how long each candidate selector is waited for.
type StepTimeouts struct {
	Trigger     time.Duration
	PostalInput time.Duration
	StoreButton time.Duration
}

// SteeringReport records which selector, if any, worked at each step.
type SteeringReport struct {
	Trigger     string `json:"trigger,omitempty"`
	PostalInput string `json:"postal_input,omitempty"`
	Submitted   bool   `json:"submitted"`
	StoreButton string `json:"store_button,omitempty"`
	Recovered   string `json:"recovered,omitempty"`
}

// Steered reports whether any step succeeded.
func (r SteeringReport) Steered() bool {
	return r.Trigger != "" || r.PostalInput != "" || r.StoreButton != ""
}

// SteerLocation tries to set the store context on an already loaded page:
// open a locator, enter the postal code and confirm a store. Every step is
// best effort. It never returns an error, many sites need none of this.
func SteerLocation(ctx context.Context, page browser.Page, postalCode string, sel LocationSelectors, timeouts StepTimeouts, log *logger.Logger) (report SteeringReport) {
	log = logger.OrNop(log)
	defer func() {
		if r := recover(); r != nil {
			report.Recovered = fmt.Sprint(r)
			log.Warn().Interface("panic", r).Msg("location steering aborted")
		}
	}()

	for _, s := range sel.Triggers {
		if ctx.Err() != nil {
			return report
		}
		if err := page.Click(ctx, s, timeouts.Trigger); err == nil {
			report.Trigger = s
			break
		}
	}

	if postalCode != "" {
		for _, s := range sel.PostalInputs {
			if ctx.Err() != nil {
				return report
			}
			if err := page.Fill(ctx, s, postalCode, timeouts.PostalInput); err != nil {
				continue
			}
			report.PostalInput = s
			report.Submitted = page.PressEnter(ctx) == nil
			break
		}
	}

	for _, s := range sel.StoreButtons {
		if ctx.Err() != nil {
			return report
		}
		if err := page.Click(ctx, s, timeouts.StoreButton); err == nil {
			report.StoreButton = s
			break
		}
	}

	log.Debug().
		Str("trigger", report.Trigger).
		Str("postal_input", report.PostalInput).
		Str("store_button", report.StoreButton).
		Msg("location steering finished")
	return report
}
