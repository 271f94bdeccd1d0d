package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLocation = LocationSelectors{
	Triggers:     []string{"#missing-trigger", "button.store"},
	PostalInputs: []string{"input[name=zip]", "input[type=text]"},
	StoreButtons: []string{"button.select-store"},
}

var fastSteps = StepTimeouts{Trigger: time.Millisecond, PostalInput: time.Millisecond, StoreButton: time.Millisecond}

func openFakePage(t *testing.T, l *fakeLauncher) *fakePage {
	t.Helper()
	session, err := l.NewSession(context.Background())
	require.NoError(t, err)
	page, err := session.NewPage(context.Background())
	require.NoError(t, err)
	return page.(*fakePage)
}

func TestSteerLocationFullFlow(t *testing.T) {
	l := newFakeLauncher()
	l.clickable["button.store"] = true
	l.clickable["button.select-store"] = true
	l.fillable["input[type=text]"] = true

	report := SteerLocation(context.Background(), openFakePage(t, l), "30301", testLocation, fastSteps, nil)

	assert.Equal(t, "button.store", report.Trigger)
	assert.Equal(t, "input[type=text]", report.PostalInput)
	assert.True(t, report.Submitted)
	assert.Equal(t, "button.select-store", report.StoreButton)
	assert.True(t, report.Steered())
	assert.Equal(t, []string{"input[type=text]=30301"}, l.fills)
	assert.Equal(t, 1, l.enters)
}

func TestSteerLocationToleratesAbsentSelectors(t *testing.T) {
	l := newFakeLauncher()

	var report SteeringReport
	require.NotPanics(t, func() {
		report = SteerLocation(context.Background(), openFakePage(t, l), "30301", testLocation, fastSteps, nil)
	})
	assert.False(t, report.Steered())
	assert.Empty(t, l.clicks)
	assert.Zero(t, l.enters)
}

func TestSteerLocationRecoversFromEnginePanic(t *testing.T) {
	l := newFakeLauncher()
	l.panicOnClick = "#missing-trigger"

	var report SteeringReport
	require.NotPanics(t, func() {
		report = SteerLocation(context.Background(), openFakePage(t, l), "30301", testLocation, fastSteps, nil)
	})
	assert.Equal(t, "detached node", report.Recovered)
}

func TestSteerLocationSkipsFillWithoutPostalCode(t *testing.T) {
	l := newFakeLauncher()
	l.fillable["input[name=zip]"] = true

	report := SteerLocation(context.Background(), openFakePage(t, l), "", testLocation, fastSteps, nil)
	assert.Empty(t, report.PostalInput)
	assert.Empty(t, l.fills)
}

func TestSteerLocationStopsWhenCancelled(t *testing.T) {
	l := newFakeLauncher()
	l.clickable["button.store"] = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := SteerLocation(ctx, openFakePage(t, l), "30301", testLocation, fastSteps, nil)
	assert.False(t, report.Steered())
}
