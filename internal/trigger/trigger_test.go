package trigger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewatch/tidewatch/internal/scheduler"
	"github.com/tidewatch/tidewatch/internal/trigger"
)

type fakeTarget struct {
	mu       sync.Mutex
	triggers []scheduler.Trigger
	visible  bool
}

func (f *fakeTarget) RefreshAll(t scheduler.Trigger) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, t)
	return uint64(len(f.triggers))
}

func (f *fakeTarget) SetVisible(visible bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	started := visible && !f.visible
	f.visible = visible
	if started {
		f.triggers = append(f.triggers, scheduler.TriggerVisibility)
	}
	return started
}

func (f *fakeTarget) seen() []scheduler.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduler.Trigger(nil), f.triggers...)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"refresh", `{"action":"refresh"}`, nil},
		{"visibility", `{"action":"visibility","visible":false}`, nil},
		{"visibility without flag", `{"action":"visibility"}`, trigger.ErrMalformed},
		{"not json", `refresh please`, trigger.ErrMalformed},
		{"unknown action", `{"action":"reboot"}`, trigger.ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := trigger.ParseCommand([]byte(tt.data))
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestApply(t *testing.T) {
	target := &fakeTarget{visible: true}

	assert.True(t, trigger.Apply(target, trigger.Command{Action: trigger.ActionRefresh}))

	hidden, shown := false, true
	assert.False(t, trigger.Apply(target, trigger.Command{Action: trigger.ActionVisibility, Visible: &hidden}))
	assert.True(t, trigger.Apply(target, trigger.Command{Action: trigger.ActionVisibility, Visible: &shown}))

	assert.Equal(t, []scheduler.Trigger{scheduler.TriggerRemote, scheduler.TriggerVisibility}, target.seen())
}

// replayReceiver hands each message to the callback, then returns.
type replayReceiver struct {
	messages []*pubsub.Message
	err      error
}

func (r *replayReceiver) Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error {
	for _, m := range r.messages {
		f(ctx, m)
	}
	return r.err
}

func TestPubSub_Run(t *testing.T) {
	now := time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)
	target := &fakeTarget{visible: true}

	receiver := &replayReceiver{messages: []*pubsub.Message{
		{ID: "1", Data: []byte(`{"action":"refresh"}`), PublishTime: now.Add(-time.Minute)},
		{ID: "2", Data: []byte(`{"action":"refresh"}`), PublishTime: now.Add(-time.Hour)},
		{ID: "3", Data: []byte(`garbage`), PublishTime: now},
		{ID: "4", Data: []byte(`{"action":"visibility","visible":false}`), PublishTime: now},
		{ID: "5", Data: []byte(`{"action":"visibility","visible":true}`), PublishTime: now},
	}}

	p := trigger.NewPubSub(trigger.PubSubConfig{
		Target:   target,
		Receiver: receiver,
		Now:      func() time.Time { return now },
		Logger:   zerolog.Nop(),
	})

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, []scheduler.Trigger{scheduler.TriggerRemote, scheduler.TriggerVisibility}, target.seen())
	assert.NoError(t, p.Close())
}

func TestPubSub_RunErrors(t *testing.T) {
	target := &fakeTarget{}

	p := trigger.NewPubSub(trigger.PubSubConfig{
		Target:   target,
		Receiver: &replayReceiver{err: context.Canceled},
		Logger:   zerolog.Nop(),
	})
	assert.NoError(t, p.Run(context.Background()))

	boom := errors.New("subscription deleted")
	p = trigger.NewPubSub(trigger.PubSubConfig{
		Target:   target,
		Receiver: &replayReceiver{err: boom},
		Logger:   zerolog.Nop(),
	})
	assert.ErrorIs(t, p.Run(context.Background()), boom)
}

func TestDayBoundary(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	target := &fakeTarget{}
	d, err := trigger.NewDayBoundary(target, la, zerolog.Nop())
	require.NoError(t, err)

	// 23:30 in Los Angeles is 06:30 UTC the next day.
	after := time.Date(2024, 6, 16, 6, 30, 0, 0, time.UTC)
	next := d.NextAfter(after)
	assert.True(t, next.Equal(time.Date(2024, 6, 16, 0, 0, 0, 0, la)), next.String())
	assert.Equal(t, la, next.Location())

	// Before the cron loop runs, Next still reports midnight in Los Angeles.
	before := d.Next().In(la)
	assert.Equal(t, 0, before.Hour())
	assert.Equal(t, 0, before.Minute())

	d.Run()
	assert.Equal(t, []scheduler.Trigger{scheduler.TriggerDayBoundary}, target.seen())
}

func TestDayBoundary_StartStop(t *testing.T) {
	d, err := trigger.NewDayBoundary(&fakeTarget{}, time.UTC, zerolog.Nop())
	require.NoError(t, err)

	d.Start()
	next := d.Next()
	d.Stop()

	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
}
