package playback

import (
	"context"
	"testing"
	"time"

	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/neilberkman/supportchat/internal/core/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*registry.Registry, string, *Controller) {
	t.Helper()
	reg := registry.New()
	id := reg.EnsureActive()
	require.True(t, reg.AppendTo(id, models.NewMessage(models.RoleUser, "question")))
	require.True(t, reg.AppendTo(id, models.NewMessage(models.RoleBot, "")))
	return reg, id, New(reg, time.Millisecond)
}

func lastText(reg *registry.Registry, id string) models.Message {
	s, _ := reg.Session(id)
	return s.Messages[len(s.Messages)-1]
}

func TestStepRevealsOneRuneAtATime(t *testing.T) {
	reg, id, c := setup(t)

	c.Start(id, 1, "héllo")
	assert.Equal(t, Streaming, c.State())

	var seen []string
	for c.Step() {
		seen = append(seen, reg.Visible()[1].Text)
	}
	assert.Equal(t, []string{"h", "hé", "hél", "héll"}, seen)
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, "héllo", lastText(reg, id).Text)
	assert.Equal(t, reg.Visible()[1], lastText(reg, id))
}

func TestDirectionFixedFromFullAnswer(t *testing.T) {
	reg, id, c := setup(t)

	// starts with latin text, arabic only at the end
	c.Start(id, 1, "ok مرحبا")
	for c.Step() {
		m := reg.Visible()[1]
		assert.Equal(t, models.RTL, m.Direction, "partial %q", m.Text)
		assert.Equal(t, models.AlignRight, m.Align)
	}
	assert.Equal(t, models.RTL, lastText(reg, id).Direction)
}

func TestSwitchAwayWritesFinalTextToOrigin(t *testing.T) {
	reg, id, c := setup(t)

	c.Start(id, 1, "the full answer")
	require.True(t, c.Step())
	require.True(t, c.Step())

	other := reg.NewSession()
	assert.False(t, c.Step())
	assert.Equal(t, Idle, c.State())

	assert.Equal(t, "the full answer", lastText(reg, id).Text)
	assert.Empty(t, reg.Visible(), "nothing leaks into %s", other)
}

func TestSwitchBackStillCancels(t *testing.T) {
	reg, id, c := setup(t)

	c.Start(id, 1, "answer")
	c.Step()
	other := reg.NewSession()
	_, ok := reg.BeginSwitch(id)
	require.True(t, ok)
	require.NotEqual(t, other, reg.ActiveID())

	// same active id, different epoch
	assert.False(t, c.Step())
	assert.Equal(t, "answer", lastText(reg, id).Text)
}

func TestFlush(t *testing.T) {
	reg, id, c := setup(t)

	c.Start(id, 1, "done at once")
	c.Step()
	c.Flush()

	assert.Equal(t, Idle, c.State())
	assert.Equal(t, "done at once", reg.Visible()[1].Text)
	assert.False(t, c.Step())
}

func TestStartFlushesPreviousRun(t *testing.T) {
	reg, id, c := setup(t)

	first := c.Start(id, 1, "first")
	c.Step()
	reg.AppendTo(id, models.NewMessage(models.RoleBot, ""))
	second := c.Start(id, 2, "second")

	assert.NotEqual(t, first, second)
	assert.Equal(t, second, c.RunID())
	assert.Equal(t, "first", reg.Visible()[1].Text)
}

func TestStartEmptyAnswer(t *testing.T) {
	_, id, c := setup(t)

	c.Start(id, 1, "")
	assert.Equal(t, Idle, c.State())
	assert.False(t, c.Step())
}

func TestRun(t *testing.T) {
	reg, id, c := setup(t)
	c.Start(id, 1, "abc")

	var reveals []string
	err := c.Run(context.Background(), func(s string) { reveals = append(reveals, s) })
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "ab", "abc"}, reveals)
	assert.Equal(t, "abc", reg.Visible()[1].Text)
}

func TestRunCancelledFlushes(t *testing.T) {
	reg, id, _ := setup(t)
	c := New(reg, time.Hour)
	c.Start(id, 1, "never ticks")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Run(ctx, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "never ticks", reg.Visible()[1].Text)
}
