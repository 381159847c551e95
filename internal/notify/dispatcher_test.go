package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hackdash/apiserver/internal/mq"
	"github.com/hackdash/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

// fakeBackend records publishes and fails any message whose attributes
// carry a hackathon id listed in failIDs.
type fakeBackend struct {
	messages []published
	failIDs  map[string]bool
}

func (f *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if f.failIDs[attrs["hackathon_id"]] {
		return "", errors.New("broker unavailable")
	}
	f.messages = append(f.messages, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (f *fakeBackend) Subscribe(context.Context, string, mq.Handler) error { return nil }
func (f *fakeBackend) Close() error                                        { return nil }

func sampleBatch() []types.StageTransition {
	return []types.StageTransition{
		{
			RecipientEmail: "a@example.com",
			HackathonID:    1,
			HackathonTitle: "Spring Hack",
			OldStage:       types.StagePPT,
			NewStage:       types.StageRound1,
		},
		{
			RecipientEmail: "b@example.com",
			HackathonID:    2,
			HackathonTitle: "Winter Hack",
			OldStage:       types.StageRound2,
			NewStage:       types.StageSemifinal,
		},
	}
}

func TestQueueDispatcherPublishesPerRecipient(t *testing.T) {
	backend := &fakeBackend{}
	d := NewQueueDispatcher(mq.New(backend), "stage-notifications", zap.NewNop())

	report := d.Dispatch(context.Background(), sampleBatch())
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, report.Sent)
	assert.Empty(t, report.Failed)

	require.Len(t, backend.messages, 2)
	msg := backend.messages[0]
	assert.Equal(t, "stage-notifications", msg.channel)
	assert.Equal(t, "1", msg.attrs["hackathon_id"])
	assert.Equal(t, "ppt", msg.attrs["old_stage"])
	assert.Equal(t, "round1", msg.attrs["new_stage"])

	var transition types.StageTransition
	require.NoError(t, json.Unmarshal(msg.data, &transition))
	assert.Equal(t, "a@example.com", transition.RecipientEmail)
	assert.Equal(t, "Spring Hack", transition.HackathonTitle)
}

func TestQueueDispatcherPartialFailure(t *testing.T) {
	backend := &fakeBackend{failIDs: map[string]bool{"1": true}}
	d := NewQueueDispatcher(mq.New(backend), "stage-notifications", zap.NewNop())

	report := d.Dispatch(context.Background(), sampleBatch())
	assert.Equal(t, []string{"b@example.com"}, report.Sent)
	assert.Equal(t, []string{"a@example.com"}, report.Failed)
	assert.Len(t, backend.messages, 1)
}

func TestQueueDispatcherEmptyBatch(t *testing.T) {
	backend := &fakeBackend{}
	d := NewQueueDispatcher(mq.New(backend), "stage-notifications", zap.NewNop())

	report := d.Dispatch(context.Background(), nil)
	assert.Empty(t, report.Sent)
	assert.Empty(t, report.Failed)
	assert.Empty(t, backend.messages)
}

func TestLogDispatcherReportsAllSent(t *testing.T) {
	d := NewLogDispatcher(zap.NewNop())

	report := d.Dispatch(context.Background(), sampleBatch())
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, report.Sent)
	assert.Empty(t, report.Failed)
}
