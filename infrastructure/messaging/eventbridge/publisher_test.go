package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"devconsole/domain/events"
	pkgerrors "devconsole/pkg/errors"
)

type fakeClient struct {
	calls  []*eventbridge.PutEventsInput
	failed int32
	err    error
}

func (f *fakeClient) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &eventbridge.PutEventsOutput{FailedEntryCount: f.failed}
	for range in.Entries {
		entry := types.PutEventsResultEntry{}
		if f.failed > 0 {
			entry.ErrorCode = aws.String("ThrottlingException")
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func TestPublisher_BatchesByTen(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "bus", zap.NewNop())

	var evts []events.DomainEvent
	for i := 0; i < 23; i++ {
		evts = append(evts, events.NewUserFollowed("a", "b", time.Now()))
	}

	require.NoError(t, p.PublishBatch(context.Background(), evts))
	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0].Entries, 10)
	assert.Len(t, client.calls[2].Entries, 3)
}

func TestPublisher_EntryShape(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "bus", zap.NewNop())
	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), events.NewPostLiked("p1", "fan", "author", ts)))

	entry := client.calls[0].Entries[0]
	assert.Equal(t, "bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypePostLiked, aws.ToString(entry.DetailType))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "author", detail["author_id"])
}

func TestPublisher_Failures(t *testing.T) {
	p := NewPublisher(&fakeClient{failed: 1}, "bus", zap.NewNop())
	err := p.Publish(context.Background(), events.NewUserFollowed("a", "b", time.Now()))
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))

	network := errors.New("network")
	p = NewPublisher(&fakeClient{err: network}, "bus", zap.NewNop())
	err = p.Publish(context.Background(), events.NewUserFollowed("a", "b", time.Now()))
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	assert.ErrorIs(t, err, network)
}
