package userfeed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"predictex/internal/publish"
	"predictex/internal/streaming"
	"predictex/internal/types"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition never became true")
}

func TestServiceConsumesProcessorStreamAndPublishesUserEvents(t *testing.T) {
	fake := streaming.NewFake()
	svc := NewService(fake, 10, 0)

	msg := types.ProcessorMessage{
		Kind:      types.OrderSubmittedKind,
		Submitted: &types.OrderSubmitted{OrderID: "o1", Symbol: sym(), PrivyID: "u1"},
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	_, err = fake.Append(context.Background(), publish.ProcessorStream, map[string]string{"payload": string(data)}, 0)
	require.NoError(t, err)

	var tm tomb.Tomb
	svc.Run(&tm)
	defer func() { tm.Kill(nil); _ = tm.Wait() }()

	waitFor(t, func() bool { return fake.Len(publish.UserEventStream) == 1 })
}
