package aws

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogs struct {
	groupErr  error
	streamErr error
	putErr    error

	streams []string
	puts    []*cloudwatchlogs.PutLogEventsInput
	tokens  int
}

func (f *fakeLogs) CreateLogGroup(_ context.Context, _ *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.groupErr
}

func (f *fakeLogs) CreateLogStream(_ context.Context, in *cloudwatchlogs.CreateLogStreamInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.streams = append(f.streams, *in.LogStreamName)
	return &cloudwatchlogs.CreateLogStreamOutput{}, f.streamErr
}

func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, in)
	f.tokens++
	return &cloudwatchlogs.PutLogEventsOutput{NextSequenceToken: sdkaws.String(strings.Repeat("t", f.tokens))}, nil
}

func TestCloudWatchLogsWriter_ShipsLines(t *testing.T) {
	client := &fakeLogs{}
	w, err := NewCloudWatchLogsWriter(context.Background(), client, "/hamro-grocery/api", "api")
	require.NoError(t, err)
	require.Len(t, client.streams, 1)
	assert.True(t, strings.HasPrefix(w.StreamName(), "api-"))

	n, err := w.Write([]byte(`{"msg":"first"}` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	_, err = w.Write([]byte(`{"msg":"second"}` + "\n"))
	require.NoError(t, err)

	require.Len(t, client.puts, 2)
	assert.Equal(t, `{"msg":"first"}`, *client.puts[0].LogEvents[0].Message)
	assert.Nil(t, client.puts[0].SequenceToken)
	assert.Equal(t, "t", *client.puts[1].SequenceToken)
	assert.Equal(t, "/hamro-grocery/api", *client.puts[1].LogGroupName)
}

func TestCloudWatchLogsWriter_ExistingGroupIsFine(t *testing.T) {
	client := &fakeLogs{groupErr: &types.ResourceAlreadyExistsException{}}
	_, err := NewCloudWatchLogsWriter(context.Background(), client, "/g", "api")
	assert.NoError(t, err)
}

func TestCloudWatchLogsWriter_SetupFailures(t *testing.T) {
	_, err := NewCloudWatchLogsWriter(context.Background(), &fakeLogs{groupErr: errors.New("denied")}, "/g", "api")
	assert.ErrorContains(t, err, "log group")

	_, err = NewCloudWatchLogsWriter(context.Background(), &fakeLogs{streamErr: errors.New("denied")}, "/g", "api")
	assert.ErrorContains(t, err, "log stream")
}

func TestCloudWatchLogsWriter_SwallowsPutErrors(t *testing.T) {
	client := &fakeLogs{}
	w, err := NewCloudWatchLogsWriter(context.Background(), client, "/g", "api")
	require.NoError(t, err)

	client.putErr = errors.New("throttled")
	n, err := w.Write([]byte("line\n"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = w.Write([]byte("\n"))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, client.puts)
}
