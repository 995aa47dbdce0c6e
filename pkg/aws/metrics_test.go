package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestMetricsClient_RecordCount(t *testing.T) {
	api := &fakeCloudWatch{}
	m := NewMetricsClientWithAPI(api, "", true)

	require.NoError(t, m.RecordCount(context.Background(), MetricPaymentSucceeded, map[string]string{"Method": "khalti", "Env": "dev"}))
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "HamroGrocery", *in.Namespace)
	datum := in.MetricData[0]
	assert.Equal(t, "PaymentSucceeded", *datum.MetricName)
	assert.Equal(t, 1.0, *datum.Value)
	assert.Equal(t, types.StandardUnitCount, datum.Unit)
	require.Len(t, datum.Dimensions, 2)
	assert.Equal(t, "Env", *datum.Dimensions[0].Name)
	assert.Equal(t, "Method", *datum.Dimensions[1].Name)
}

func TestMetricsClient_RecordLatency(t *testing.T) {
	api := &fakeCloudWatch{}
	m := NewMetricsClientWithAPI(api, "Grocery", true)

	require.NoError(t, m.RecordLatency(context.Background(), MetricGatewayLatency, 1500*time.Millisecond, nil))
	datum := api.inputs[0].MetricData[0]
	assert.Equal(t, 1500.0, *datum.Value)
	assert.Equal(t, types.StandardUnitMilliseconds, datum.Unit)
	assert.Empty(t, datum.Dimensions)
}

func TestMetricsClient_DisabledAndErrors(t *testing.T) {
	var nilClient *MetricsClient
	assert.False(t, nilClient.IsEnabled())
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricHTTPRequests, nil))

	api := &fakeCloudWatch{}
	disabled := NewMetricsClientWithAPI(api, "Grocery", false)
	assert.NoError(t, disabled.RecordCount(context.Background(), MetricHTTPRequests, nil))
	assert.Empty(t, api.inputs)

	api.err = errors.New("throttled")
	enabled := NewMetricsClientWithAPI(api, "Grocery", true)
	assert.ErrorContains(t, enabled.RecordCount(context.Background(), MetricHTTPRequests, nil), "HTTPRequests")
}
