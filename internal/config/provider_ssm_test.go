package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// mockSSMClient records GetParameters calls and serves canned values.
type mockSSMClient struct {
	values    map[string]string
	invalid   []string
	err       error
	batches   [][]string
	decrypted bool
}

func (m *mockSSMClient) GetParameters(_ context.Context, params *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.batches = append(m.batches, params.Names)
	if params.WithDecryption != nil {
		m.decrypted = *params.WithDecryption
	}
	if m.err != nil {
		return nil, m.err
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range params.Names {
		if v, ok := m.values[name]; ok {
			out.Parameters = append(out.Parameters, ssmtypes.Parameter{
				Name:  aws.String(name),
				Value: aws.String(v),
			})
		}
	}
	out.InvalidParameters = append(out.InvalidParameters, m.invalid...)
	return out, nil
}

func TestSSMProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = (*SSMProvider)(nil)
	var _ SecretProvider = NewSSMProvider("us-east-1")
}

func TestSSMProviderResolvesWithDecryption(t *testing.T) {
	client := &mockSSMClient{values: map[string]string{
		"/prod/riskwatch/database/url": "postgres://resolved",
	}}
	provider := newSSMProviderWithClient("us-east-1", client)

	result, err := provider.GetParametersBatch(context.Background(), []string{"/prod/riskwatch/database/url"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if result["/prod/riskwatch/database/url"] != "postgres://resolved" {
		t.Errorf("resolved value = %q, want postgres://resolved", result["/prod/riskwatch/database/url"])
	}
	if !client.decrypted {
		t.Error("GetParameters should request decryption")
	}
}

func TestSSMProviderBatchesByTen(t *testing.T) {
	client := &mockSSMClient{values: map[string]string{}}
	keys := make([]string, 23)
	for i := range keys {
		keys[i] = fmt.Sprintf("/prod/riskwatch/param-%02d", i)
		client.values[keys[i]] = fmt.Sprintf("value-%02d", i)
	}
	provider := newSSMProviderWithClient("us-east-1", client)

	result, err := provider.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(result) != 23 {
		t.Errorf("resolved %d values, want 23", len(result))
	}
	if len(client.batches) != 3 {
		t.Fatalf("made %d batch calls, want 3", len(client.batches))
	}
	if len(client.batches[0]) != 10 || len(client.batches[1]) != 10 || len(client.batches[2]) != 3 {
		t.Errorf("batch sizes = %d/%d/%d, want 10/10/3",
			len(client.batches[0]), len(client.batches[1]), len(client.batches[2]))
	}
}

func TestSSMProviderInvalidParameterFails(t *testing.T) {
	client := &mockSSMClient{
		values:  map[string]string{},
		invalid: []string{"/prod/riskwatch/missing"},
	}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/prod/riskwatch/missing"})
	if err == nil {
		t.Fatal("expected error for invalid parameter, got nil")
	}
}

func TestSSMProviderClientErrorWrapped(t *testing.T) {
	sdkErr := errors.New("throttled")
	client := &mockSSMClient{err: sdkErr}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/prod/riskwatch/x"})
	if !errors.Is(err, sdkErr) {
		t.Errorf("error should wrap SDK error, got: %v", err)
	}
}

func TestSSMProviderEmptyKeysReturnsEmptyMap(t *testing.T) {
	provider := NewSSMProvider("us-east-1")
	result, err := provider.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetParametersBatch with no keys returned error: %v", err)
	}
	if result == nil || len(result) != 0 {
		t.Errorf("expected empty non-nil map, got %v", result)
	}
}

func TestSSMProviderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &mockSSMClient{values: map[string]string{}}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(ctx, []string{"/prod/riskwatch/x"})
	if err == nil {
		t.Fatal("expected error with cancelled context, got nil")
	}
	if len(client.batches) != 0 {
		t.Error("no batch call should be made after cancellation")
	}
}
