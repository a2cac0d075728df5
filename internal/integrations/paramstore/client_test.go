package paramstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	// values backs GetParameters; batches records each request's names.
	values   map[string]string
	batchErr error
	batches  [][]string
	lastIn   *ssm.GetParametersInput
}

func (f *fakeAPI) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batches = append(f.batches, in.Names)
	f.lastIn = in
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := &ssm.GetParametersOutput{}
	for _, n := range in.Names {
		if v, ok := f.values[n]; ok {
			out.Parameters = append(out.Parameters, types.Parameter{Name: strPtr(n), Value: strPtr(v)})
		} else {
			out.InvalidParameters = append(out.InvalidParameters, n)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestGetParameters_OmitsMissingNames(t *testing.T) {
	api := &fakeAPI{values: map[string]string{
		"/movies/anthropic-token": `{"token":"sk"}`,
	}}
	client, err := New(api)
	require.NoError(t, err)

	got, err := client.GetParameters(context.Background(), "/movies/anthropic-token", "/movies/config/anthropic_model", " ")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"/movies/anthropic-token": `{"token":"sk"}`}, got)
	require.Len(t, api.batches, 1)
	require.Len(t, api.batches[0], 2)
}

func TestGetParameters_SplitsIntoBatchesOfTen(t *testing.T) {
	api := &fakeAPI{values: map[string]string{}}
	names := make([]string, 0, 23)
	for i := range 23 {
		n := fmt.Sprintf("/p/%d", i)
		names = append(names, n)
		api.values[n] = "v"
	}
	client, err := New(api)
	require.NoError(t, err)

	got, err := client.GetParameters(context.Background(), names...)
	require.NoError(t, err)
	require.Len(t, got, 23)
	require.Len(t, api.batches, 3)
	require.Len(t, api.batches[2], 3)
}

func TestGetParameters_RequiresNames(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "", "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least one")
}

func TestGetParameters_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{batchErr: errors.New("AccessDenied")})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "/p")
	require.ErrorContains(t, err, "AccessDenied")
}

func TestGetParameters_RequestsDecryption(t *testing.T) {
	api := &fakeAPI{values: map[string]string{"/p": "secret"}}
	client, err := New(api)
	require.NoError(t, err)

	got, err := client.GetParameters(context.Background(), "/p")
	require.NoError(t, err)
	require.Equal(t, "secret", got["/p"])
	require.True(t, *api.lastIn.WithDecryption)
}

func TestGetParameters_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameters(context.Background(), "/p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}
