package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out  *ssm.GetParameterOutput
	err  error
	last *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.last = in
	return f.out, f.err
}

func parameter(value *string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  aws.String("/hint-agent/openai-token"),
		Value: value,
		Type:  types.ParameterTypeSecureString,
	}}
}

func TestGetParameter_DecryptsTrimmedName(t *testing.T) {
	api := &fakeSSM{out: parameter(aws.String("sk-live"))}
	client, err := New(api)
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), "  /hint-agent/openai-token ")
	require.NoError(t, err)
	require.Equal(t, "sk-live", v)
	require.Equal(t, "/hint-agent/openai-token", aws.ToString(api.last.Name))
	require.True(t, aws.ToBool(api.last.WithDecryption))
}

func TestGetParameter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		api     *fakeSSM
		param   string
		wantErr string
		is      error
	}{
		{name: "blank name", api: &fakeSSM{}, param: " ", wantErr: "required"},
		{name: "nil value", api: &fakeSSM{out: parameter(nil)}, param: "/p", wantErr: "missing value"},
		{name: "nil output", api: &fakeSSM{}, param: "/p", wantErr: "missing value"},
		{name: "throttled", api: &fakeSSM{err: errors.New("ThrottlingException")}, param: "/p", wantErr: "ThrottlingException"},
		{name: "not found", api: &fakeSSM{err: &types.ParameterNotFound{}}, param: "/hint-agent/config", wantErr: "/hint-agent/config", is: ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := New(tc.api)
			require.NoError(t, err)
			_, err = client.GetParameter(context.Background(), tc.param)
			require.ErrorContains(t, err, tc.wantErr)
			if tc.is != nil {
				require.ErrorIs(t, err, tc.is)
			} else {
				require.NotErrorIs(t, err, ErrNotFound)
			}
		})
	}
}

func TestGetParameter_ZeroClient(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "/p")
	require.ErrorContains(t, err, "not initialized")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}
