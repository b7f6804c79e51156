package ses

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/smithy-go"

	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/domain"
)

type fakeSES struct {
	got *awsses.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *awsses.SendEmailInput, _ ...func(*awsses.Options)) (*awsses.SendEmailOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &awsses.SendEmailOutput{MessageId: aws.String("0100018e-abc")}, nil
}

func TestSendBuildsRequest(t *testing.T) {
	f := &fakeSES{}
	p := &Provider{api: f}

	id, err := p.Send(context.Background(), dispatch.Email{
		From: `"Sam" <sam@example.com>`, To: "jane@acme.com", Subject: "Hi", HTML: "<p>x</p>", ConfigurationSet: DefaultConfigurationSet,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "0100018e-abc" {
		t.Errorf("message id = %q", id)
	}
	if aws.ToString(f.got.ConfigurationSetName) != "EmailMetrics" ||
		f.got.Destination.ToAddresses[0] != "jane@acme.com" ||
		aws.ToString(f.got.Message.Body.Html.Data) != "<p>x</p>" {
		t.Errorf("request = %+v", f.got)
	}
}

func TestSendClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		invalid   bool
		transient bool
	}{
		{
			name:    "bad address",
			err:     &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "Missing final '@domain'. Illegal address"},
			invalid: true,
		},
		{
			name:      "throttled",
			err:       &smithy.GenericAPIError{Code: "Throttling", Message: "Maximum sending rate exceeded."},
			transient: true,
		},
		{
			name: "unverified sender",
			err:  &smithy.GenericAPIError{Code: "MessageRejected", Message: "Email not verified."},
		},
		{
			name: "network",
			err:  errors.New("dial tcp: i/o timeout"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Provider{api: &fakeSES{err: tt.err}}
			_, err := p.Send(context.Background(), dispatch.Email{To: "x"})
			if !errors.Is(err, domain.ErrProvider) {
				t.Errorf("err = %v, want ErrProvider", err)
			}
			if got := errors.Is(err, dispatch.ErrInvalidRecipient); got != tt.invalid {
				t.Errorf("invalid recipient = %v, want %v", got, tt.invalid)
			}
			if got := errors.Is(err, domain.ErrTransient); got != tt.transient {
				t.Errorf("transient = %v, want %v", got, tt.transient)
			}
		})
	}
}
