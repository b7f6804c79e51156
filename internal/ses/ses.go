// Package ses is the Amazon SES email provider.
package ses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"

	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/domain"
)

const DefaultConfigurationSet = "EmailMetrics"

type sendAPI interface {
	SendEmail(ctx context.Context, in *awsses.SendEmailInput, optFns ...func(*awsses.Options)) (*awsses.SendEmailOutput, error)
}

type Provider struct {
	api sendAPI
}

var _ dispatch.Provider = (*Provider)(nil)

type Config struct {
	Region    string
	AccessKey string
	SecretKey string
}

// New builds an SES client. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("ses: region is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return &Provider{api: awsses.NewFromConfig(awsCfg)}, nil
}

func (p *Provider) Send(ctx context.Context, e dispatch.Email) (string, error) {
	in := &awsses.SendEmailInput{
		Source:      aws.String(e.From),
		Destination: &types.Destination{ToAddresses: []string{e.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(e.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(e.HTML), Charset: aws.String("UTF-8")},
			},
		},
	}
	if e.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(e.ConfigurationSet)
	}

	out, err := p.api.SendEmail(ctx, in)
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(out.MessageId), nil
}

// classify tags SES failures. Every failure is a provider error; address
// rejections are also ErrInvalidRecipient and throttling is also transient.
func classify(err error) error {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return domain.ProviderError(err)
	}

	msg := strings.ToLower(ae.ErrorMessage())
	switch ae.ErrorCode() {
	case "InvalidParameterValue":
		if strings.Contains(msg, "address") {
			return domain.ProviderError(fmt.Errorf("%w: %w", dispatch.ErrInvalidRecipient, err))
		}
	case "MessageRejected":
		// unverified senders are rejected with the same code
		if strings.Contains(msg, "blacklist") || strings.Contains(msg, "suppression") {
			return domain.ProviderError(fmt.Errorf("%w: %w", dispatch.ErrInvalidRecipient, err))
		}
	case "Throttling", "ThrottlingException", "ServiceUnavailable", "InternalFailure":
		return domain.ProviderError(domain.Transient(err))
	}
	return domain.ProviderError(err)
}
