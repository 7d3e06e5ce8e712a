package transport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/message"
)

// SendEmailAPI is the slice of the SES v2 client the transport needs.
// Tests substitute a mock implementation.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES delivers messages through the AWS SES v2 API using the raw send
// path, so every pipeline-computed header survives verbatim.
type SES struct {
	client SendEmailAPI
}

// NewSES creates an SES transport from config. Static credentials are
// used when configured; otherwise the default AWS credential chain.
func NewSES(ctx context.Context, cfg config.SESConfig) (*SES, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return &SES{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewSESWithClient creates an SES transport with a custom client, for tests.
func NewSESWithClient(client SendEmailAPI) *SES {
	return &SES{client: client}
}

// Name returns the provider name.
func (s *SES) Name() string { return config.ProviderSES }

// Deliver sends the raw encoded message through SES.
func (s *SES) Deliver(ctx context.Context, msg *message.OutboundMessage) (*Response, error) {
	raw, err := msg.Encode()
	if err != nil {
		return nil, fmt.Errorf("ses: encode message: %w", err)
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return nil, &Error{Transient: true, Message: "ses rejected message", Err: err}
	}

	return &Response{
		MessageID: aws.ToString(out.MessageId),
		Line:      "250 Ok " + aws.ToString(out.MessageId),
	}, nil
}
