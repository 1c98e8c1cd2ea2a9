package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Bedrock forwards to AWS Bedrock via InvokeModel. The stored secret is
// "accessKeyID:secretAccessKey:region"; the model body is passed through
// unchanged, so callers use the model's native format (Anthropic models on
// Bedrock speak the Anthropic Messages shape).
type Bedrock struct {
	defaultRegion string
}

// NewBedrock creates the Bedrock adapter.
func NewBedrock(defaultRegion string) *Bedrock {
	if defaultRegion == "" {
		defaultRegion = "us-east-1"
	}
	return &Bedrock{defaultRegion: defaultRegion}
}

// Name implements Adapter.
func (b *Bedrock) Name() string { return "aws-bedrock" }

// Forward implements Adapter.
func (b *Bedrock) Forward(ctx context.Context, secret string, req *Request) (*Response, error) {
	accessKey, secretKey, region, err := b.splitSecret(secret)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		return nil, fmt.Errorf("bedrock requests must declare a model")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load bedrock config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(cfg)
	output, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		Body:        req.Body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, &UpstreamError{Provider: "aws-bedrock", Status: 502, Body: []byte(err.Error())}
	}

	return &Response{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        output.Body,
		Usage:       parseAnthropicUsage(output.Body),
	}, nil
}

func (b *Bedrock) splitSecret(secret string) (accessKey, secretKey, region string, err error) {
	parts := strings.SplitN(secret, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("bedrock secret must be accessKeyID:secretAccessKey[:region]")
	}
	region = b.defaultRegion
	if len(parts) == 3 && parts[2] != "" {
		region = parts[2]
	}
	return parts[0], parts[1], region, nil
}

var _ Adapter = (*Bedrock)(nil)
